package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Error is a backend rejection carrying the upstream message so callers can
// surface it verbatim.
type Error struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("backend: %s: %s", e.Message, e.Details)
	}
	return "backend: " + e.Message
}

// RemoteMessage extracts the upstream message from err, if any.
func RemoteMessage(err error) (string, bool) {
	var be *Error
	if errors.As(err, &be) && be.Message != "" {
		return be.Message, true
	}
	return "", false
}

type Config struct {
	BaseURL string        `validate:"required,url"`
	Timeout time.Duration `validate:"gt=0"`
}

// Client talks to the remote commerce backend over its two protocols:
// the structured mutation endpoint and the REST resources.
type Client struct {
	http    *http.Client
	baseURL string
	logger  *slog.Logger
}

func New(logger *slog.Logger, cfg Config) *Client {
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		logger:  logger.With(slog.String("client", "backend")),
	}
}

type mutationEnvelope struct {
	Operation string `json:"operation"`
	Variables any    `json:"variables,omitempty"`
}

type mutationResult struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// mutate posts one structured-protocol operation and decodes data into out.
func (c *Client) mutate(ctx context.Context, token, operation string, vars, out any) error {
	body, err := json.Marshal(mutationEnvelope{Operation: operation, Variables: vars})
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", operation, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", operation, err)
	}

	if res.StatusCode >= http.StatusBadRequest {
		return decodeError(res.StatusCode, raw)
	}

	var result mutationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", operation, err)
	}
	if len(result.Errors) > 0 {
		return &Error{StatusCode: res.StatusCode, Message: result.Errors[0].Message}
	}
	if out != nil {
		if err := json.Unmarshal(result.Data, out); err != nil {
			return fmt.Errorf("failed to decode %s data: %w", operation, err)
		}
	}
	return nil
}

// rest issues one REST call. A nil body sends no payload; out may be nil.
func (c *Client) rest(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if res.StatusCode >= http.StatusBadRequest {
		return decodeError(res.StatusCode, raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func decodeError(status int, raw []byte) error {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	// Body may not be JSON at all; the status code alone still identifies
	// the failure.
	_ = json.Unmarshal(raw, &payload)

	msg := payload.Message
	if msg == "" {
		msg = payload.Error
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &Error{StatusCode: status, Message: msg, Details: payload.Details}
}
