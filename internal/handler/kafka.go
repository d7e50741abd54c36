package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/segmentio/kafka-go"

	"github.com/SergeyBogomolovv/checkout-service/internal/config"
	"github.com/SergeyBogomolovv/checkout-service/internal/events"
)

type SessionWriter interface {
	CartID(ctx context.Context, deviceID string) (string, error)
	SetCartID(ctx context.Context, deviceID, cartID string) error
	SetCustomerToken(ctx context.Context, deviceID, token string) error
}

type MergeClient interface {
	MergeCarts(ctx context.Context, customerToken, guestCartID string) (string, error)
	CustomerCart(ctx context.Context, customerToken string) (string, error)
}

type MachineDropper interface {
	Drop(deviceID string)
}

// kafkaHandler consumes login events and merges the device's guest cart into
// the customer's cart, so the session identity survives authentication.
type kafkaHandler struct {
	dlq         *kafka.Writer
	reader      *kafka.Reader
	logger      *slog.Logger
	validate    *validator.Validate
	sessions    SessionWriter
	client      MergeClient
	machines    MachineDropper
	broadcaster events.Broadcaster
}

func NewKafkaHandler(logger *slog.Logger, cfg config.Kafka, sessions SessionWriter, client MergeClient, machines MachineDropper, broadcaster events.Broadcaster) *kafkaHandler {
	return &kafkaHandler{
		logger: logger.With(slog.String("handler", "kafka")),
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: cfg.Brokers,
			GroupID: cfg.GroupID,
			Topic:   cfg.LoginTopic,
			MaxWait: cfg.ReaderMaxWait,
		}),
		dlq: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: cfg.BatchTimeout,
		},
		validate:    validator.New(),
		sessions:    sessions,
		client:      client,
		machines:    machines,
		broadcaster: broadcaster,
	}
}

func (h *kafkaHandler) Consume(ctx context.Context) {
	for {
		m, err := h.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				break
			}
			h.logger.Error("failed to fetch message", slog.Any("error", err))
			continue
		}

		if err := h.handleLogin(ctx, m); err != nil {
			loginsFailed.Inc()
			h.logger.Error("failed to handle login event", slog.Any("error", err))

			if err := h.writeToDLQ(ctx, m); err != nil {
				h.logger.Error("failed to write message to DLQ", slog.Any("error", err))
				continue
			}
		}

		if err := h.reader.CommitMessages(ctx, m); err != nil {
			h.logger.Error("failed to commit message", slog.Any("error", err))
		}
	}
}

// LoginEvent announces that a device's shopper authenticated.
type LoginEvent struct {
	DeviceID      string `json:"device_id" validate:"required"`
	CustomerToken string `json:"customer_token" validate:"required"`
}

func (h *kafkaHandler) handleLogin(ctx context.Context, m kafka.Message) error {
	var event LoginEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal login event: %w", err)
	}
	if err := h.validate.Struct(event); err != nil {
		return fmt.Errorf("invalid login event: %w", err)
	}

	if err := h.sessions.SetCustomerToken(ctx, event.DeviceID, event.CustomerToken); err != nil {
		return fmt.Errorf("failed to store customer token: %w", err)
	}

	guestCartID, err := h.sessions.CartID(ctx, event.DeviceID)
	if err != nil {
		return fmt.Errorf("failed to read guest cart id: %w", err)
	}

	var cartID string
	if guestCartID != "" {
		cartID, err = h.client.MergeCarts(ctx, event.CustomerToken, guestCartID)
		if err != nil {
			return fmt.Errorf("failed to merge carts: %w", err)
		}
		loginsMerged.Inc()
	} else {
		// Nothing to merge; adopt the customer's persistent cart.
		cartID, err = h.client.CustomerCart(ctx, event.CustomerToken)
		if err != nil {
			return fmt.Errorf("failed to fetch customer cart: %w", err)
		}
	}

	if err := h.sessions.SetCartID(ctx, event.DeviceID, cartID); err != nil {
		return fmt.Errorf("failed to store merged cart id: %w", err)
	}

	// The mounted machine still holds the guest session; drop it so the
	// next request mounts against the merged cart.
	h.machines.Drop(event.DeviceID)

	if err := h.broadcaster.Publish(ctx, events.New(events.KindAuthChanged, event.DeviceID)); err != nil {
		h.logger.Warn("failed to broadcast auth change", slog.Any("error", err))
	}

	h.logger.Debug("login handled", slog.String("device_id", event.DeviceID))
	return nil
}

func (h *kafkaHandler) writeToDLQ(ctx context.Context, m kafka.Message) error {
	m.Topic = fmt.Sprintf("%s-dlq", m.Topic)
	return h.dlq.WriteMessages(ctx, m)
}

func (h *kafkaHandler) Close() error {
	if err := h.reader.Close(); err != nil {
		return err
	}
	return h.dlq.Close()
}
