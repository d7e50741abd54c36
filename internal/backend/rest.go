package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/SergeyBogomolovv/checkout-service/pkg/utils"
)

// REST resources. The extended payment processor is reachable only here;
// the structured protocol has no operation for it.

// PaymentInformation is the single payload posted to the REST
// payment-information resource on behalf of the extended processor.
type PaymentInformation struct {
	// Email is required on the guest resource: guest carts have no email
	// attached yet.
	Email          string          `json:"email,omitempty"`
	PaymentMethod  PaymentMethod   `json:"paymentMethod"`
	BillingAddress *BillingAddress `json:"billingAddress,omitempty"`
}

type PaymentMethod struct {
	Code           string            `json:"method"`
	AdditionalData map[string]string `json:"additional_data,omitempty"`
}

// BillingAddress uses country/region identifiers, not the structured
// protocol's region string.
type BillingAddress struct {
	Firstname  string   `json:"firstname"`
	Lastname   string   `json:"lastname"`
	Street     []string `json:"street"`
	City       string   `json:"city"`
	RegionCode string   `json:"region_code,omitempty"`
	RegionID   int      `json:"region_id,omitempty"`
	Postcode   string   `json:"postcode"`
	CountryID  string   `json:"country_id"`
	Telephone  string   `json:"telephone"`
}

func BillingAddressFrom(a entities.Address) *BillingAddress {
	return &BillingAddress{
		Firstname:  a.Firstname,
		Lastname:   a.Lastname,
		Street:     a.Street,
		City:       a.City,
		RegionCode: a.RegionCode,
		RegionID:   a.RegionID,
		Postcode:   a.Postcode,
		CountryID:  a.CountryID,
		Telephone:  a.Telephone,
	}
}

// SubmitPaymentInformation places the order through the REST resource and
// returns the raw order entity id. An authenticated call (token set) uses the
// customer "mine" resource; a guest call addresses the guest-cart-scoped one.
// Not idempotent; never retried.
func (c *Client) SubmitPaymentInformation(ctx context.Context, session entities.CartSession, info PaymentInformation) (string, error) {
	path := "/rest/V1/carts/mine/payment-information"
	token := session.CustomerToken
	if !session.Authenticated {
		path = "/rest/V1/guest-carts/" + url.PathEscape(session.CartID) + "/payment-information"
		token = ""
	}

	c.logger.InfoContext(ctx, "submitting payment information",
		slog.String("method", info.PaymentMethod.Code),
		slog.Bool("authenticated", session.Authenticated),
	)

	var entityID json.Number
	if err := c.rest(ctx, http.MethodPost, path, token, info, &entityID); err != nil {
		return "", fmt.Errorf("failed to submit payment information: %w", err)
	}
	return entityID.String(), nil
}

// OrderNumberByEntityID resolves a numeric order entity id to the
// human-facing order number. Callers fall back to the raw id on failure.
func (c *Client) OrderNumberByEntityID(ctx context.Context, entityID string) (string, error) {
	var out struct {
		IncrementID string `json:"increment_id"`
	}
	err := utils.Retry(readRetry(), func() error {
		return c.rest(ctx, http.MethodGet, "/rest/V1/orders/"+url.PathEscape(entityID), "", nil, &out)
	}, context.Canceled)
	if err != nil {
		return "", fmt.Errorf("failed to resolve order number: %w", err)
	}
	return out.IncrementID, nil
}

// PostOrderComment attaches a free-text note to a placed order.
// Fire and forget from the caller's perspective.
func (c *Client) PostOrderComment(ctx context.Context, orderRef, comment string) error {
	body := map[string]any{
		"statusHistory": map[string]string{"comment": comment},
	}
	path := "/rest/V1/orders/" + url.PathEscape(orderRef) + "/comments"
	if err := c.rest(ctx, http.MethodPost, path, "", body, nil); err != nil {
		return fmt.Errorf("failed to post order comment: %w", err)
	}
	return nil
}

const carrierAccountsAttribute = "carrier_accounts"

// CustomerCarrierAccounts reads the flat serialized collection stored on the
// customer profile.
func (c *Client) CustomerCarrierAccounts(ctx context.Context, customerToken string) ([]entities.CarrierAccountRecord, error) {
	var out struct {
		CustomAttributes []struct {
			Code  string `json:"attribute_code"`
			Value string `json:"value"`
		} `json:"custom_attributes"`
	}
	err := utils.Retry(readRetry(), func() error {
		return c.rest(ctx, http.MethodGet, "/rest/V1/customers/me", customerToken, nil, &out)
	}, context.Canceled)
	if err != nil {
		return nil, fmt.Errorf("failed to read customer profile: %w", err)
	}

	for _, attr := range out.CustomAttributes {
		if attr.Code != carrierAccountsAttribute || attr.Value == "" {
			continue
		}
		var records []entities.CarrierAccountRecord
		if err := json.Unmarshal([]byte(attr.Value), &records); err != nil {
			return nil, fmt.Errorf("failed to decode carrier accounts: %w", err)
		}
		return records, nil
	}
	return []entities.CarrierAccountRecord{}, nil
}

// SaveCustomerCarrierAccounts replaces the whole collection on the profile.
// The backend field is one serialized value, so partial updates do not exist.
func (c *Client) SaveCustomerCarrierAccounts(ctx context.Context, customerToken string, records []entities.CarrierAccountRecord) error {
	value, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode carrier accounts: %w", err)
	}
	body := map[string]any{
		"customer": map[string]any{
			"custom_attributes": []map[string]string{
				{"attribute_code": carrierAccountsAttribute, "value": string(value)},
			},
		},
	}
	if err := c.rest(ctx, http.MethodPut, "/rest/V1/customers/me", customerToken, body, nil); err != nil {
		return fmt.Errorf("failed to save carrier accounts: %w", err)
	}
	return nil
}
