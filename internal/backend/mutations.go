package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/SergeyBogomolovv/checkout-service/pkg/utils"
)

// Structured-protocol operations. Mutations are never retried here: the
// address/shipping/payment steps are safe to re-run from the caller, but
// place-order is not, so retry policy stays with the caller.

func (c *Client) CreateCart(ctx context.Context, token string) (string, error) {
	var out struct {
		CartID string `json:"cart_id"`
	}
	if err := c.mutate(ctx, token, "createEmptyCart", nil, &out); err != nil {
		return "", fmt.Errorf("failed to create cart: %w", err)
	}
	return out.CartID, nil
}

func (c *Client) CartItemCount(ctx context.Context, session entities.CartSession) (int, error) {
	vars := map[string]string{"cart_id": session.CartID}
	var out struct {
		Cart struct {
			TotalQuantity int `json:"total_quantity"`
		} `json:"cart"`
	}

	err := utils.Retry(readRetry(), func() error {
		return c.mutate(ctx, session.CustomerToken, "cart", vars, &out)
	}, context.Canceled)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch cart: %w", err)
	}
	return out.Cart.TotalQuantity, nil
}

func (c *Client) SetGuestEmail(ctx context.Context, cartID, email string) error {
	vars := map[string]string{"cart_id": cartID, "email": email}
	if err := c.mutate(ctx, "", "setGuestEmailOnCart", vars, nil); err != nil {
		return fmt.Errorf("failed to set guest email: %w", err)
	}
	return nil
}

func (c *Client) SetShippingAddress(ctx context.Context, session entities.CartSession, addr entities.Address) ([]entities.ShippingOption, error) {
	vars := map[string]any{
		"cart_id": session.CartID,
		"address": addressToInput(addr),
	}
	var out struct {
		AvailableShippingMethods []shippingMethod `json:"available_shipping_methods"`
	}
	if err := c.mutate(ctx, session.CustomerToken, "setShippingAddressesOnCart", vars, &out); err != nil {
		return nil, fmt.Errorf("failed to set shipping address: %w", err)
	}

	options := make([]entities.ShippingOption, 0, len(out.AvailableShippingMethods))
	for _, m := range out.AvailableShippingMethods {
		if !m.Available {
			continue
		}
		options = append(options, shippingMethodToEntity(m))
	}
	return options, nil
}

func (c *Client) SetBillingAddress(ctx context.Context, session entities.CartSession, addr entities.Address) error {
	vars := map[string]any{
		"cart_id": session.CartID,
		"address": addressToInput(addr),
	}
	if err := c.mutate(ctx, session.CustomerToken, "setBillingAddressOnCart", vars, nil); err != nil {
		return fmt.Errorf("failed to set billing address: %w", err)
	}
	return nil
}

func (c *Client) SetShippingMethod(ctx context.Context, session entities.CartSession, carrierCode, methodCode string) error {
	vars := map[string]string{
		"cart_id":      session.CartID,
		"carrier_code": carrierCode,
		"method_code":  methodCode,
	}
	if err := c.mutate(ctx, session.CustomerToken, "setShippingMethodsOnCart", vars, nil); err != nil {
		return fmt.Errorf("failed to set shipping method: %w", err)
	}
	return nil
}

func (c *Client) SetPaymentMethod(ctx context.Context, session entities.CartSession, methodCode string) error {
	vars := map[string]any{
		"cart_id":        session.CartID,
		"payment_method": map[string]string{"code": methodCode},
	}
	if err := c.mutate(ctx, session.CustomerToken, "setPaymentMethodOnCart", vars, nil); err != nil {
		return fmt.Errorf("failed to set payment method: %w", err)
	}
	return nil
}

// PlaceOrder finalizes the cart. Not idempotent; never retried.
func (c *Client) PlaceOrder(ctx context.Context, session entities.CartSession) (string, error) {
	vars := map[string]string{"cart_id": session.CartID}
	var out struct {
		Order struct {
			OrderNumber string `json:"order_number"`
		} `json:"order"`
	}
	if err := c.mutate(ctx, session.CustomerToken, "placeOrder", vars, &out); err != nil {
		return "", fmt.Errorf("failed to place order: %w", err)
	}
	return out.Order.OrderNumber, nil
}

// MergeCarts folds a guest cart into the authenticated customer's cart and
// returns the surviving cart id.
func (c *Client) MergeCarts(ctx context.Context, customerToken, guestCartID string) (string, error) {
	vars := map[string]string{"source_cart_id": guestCartID}
	var out struct {
		CartID string `json:"cart_id"`
	}
	if err := c.mutate(ctx, customerToken, "mergeCarts", vars, &out); err != nil {
		return "", fmt.Errorf("failed to merge carts: %w", err)
	}
	return out.CartID, nil
}

func (c *Client) CustomerCart(ctx context.Context, customerToken string) (string, error) {
	var out struct {
		CartID string `json:"cart_id"`
	}
	err := utils.Retry(readRetry(), func() error {
		return c.mutate(ctx, customerToken, "customerCart", nil, &out)
	}, context.Canceled)
	if err != nil {
		return "", fmt.Errorf("failed to fetch customer cart: %w", err)
	}
	return out.CartID, nil
}

// Regions returns the directory of regions for one country.
func (c *Client) Regions(ctx context.Context, countryID string) ([]Region, error) {
	vars := map[string]string{"country_id": countryID}
	var out struct {
		Regions []Region `json:"available_regions"`
	}
	err := utils.Retry(readRetry(), func() error {
		return c.mutate(ctx, "", "country", vars, &out)
	}, context.Canceled)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch regions for %s: %w", countryID, err)
	}
	return out.Regions, nil
}

func readRetry() utils.RetryConfig {
	return utils.RetryConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxAttempts:  3,
		Multiplier:   2,
	}
}
