package payment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
)

type MutationClient interface {
	SetGuestEmail(ctx context.Context, cartID, email string) error
	SetBillingAddress(ctx context.Context, session entities.CartSession, addr entities.Address) error
	SetPaymentMethod(ctx context.Context, session entities.CartSession, methodCode string) error
	PlaceOrder(ctx context.Context, session entities.CartSession) (string, error)
}

// StandardStrategy drives billing-address-set, payment-method-set and
// place-order through the structured mutation pipeline. Each step is its own
// round-trip; any failure fails the whole submission with no compensating
// rollback, since the shopper can retry the same steps safely.
type StandardStrategy struct {
	logger *slog.Logger
	client MutationClient
}

func NewStandardStrategy(logger *slog.Logger, client MutationClient) *StandardStrategy {
	return &StandardStrategy{
		logger: logger.With(slog.String("strategy", "standard")),
		client: client,
	}
}

func (s *StandardStrategy) Submit(ctx context.Context, order entities.OrderSubmission) (string, error) {
	if !order.Session.Authenticated {
		if err := s.client.SetGuestEmail(ctx, order.CartID, order.Email); err != nil {
			return "", fmt.Errorf("guest email step: %w", err)
		}
	}

	if err := s.client.SetBillingAddress(ctx, order.Session, order.BillingAddress); err != nil {
		return "", fmt.Errorf("billing address step: %w", err)
	}

	if err := s.client.SetPaymentMethod(ctx, order.Session, order.Payment.MethodCode); err != nil {
		return "", fmt.Errorf("payment method step: %w", err)
	}

	orderNumber, err := s.client.PlaceOrder(ctx, order.Session)
	if err != nil {
		return "", fmt.Errorf("placement step: %w", err)
	}

	s.logger.InfoContext(ctx, "order placed",
		slog.String("order_number", orderNumber),
		slog.String("method", order.Payment.MethodCode),
	)
	return orderNumber, nil
}
