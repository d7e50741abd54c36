package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SergeyBogomolovv/checkout-service/internal/backend"
	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
)

var ErrCardRequired = errors.New("card details required for extended processor")

type BridgeClient interface {
	SubmitPaymentInformation(ctx context.Context, session entities.CartSession, info backend.PaymentInformation) (string, error)
	OrderNumberByEntityID(ctx context.Context, entityID string) (string, error)
}

// BridgeStrategy places the order through the REST payment-information
// resource, the only route the extended processor supports. One payload
// carries the billing address (with numeric region id), the raw card fields
// and the verification token. Raw card number and CVV never reach the logs.
type BridgeStrategy struct {
	logger *slog.Logger
	client BridgeClient
}

func NewBridgeStrategy(logger *slog.Logger, client BridgeClient) *BridgeStrategy {
	return &BridgeStrategy{
		logger: logger.With(slog.String("strategy", "bridge")),
		client: client,
	}
}

func (s *BridgeStrategy) Submit(ctx context.Context, order entities.OrderSubmission) (string, error) {
	card := order.Payment.Card
	if card == nil {
		return "", ErrCardRequired
	}
	if order.VerificationToken == "" {
		return "", entities.ErrVerificationRequired
	}

	info := backend.PaymentInformation{
		PaymentMethod: backend.PaymentMethod{
			Code: order.Payment.MethodCode,
			AdditionalData: map[string]string{
				"cc_number":    card.Digits(),
				"cc_exp_month": card.ExpMonth,
				"cc_exp_year":  card.ExpYear,
				"cc_cid":       card.CVV,
				"cc_type":      card.GuessNetwork(),
				"captcha":      order.VerificationToken,
			},
		},
		BillingAddress: backend.BillingAddressFrom(order.BillingAddress),
	}
	// Guest carts have no email attached yet; the guest resource requires it
	// in the payload.
	if !order.Session.Authenticated {
		info.Email = order.Email
	}

	s.logger.InfoContext(ctx, "submitting bridge payment",
		slog.String("card", card.Masked()),
		slog.String("network", card.GuessNetwork()),
		slog.Bool("verification_token_present", order.VerificationToken != ""),
	)

	entityID, err := s.client.SubmitPaymentInformation(ctx, order.Session, info)
	if err != nil {
		return "", fmt.Errorf("bridge submission: %w", err)
	}

	// The REST resource answers with the numeric entity id. Resolve it to the
	// shopper-facing order number, falling back to the raw id when the lookup
	// fails: the order exists either way.
	orderNumber, err := s.client.OrderNumberByEntityID(ctx, entityID)
	if err != nil || orderNumber == "" {
		s.logger.WarnContext(ctx, "order number lookup failed, using entity id",
			slog.String("entity_id", entityID),
			slog.Any("error", err),
		)
		return entityID, nil
	}
	return orderNumber, nil
}
