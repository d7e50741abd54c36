package payment_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/SergeyBogomolovv/checkout-service/internal/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMutationClient struct {
	steps []string

	guestEmailErr error
	billingErr    error
	methodErr     error
	placeErr      error

	orderNumber string
	lastEmail   string
	lastMethod  string
}

func (f *fakeMutationClient) SetGuestEmail(ctx context.Context, cartID, email string) error {
	f.steps = append(f.steps, "guest_email")
	f.lastEmail = email
	return f.guestEmailErr
}

func (f *fakeMutationClient) SetBillingAddress(ctx context.Context, session entities.CartSession, addr entities.Address) error {
	f.steps = append(f.steps, "billing")
	return f.billingErr
}

func (f *fakeMutationClient) SetPaymentMethod(ctx context.Context, session entities.CartSession, methodCode string) error {
	f.steps = append(f.steps, "method")
	f.lastMethod = methodCode
	return f.methodErr
}

func (f *fakeMutationClient) PlaceOrder(ctx context.Context, session entities.CartSession) (string, error) {
	f.steps = append(f.steps, "place")
	return f.orderNumber, f.placeErr
}

func newStandard(client *fakeMutationClient) *payment.StandardStrategy {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return payment.NewStandardStrategy(logger, client)
}

func guestOrder() entities.OrderSubmission {
	return entities.OrderSubmission{
		CartID:  "cart-1",
		Email:   "jane@example.com",
		Session: entities.CartSession{CartID: "cart-1"},
		Payment: entities.PaymentSelection{MethodCode: "checkmo"},
	}
}

func TestStandardStrategy_Submit(t *testing.T) {
	stepErr := errors.New("backend rejected")

	testCases := []struct {
		name          string
		order         entities.OrderSubmission
		client        *fakeMutationClient
		wantSteps     []string
		wantErrPrefix string
	}{
		{
			name:      "guest runs all four steps in order",
			order:     guestOrder(),
			client:    &fakeMutationClient{orderNumber: "100000042"},
			wantSteps: []string{"guest_email", "billing", "method", "place"},
		},
		{
			name: "authenticated shopper skips the guest email step",
			order: entities.OrderSubmission{
				CartID:  "cart-1",
				Session: entities.CartSession{CartID: "cart-1", Authenticated: true, CustomerToken: "tok"},
				Payment: entities.PaymentSelection{MethodCode: "checkmo"},
			},
			client:    &fakeMutationClient{orderNumber: "100000042"},
			wantSteps: []string{"billing", "method", "place"},
		},
		{
			name:          "guest email failure stops the pipeline",
			order:         guestOrder(),
			client:        &fakeMutationClient{guestEmailErr: stepErr},
			wantSteps:     []string{"guest_email"},
			wantErrPrefix: "guest email step",
		},
		{
			name:          "billing failure stops before payment method",
			order:         guestOrder(),
			client:        &fakeMutationClient{billingErr: stepErr},
			wantSteps:     []string{"guest_email", "billing"},
			wantErrPrefix: "billing address step",
		},
		{
			name:          "placement failure",
			order:         guestOrder(),
			client:        &fakeMutationClient{placeErr: stepErr},
			wantSteps:     []string{"guest_email", "billing", "method", "place"},
			wantErrPrefix: "placement step",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := newStandard(tc.client)

			orderNumber, err := s.Submit(context.Background(), tc.order)

			assert.Equal(t, tc.wantSteps, tc.client.steps)
			if tc.wantErrPrefix != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, stepErr)
				assert.Contains(t, err.Error(), tc.wantErrPrefix)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "100000042", orderNumber)
			assert.Equal(t, "checkmo", tc.client.lastMethod)
		})
	}
}
