package checkout

import (
	"context"
	"log/slog"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/SergeyBogomolovv/checkout-service/internal/events"
)

type Annotator interface {
	PostOrderComment(ctx context.Context, orderRef, comment string) error
}

type CarrierAccounts interface {
	List(ctx context.Context, deviceID, customerToken string) ([]entities.CarrierAccountRecord, error)
	Save(ctx context.Context, deviceID, customerToken string, records []entities.CarrierAccountRecord) bool
}

type SessionStore interface {
	Clear(ctx context.Context, deviceID string) error
}

// Coordinator runs the post-success work after either strategy reports an
// order number. Annotation and carrier-account persistence are best effort:
// their failures are logged and swallowed, never surfaced, and never block
// the success transition.
type Coordinator struct {
	logger      *slog.Logger
	annotator   Annotator
	carriers    CarrierAccounts
	sessions    SessionStore
	broadcaster events.Broadcaster
}

func NewCoordinator(logger *slog.Logger, annotator Annotator, carriers CarrierAccounts, sessions SessionStore, broadcaster events.Broadcaster) *Coordinator {
	return &Coordinator{
		logger:      logger.With(slog.String("service", "coordinator")),
		annotator:   annotator,
		carriers:    carriers,
		sessions:    sessions,
		broadcaster: broadcaster,
	}
}

func (c *Coordinator) Completed(ctx context.Context, deviceID string, order entities.OrderSubmission, orderNumber string, newRecord *entities.CarrierAccountRecord) {
	if comment := order.AnnotationText(); comment != "" {
		if err := c.annotator.PostOrderComment(ctx, orderNumber, comment); err != nil {
			c.logger.WarnContext(ctx, "failed to annotate order",
				slog.String("order_number", orderNumber),
				slog.Any("error", err),
			)
		}
	}

	if newRecord != nil {
		c.saveCarrierAccount(ctx, deviceID, order.Session.CustomerToken, *newRecord)
	}

	if err := c.sessions.Clear(ctx, deviceID); err != nil {
		c.logger.ErrorContext(ctx, "failed to clear cart token",
			slog.String("device_id", deviceID),
			slog.Any("error", err),
		)
	}

	if err := c.broadcaster.Publish(ctx, events.New(events.KindCartChanged, deviceID)); err != nil {
		c.logger.WarnContext(ctx, "failed to broadcast cart change", slog.Any("error", err))
	}
}

// saveCarrierAccount appends the new record to the full stored list; the
// store's contract is replace-the-collection, not delta.
func (c *Coordinator) saveCarrierAccount(ctx context.Context, deviceID, customerToken string, record entities.CarrierAccountRecord) {
	existing, err := c.carriers.List(ctx, deviceID, customerToken)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to list carrier accounts", slog.Any("error", err))
		return
	}
	for _, r := range existing {
		if r.Carrier == record.Carrier && r.AccountNumber == record.AccountNumber {
			return
		}
	}
	if !c.carriers.Save(ctx, deviceID, customerToken, append(existing, record)) {
		c.logger.WarnContext(ctx, "failed to save carrier account",
			slog.String("account", record.MaskedAccountNumber()),
		)
	}
}
