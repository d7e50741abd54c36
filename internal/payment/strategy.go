package payment

import (
	"context"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
)

// Strategy submits one finalized order and returns the human-facing order
// number. The two implementations talk to mutually exclusive backend
// protocols; callers never need to know which one ran.
type Strategy interface {
	Submit(ctx context.Context, order entities.OrderSubmission) (string, error)
}

// Registry selects the strategy for a payment method code. Only the extended
// processor goes over the bridge; everything else uses the mutation pipeline.
type Registry struct {
	standard Strategy
	bridge   Strategy
}

func NewRegistry(standard, bridge Strategy) *Registry {
	return &Registry{standard: standard, bridge: bridge}
}

func (r *Registry) ForMethod(code string) Strategy {
	if code == entities.ExtendedProcessorCode {
		return r.bridge
	}
	return r.standard
}
