package checkout

import (
	"fmt"

	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
)

// Step is the tagged-union current position of one checkout flow.
type Step int

const (
	StepCart Step = iota
	StepEmptyCart
	StepAddressEntry
	StepAddressSaved
	StepPaymentReady
	StepPlacing
	StepComplete
)

func (s Step) String() string {
	switch s {
	case StepCart:
		return "cart"
	case StepEmptyCart:
		return "empty_cart"
	case StepAddressEntry:
		return "address_entry"
	case StepAddressSaved:
		return "address_saved"
	case StepPaymentReady:
		return "payment_ready"
	case StepPlacing:
		return "placing"
	case StepComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// State is the whole form state of one shopper's checkout in a single
// value. Transitions go through Apply only.
type State struct {
	Step Step

	Email                 string
	ShippingAddress       entities.Address
	BillingAddress        entities.Address
	BillingSameAsShipping bool

	Options  []entities.ShippingOption
	Selected *entities.ShippingOption

	Payment     entities.PaymentSelection
	CarrierInfo entities.CarrierAccountInfo
	PONumber    string

	OrderNumber string
	LastError   string
}

// Event drives a transition. Events record outcomes that already happened
// (backend round-trips included); Apply itself never does I/O.
type Event interface{ isEvent() }

type CartConfirmed struct{ ItemCount int }

type AddressAccepted struct {
	Address entities.Address
	Email   string
	Options []entities.ShippingOption
}

type ShippingChosen struct{ Option entities.ShippingOption }

type PaymentChosen struct{ Selection entities.PaymentSelection }

type BillingSet struct {
	Address        entities.Address
	SameAsShipping bool
}

type CarrierInfoSet struct{ Info entities.CarrierAccountInfo }

type PONumberSet struct{ Number string }

type PlacementStarted struct{}

type PlacementSucceeded struct{ OrderNumber string }

type PlacementFailed struct{ Message string }

func (CartConfirmed) isEvent()      {}
func (AddressAccepted) isEvent()    {}
func (ShippingChosen) isEvent()     {}
func (PaymentChosen) isEvent()      {}
func (BillingSet) isEvent()         {}
func (CarrierInfoSet) isEvent()     {}
func (PONumberSet) isEvent()        {}
func (PlacementStarted) isEvent()   {}
func (PlacementSucceeded) isEvent() {}
func (PlacementFailed) isEvent()    {}

// Apply is the pure transition function. It rejects events that make no
// sense for the current step and never mutates its input.
func Apply(s State, e Event) (State, error) {
	switch ev := e.(type) {
	case CartConfirmed:
		if s.Step != StepCart {
			return s, transitionErr(s.Step, "cart confirmation")
		}
		if ev.ItemCount <= 0 {
			s.Step = StepEmptyCart
			return s, nil
		}
		s.Step = StepAddressEntry
		return s, nil

	case AddressAccepted:
		if s.Step != StepAddressEntry && s.Step != StepAddressSaved && s.Step != StepPaymentReady {
			return s, transitionErr(s.Step, "address save")
		}
		s.ShippingAddress = ev.Address
		s.Email = ev.Email
		s.Options = ev.Options
		s.Selected = nil
		s.Step = StepAddressSaved
		s.LastError = ""
		return s, nil

	case ShippingChosen:
		// Re-entrant at any point after the address is saved.
		if s.Step != StepAddressSaved && s.Step != StepPaymentReady {
			return s, transitionErr(s.Step, "shipping selection")
		}
		option := ev.Option
		s.Selected = &option
		s.Step = StepPaymentReady
		return s, nil

	case PaymentChosen:
		if s.Step != StepPaymentReady {
			return s, transitionErr(s.Step, "payment selection")
		}
		s.Payment = ev.Selection
		return s, nil

	case BillingSet:
		if s.Step != StepPaymentReady {
			return s, transitionErr(s.Step, "billing address")
		}
		s.BillingAddress = ev.Address
		s.BillingSameAsShipping = ev.SameAsShipping
		return s, nil

	case CarrierInfoSet:
		if s.Step != StepPaymentReady {
			return s, transitionErr(s.Step, "carrier account")
		}
		s.CarrierInfo = ev.Info
		return s, nil

	case PONumberSet:
		if s.Step != StepPaymentReady {
			return s, transitionErr(s.Step, "po number")
		}
		s.PONumber = ev.Number
		return s, nil

	case PlacementStarted:
		if s.Step != StepPaymentReady {
			return s, transitionErr(s.Step, "placement")
		}
		s.Step = StepPlacing
		return s, nil

	case PlacementSucceeded:
		if s.Step != StepPlacing {
			return s, transitionErr(s.Step, "placement result")
		}
		s.OrderNumber = ev.OrderNumber
		s.Step = StepComplete
		s.LastError = ""
		return s, nil

	case PlacementFailed:
		if s.Step != StepPlacing {
			return s, transitionErr(s.Step, "placement result")
		}
		// Recoverable: the shopper retries from payment-ready. Never
		// auto-retried.
		s.Step = StepPaymentReady
		s.LastError = ev.Message
		return s, nil

	default:
		return s, fmt.Errorf("%w: unknown event %T", entities.ErrInvalidTransition, e)
	}
}

func transitionErr(step Step, action string) error {
	return fmt.Errorf("%w: %s not allowed in step %s", entities.ErrInvalidTransition, action, step)
}

// EffectiveBillingAddress is the billing address the strategies submit.
func (s State) EffectiveBillingAddress() entities.Address {
	if s.BillingSameAsShipping {
		return s.ShippingAddress
	}
	return s.BillingAddress
}

// ReadyToPlace is the composite guard on the PaymentReady -> Placing
// transition. verificationToken matters only on the extended path.
func (s State) ReadyToPlace(verificationToken string) error {
	if s.Step != StepPaymentReady {
		return transitionErr(s.Step, "placement")
	}
	if !s.ShippingAddress.Complete() {
		return fmt.Errorf("%w: shipping address incomplete", entities.ErrInvalidTransition)
	}
	if s.Selected == nil {
		return entities.ErrShippingNotSelected
	}
	if !s.BillingSameAsShipping && !s.BillingAddress.Complete() {
		return fmt.Errorf("%w: billing address incomplete", entities.ErrInvalidTransition)
	}
	if s.Payment.MethodCode == "" {
		return fmt.Errorf("%w: payment method not selected", entities.ErrInvalidTransition)
	}
	if s.Payment.Extended() {
		if s.Payment.Card == nil || !s.Payment.Card.StructurallyValid() {
			return fmt.Errorf("%w: card details invalid", entities.ErrInvalidTransition)
		}
		if verificationToken == "" {
			return entities.ErrVerificationRequired
		}
	}
	if s.Selected.RequiresCarrierAccount() && !s.CarrierInfo.Complete() {
		return fmt.Errorf("%w: carrier account incomplete", entities.ErrInvalidTransition)
	}
	return nil
}
