package entities

import "errors"

var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrCartNotFound         = errors.New("cart not found")
	ErrSubmissionInFlight   = errors.New("submission already in flight")
	ErrInvalidTransition    = errors.New("invalid checkout transition")
	ErrShippingNotSelected  = errors.New("shipping method not selected")
	ErrVerificationRequired = errors.New("verification token required")
	ErrNoShippingMethods    = errors.New("no shipping methods available")
)
