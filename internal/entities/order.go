package entities

// OrderSubmission is the finalized tuple handed to a payment strategy.
// Assembled once, submitted once, discarded after the backend returns an
// order number or a terminal error.
type OrderSubmission struct {
	CartID  string
	Email   string
	Session CartSession

	ShippingAddress Address
	BillingAddress  Address
	Shipping        ShippingOption
	Payment         PaymentSelection

	// Verification token gathered by the recaptcha gate; required only on
	// the extended-processor path.
	VerificationToken string

	PONumber          string
	CarrierAnnotation string
}

// AnnotationText combines the optional PO number and carrier-account note
// into the order comment posted after placement. Empty means nothing to post.
func (s OrderSubmission) AnnotationText() string {
	switch {
	case s.PONumber != "" && s.CarrierAnnotation != "":
		return "PO number: " + s.PONumber + "\n" + s.CarrierAnnotation
	case s.PONumber != "":
		return "PO number: " + s.PONumber
	default:
		return s.CarrierAnnotation
	}
}
