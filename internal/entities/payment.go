package entities

import "strings"

// ExtendedProcessorCode designates the payment method whose backend
// integration is reachable only through the REST order-placement resource.
// Every other method code goes through the structured mutation pipeline.
const ExtendedProcessorCode = "authnetcim"

// PaymentSelection is the chosen payment method. Card is set only when
// MethodCode designates the extended processor and is discarded after the
// single submission call.
type PaymentSelection struct {
	MethodCode string
	Card       *CardDetails
}

func (p PaymentSelection) Extended() bool {
	return p.MethodCode == ExtendedProcessorCode
}

// CardDetails holds raw card fields for one bridge submission.
// Never persisted, never logged unmasked.
type CardDetails struct {
	Number     string
	ExpMonth   string
	ExpYear    string
	CVV        string
	NetworkTag string
}

// Digits returns the card number with separators stripped.
func (c CardDetails) Digits() string {
	var b strings.Builder
	for _, r := range c.Number {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// StructurallyValid applies the shape checks gating the place-order
// transition: number digit-length >= 13, expiry present, CVV length >= 3.
func (c CardDetails) StructurallyValid() bool {
	return len(c.Digits()) >= 13 && c.ExpMonth != "" && c.ExpYear != "" && len(c.CVV) >= 3
}

// Masked renders the card number as ****last4 for logs and display.
func (c CardDetails) Masked() string {
	digits := c.Digits()
	if len(digits) < 4 {
		return "****"
	}
	return "****" + digits[len(digits)-4:]
}

// GuessNetwork maps a card number prefix to the backend's network tag.
func (c CardDetails) GuessNetwork() string {
	if c.NetworkTag != "" {
		return c.NetworkTag
	}
	digits := c.Digits()
	switch {
	case strings.HasPrefix(digits, "4"):
		return "VI"
	case strings.HasPrefix(digits, "5"):
		return "MC"
	case strings.HasPrefix(digits, "34"), strings.HasPrefix(digits, "37"):
		return "AE"
	case strings.HasPrefix(digits, "6"):
		return "DI"
	default:
		return "OT"
	}
}
