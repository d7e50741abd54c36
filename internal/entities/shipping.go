package entities

import "github.com/shopspring/decimal"

// FreeShippingCarrier is auto-selected after an address save whenever the
// backend offers it.
const FreeShippingCarrier = "freeshipping"

// Carriers that let the shopper bill shipping to their own account.
// Selecting either requires a completed CarrierAccountInfo.
const (
	CarrierUPS   = "ups"
	CarrierFedEx = "fedex"
)

// ShippingOption is one selectable delivery method returned by the backend.
// The (CarrierCode, MethodCode) pair is the key used to re-select it.
type ShippingOption struct {
	CarrierCode string
	MethodCode  string
	Title       string
	Amount      decimal.Decimal
	Currency    string
	Available   bool
}

func (o ShippingOption) Key() string {
	return o.CarrierCode + ":" + o.MethodCode
}

// RequiresCarrierAccount reports whether the option ships on the
// shopper's own carrier account.
func (o ShippingOption) RequiresCarrierAccount() bool {
	return o.CarrierCode == CarrierUPS || o.CarrierCode == CarrierFedEx
}

// PreferredOption picks the option selected automatically after an address
// save: the free/invoice carrier when present, otherwise the first available.
func PreferredOption(options []ShippingOption) (ShippingOption, bool) {
	var first ShippingOption
	found := false
	for _, o := range options {
		if !o.Available {
			continue
		}
		if o.CarrierCode == FreeShippingCarrier {
			return o, true
		}
		if !found {
			first = o
			found = true
		}
	}
	return first, found
}
