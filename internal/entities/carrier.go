package entities

// CarrierKind enumerates carriers a shopper may hold an own account with.
type CarrierKind string

const (
	CarrierKindUPS   CarrierKind = "UPS"
	CarrierKindFedEx CarrierKind = "FedEx"
)

// CarrierAccountRecord is a saved "ship on my own carrier account" entry.
// The account number leaves the service only as an annotation string on a
// placed order.
type CarrierAccountRecord struct {
	ID            string      `json:"id"`
	Nickname      string      `json:"nickname"`
	Carrier       CarrierKind `json:"carrier"`
	AccountNumber string      `json:"accountNumber"`
}

// MaskedAccountNumber renders the account number as ****last4.
func (r CarrierAccountRecord) MaskedAccountNumber() string {
	if len(r.AccountNumber) < 4 {
		return "****"
	}
	return "****" + r.AccountNumber[len(r.AccountNumber)-4:]
}

// CarrierAccountInfo is the checkout sub-form revealed when an own-account
// carrier is selected.
type CarrierAccountInfo struct {
	Carrier       CarrierKind
	AccountNumber string
	SavedRecordID string
	SaveForLater  bool
	Nickname      string
}

func (i CarrierAccountInfo) Complete() bool {
	if i.SavedRecordID != "" {
		return true
	}
	return i.Carrier != "" && i.AccountNumber != ""
}

// Annotation is the free-text form attached to the placed order.
func (i CarrierAccountInfo) Annotation() string {
	if i.Carrier == "" || i.AccountNumber == "" {
		return ""
	}
	return "Ship on customer account: " + string(i.Carrier) + " " + i.AccountNumber
}
