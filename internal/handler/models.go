package handler

import (
	"github.com/shopspring/decimal"

	"github.com/SergeyBogomolovv/checkout-service/internal/checkout"
	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
)

type AddressPayload struct {
	Firstname  string   `json:"firstname" validate:"required"`
	Lastname   string   `json:"lastname" validate:"required"`
	Street     []string `json:"street" validate:"required,min=1,max=2"`
	City       string   `json:"city" validate:"required"`
	RegionCode string   `json:"region_code,omitempty"`
	RegionID   int      `json:"region_id,omitempty"`
	Postcode   string   `json:"postcode" validate:"required"`
	CountryID  string   `json:"country_id" validate:"required,iso3166_1_alpha2"`
	Telephone  string   `json:"telephone" validate:"required"`
}

func (p AddressPayload) toEntity() entities.Address {
	return entities.Address{
		Firstname:  p.Firstname,
		Lastname:   p.Lastname,
		Street:     p.Street,
		City:       p.City,
		RegionCode: p.RegionCode,
		RegionID:   p.RegionID,
		Postcode:   p.Postcode,
		CountryID:  p.CountryID,
		Telephone:  p.Telephone,
	}
}

type SaveAddressRequest struct {
	Email   string         `json:"email" validate:"required,email"`
	Address AddressPayload `json:"address" validate:"required"`
}

type ShippingMethodRequest struct {
	CarrierCode string `json:"carrier_code" validate:"required"`
	MethodCode  string `json:"method_code" validate:"required"`
}

type CardPayload struct {
	Number   string `json:"number" validate:"required"`
	ExpMonth string `json:"exp_month" validate:"required"`
	ExpYear  string `json:"exp_year" validate:"required"`
	CVV      string `json:"cvv" validate:"required"`
}

type CarrierAccountPayload struct {
	Carrier       string `json:"carrier"`
	AccountNumber string `json:"account_number"`
	SavedRecordID string `json:"saved_record_id,omitempty"`
	SaveForLater  bool   `json:"save_for_later,omitempty"`
	Nickname      string `json:"nickname,omitempty"`
}

type PaymentRequest struct {
	MethodCode     string                 `json:"method_code" validate:"required"`
	Card           *CardPayload           `json:"card,omitempty"`
	BillingAddress *AddressPayload        `json:"billing_address,omitempty"`
	SameAsShipping bool                   `json:"same_as_shipping,omitempty"`
	PONumber       string                 `json:"po_number,omitempty"`
	CarrierAccount *CarrierAccountPayload `json:"carrier_account,omitempty"`
}

type VerificationRequest struct {
	Token string `json:"token" validate:"required"`
}

type ShippingOptionResponse struct {
	CarrierCode string          `json:"carrier_code"`
	MethodCode  string          `json:"method_code"`
	Title       string          `json:"title"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
}

type StateResponse struct {
	Step            string                   `json:"step"`
	Email           string                   `json:"email,omitempty"`
	ShippingOptions []ShippingOptionResponse `json:"shipping_options,omitempty"`
	SelectedMethod  string                   `json:"selected_method,omitempty"`
	PaymentMethod   string                   `json:"payment_method,omitempty"`
	OrderNumber     string                   `json:"order_number,omitempty"`
	LastError       string                   `json:"last_error,omitempty"`
}

func stateToResponse(st checkout.State) StateResponse {
	res := StateResponse{
		Step:          st.Step.String(),
		Email:         st.Email,
		PaymentMethod: st.Payment.MethodCode,
		OrderNumber:   st.OrderNumber,
		LastError:     st.LastError,
	}
	for _, o := range st.Options {
		res.ShippingOptions = append(res.ShippingOptions, ShippingOptionResponse{
			CarrierCode: o.CarrierCode,
			MethodCode:  o.MethodCode,
			Title:       o.Title,
			Amount:      o.Amount,
			Currency:    o.Currency,
		})
	}
	if st.Selected != nil {
		res.SelectedMethod = st.Selected.Key()
	}
	return res
}

type PlaceOrderResponse struct {
	OrderNumber string `json:"orderNumber"`
}

type CarrierAccountResponse struct {
	ID            string `json:"id"`
	Nickname      string `json:"nickname"`
	Carrier       string `json:"carrier"`
	AccountNumber string `json:"accountNumber"`
}

func carrierAccountsToResponse(records []entities.CarrierAccountRecord) []CarrierAccountResponse {
	res := make([]CarrierAccountResponse, 0, len(records))
	for _, r := range records {
		res = append(res, CarrierAccountResponse{
			ID:            r.ID,
			Nickname:      r.Nickname,
			Carrier:       string(r.Carrier),
			AccountNumber: r.MaskedAccountNumber(),
		})
	}
	return res
}

type SaveCarrierAccountsRequest struct {
	Records []CarrierAccountRecordPayload `json:"records" validate:"dive"`
}

type CarrierAccountRecordPayload struct {
	ID            string `json:"id"`
	Nickname      string `json:"nickname"`
	Carrier       string `json:"carrier" validate:"required,oneof=UPS FedEx"`
	AccountNumber string `json:"accountNumber" validate:"required"`
}
