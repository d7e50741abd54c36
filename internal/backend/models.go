package backend

import (
	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/shopspring/decimal"
)

type addressInput struct {
	Firstname  string   `json:"firstname"`
	Lastname   string   `json:"lastname"`
	Street     []string `json:"street"`
	City       string   `json:"city"`
	RegionCode string   `json:"region,omitempty"`
	Postcode   string   `json:"postcode"`
	CountryID  string   `json:"country_code"`
	Telephone  string   `json:"telephone"`
}

func addressToInput(a entities.Address) addressInput {
	return addressInput{
		Firstname:  a.Firstname,
		Lastname:   a.Lastname,
		Street:     a.Street,
		City:       a.City,
		RegionCode: a.RegionCode,
		Postcode:   a.Postcode,
		CountryID:  a.CountryID,
		Telephone:  a.Telephone,
	}
}

type shippingMethod struct {
	CarrierCode  string `json:"carrier_code"`
	MethodCode   string `json:"method_code"`
	CarrierTitle string `json:"carrier_title"`
	MethodTitle  string `json:"method_title"`
	Amount       struct {
		Value    decimal.Decimal `json:"value"`
		Currency string          `json:"currency"`
	} `json:"amount"`
	Available bool `json:"available"`
}

func shippingMethodToEntity(m shippingMethod) entities.ShippingOption {
	title := m.CarrierTitle
	if m.MethodTitle != "" {
		title = m.CarrierTitle + " - " + m.MethodTitle
	}
	return entities.ShippingOption{
		CarrierCode: m.CarrierCode,
		MethodCode:  m.MethodCode,
		Title:       title,
		Amount:      m.Amount.Value,
		Currency:    m.Amount.Currency,
		Available:   m.Available,
	}
}

// Region is one entry of the backend's country directory.
type Region struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}
