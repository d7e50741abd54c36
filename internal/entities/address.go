package entities

import "strings"

// Address is a shipping or billing address in backend shape.
// RegionID is the numeric id resolved from RegionCode; zero means unresolved.
type Address struct {
	Firstname  string
	Lastname   string
	Street     []string
	City       string
	RegionCode string
	RegionID   int
	Postcode   string
	CountryID  string
	Telephone  string
	Email      string
}

// Normalize brings phone and postcode to the fixed display masks the
// backend expects before submission.
func (a Address) Normalize() Address {
	a.Telephone = NormalizePhone(a.Telephone)
	a.Postcode = strings.ToUpper(strings.TrimSpace(a.Postcode))
	return a
}

func (a Address) Complete() bool {
	return a.Firstname != "" &&
		a.Lastname != "" &&
		len(a.Street) > 0 && a.Street[0] != "" &&
		a.City != "" &&
		a.Postcode != "" &&
		a.CountryID != "" &&
		a.Telephone != ""
}

// NormalizePhone strips everything but digits and a leading plus.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
			continue
		}
		if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
