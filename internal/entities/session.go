package entities

// CartSession binds a shopper's in-progress order to backend state.
// CartID is opaque and issued by the backend; exactly one active id
// exists per device at a time.
type CartSession struct {
	CartID        string
	Authenticated bool
	CustomerToken string
}

func (s CartSession) HasCart() bool {
	return s.CartID != ""
}
