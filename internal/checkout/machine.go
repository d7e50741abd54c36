package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/SergeyBogomolovv/checkout-service/internal/backend"
	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/SergeyBogomolovv/checkout-service/internal/payment"
	"github.com/SergeyBogomolovv/checkout-service/internal/recaptcha"
)

// genericPlacementMessage is shown when the backend gives no message of its
// own. Backend messages are surfaced verbatim instead.
const genericPlacementMessage = "Something went wrong while placing your order. Please try again."

type Backend interface {
	CartItemCount(ctx context.Context, session entities.CartSession) (int, error)
	SetShippingAddress(ctx context.Context, session entities.CartSession, addr entities.Address) ([]entities.ShippingOption, error)
	SetShippingMethod(ctx context.Context, session entities.CartSession, carrierCode, methodCode string) error
}

type RegionResolver interface {
	ResolveID(ctx context.Context, countryID, regionCode string) (int, error)
}

type StrategyPicker interface {
	ForMethod(code string) payment.Strategy
}

// Completer runs the post-success best-effort work. It never fails the
// placement.
type Completer interface {
	Completed(ctx context.Context, deviceID string, order entities.OrderSubmission, orderNumber string, newRecord *entities.CarrierAccountRecord)
}

// ValidationError is a client-side, field-scoped rejection. It blocks the
// transition before any network call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Deps are the machine's collaborators, injected so tests can swap them.
type Deps struct {
	Backend     Backend
	Regions     RegionResolver
	Strategies  StrategyPicker
	Gate        *recaptcha.Gate
	Coordinator Completer
}

// Machine owns one shopper's checkout flow. All operations are sequential;
// the busy lock rejects (rather than queues) re-entrant calls while a
// backend round-trip is in flight, since neither placement path is
// idempotent.
type Machine struct {
	logger   *slog.Logger
	deviceID string
	session  entities.CartSession
	deps     Deps
	validate *validator.Validate

	busy sync.Mutex

	stateMu sync.RWMutex
	state   State
}

func NewMachine(logger *slog.Logger, deviceID string, session entities.CartSession, deps Deps) *Machine {
	return &Machine{
		logger:   logger.With(slog.String("service", "checkout"), slog.String("device_id", deviceID)),
		deviceID: deviceID,
		session:  session,
		deps:     deps,
		validate: validator.New(),
	}
}

func (m *Machine) State() State {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state
}

func (m *Machine) Session() entities.CartSession {
	return m.session
}

func (m *Machine) Gate() *recaptcha.Gate {
	return m.deps.Gate
}

// Begin confirms the cart is non-empty and opens the address form. An empty
// cart short-circuits to the empty-cart terminal view.
func (m *Machine) Begin(ctx context.Context) error {
	if !m.busy.TryLock() {
		return entities.ErrSubmissionInFlight
	}
	defer m.busy.Unlock()

	if !m.session.HasCart() {
		return entities.ErrCartNotFound
	}

	count, err := m.deps.Backend.CartItemCount(ctx, m.session)
	if err != nil {
		return fmt.Errorf("failed to confirm cart: %w", err)
	}
	if err := m.apply(CartConfirmed{ItemCount: count}); err != nil {
		return err
	}
	if count <= 0 {
		return entities.ErrEmptyCart
	}
	return nil
}

// SaveAddress validates, normalizes and submits the shipping address, then
// auto-selects the preferred shipping option and submits that selection too.
// Validation failures never reach the network.
func (m *Machine) SaveAddress(ctx context.Context, addr entities.Address, email string) error {
	if !m.busy.TryLock() {
		return entities.ErrSubmissionInFlight
	}
	defer m.busy.Unlock()

	if err := m.validateAddress(addr, email); err != nil {
		return err
	}

	addr = addr.Normalize()
	addr.Email = email

	if addr.RegionCode != "" {
		regionID, err := m.deps.Regions.ResolveID(ctx, addr.CountryID, addr.RegionCode)
		if err != nil {
			return fmt.Errorf("failed to resolve region: %w", err)
		}
		// Region code and id must refer to the same region.
		if addr.RegionID != 0 && addr.RegionID != regionID {
			return &ValidationError{Field: "region", Message: "region code and id do not match"}
		}
		addr.RegionID = regionID
	}

	options, err := m.deps.Backend.SetShippingAddress(ctx, m.session, addr)
	if err != nil {
		return fmt.Errorf("failed to save address: %w", err)
	}

	if err := m.apply(AddressAccepted{Address: addr, Email: email, Options: options}); err != nil {
		return err
	}

	preferred, ok := entities.PreferredOption(options)
	if !ok {
		return entities.ErrNoShippingMethods
	}
	return m.submitShipping(ctx, preferred)
}

// SelectShipping re-submits the shipping method for a manual change.
// Re-entrant at any point after the address is saved.
func (m *Machine) SelectShipping(ctx context.Context, carrierCode, methodCode string) error {
	if !m.busy.TryLock() {
		return entities.ErrSubmissionInFlight
	}
	defer m.busy.Unlock()

	st := m.State()
	for _, option := range st.Options {
		if option.CarrierCode == carrierCode && option.MethodCode == methodCode && option.Available {
			return m.submitShipping(ctx, option)
		}
	}
	return fmt.Errorf("%w: %s/%s", entities.ErrShippingNotSelected, carrierCode, methodCode)
}

func (m *Machine) submitShipping(ctx context.Context, option entities.ShippingOption) error {
	if err := m.deps.Backend.SetShippingMethod(ctx, m.session, option.CarrierCode, option.MethodCode); err != nil {
		return fmt.Errorf("failed to set shipping method: %w", err)
	}
	return m.apply(ShippingChosen{Option: option})
}

// SelectPayment records the payment method. Selecting the extended processor
// loads and renders the verification widget; the gate guards both against
// repeats, so re-selecting the same method is a no-op.
func (m *Machine) SelectPayment(ctx context.Context, selection entities.PaymentSelection) error {
	if selection.Extended() {
		if err := m.deps.Gate.EnsureScript(); err != nil {
			return fmt.Errorf("failed to load verification script: %w", err)
		}
		if _, err := m.deps.Gate.RenderWidget(uuid.NewString()); err != nil {
			return fmt.Errorf("failed to render verification widget: %w", err)
		}
	}
	return m.apply(PaymentChosen{Selection: selection})
}

func (m *Machine) SetBilling(addr entities.Address, sameAsShipping bool) error {
	return m.apply(BillingSet{Address: addr.Normalize(), SameAsShipping: sameAsShipping})
}

func (m *Machine) SetCarrierInfo(info entities.CarrierAccountInfo) error {
	return m.apply(CarrierInfoSet{Info: info})
}

func (m *Machine) SetPONumber(number string) error {
	return m.apply(PONumberSet{Number: number})
}

// SubmitVerification stores a completed widget verification on the gate.
func (m *Machine) SubmitVerification(token string) {
	m.deps.Gate.SetToken(token)
}

// PlaceOrder runs the composite readiness guard, picks the strategy for the
// chosen payment method and submits once. A second call while one is in
// flight is rejected without dispatching anything.
func (m *Machine) PlaceOrder(ctx context.Context) (string, error) {
	if !m.busy.TryLock() {
		return "", entities.ErrSubmissionInFlight
	}
	defer m.busy.Unlock()

	st := m.State()
	token := m.deps.Gate.Token()

	if err := st.ReadyToPlace(token); err != nil {
		return "", err
	}

	billing := st.EffectiveBillingAddress()
	if st.Payment.Extended() && billing.RegionCode != "" && billing.RegionID == 0 {
		// The bridge payload addresses regions by numeric id.
		regionID, err := m.deps.Regions.ResolveID(ctx, billing.CountryID, billing.RegionCode)
		if err != nil {
			return "", fmt.Errorf("failed to resolve billing region: %w", err)
		}
		billing.RegionID = regionID
	}

	order := entities.OrderSubmission{
		CartID:            m.session.CartID,
		Email:             st.Email,
		Session:           m.session,
		ShippingAddress:   st.ShippingAddress,
		BillingAddress:    billing,
		Shipping:          *st.Selected,
		Payment:           st.Payment,
		VerificationToken: token,
		PONumber:          st.PONumber,
		CarrierAnnotation: st.CarrierInfo.Annotation(),
	}

	if err := m.apply(PlacementStarted{}); err != nil {
		return "", err
	}

	strategy := m.deps.Strategies.ForMethod(st.Payment.MethodCode)
	orderNumber, err := strategy.Submit(ctx, order)
	if err != nil {
		m.failPlacement(ctx, st.Payment.Extended(), err)
		return "", err
	}

	m.deps.Coordinator.Completed(ctx, m.deviceID, order, orderNumber, m.newCarrierRecord(st))

	if err := m.apply(PlacementSucceeded{OrderNumber: orderNumber}); err != nil {
		return "", err
	}

	m.logger.InfoContext(ctx, "checkout complete", slog.String("order_number", orderNumber))
	return orderNumber, nil
}

// failPlacement returns the machine to payment-ready with the backend's
// message when available, and resets the verification widget on the extended
// path so the shopper is never stuck with a consumed token.
func (m *Machine) failPlacement(ctx context.Context, extended bool, cause error) {
	if extended {
		m.deps.Gate.Reset()
	}

	message := genericPlacementMessage
	if remote, ok := backend.RemoteMessage(cause); ok {
		message = remote
	}

	m.logger.ErrorContext(ctx, "placement failed", slog.Any("error", cause))

	if err := m.apply(PlacementFailed{Message: message}); err != nil {
		m.logger.ErrorContext(ctx, "failed to record placement failure", slog.Any("error", err))
	}
}

func (m *Machine) newCarrierRecord(st State) *entities.CarrierAccountRecord {
	info := st.CarrierInfo
	if !info.SaveForLater || info.SavedRecordID != "" || info.AccountNumber == "" {
		return nil
	}
	return &entities.CarrierAccountRecord{
		ID:            uuid.NewString(),
		Nickname:      info.Nickname,
		Carrier:       info.Carrier,
		AccountNumber: info.AccountNumber,
	}
}

func (m *Machine) apply(e Event) error {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	next, err := Apply(m.state, e)
	if err != nil {
		return err
	}
	m.state = next
	return nil
}

var phonePattern = regexp.MustCompile(`\d{7,}`)

var regionRequired = map[string]bool{"US": true, "CA": true}

var postcodePatterns = map[string]*regexp.Regexp{
	"US": regexp.MustCompile(`^\d{5}(-\d{4})?$`),
	"CA": regexp.MustCompile(`^[A-Z]\d[A-Z] ?\d[A-Z]\d$`),
}

func (m *Machine) validateAddress(addr entities.Address, email string) error {
	if err := m.validate.Var(email, "required,email"); err != nil {
		return &ValidationError{Field: "email", Message: "a valid email address is required"}
	}
	if !addr.Complete() {
		return &ValidationError{Field: "address", Message: "all address fields are required"}
	}
	if !phonePattern.MatchString(entities.NormalizePhone(addr.Telephone)) {
		return &ValidationError{Field: "telephone", Message: "a valid phone number is required"}
	}
	if regionRequired[addr.CountryID] && addr.RegionCode == "" && addr.RegionID == 0 {
		return &ValidationError{Field: "region", Message: "region is required"}
	}
	if pattern, ok := postcodePatterns[addr.CountryID]; ok {
		if !pattern.MatchString(addr.Normalize().Postcode) {
			return &ValidationError{Field: "postcode", Message: "postal code is invalid for country"}
		}
	}
	return nil
}
