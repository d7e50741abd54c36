package checkout_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SergeyBogomolovv/checkout-service/internal/backend"
	"github.com/SergeyBogomolovv/checkout-service/internal/checkout"
	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/SergeyBogomolovv/checkout-service/internal/payment"
	"github.com/SergeyBogomolovv/checkout-service/internal/recaptcha"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	itemCount int
	options   []entities.ShippingOption

	addressCalls  atomic.Int32
	shippingCalls atomic.Int32
	lastAddress   entities.Address
	lastShipping  string

	addressErr  error
	shippingErr error
}

func (f *fakeBackend) CartItemCount(ctx context.Context, session entities.CartSession) (int, error) {
	return f.itemCount, nil
}

func (f *fakeBackend) SetShippingAddress(ctx context.Context, session entities.CartSession, addr entities.Address) ([]entities.ShippingOption, error) {
	f.addressCalls.Add(1)
	f.lastAddress = addr
	return f.options, f.addressErr
}

func (f *fakeBackend) SetShippingMethod(ctx context.Context, session entities.CartSession, carrierCode, methodCode string) error {
	f.shippingCalls.Add(1)
	f.lastShipping = carrierCode + ":" + methodCode
	return f.shippingErr
}

type fakeRegions struct {
	id  int
	err error
}

func (f *fakeRegions) ResolveID(ctx context.Context, countryID, regionCode string) (int, error) {
	return f.id, f.err
}

type fakeStrategy struct {
	submit func(ctx context.Context, order entities.OrderSubmission) (string, error)
	calls  atomic.Int32
	last   entities.OrderSubmission
}

func (f *fakeStrategy) Submit(ctx context.Context, order entities.OrderSubmission) (string, error) {
	f.calls.Add(1)
	f.last = order
	return f.submit(ctx, order)
}

type fakeStrategies struct{ strategy payment.Strategy }

func (f *fakeStrategies) ForMethod(code string) payment.Strategy { return f.strategy }

type fakeCompleter struct {
	calls      atomic.Int32
	lastNumber string
	lastRecord *entities.CarrierAccountRecord
}

func (f *fakeCompleter) Completed(ctx context.Context, deviceID string, order entities.OrderSubmission, orderNumber string, newRecord *entities.CarrierAccountRecord) {
	f.calls.Add(1)
	f.lastNumber = orderNumber
	f.lastRecord = newRecord
}

var freeOption = entities.ShippingOption{
	CarrierCode: entities.FreeShippingCarrier,
	MethodCode:  "freeshipping",
	Available:   true,
}

var flatrateOption = entities.ShippingOption{
	CarrierCode: "flatrate",
	MethodCode:  "flatrate",
	Available:   true,
}

func newTestMachine(be *fakeBackend, strategy payment.Strategy, completer checkout.Completer) *checkout.Machine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return checkout.NewMachine(logger, "dev-1", entities.CartSession{CartID: "cart-1"}, checkout.Deps{
		Backend:     be,
		Regions:     &fakeRegions{id: 12},
		Strategies:  &fakeStrategies{strategy: strategy},
		Gate:        recaptcha.NewGate(nil, time.Minute),
		Coordinator: completer,
	})
}

func validSaveAddress(t *testing.T, m *checkout.Machine) {
	t.Helper()
	require.NoError(t, m.SaveAddress(context.Background(), testAddress, "jane@example.com"))
}

func TestMachine_Begin(t *testing.T) {
	t.Run("no cart", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		m := checkout.NewMachine(logger, "dev-1", entities.CartSession{}, checkout.Deps{
			Backend: &fakeBackend{},
			Gate:    recaptcha.NewGate(nil, time.Minute),
		})
		assert.ErrorIs(t, m.Begin(context.Background()), entities.ErrCartNotFound)
	})

	t.Run("empty cart", func(t *testing.T) {
		m := newTestMachine(&fakeBackend{itemCount: 0}, nil, nil)
		assert.ErrorIs(t, m.Begin(context.Background()), entities.ErrEmptyCart)
		assert.Equal(t, checkout.StepEmptyCart, m.State().Step)
	})

	t.Run("items present", func(t *testing.T) {
		m := newTestMachine(&fakeBackend{itemCount: 3}, nil, nil)
		require.NoError(t, m.Begin(context.Background()))
		assert.Equal(t, checkout.StepAddressEntry, m.State().Step)
	})
}

func TestMachine_SaveAddress_ValidationBeforeNetwork(t *testing.T) {
	testCases := []struct {
		name      string
		mutate    func(addr *entities.Address)
		email     string
		wantField string
	}{
		{
			name:      "invalid email",
			mutate:    func(addr *entities.Address) {},
			email:     "not-an-email",
			wantField: "email",
		},
		{
			name:      "missing city",
			mutate:    func(addr *entities.Address) { addr.City = "" },
			email:     "jane@example.com",
			wantField: "address",
		},
		{
			name:      "phone too short",
			mutate:    func(addr *entities.Address) { addr.Telephone = "123" },
			email:     "jane@example.com",
			wantField: "telephone",
		},
		{
			name:      "us region missing",
			mutate:    func(addr *entities.Address) { addr.RegionCode = "" },
			email:     "jane@example.com",
			wantField: "region",
		},
		{
			name:      "us postcode malformed",
			mutate:    func(addr *entities.Address) { addr.Postcode = "ABCDE" },
			email:     "jane@example.com",
			wantField: "postcode",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			be := &fakeBackend{itemCount: 1, options: []entities.ShippingOption{flatrateOption}}
			m := newTestMachine(be, nil, nil)
			require.NoError(t, m.Begin(context.Background()))

			addr := testAddress
			addr.RegionCode = "IL"
			tc.mutate(&addr)

			err := m.SaveAddress(context.Background(), addr, tc.email)

			var ve *checkout.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.wantField, ve.Field)
			assert.Zero(t, be.addressCalls.Load(), "rejected input must not reach the backend")
		})
	}
}

func TestMachine_SaveAddress_AutoSelectsPreferredShipping(t *testing.T) {
	be := &fakeBackend{
		itemCount: 1,
		options:   []entities.ShippingOption{flatrateOption, freeOption},
	}
	m := newTestMachine(be, nil, nil)
	require.NoError(t, m.Begin(context.Background()))

	addr := testAddress
	addr.RegionCode = "IL"
	require.NoError(t, m.SaveAddress(context.Background(), addr, "jane@example.com"))

	st := m.State()
	assert.Equal(t, checkout.StepPaymentReady, st.Step)
	require.NotNil(t, st.Selected)
	assert.Equal(t, entities.FreeShippingCarrier, st.Selected.CarrierCode)
	assert.Equal(t, "freeshipping:freeshipping", be.lastShipping)
	assert.Equal(t, 12, be.lastAddress.RegionID, "region code resolved to numeric id")
	assert.Equal(t, "5551234567", be.lastAddress.Telephone, "phone normalized before submission")
}

func TestMachine_SaveAddress_NoShippingMethods(t *testing.T) {
	be := &fakeBackend{itemCount: 1, options: nil}
	m := newTestMachine(be, nil, nil)
	require.NoError(t, m.Begin(context.Background()))

	addr := testAddress
	addr.RegionCode = "IL"
	err := m.SaveAddress(context.Background(), addr, "jane@example.com")
	assert.ErrorIs(t, err, entities.ErrNoShippingMethods)
}

func TestMachine_SelectShipping_UnknownMethod(t *testing.T) {
	be := &fakeBackend{itemCount: 1, options: []entities.ShippingOption{flatrateOption}}
	m := newTestMachine(be, nil, nil)
	require.NoError(t, m.Begin(context.Background()))

	addr := testAddress
	addr.RegionCode = "IL"
	require.NoError(t, m.SaveAddress(context.Background(), addr, "jane@example.com"))

	err := m.SelectShipping(context.Background(), "dhl", "express")
	assert.ErrorIs(t, err, entities.ErrShippingNotSelected)
}

// readyMachine drives a machine to payment-ready with the given method.
func readyMachine(t *testing.T, be *fakeBackend, strategy payment.Strategy, completer checkout.Completer, selection entities.PaymentSelection) *checkout.Machine {
	t.Helper()
	m := newTestMachine(be, strategy, completer)
	require.NoError(t, m.Begin(context.Background()))

	addr := testAddress
	addr.RegionCode = "IL"
	require.NoError(t, m.SaveAddress(context.Background(), addr, "jane@example.com"))
	require.NoError(t, m.SelectPayment(context.Background(), selection))
	require.NoError(t, m.SetBilling(entities.Address{}, true))
	return m
}

func standardBackend() *fakeBackend {
	return &fakeBackend{itemCount: 1, options: []entities.ShippingOption{flatrateOption}}
}

func TestMachine_PlaceOrder_Success(t *testing.T) {
	strategy := &fakeStrategy{submit: func(ctx context.Context, order entities.OrderSubmission) (string, error) {
		return "100000042", nil
	}}
	completer := &fakeCompleter{}
	m := readyMachine(t, standardBackend(), strategy, completer, entities.PaymentSelection{MethodCode: "checkmo"})

	orderNumber, err := m.PlaceOrder(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "100000042", orderNumber)

	st := m.State()
	assert.Equal(t, checkout.StepComplete, st.Step)
	assert.Equal(t, "100000042", st.OrderNumber)
	assert.Equal(t, int32(1), completer.calls.Load())
	assert.Equal(t, "100000042", completer.lastNumber)
	assert.Equal(t, "jane@example.com", strategy.last.Email)
}

func TestMachine_PlaceOrder_RejectsConcurrentSubmission(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	strategy := &fakeStrategy{submit: func(ctx context.Context, order entities.OrderSubmission) (string, error) {
		close(started)
		<-release
		return "100000042", nil
	}}
	completer := &fakeCompleter{}
	m := readyMachine(t, standardBackend(), strategy, completer, entities.PaymentSelection{MethodCode: "checkmo"})

	done := make(chan error, 1)
	go func() {
		_, err := m.PlaceOrder(context.Background())
		done <- err
	}()

	<-started
	_, err := m.PlaceOrder(context.Background())
	assert.ErrorIs(t, err, entities.ErrSubmissionInFlight)
	assert.Equal(t, int32(1), strategy.calls.Load(), "second call must not dispatch")

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), completer.calls.Load())
}

func TestMachine_PlaceOrder_BackendMessageSurfacedVerbatim(t *testing.T) {
	strategy := &fakeStrategy{submit: func(ctx context.Context, order entities.OrderSubmission) (string, error) {
		return "", &backend.Error{StatusCode: 400, Message: "Invalid card"}
	}}
	m := readyMachine(t, standardBackend(), strategy, &fakeCompleter{}, entities.PaymentSelection{MethodCode: "checkmo"})

	_, err := m.PlaceOrder(context.Background())
	require.Error(t, err)

	st := m.State()
	assert.Equal(t, checkout.StepPaymentReady, st.Step, "failure returns to payment-ready")
	assert.Equal(t, "Invalid card", st.LastError)
}

func TestMachine_PlaceOrder_GenericMessageForUnknownFailure(t *testing.T) {
	strategy := &fakeStrategy{submit: func(ctx context.Context, order entities.OrderSubmission) (string, error) {
		return "", errors.New("connection reset")
	}}
	m := readyMachine(t, standardBackend(), strategy, &fakeCompleter{}, entities.PaymentSelection{MethodCode: "checkmo"})

	_, err := m.PlaceOrder(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Something went wrong while placing your order. Please try again.", m.State().LastError)
}

func TestMachine_PlaceOrder_ExtendedPath(t *testing.T) {
	validCard := &entities.CardDetails{Number: "4111111111111111", ExpMonth: "12", ExpYear: "2027", CVV: "123"}
	selection := entities.PaymentSelection{MethodCode: entities.ExtendedProcessorCode, Card: validCard}

	t.Run("missing verification token blocks placement", func(t *testing.T) {
		strategy := &fakeStrategy{submit: func(ctx context.Context, order entities.OrderSubmission) (string, error) {
			return "100000042", nil
		}}
		m := readyMachine(t, standardBackend(), strategy, &fakeCompleter{}, selection)

		_, err := m.PlaceOrder(context.Background())
		assert.ErrorIs(t, err, entities.ErrVerificationRequired)
		assert.Zero(t, strategy.calls.Load())
	})

	t.Run("token carried into the submission", func(t *testing.T) {
		strategy := &fakeStrategy{submit: func(ctx context.Context, order entities.OrderSubmission) (string, error) {
			return "100000042", nil
		}}
		m := readyMachine(t, standardBackend(), strategy, &fakeCompleter{}, selection)
		m.SubmitVerification("tok-1")

		_, err := m.PlaceOrder(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok-1", strategy.last.VerificationToken)
	})

	t.Run("failure resets the verification widget", func(t *testing.T) {
		strategy := &fakeStrategy{submit: func(ctx context.Context, order entities.OrderSubmission) (string, error) {
			return "", &backend.Error{StatusCode: 400, Message: "Invalid card"}
		}}
		m := readyMachine(t, standardBackend(), strategy, &fakeCompleter{}, selection)
		m.SubmitVerification("tok-1")

		_, err := m.PlaceOrder(context.Background())
		require.Error(t, err)

		assert.Equal(t, recaptcha.ScriptReady, m.Gate().State(), "widget cleared for re-render")
		assert.Empty(t, m.Gate().Token(), "consumed token cleared")
		assert.Equal(t, "Invalid card", m.State().LastError)
	})
}

func TestMachine_SelectPayment_ExtendedRendersWidgetOnce(t *testing.T) {
	var loads atomic.Int32
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	be := standardBackend()
	gate := recaptcha.NewGate(func() error {
		loads.Add(1)
		return nil
	}, time.Minute)

	m := checkout.NewMachine(logger, "dev-1", entities.CartSession{CartID: "cart-1"}, checkout.Deps{
		Backend: be,
		Regions: &fakeRegions{id: 12},
		Gate:    gate,
	})
	require.NoError(t, m.Begin(context.Background()))

	addr := testAddress
	addr.RegionCode = "IL"
	require.NoError(t, m.SaveAddress(context.Background(), addr, "jane@example.com"))

	selection := entities.PaymentSelection{
		MethodCode: entities.ExtendedProcessorCode,
		Card:       &entities.CardDetails{Number: "4111111111111111", ExpMonth: "12", ExpYear: "2027", CVV: "123"},
	}
	require.NoError(t, m.SelectPayment(context.Background(), selection))
	require.NoError(t, m.SelectPayment(context.Background(), selection))

	assert.Equal(t, int32(1), loads.Load(), "script loaded once across re-selections")
	assert.Equal(t, recaptcha.WidgetRendered, gate.State())
}

func TestMachine_NewCarrierRecordSavedAfterSuccess(t *testing.T) {
	strategy := &fakeStrategy{submit: func(ctx context.Context, order entities.OrderSubmission) (string, error) {
		return "100000042", nil
	}}
	completer := &fakeCompleter{}

	be := &fakeBackend{itemCount: 1, options: []entities.ShippingOption{
		{CarrierCode: entities.CarrierUPS, MethodCode: "ground", Available: true},
	}}
	m := readyMachine(t, be, strategy, completer, entities.PaymentSelection{MethodCode: "checkmo"})
	require.NoError(t, m.SetCarrierInfo(entities.CarrierAccountInfo{
		Carrier:       entities.CarrierKindUPS,
		AccountNumber: "12345678",
		SaveForLater:  true,
		Nickname:      "Work",
	}))

	_, err := m.PlaceOrder(context.Background())
	require.NoError(t, err)

	require.NotNil(t, completer.lastRecord)
	assert.Equal(t, entities.CarrierKindUPS, completer.lastRecord.Carrier)
	assert.Equal(t, "12345678", completer.lastRecord.AccountNumber)
	assert.NotEmpty(t, completer.lastRecord.ID)
	assert.Contains(t, strategy.last.CarrierAnnotation, "UPS 12345678")
}
