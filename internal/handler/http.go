package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/SergeyBogomolovv/checkout-service/internal/backend"
	"github.com/SergeyBogomolovv/checkout-service/internal/checkout"
	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/SergeyBogomolovv/checkout-service/pkg/utils"
)

// DeviceHeader carries the opaque device/session identifier that scopes all
// checkout state, the Go-side stand-in for browser-local storage.
const DeviceHeader = "X-Device-Id"

type MachineProvider interface {
	Machine(ctx context.Context, deviceID string) (*checkout.Machine, error)
	Drop(deviceID string)
}

type CarrierStore interface {
	List(ctx context.Context, deviceID, customerToken string) ([]entities.CarrierAccountRecord, error)
	Save(ctx context.Context, deviceID, customerToken string, records []entities.CarrierAccountRecord) bool
}

type HTTPHandler struct {
	logger   *slog.Logger
	validate *validator.Validate
	machines MachineProvider
	carriers CarrierStore
}

func NewHTTPHandler(logger *slog.Logger, machines MachineProvider, carriers CarrierStore) *HTTPHandler {
	return &HTTPHandler{
		logger:   logger.With(slog.String("handler", "http")),
		validate: validator.New(),
		machines: machines,
		carriers: carriers,
	}
}

func (h *HTTPHandler) Init(r chi.Router) {
	r.Route("/api/checkout", func(r chi.Router) {
		r.Post("/begin", h.Begin)
		r.Post("/address", h.SaveAddress)
		r.Post("/shipping-method", h.SelectShipping)
		r.Post("/payment", h.SelectPayment)
		r.Post("/verification", h.SubmitVerification)
		r.Post("/place-order", h.PlaceOrder)
		r.Get("/state", h.GetState)
	})
	r.Get("/api/carrier-accounts", h.ListCarrierAccounts)
	r.Put("/api/carrier-accounts", h.SaveCarrierAccounts)
}

func (h *HTTPHandler) Begin(w http.ResponseWriter, r *http.Request) {
	machine, ok := h.machine(w, r)
	if !ok {
		return
	}
	if err := machine.Begin(r.Context()); err != nil {
		h.writeCheckoutError(r.Context(), w, err)
		return
	}
	utils.WriteJSON(w, stateToResponse(machine.State()), http.StatusOK)
}

func (h *HTTPHandler) SaveAddress(w http.ResponseWriter, r *http.Request) {
	machine, ok := h.machine(w, r)
	if !ok {
		return
	}

	var req SaveAddressRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := machine.SaveAddress(r.Context(), req.Address.toEntity(), req.Email); err != nil {
		h.writeCheckoutError(r.Context(), w, err)
		return
	}

	addressSaves.Inc()
	utils.WriteJSON(w, stateToResponse(machine.State()), http.StatusOK)
}

func (h *HTTPHandler) SelectShipping(w http.ResponseWriter, r *http.Request) {
	machine, ok := h.machine(w, r)
	if !ok {
		return
	}

	var req ShippingMethodRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := machine.SelectShipping(r.Context(), req.CarrierCode, req.MethodCode); err != nil {
		h.writeCheckoutError(r.Context(), w, err)
		return
	}
	utils.WriteJSON(w, stateToResponse(machine.State()), http.StatusOK)
}

func (h *HTTPHandler) SelectPayment(w http.ResponseWriter, r *http.Request) {
	machine, ok := h.machine(w, r)
	if !ok {
		return
	}

	var req PaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	selection := entities.PaymentSelection{MethodCode: req.MethodCode}
	if req.Card != nil {
		selection.Card = &entities.CardDetails{
			Number:   req.Card.Number,
			ExpMonth: req.Card.ExpMonth,
			ExpYear:  req.Card.ExpYear,
			CVV:      req.Card.CVV,
		}
	}

	if err := machine.SelectPayment(r.Context(), selection); err != nil {
		h.writeCheckoutError(r.Context(), w, err)
		return
	}

	var billing entities.Address
	if req.BillingAddress != nil {
		billing = req.BillingAddress.toEntity()
	}
	if err := machine.SetBilling(billing, req.SameAsShipping); err != nil {
		h.writeCheckoutError(r.Context(), w, err)
		return
	}

	if req.CarrierAccount != nil {
		info := entities.CarrierAccountInfo{
			Carrier:       entities.CarrierKind(req.CarrierAccount.Carrier),
			AccountNumber: req.CarrierAccount.AccountNumber,
			SavedRecordID: req.CarrierAccount.SavedRecordID,
			SaveForLater:  req.CarrierAccount.SaveForLater,
			Nickname:      req.CarrierAccount.Nickname,
		}
		if err := machine.SetCarrierInfo(info); err != nil {
			h.writeCheckoutError(r.Context(), w, err)
			return
		}
	}

	if req.PONumber != "" {
		if err := machine.SetPONumber(req.PONumber); err != nil {
			h.writeCheckoutError(r.Context(), w, err)
			return
		}
	}

	utils.WriteJSON(w, stateToResponse(machine.State()), http.StatusOK)
}

func (h *HTTPHandler) SubmitVerification(w http.ResponseWriter, r *http.Request) {
	machine, ok := h.machine(w, r)
	if !ok {
		return
	}

	var req VerificationRequest
	if !h.decode(w, r, &req) {
		return
	}

	machine.SubmitVerification(req.Token)
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	machine, ok := h.machine(w, r)
	if !ok {
		return
	}

	orderNumber, err := machine.PlaceOrder(r.Context())
	if err != nil {
		ordersFailed.Inc()
		h.writeCheckoutError(r.Context(), w, err)
		return
	}

	ordersPlaced.Inc()
	// The flow is terminal; the next checkout mounts fresh.
	h.machines.Drop(r.Header.Get(DeviceHeader))

	utils.WriteJSON(w, PlaceOrderResponse{OrderNumber: orderNumber}, http.StatusOK)
}

func (h *HTTPHandler) GetState(w http.ResponseWriter, r *http.Request) {
	machine, ok := h.machine(w, r)
	if !ok {
		return
	}
	utils.WriteJSON(w, stateToResponse(machine.State()), http.StatusOK)
}

func (h *HTTPHandler) ListCarrierAccounts(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}

	machine, err := h.machines.Machine(r.Context(), deviceID)
	if err != nil {
		h.writeCheckoutError(r.Context(), w, err)
		return
	}

	records, err := h.carriers.List(r.Context(), deviceID, machine.Session().CustomerToken)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list carrier accounts", slog.Any("error", err))
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, carrierAccountsToResponse(records), http.StatusOK)
}

func (h *HTTPHandler) SaveCarrierAccounts(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return
	}

	var req SaveCarrierAccountsRequest
	if !h.decode(w, r, &req) {
		return
	}

	machine, err := h.machines.Machine(r.Context(), deviceID)
	if err != nil {
		h.writeCheckoutError(r.Context(), w, err)
		return
	}

	records := make([]entities.CarrierAccountRecord, 0, len(req.Records))
	for _, p := range req.Records {
		id := p.ID
		if id == "" {
			id = uuid.NewString()
		}
		records = append(records, entities.CarrierAccountRecord{
			ID:            id,
			Nickname:      p.Nickname,
			Carrier:       entities.CarrierKind(p.Carrier),
			AccountNumber: p.AccountNumber,
		})
	}

	if !h.carriers.Save(r.Context(), deviceID, machine.Session().CustomerToken, records) {
		// The stored list is untouched; the caller rolls back its
		// optimistic state.
		utils.WriteError(w, "failed to save carrier accounts", http.StatusBadGateway)
		return
	}
	utils.WriteJSON(w, carrierAccountsToResponse(records), http.StatusOK)
}

func (h *HTTPHandler) machine(w http.ResponseWriter, r *http.Request) (*checkout.Machine, bool) {
	deviceID, ok := h.deviceID(w, r)
	if !ok {
		return nil, false
	}
	machine, err := h.machines.Machine(r.Context(), deviceID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to mount checkout", slog.Any("error", err))
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
		return nil, false
	}
	return machine, true
}

func (h *HTTPHandler) deviceID(w http.ResponseWriter, r *http.Request) (string, bool) {
	deviceID := r.Header.Get(DeviceHeader)
	if err := h.validate.Var(deviceID, "required"); err != nil {
		utils.WriteError(w, "missing device id", http.StatusBadRequest)
		return "", false
	}
	return deviceID, true
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := utils.DecodeBody(r, v); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		utils.WriteValidationError(w, err)
		return false
	}
	return true
}

// backendMessage extracts an upstream rejection message for verbatim display.
func backendMessage(err error) (string, bool) {
	return backend.RemoteMessage(err)
}

func (h *HTTPHandler) writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	var ve *checkout.ValidationError
	if errors.As(err, &ve) {
		utils.WriteJSON(w, utils.ValidationErrorResponse{
			Message: "invalid request",
			Fields:  map[string]string{ve.Field: ve.Message},
		}, http.StatusBadRequest)
		return
	}

	switch {
	case errors.Is(err, entities.ErrSubmissionInFlight):
		utils.WriteError(w, "a request is already in flight", http.StatusConflict)
	case errors.Is(err, entities.ErrEmptyCart), errors.Is(err, entities.ErrCartNotFound):
		utils.WriteError(w, "cart is empty", http.StatusConflict)
	case errors.Is(err, entities.ErrInvalidTransition),
		errors.Is(err, entities.ErrShippingNotSelected),
		errors.Is(err, entities.ErrVerificationRequired),
		errors.Is(err, entities.ErrNoShippingMethods):
		utils.WriteError(w, err.Error(), http.StatusConflict)
	default:
		if msg, ok := backendMessage(err); ok {
			utils.WriteError(w, msg, http.StatusUnprocessableEntity)
			return
		}
		h.logger.ErrorContext(ctx, "checkout request failed", slog.Any("error", err))
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
	}
}
