package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/SergeyBogomolovv/checkout-service/internal/backend"
	"github.com/SergeyBogomolovv/checkout-service/internal/entities"
	"github.com/SergeyBogomolovv/checkout-service/pkg/utils"
)

type BridgeClient interface {
	SubmitPaymentInformation(ctx context.Context, session entities.CartSession, info backend.PaymentInformation) (string, error)
	OrderNumberByEntityID(ctx context.Context, entityID string) (string, error)
	PostOrderComment(ctx context.Context, orderRef, comment string) error
}

// BridgeHandler is the server-side intermediary for the extended payment
// processor: it holds the backend credentials the browser must not, and
// relays one payment-information call per submission. Rate limited per
// caller IP because the resource is not idempotent.
type BridgeHandler struct {
	logger    *slog.Logger
	validate  *validator.Validate
	client    BridgeClient
	rateLimit int
}

func NewBridgeHandler(logger *slog.Logger, client BridgeClient, rateLimit int) *BridgeHandler {
	return &BridgeHandler{
		logger:    logger.With(slog.String("handler", "bridge")),
		validate:  validator.New(),
		client:    client,
		rateLimit: rateLimit,
	}
}

func (h *BridgeHandler) Init(r chi.Router) {
	r.With(httprate.LimitByIP(h.rateLimit, time.Minute)).
		Post("/api/checkout/bridge", h.Submit)
}

type BridgeRequest struct {
	CartID        string `json:"cartId" validate:"required"`
	CustomerToken string `json:"customerToken,omitempty"`
	PaymentMethod struct {
		Code           string            `json:"code" validate:"required"`
		AdditionalData map[string]string `json:"additional_data,omitempty"`
	} `json:"paymentMethod" validate:"required"`
	BillingAddress BridgeAddress `json:"billingAddress" validate:"required"`
	Email          string        `json:"email,omitempty" validate:"omitempty,email"`
	PONumber       string        `json:"poNumber,omitempty"`
	CarrierInfo    string        `json:"carrierInfo,omitempty"`
}

type BridgeAddress struct {
	Firstname  string   `json:"firstname" validate:"required"`
	Lastname   string   `json:"lastname" validate:"required"`
	Street     []string `json:"street" validate:"required,min=1,max=2"`
	City       string   `json:"city" validate:"required"`
	RegionCode string   `json:"region_code,omitempty"`
	RegionID   int      `json:"region_id,omitempty"`
	Postcode   string   `json:"postcode" validate:"required"`
	CountryID  string   `json:"country_id" validate:"required"`
	Telephone  string   `json:"telephone" validate:"required"`
}

type BridgeErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (h *BridgeHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req BridgeRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	session := entities.CartSession{
		CartID:        req.CartID,
		Authenticated: req.CustomerToken != "",
		CustomerToken: req.CustomerToken,
	}
	// Guest carts have no email attached; the guest resource needs it.
	if !session.Authenticated && req.Email == "" {
		utils.WriteError(w, "email required for guest checkout", http.StatusBadRequest)
		return
	}

	// Card number and CVV must never reach the logs; the token is logged as
	// a presence flag only.
	h.logger.InfoContext(ctx, "bridge submission",
		slog.String("method", req.PaymentMethod.Code),
		slog.Bool("authenticated", session.Authenticated),
		slog.Bool("verification_token_present", req.PaymentMethod.AdditionalData["captcha"] != ""),
	)

	info := backend.PaymentInformation{
		Email: req.Email,
		PaymentMethod: backend.PaymentMethod{
			Code:           req.PaymentMethod.Code,
			AdditionalData: req.PaymentMethod.AdditionalData,
		},
		BillingAddress: &backend.BillingAddress{
			Firstname:  req.BillingAddress.Firstname,
			Lastname:   req.BillingAddress.Lastname,
			Street:     req.BillingAddress.Street,
			City:       req.BillingAddress.City,
			RegionCode: req.BillingAddress.RegionCode,
			RegionID:   req.BillingAddress.RegionID,
			Postcode:   req.BillingAddress.Postcode,
			CountryID:  req.BillingAddress.CountryID,
			Telephone:  req.BillingAddress.Telephone,
		},
	}
	if session.Authenticated {
		info.Email = ""
	}

	bridgeSubmissions.Inc()

	entityID, err := h.client.SubmitPaymentInformation(ctx, session, info)
	if err != nil {
		bridgeFailures.Inc()
		h.writeUpstreamError(ctx, w, err)
		return
	}

	// Resolve the numeric entity id to the shopper-facing order number;
	// the raw id still identifies the order when the lookup fails.
	orderNumber, err := h.client.OrderNumberByEntityID(ctx, entityID)
	if err != nil || orderNumber == "" {
		h.logger.WarnContext(ctx, "order number lookup failed", slog.Any("error", err))
		orderNumber = entityID
	}

	h.annotate(ctx, orderNumber, req.PONumber, req.CarrierInfo)

	utils.WriteJSON(w, PlaceOrderResponse{OrderNumber: orderNumber}, http.StatusOK)
}

// annotate posts the optional PO number and carrier note. Fire and forget.
func (h *BridgeHandler) annotate(ctx context.Context, orderNumber, poNumber, carrierInfo string) {
	comment := entities.OrderSubmission{PONumber: poNumber, CarrierAnnotation: carrierInfo}.AnnotationText()
	if comment == "" {
		return
	}
	if err := h.client.PostOrderComment(ctx, orderNumber, comment); err != nil {
		h.logger.WarnContext(ctx, "failed to annotate order",
			slog.String("order_number", orderNumber),
			slog.Any("error", err),
		)
	}
}

// writeUpstreamError relays the upstream status code and message.
func (h *BridgeHandler) writeUpstreamError(ctx context.Context, w http.ResponseWriter, err error) {
	var be *backend.Error
	if errors.As(err, &be) {
		utils.WriteJSON(w, BridgeErrorResponse{Error: be.Message, Details: be.Details}, be.StatusCode)
		return
	}
	h.logger.ErrorContext(ctx, "bridge submission failed", slog.Any("error", err))
	utils.WriteJSON(w, BridgeErrorResponse{Error: "payment could not be processed"}, http.StatusBadGateway)
}
