package handlers

import (
	"context"
	"time"

	"github.com/fasthttp/router"
	"github.com/tewereus/prime-property/internal/gateways"
	"github.com/tewereus/prime-property/internal/model"
	xhttp "github.com/tewereus/prime-property/pkg/http"
	"github.com/tewereus/prime-property/pkg/logger"
)

const signatureHeader = "X-Payment-Signature"

type PaymentService interface {
	SubmitForPayment(ctx context.Context, propertyID, ownerID int64, method model.PaymentMethod) (*model.PaymentTransaction, error)
	Status(ctx context.Context, txRef string) (*model.PaymentTransaction, error)
	Cancel(ctx context.Context, txRef string, ownerID int64) error
}

type CallbackPublisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

type PaymentHandler struct {
	svc       PaymentService
	publisher CallbackPublisher
	secret    string
}

func RegisterPaymentRoutes(e *router.Group, h *PaymentHandler) {
	e.POST("/payments", h.InitiatePayment)
	e.POST("/payments/callback", h.ProviderCallback)
	e.GET("/payments/{tx_ref}", h.PaymentStatus)
	e.POST("/payments/{tx_ref}/cancel", h.CancelPayment)
}

func NewPaymentHandler(paymentService PaymentService, publisher CallbackPublisher, secret string) *PaymentHandler {
	return &PaymentHandler{
		svc:       paymentService,
		publisher: publisher,
		secret:    secret,
	}
}

type initiatePaymentRequest struct {
	PropertyID int64  `json:"property_id"`
	OwnerID    int64  `json:"owner_id"`
	Method     string `json:"method"`
}

type cancelPaymentRequest struct {
	OwnerID int64 `json:"owner_id"`
}

type providerCallbackPayload struct {
	TxRef   string `json:"tx_ref"`
	Outcome string `json:"outcome"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *PaymentHandler) InitiatePayment(ctx *xhttp.RequestCtx) {
	var req initiatePaymentRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	method, err := model.ParsePaymentMethod(req.Method)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}

	txn, err := h.svc.SubmitForPayment(ctx, req.PropertyID, req.OwnerID, method)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, txn)
}

func (h *PaymentHandler) PaymentStatus(ctx *xhttp.RequestCtx) {
	txRef, ok := ctx.UserValue("tx_ref").(string)
	if !ok || txRef == "" {
		writeError(ctx, 400, "invalid tx_ref")
		return
	}

	txn, err := h.svc.Status(ctx, txRef)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, txn)
}

func (h *PaymentHandler) CancelPayment(ctx *xhttp.RequestCtx) {
	txRef, ok := ctx.UserValue("tx_ref").(string)
	if !ok || txRef == "" {
		writeError(ctx, 400, "invalid tx_ref")
		return
	}

	var req cancelPaymentRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.OwnerID == 0 {
		writeError(ctx, 400, "owner_id is required")
		return
	}

	if err := h.svc.Cancel(ctx, txRef, req.OwnerID); err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": "cancelled"})
}

// ProviderCallback is the provider-facing webhook. Forged or malformed
// deliveries are answered 200 so they learn nothing from the response and
// the provider stops redelivering them. An authenticated callback is only
// acknowledged once it is durably queued: if the enqueue fails the handler
// answers 503 so the provider redelivers instead of dropping the outcome.
func (h *PaymentHandler) ProviderCallback(ctx *xhttp.RequestCtx) {
	body := ctx.PostBody()
	signature := string(ctx.Request.Header.Peek(signatureHeader))

	if !gateways.VerifySignature(h.secret, body, signature) {
		logger.Warn("Callback signature rejected", "remote", ctx.RemoteAddr().String())
		ctx.Response.SetStatusCode(200)
		ctx.Response.SetBodyString("ok")
		return
	}

	var payload providerCallbackPayload
	if err := readJSON(ctx, &payload); err != nil {
		logger.Warn("Malformed callback payload", "error", err)
		ctx.Response.SetStatusCode(200)
		ctx.Response.SetBodyString("ok")
		return
	}

	outcome, err := model.ParseCallbackOutcome(payload.Outcome)
	if err != nil || payload.TxRef == "" {
		logger.Warn("Callback with bad fields", "tx_ref", payload.TxRef, "outcome", payload.Outcome)
		ctx.Response.SetStatusCode(200)
		ctx.Response.SetBodyString("ok")
		return
	}

	cb := model.PaymentCallback{
		ProviderRef: payload.TxRef,
		Outcome:     outcome,
		ReceivedAt:  time.Now(),
	}
	if _, err := h.publisher.PublishJSON(ctx, cb, map[string]string{"source": "webhook"}); err != nil {
		logger.Error("Failed to enqueue callback", "tx_ref", payload.TxRef, "error", err)
		writeError(ctx, 503, "temporarily unavailable")
		return
	}

	ctx.Response.SetStatusCode(200)
	ctx.Response.SetBodyString("ok")
	logger.Info("Callback accepted", "tx_ref", payload.TxRef, "outcome", payload.Outcome)
}
