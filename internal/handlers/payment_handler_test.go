package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tewereus/prime-property/internal/gateways"
	"github.com/tewereus/prime-property/internal/model"
	"github.com/tewereus/prime-property/internal/services"
)

const testSecret = "webhook-test-secret"

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) SubmitForPayment(ctx context.Context, propertyID, ownerID int64, method model.PaymentMethod) (*model.PaymentTransaction, error) {
	args := m.Called(ctx, propertyID, ownerID, method)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentTransaction), args.Error(1)
}

func (m *MockPaymentService) Status(ctx context.Context, txRef string) (*model.PaymentTransaction, error) {
	args := m.Called(ctx, txRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PaymentTransaction), args.Error(1)
}

func (m *MockPaymentService) Cancel(ctx context.Context, txRef string, ownerID int64) error {
	return m.Called(ctx, txRef, ownerID).Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	args := m.Called(ctx, data, metadata)
	return args.String(0), args.Error(1)
}

func TestPaymentHandler_InitiatePayment(t *testing.T) {
	t.Run("successful initiation", func(t *testing.T) {
		svc := new(MockPaymentService)
		handler := NewPaymentHandler(svc, new(MockPublisher), testSecret)

		bodyBytes, _ := json.Marshal(initiatePaymentRequest{PropertyID: 5, OwnerID: 7, Method: "telebirr"})

		expected := &model.PaymentTransaction{
			ID:          1,
			PropertyID:  5,
			Method:      model.PaymentMethodTelebirr,
			Status:      model.TransactionStatusInitiated,
			ProviderRef: "tx-abc",
			CheckoutURL: "https://pay.example/tx-abc",
		}
		svc.On("SubmitForPayment", mock.Anything, int64(5), int64(7), model.PaymentMethodTelebirr).
			Return(expected, nil)

		ctx := setupTestContext("POST", "/api/v1/payments", bodyBytes)
		handler.InitiatePayment(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())

		var response model.PaymentTransaction
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Equal(t, "tx-abc", response.ProviderRef)
		assert.Equal(t, "https://pay.example/tx-abc", response.CheckoutURL)
	})

	t.Run("unknown method", func(t *testing.T) {
		svc := new(MockPaymentService)
		handler := NewPaymentHandler(svc, new(MockPublisher), testSecret)

		bodyBytes, _ := json.Marshal(initiatePaymentRequest{PropertyID: 5, OwnerID: 7, Method: "paypal"})

		ctx := setupTestContext("POST", "/api/v1/payments", bodyBytes)
		handler.InitiatePayment(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
		svc.AssertNotCalled(t, "SubmitForPayment")
	})

	t.Run("second submission conflicts", func(t *testing.T) {
		svc := new(MockPaymentService)
		handler := NewPaymentHandler(svc, new(MockPublisher), testSecret)

		bodyBytes, _ := json.Marshal(initiatePaymentRequest{PropertyID: 5, OwnerID: 7, Method: "cbe"})
		svc.On("SubmitForPayment", mock.Anything, int64(5), int64(7), model.PaymentMethodCBE).
			Return(nil, services.ErrPaymentPending)

		ctx := setupTestContext("POST", "/api/v1/payments", bodyBytes)
		handler.InitiatePayment(ctx)

		assert.Equal(t, 409, ctx.Response.StatusCode())
	})

	t.Run("missing location", func(t *testing.T) {
		svc := new(MockPaymentService)
		handler := NewPaymentHandler(svc, new(MockPublisher), testSecret)

		bodyBytes, _ := json.Marshal(initiatePaymentRequest{PropertyID: 5, OwnerID: 7, Method: "cash"})
		svc.On("SubmitForPayment", mock.Anything, int64(5), int64(7), model.PaymentMethodCash).
			Return(nil, services.ErrMissingLocation)

		ctx := setupTestContext("POST", "/api/v1/payments", bodyBytes)
		handler.InitiatePayment(ctx)

		assert.Equal(t, 422, ctx.Response.StatusCode())
	})
}

func TestPaymentHandler_PaymentStatus(t *testing.T) {
	svc := new(MockPaymentService)
	handler := NewPaymentHandler(svc, new(MockPublisher), testSecret)

	svc.On("Status", mock.Anything, "tx-abc").
		Return(&model.PaymentTransaction{ProviderRef: "tx-abc", Status: model.TransactionStatusConfirmed}, nil)

	ctx := setupTestContext("GET", "/api/v1/payments/tx-abc", nil)
	ctx.SetUserValue("tx_ref", "tx-abc")
	handler.PaymentStatus(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())

	var response model.PaymentTransaction
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
	assert.Equal(t, model.TransactionStatusConfirmed, response.Status)
}

func TestPaymentHandler_CancelPayment(t *testing.T) {
	t.Run("owner cancels pending payment", func(t *testing.T) {
		svc := new(MockPaymentService)
		handler := NewPaymentHandler(svc, new(MockPublisher), testSecret)

		bodyBytes, _ := json.Marshal(cancelPaymentRequest{OwnerID: 7})
		svc.On("Cancel", mock.Anything, "tx-abc", int64(7)).Return(nil)

		ctx := setupTestContext("POST", "/api/v1/payments/tx-abc/cancel", bodyBytes)
		ctx.SetUserValue("tx_ref", "tx-abc")
		handler.CancelPayment(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
	})

	t.Run("cancel after resolution conflicts", func(t *testing.T) {
		svc := new(MockPaymentService)
		handler := NewPaymentHandler(svc, new(MockPublisher), testSecret)

		bodyBytes, _ := json.Marshal(cancelPaymentRequest{OwnerID: 7})
		svc.On("Cancel", mock.Anything, "tx-abc", int64(7)).Return(services.ErrStateConflict)

		ctx := setupTestContext("POST", "/api/v1/payments/tx-abc/cancel", bodyBytes)
		ctx.SetUserValue("tx_ref", "tx-abc")
		handler.CancelPayment(ctx)

		assert.Equal(t, 409, ctx.Response.StatusCode())
	})
}

func TestPaymentHandler_ProviderCallback(t *testing.T) {
	signedCallback := func(t *testing.T, payload providerCallbackPayload) ([]byte, string) {
		body, err := json.Marshal(payload)
		require.NoError(t, err)
		return body, gateways.SignPayload(testSecret, body)
	}

	t.Run("valid callback is enqueued", func(t *testing.T) {
		publisher := new(MockPublisher)
		handler := NewPaymentHandler(new(MockPaymentService), publisher, testSecret)

		body, sig := signedCallback(t, providerCallbackPayload{TxRef: "tx-abc", Outcome: "success"})
		publisher.On("PublishJSON", mock.Anything, mock.MatchedBy(func(cb model.PaymentCallback) bool {
			return cb.ProviderRef == "tx-abc" && cb.Outcome == model.CallbackOutcomeSuccess
		}), mock.Anything).Return("1-0", nil)

		ctx := setupTestContext("POST", "/api/v1/payments/callback", body)
		ctx.Request.Header.Set(signatureHeader, sig)
		handler.ProviderCallback(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		publisher.AssertExpectations(t)
	})

	t.Run("bad signature still answers 200 but enqueues nothing", func(t *testing.T) {
		publisher := new(MockPublisher)
		handler := NewPaymentHandler(new(MockPaymentService), publisher, testSecret)

		body, _ := signedCallback(t, providerCallbackPayload{TxRef: "tx-abc", Outcome: "success"})

		ctx := setupTestContext("POST", "/api/v1/payments/callback", body)
		ctx.Request.Header.Set(signatureHeader, "deadbeef")
		handler.ProviderCallback(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		publisher.AssertNotCalled(t, "PublishJSON")
	})

	t.Run("missing signature still answers 200", func(t *testing.T) {
		publisher := new(MockPublisher)
		handler := NewPaymentHandler(new(MockPaymentService), publisher, testSecret)

		body, _ := signedCallback(t, providerCallbackPayload{TxRef: "tx-abc", Outcome: "failed"})

		ctx := setupTestContext("POST", "/api/v1/payments/callback", body)
		handler.ProviderCallback(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		publisher.AssertNotCalled(t, "PublishJSON")
	})

	t.Run("unknown outcome dropped", func(t *testing.T) {
		publisher := new(MockPublisher)
		handler := NewPaymentHandler(new(MockPaymentService), publisher, testSecret)

		body, sig := signedCallback(t, providerCallbackPayload{TxRef: "tx-abc", Outcome: "maybe"})

		ctx := setupTestContext("POST", "/api/v1/payments/callback", body)
		ctx.Request.Header.Set(signatureHeader, sig)
		handler.ProviderCallback(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		publisher.AssertNotCalled(t, "PublishJSON")
	})

	t.Run("publish failure answers 503 so the provider redelivers", func(t *testing.T) {
		publisher := new(MockPublisher)
		handler := NewPaymentHandler(new(MockPaymentService), publisher, testSecret)

		body, sig := signedCallback(t, providerCallbackPayload{TxRef: "tx-abc", Outcome: "success"})
		publisher.On("PublishJSON", mock.Anything, mock.Anything, mock.Anything).Return("", assert.AnError)

		ctx := setupTestContext("POST", "/api/v1/payments/callback", body)
		ctx.Request.Header.Set(signatureHeader, sig)
		handler.ProviderCallback(ctx)

		assert.Equal(t, 503, ctx.Response.StatusCode())
	})
}
