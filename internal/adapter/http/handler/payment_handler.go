package handler

import (
	"tipjar/internal/adapter/http/dto"
	"tipjar/internal/adapter/http/middleware"
	"tipjar/internal/core/ports"
	"tipjar/pkg/apperror"
	"tipjar/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentHandler handles the authenticated gateway endpoints.
type PaymentHandler struct {
	paymentSvc ports.PaymentService
}

func NewPaymentHandler(paymentSvc ports.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

// CreatePaymentIntent handles POST /api/v1/payment-intents.
func (h *PaymentHandler) CreatePaymentIntent(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthenticated())
		return
	}

	var req dto.CreatePaymentIntentRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	pi, err := h.paymentSvc.CreatePaymentIntent(c.Request.Context(), ports.CreatePaymentIntentRequest{
		SenderID:       userID,
		RecipientID:    req.RecipientID,
		RecipientName:  req.RecipientName,
		AmountMinor:    req.Amount,
		Currency:       req.Currency,
		IdempotencyKey: c.GetHeader(middleware.HeaderIdempotencyKey),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResourceID, pi.ID)
	response.Created(c, dto.CreatePaymentIntentResponse{
		ClientSecret:    pi.ClientSecret,
		PaymentIntentID: pi.ID,
	})
}

// CreateSubscription handles POST /api/v1/subscriptions.
func (h *PaymentHandler) CreateSubscription(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthenticated())
		return
	}

	var req dto.CreateSubscriptionRequest
	if !bindJSON(c, &req) {
		return
	}

	sub, err := h.paymentSvc.CreateSubscription(c.Request.Context(), ports.CreateSubscriptionRequest{
		UserID:     userID,
		PriceID:    req.PriceID,
		CustomerID: req.CustomerID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResourceID, sub.ID)
	response.Created(c, dto.CreateSubscriptionResponse{SubscriptionID: sub.ID, Status: sub.Status})
}

// CreateCustomer handles POST /api/v1/customers.
func (h *PaymentHandler) CreateCustomer(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthenticated())
		return
	}

	var req dto.CreateCustomerRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	cus, err := h.paymentSvc.CreateCustomer(c.Request.Context(), ports.CreateCustomerRequest{
		UserID: userID,
		Email:  req.Email,
		Name:   req.Name,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResourceID, cus.ID)
	response.Created(c, dto.CustomerResponse{CustomerID: cus.ID, Email: cus.Email, Name: cus.Name})
}

// ListPaymentMethods handles GET /api/v1/payment-methods?customerId=.
func (h *PaymentHandler) ListPaymentMethods(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthenticated())
		return
	}

	var q dto.CustomerQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	methods, err := h.paymentSvc.ListPaymentMethods(c.Request.Context(), userID, q.CustomerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.PaymentMethodsResponse{PaymentMethods: methods})
}

// CreateSetupIntent handles POST /api/v1/setup-intents.
func (h *PaymentHandler) CreateSetupIntent(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthenticated())
		return
	}

	var req dto.SetupIntentRequest
	if !bindJSON(c, &req) {
		return
	}

	si, err := h.paymentSvc.CreateSetupIntent(c.Request.Context(), userID, req.CustomerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResourceID, si.ID)
	response.Created(c, dto.SetupIntentResponse{ClientSecret: si.ClientSecret, SetupIntentID: si.ID})
}
