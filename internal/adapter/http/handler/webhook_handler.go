package handler

import (
	"errors"
	"io"
	"net/http"

	"tipjar/internal/core/ports"
	"tipjar/pkg/apperror"
	"tipjar/pkg/response"

	"github.com/gin-gonic/gin"
)

// HeaderStripeSignature carries the webhook signature.
const HeaderStripeSignature = "Stripe-Signature"

type WebhookHandler struct {
	processor ports.WebhookProcessor
}

func NewWebhookHandler(processor ports.WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// HandleStripe handles POST /api/v1/webhooks/stripe. The body must be read
// raw; re-encoding it would break the signature.
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, apperror.ErrPayloadTooLarge())
			return
		}
		response.Error(c, apperror.ErrMalformedPayload(err))
		return
	}

	if _, err := h.processor.Process(c.Request.Context(), payload, c.GetHeader(HeaderStripeSignature)); err != nil {
		response.Error(c, err)
		return
	}
	response.Ack(c)
}
