package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"tipjar/internal/core/domain"
	"tipjar/internal/core/ports"
	"tipjar/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type auditRoute struct {
	action       domain.AuditAction
	resourceType string
}

// auditedRoutes maps "METHOD route-pattern" to the audit action it records.
var auditedRoutes = map[string]auditRoute{
	"POST /api/v1/payment-intents": {domain.AuditActionCreatePaymentIntent, "payment_intent"},
	"POST /api/v1/subscriptions":   {domain.AuditActionCreateSubscription, "subscription"},
	"POST /api/v1/customers":       {domain.AuditActionCreateCustomer, "customer"},
	"POST /api/v1/setup-intents":   {domain.AuditActionCreateSetupIntent, "setup_intent"},
}

// CtxAuditResourceID lets a handler name the created resource.
const CtxAuditResourceID = "audit_resource_id"

// AuditLog records successful gateway-creating requests after the response is written.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() < http.StatusOK || c.Writer.Status() >= http.StatusMultipleChoices {
			return
		}
		route, ok := auditedRoutes[c.Request.Method+" "+c.FullPath()]
		if !ok {
			return
		}

		userID, _ := UserID(c)
		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"request_id": c.GetString(response.CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			UserID:       userID,
			Action:       route.action,
			ResourceType: route.resourceType,
			ResourceID:   c.GetString(CtxAuditResourceID),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}
