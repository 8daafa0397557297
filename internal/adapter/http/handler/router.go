package handler

import (
	"net/http"
	"time"

	"tipjar/internal/adapter/http/middleware"
	redisStore "tipjar/internal/adapter/storage/redis"
	"tipjar/internal/core/ports"
	"tipjar/pkg/apperror"
	"tipjar/pkg/response"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds every request body, webhook payloads included.
const maxBodyBytes = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	PaymentSvc       ports.PaymentService
	EarningsSvc      ports.EarningsService
	WebhookProcessor ports.WebhookProcessor
	TokenSvc         ports.TokenService
	RateLimitStore   *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers   []ports.HealthChecker
	AuditSvc         ports.AuditService // nil = audit logging disabled
	AllowedOrigins   []string
	OpenAPISpec      []byte
	Mode             string // gin mode; empty means release
	Logger           zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	mode := deps.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
	r := gin.New()
	r.HandleMethodNotAllowed = true

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.MaxBodySize(maxBodyBytes))
	if len(deps.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     deps.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Authorization", "Content-Type", middleware.HeaderIdempotencyKey, middleware.HeaderRequestID},
			ExposeHeaders:    []string{middleware.HeaderRequestID},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.NoRoute(func(c *gin.Context) { response.Error(c, apperror.ErrRouteNotFound()) })
	r.NoMethod(func(c *gin.Context) { response.Error(c, apperror.ErrMethodNotAllowed()) })

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	swagger := NewSwaggerHandler(deps.OpenAPISpec)
	r.GET("/swagger", swagger.UI)
	r.GET("/swagger/spec", swagger.Spec)

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		return middleware.RateLimiter(deps.RateLimitStore, group, rules[group], deps.Logger)
	}

	// Webhooks are authenticated by signature, not bearer token.
	webhookHandler := NewWebhookHandler(deps.WebhookProcessor)
	r.POST("/api/v1/webhooks/stripe", webhookHandler.HandleStripe)
	r.POST("/api/stripe-webhook", webhookHandler.HandleStripe)

	paymentHandler := NewPaymentHandler(deps.PaymentSvc)
	earningsHandler := NewEarningsHandler(deps.EarningsSvc)

	v1 := r.Group("/api/v1", middleware.BearerAuth(deps.TokenSvc, deps.Logger))
	{
		v1.POST("/payment-intents", rl("payment_intents"), paymentHandler.CreatePaymentIntent)
		v1.POST("/subscriptions", rl("subscriptions"), paymentHandler.CreateSubscription)
		v1.POST("/customers", rl("customers"), paymentHandler.CreateCustomer)
		v1.GET("/payment-methods", rl("read"), paymentHandler.ListPaymentMethods)
		v1.POST("/setup-intents", rl("setup_intents"), paymentHandler.CreateSetupIntent)
		v1.GET("/earnings", rl("read"), earningsHandler.GetUserEarnings)
	}

	return r
}
