package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"tipjar/internal/core/ports"
	"tipjar/pkg/apperror"
	"tipjar/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	HeaderRequestID      = "X-Request-ID"
	HeaderIdempotencyKey = "Idempotency-Key"

	// CtxUserID holds the authenticated user id (the token subject).
	CtxUserID = "user_id"

	maxRequestIDLen = 128
)

// BearerAuth verifies the Authorization bearer token and stores its subject
// under CtxUserID. Requests without a valid token never reach the handler.
func BearerAuth(tokenSvc ports.TokenService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		scheme, token, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			response.Error(c, apperror.ErrUnauthenticated())
			c.Abort()
			return
		}

		userID, err := tokenSvc.Verify(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("bearer token rejected")
			response.Error(c, apperror.ErrUnauthenticated())
			c.Abort()
			return
		}

		c.Set(CtxUserID, userID)
		c.Next()
	}
}

// UserID returns the authenticated user id set by BearerAuth.
func UserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(CtxUserID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// RequestID propagates X-Request-ID, generating one when absent.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		c.Set(response.CtxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		if userID, ok := UserID(c); ok {
			event = event.Str("user_id", userID)
		}
		event.
			Str("request_id", c.GetString(response.CtxRequestID)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				response.Error(c, apperror.InternalError(fmt.Errorf("panic: %v", r)))
				c.Abort()
			}
		}()
		c.Next()
	}
}
