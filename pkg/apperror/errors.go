package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Authentication & Access (AUTH / SEC) ----

func ErrUnauthenticated() *AppError {
	return New("AUTH_001", "Missing or invalid bearer token", http.StatusUnauthorized)
}

func ErrForbidden(message string) *AppError {
	return New("SEC_001", message, http.StatusForbidden)
}

// ---- Transport (HTTP) ----

func ErrMethodNotAllowed() *AppError {
	return New("HTTP_405", "Method not allowed", http.StatusMethodNotAllowed)
}

func ErrPayloadTooLarge() *AppError {
	return New("HTTP_413", "Request body too large", http.StatusRequestEntityTooLarge)
}

func ErrRouteNotFound() *AppError {
	return New("HTTP_404", "Route not found", http.StatusNotFound)
}

// ---- Webhook (WH) ----

func ErrInvalidSignature(err error) *AppError {
	return Wrap("WH_001", "Invalid webhook signature", http.StatusBadRequest, err)
}

func ErrMalformedPayload(err error) *AppError {
	return Wrap("WH_002", "Malformed webhook payload", http.StatusBadRequest, err)
}

// ---- Payment gateway (GW) ----

// ErrGateway reports a request the payment processor rejected. The processor's
// message is meant for end users and is passed through.
func ErrGateway(message string, err error) *AppError {
	return Wrap("GW_001", message, http.StatusInternalServerError, err)
}

func ErrGatewayUnavailable(err error) *AppError {
	return Wrap("GW_002", "Payment processor unavailable", http.StatusInternalServerError, err)
}

// ---- Ledger (LED) ----

func ErrLedger(err error) *AppError {
	return Wrap("LED_001", "Ledger storage error", http.StatusInternalServerError, err)
}

// ---- Validation & lookup ----

// Validation returns a VAL_001 bad request error.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New("NF_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
