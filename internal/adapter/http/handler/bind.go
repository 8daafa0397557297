package handler

import (
	"errors"
	"net/http"

	"tipjar/pkg/apperror"
	"tipjar/pkg/response"

	"github.com/gin-gonic/gin"
)

// bindJSON decodes and validates the body, writing the error response on
// failure. Oversized bodies get 413, anything else 400.
func bindJSON(c *gin.Context, obj interface{}) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.Error(c, apperror.ErrPayloadTooLarge())
		return false
	}
	response.Error(c, apperror.Validation(err.Error()))
	return false
}
