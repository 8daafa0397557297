package handler

import (
	"tipjar/internal/adapter/http/dto"
	"tipjar/internal/adapter/http/middleware"
	"tipjar/internal/core/ports"
	"tipjar/pkg/apperror"
	"tipjar/pkg/response"

	"github.com/gin-gonic/gin"
)

type EarningsHandler struct {
	earningsSvc ports.EarningsService
}

func NewEarningsHandler(earningsSvc ports.EarningsService) *EarningsHandler {
	return &EarningsHandler{earningsSvc: earningsSvc}
}

// GetUserEarnings handles GET /api/v1/earnings for the caller.
func (h *EarningsHandler) GetUserEarnings(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthenticated())
		return
	}

	earnings, err := h.earningsSvc.GetUserEarnings(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewEarningsResponse(earnings.Earnings, earnings.RecentTips))
}
