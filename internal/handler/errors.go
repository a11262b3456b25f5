// Package handler содержит HTTP обработчики платёжного сервиса.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/storefront-payments/internal/domain"
	"example.com/storefront-payments/pkg/logger"
)

// respondError мапит доменные ошибки на HTTP статусы.
// Внутренние детали ошибок наружу не выводятся.
func respondError(c *gin.Context, err error) {
	log := logger.FromContext(c.Request.Context())

	switch {
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrPaymentNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": err.Error(),
		})

	case errors.Is(err, domain.ErrInvalidOrderID),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidCallback):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "bad_request",
			"message": err.Error(),
		})

	case errors.Is(err, domain.ErrInvalidSignature):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_signature",
			"message": err.Error(),
		})

	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrNotRefundable),
		errors.Is(err, domain.ErrAlreadyProcessed),
		errors.Is(err, domain.ErrDuplicatePayment):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "conflict",
			"message": err.Error(),
		})

	default:
		log.Error().Err(err).Msg("Внутренняя ошибка обработки запроса")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Внутренняя ошибка сервиса",
		})
	}
}
