package payment

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cabanas/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/payments", h.Webhook)
}

// Webhook always answers quickly: the provider only needs a 2xx to stop
// redelivering, and redeliveries are harmless anyway.
func (h *Handler) Webhook(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid webhook payload")
		return
	}

	result, err := h.service.ProcessEvent(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process payment event")
		return
	}
	response.Success(c, http.StatusOK, result)
}
