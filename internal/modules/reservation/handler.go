package reservation

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cabanas/internal/pkg/response"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the public guest endpoints.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/reservations", h.Create)
	rg.GET("/reservations/:code", h.Get)
	rg.POST("/reservations/:code/confirm", h.Confirm)
	rg.POST("/reservations/:code/cancel", h.Cancel)
	rg.POST("/reservations/:code/extend", h.Extend)
}

// RegisterAdminRoutes mounts the operator-only transitions.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/reservations/:code/complete", h.Complete)
	rg.POST("/reservations/:code/no-show", h.NoShow)
	rg.GET("/accommodations/:id/reservations", h.ListByAccommodation)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	res, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"reservation": res})
}

func (h *Handler) Get(c *gin.Context) {
	res, err := h.service.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reservation": res})
}

func (h *Handler) Confirm(c *gin.Context) {
	res, err := h.service.Confirm(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reservation": res})
}

func (h *Handler) Cancel(c *gin.Context) {
	var req CancelRequest
	// Body is optional for cancellations.
	_ = c.ShouldBindJSON(&req)

	res, err := h.service.Cancel(c.Request.Context(), c.Param("code"), req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reservation": res})
}

func (h *Handler) Extend(c *gin.Context) {
	res, err := h.service.ExtendHold(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reservation": res})
}

func (h *Handler) Complete(c *gin.Context) {
	res, err := h.service.Complete(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reservation": res})
}

func (h *Handler) NoShow(c *gin.Context) {
	res, err := h.service.NoShow(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reservation": res})
}

func (h *Handler) ListByAccommodation(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid accommodation id")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	list, err := h.service.ListByAccommodation(c.Request.Context(), id, limit, offset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reservations": list})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, ErrAccommodationNotFound):
		response.Error(c, http.StatusNotFound, "ACCOMMODATION_NOT_FOUND", "Accommodation not found or inactive")
	case errors.Is(err, ErrNotFound):
		response.Error(c, http.StatusNotFound, "RESERVATION_NOT_FOUND", "Reservation not found")
	case errors.Is(err, ErrBusy):
		response.Error(c, http.StatusConflict, "PROCESSING_OR_UNAVAILABLE", "Dates are being processed, try again")
	case errors.Is(err, ErrOverlap):
		response.Error(c, http.StatusConflict, "DATE_OVERLAP", "Dates are no longer available")
	case errors.Is(err, ErrExpired):
		response.Error(c, http.StatusConflict, "RESERVATION_EXPIRED", "Pre-reservation has expired")
	case errors.Is(err, ErrAlreadyExtended):
		response.Error(c, http.StatusConflict, "ALREADY_EXTENDED", "Hold was already extended once")
	case errors.Is(err, ErrInvalidTransition):
		response.Error(c, http.StatusConflict, "INVALID_TRANSITION", "Reservation is not in a state allowing this action")
	default:
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process reservation")
	}
}
