package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/liveclass-api/internal/models"
	"github.com/noah-isme/liveclass-api/internal/service"
	"github.com/noah-isme/liveclass-api/pkg/response"
)

type availabilityService interface {
	FreeSlots(ctx context.Context, teacherID string, date time.Time) ([]models.Slot, error)
	Get(ctx context.Context, teacherID string) (*models.WeeklyAvailability, error)
	Replace(ctx context.Context, teacherID string, req service.ReplaceAvailabilityRequest) (*models.WeeklyAvailability, error)
	BlockDate(ctx context.Context, teacherID string, req service.BlockDateRequest) (*models.BlockedDate, error)
	UnblockDate(ctx context.Context, teacherID, rawDate string) error
}

// AvailabilityHandler exposes teacher availability and free slot endpoints.
type AvailabilityHandler struct {
	service availabilityService
}

// NewAvailabilityHandler constructs the handler.
func NewAvailabilityHandler(service availabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: service}
}

// Slots godoc
// @Summary List a teacher's free slots on a date
// @Tags Availability
// @Produce json
// @Param id path string true "Teacher ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/available-slots [get]
func (h *AvailabilityHandler) Slots(c *gin.Context) {
	date, ok := requireDate(c, "date")
	if !ok {
		return
	}
	slots, err := h.service.FreeSlots(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// Get godoc
// @Summary Get weekly availability
// @Tags Availability
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/availability [get]
func (h *AvailabilityHandler) Get(c *gin.Context) {
	availability, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, availability, nil)
}

// Replace godoc
// @Summary Replace weekly availability windows
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body service.ReplaceAvailabilityRequest true "Windows"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/availability [put]
func (h *AvailabilityHandler) Replace(c *gin.Context) {
	var req service.ReplaceAvailabilityRequest
	if !bindJSON(c, &req, "invalid availability payload") {
		return
	}
	availability, err := h.service.Replace(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, availability, nil)
}

// Block godoc
// @Summary Block a date
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body service.BlockDateRequest true "Blocked date"
// @Success 201 {object} response.Envelope
// @Router /teachers/{id}/blocked-dates [post]
func (h *AvailabilityHandler) Block(c *gin.Context) {
	var req service.BlockDateRequest
	if !bindJSON(c, &req, "invalid blocked date payload") {
		return
	}
	blocked, err := h.service.BlockDate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, blocked)
}

// Unblock godoc
// @Summary Unblock a date
// @Tags Availability
// @Param id path string true "Teacher ID"
// @Param date path string true "Date (YYYY-MM-DD)"
// @Success 204
// @Router /teachers/{id}/blocked-dates/{date} [delete]
func (h *AvailabilityHandler) Unblock(c *gin.Context) {
	if err := h.service.UnblockDate(c.Request.Context(), c.Param("id"), c.Param("date")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
