package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/liveclass-api/internal/models"
	"github.com/noah-isme/liveclass-api/internal/service"
	"github.com/noah-isme/liveclass-api/pkg/response"
)

type bookingService interface {
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Booking, error)
	Create(ctx context.Context, req service.CreateBookingRequest) (*models.BookingResult, error)
	UpdateStatus(ctx context.Context, id string, req service.UpdateBookingStatusRequest) (*models.Booking, error)
	Suggest(ctx context.Context, teacherID string, date time.Time) ([]models.SlotSuggestion, error)
}

// BookingHandler exposes trial booking endpoints.
type BookingHandler struct {
	service bookingService
}

// NewBookingHandler constructs the handler.
func NewBookingHandler(service bookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// Create godoc
// @Summary Request a trial class
// @Description Slot overlaps are reported as advisories and never reject the booking.
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body service.CreateBookingRequest true "Booking"
// @Success 201 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	var req service.CreateBookingRequest
	if !bindJSON(c, &req, "invalid booking payload") {
		return
	}
	result, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// List godoc
// @Summary List bookings
// @Tags Bookings
// @Produce json
// @Param teacherId query string false "Teacher ID"
// @Param status query string false "Comma separated statuses"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /bookings [get]
func (h *BookingHandler) List(c *gin.Context) {
	from, err := parseOptionalDate(c.Query("from"))
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := parseOptionalDate(c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.BookingFilter{TeacherID: pickQuery(c, "teacherId", "teacher_id"), From: from, To: to}
	for _, status := range splitQuery(c, "status") {
		filter.Status = append(filter.Status, models.BookingStatus(strings.ToLower(status)))
	}
	filter.Page, filter.PageSize = pageParams(c)

	bookings, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, pagination)
}

// Get godoc
// @Summary Get a booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	booking, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// UpdateStatus godoc
// @Summary Transition a booking's status
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body service.UpdateBookingStatusRequest true "Status"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /bookings/{id}/status [patch]
func (h *BookingHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateBookingStatusRequest
	if !bindJSON(c, &req, "invalid status payload") {
		return
	}
	booking, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// Suggestions godoc
// @Summary Suggest trial slots for a teacher
// @Tags Bookings
// @Produce json
// @Param id path string true "Teacher ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/booking-suggestions [get]
func (h *BookingHandler) Suggestions(c *gin.Context) {
	date, ok := requireDate(c, "date")
	if !ok {
		return
	}
	suggestions, err := h.service.Suggest(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, suggestions, nil)
}
