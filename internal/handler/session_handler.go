package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/liveclass-api/internal/models"
	"github.com/noah-isme/liveclass-api/internal/service"
	"github.com/noah-isme/liveclass-api/pkg/response"
)

type sessionService interface {
	List(ctx context.Context, filter models.SessionFilter) ([]models.LiveSession, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.LiveSession, error)
	Create(ctx context.Context, req service.CreateSessionsRequest) (*service.CreateSessionsResult, error)
	Update(ctx context.Context, id string, req service.UpdateSessionRequest) (*models.LiveSession, error)
	Move(ctx context.Context, id string, req service.MoveSessionRequest) (*models.LiveSession, error)
	SetStatus(ctx context.Context, id string, req service.SetSessionStatusRequest) (*models.LiveSession, error)
	Delete(ctx context.Context, id string) error
	SyncRoster(ctx context.Context, id string, req service.SyncRosterRequest) (*service.RosterSyncResult, error)
}

// SessionHandler exposes live session scheduling endpoints.
type SessionHandler struct {
	service sessionService
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(service sessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

// List godoc
// @Summary List live sessions
// @Tags Sessions
// @Produce json
// @Param teacherId query string false "Teacher ID"
// @Param batchId query string false "Batch ID"
// @Param status query string false "Comma separated statuses"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
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
	filter := models.SessionFilter{
		TeacherID: pickQuery(c, "teacherId", "teacher_id"),
		BatchID:   pickQuery(c, "batchId", "batch_id"),
		From:      from,
		To:        to,
	}
	for _, status := range splitQuery(c, "status") {
		filter.Status = append(filter.Status, models.SessionStatus(strings.ToLower(status)))
	}
	filter.Page, filter.PageSize = pageParams(c)

	sessions, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, pagination)
}

// Get godoc
// @Summary Get a live session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Create godoc
// @Summary Create one or a recurring series of sessions
// @Description Recurring requests report each date's outcome; a request that created every date responds 201.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body service.CreateSessionsRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	var req service.CreateSessionsRequest
	if !bindJSON(c, &req, "invalid session payload") {
		return
	}
	result, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusCreated
	if result.Failed > 0 {
		status = http.StatusOK
	}
	response.JSON(c, status, result, nil)
}

// Update godoc
// @Summary Update session details
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.UpdateSessionRequest true "Details"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [put]
func (h *SessionHandler) Update(c *gin.Context) {
	var req service.UpdateSessionRequest
	if !bindJSON(c, &req, "invalid session payload") {
		return
	}
	session, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Move godoc
// @Summary Move a session to another date or time
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.MoveSessionRequest true "New slot"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/schedule [patch]
func (h *SessionHandler) Move(c *gin.Context) {
	var req service.MoveSessionRequest
	if !bindJSON(c, &req, "invalid schedule payload") {
		return
	}
	session, err := h.service.Move(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// SetStatus godoc
// @Summary Transition a session's status
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.SetSessionStatusRequest true "Status"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /sessions/{id}/status [patch]
func (h *SessionHandler) SetStatus(c *gin.Context) {
	var req service.SetSessionStatusRequest
	if !bindJSON(c, &req, "invalid status payload") {
		return
	}
	session, err := h.service.SetStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Delete godoc
// @Summary Delete a session and its attendance
// @Tags Sessions
// @Param id path string true "Session ID"
// @Success 204
// @Router /sessions/{id} [delete]
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SyncRoster godoc
// @Summary Replace invited students and add their attendance rows
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.SyncRosterRequest true "Students"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/roster [put]
func (h *SessionHandler) SyncRoster(c *gin.Context) {
	var req service.SyncRosterRequest
	if !bindJSON(c, &req, "invalid roster payload") {
		return
	}
	result, err := h.service.SyncRoster(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
