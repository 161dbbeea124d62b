package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/liveclass-api/internal/models"
	"github.com/noah-isme/liveclass-api/internal/service"
	"github.com/noah-isme/liveclass-api/pkg/response"
)

type attendanceService interface {
	List(ctx context.Context, sessionID string) ([]models.AttendanceRecord, error)
	Mark(ctx context.Context, sessionID, studentID string, req service.MarkAttendanceRequest) (*models.AttendanceRecord, error)
	BulkMark(ctx context.Context, sessionID string, req service.BulkMarkRequest) (*service.BulkMarkResult, error)
	MarkLeft(ctx context.Context, sessionID, studentID string) (*models.AttendanceRecord, error)
	Stats(ctx context.Context, sessionID string) (*models.SessionStats, error)
}

type attendanceExporter interface {
	ExportAttendance(ctx context.Context, sessionID, format string) (*service.ExportFile, error)
}

// AttendanceHandler exposes per-session attendance endpoints.
type AttendanceHandler struct {
	service  attendanceService
	exporter attendanceExporter
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(service attendanceService, exporter attendanceExporter) *AttendanceHandler {
	return &AttendanceHandler{service: service, exporter: exporter}
}

// List godoc
// @Summary List a session's attendance
// @Tags Attendance
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	records, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Mark godoc
// @Summary Mark one student's attendance
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param studentId path string true "Student ID"
// @Param payload body service.MarkAttendanceRequest true "Attendance"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/attendance/{studentId} [put]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req service.MarkAttendanceRequest
	if !bindJSON(c, &req, "invalid attendance payload") {
		return
	}
	record, err := h.service.Mark(c.Request.Context(), c.Param("id"), c.Param("studentId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// BulkMark godoc
// @Summary Mark attendance for many students
// @Description Rows succeed or fail independently.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.BulkMarkRequest true "Items"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/attendance/bulk [post]
func (h *AttendanceHandler) BulkMark(c *gin.Context) {
	var req service.BulkMarkRequest
	if !bindJSON(c, &req, "invalid bulk attendance payload") {
		return
	}
	result, err := h.service.BulkMark(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// MarkLeft godoc
// @Summary Record a student leaving the session
// @Tags Attendance
// @Produce json
// @Param id path string true "Session ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/attendance/{studentId}/leave [post]
func (h *AttendanceHandler) MarkLeft(c *gin.Context) {
	record, err := h.service.MarkLeft(c.Request.Context(), c.Param("id"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Stats godoc
// @Summary Attendance statistics for a session
// @Tags Attendance
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/stats [get]
func (h *AttendanceHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Export godoc
// @Summary Download a session's attendance sheet
// @Tags Attendance
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Session ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /sessions/{id}/attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	file, err := h.exporter.ExportAttendance(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", service.ExportFormatCSV))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
