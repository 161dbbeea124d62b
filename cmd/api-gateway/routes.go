package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/liveclass-api/internal/handler"
	"github.com/noah-isme/liveclass-api/internal/middleware"
	"github.com/noah-isme/liveclass-api/internal/service"
	"github.com/noah-isme/liveclass-api/pkg/config"
	"github.com/noah-isme/liveclass-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/liveclass-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/liveclass-api/pkg/middleware/requestid"
)

type routeHandlers struct {
	availability *handler.AvailabilityHandler
	sessions     *handler.SessionHandler
	attendance   *handler.AttendanceHandler
	bookings     *handler.BookingHandler
	calendar     *handler.CalendarHandler
	metrics      *handler.MetricsHandler
	bookingLimit *middleware.RateLimiter
	ready        func(ctx context.Context) error
}

func newRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, h routeHandlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/health", "/ready", "/metrics"))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.metrics.Health)
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if h.ready != nil {
			if err := h.ready(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/metrics/summary", h.metrics.Summary)

	teachers := api.Group("/teachers/:id")
	teachers.GET("/available-slots", h.availability.Slots)
	teachers.GET("/availability", h.availability.Get)
	teachers.PUT("/availability", h.availability.Replace)
	teachers.POST("/blocked-dates", h.availability.Block)
	teachers.DELETE("/blocked-dates/:date", h.availability.Unblock)
	teachers.GET("/booking-suggestions", h.bookings.Suggestions)

	sessions := api.Group("/sessions")
	sessions.GET("", h.sessions.List)
	sessions.POST("", h.sessions.Create)
	sessions.GET("/:id", h.sessions.Get)
	sessions.PUT("/:id", h.sessions.Update)
	sessions.DELETE("/:id", h.sessions.Delete)
	sessions.PATCH("/:id/schedule", h.sessions.Move)
	sessions.PATCH("/:id/status", h.sessions.SetStatus)
	sessions.PUT("/:id/roster", h.sessions.SyncRoster)
	sessions.GET("/:id/stats", h.attendance.Stats)
	sessions.GET("/:id/attendance", h.attendance.List)
	sessions.GET("/:id/attendance/export", h.attendance.Export)
	sessions.POST("/:id/attendance/bulk", h.attendance.BulkMark)
	sessions.PUT("/:id/attendance/:studentId", h.attendance.Mark)
	sessions.POST("/:id/attendance/:studentId/leave", h.attendance.MarkLeft)

	bookings := api.Group("/bookings")
	if h.bookingLimit != nil {
		bookings.POST("", h.bookingLimit.Middleware(), h.bookings.Create)
	} else {
		bookings.POST("", h.bookings.Create)
	}
	bookings.GET("", h.bookings.List)
	bookings.GET("/:id", h.bookings.Get)
	bookings.PATCH("/:id/status", h.bookings.UpdateStatus)

	api.GET("/calendar", h.calendar.Range)
	api.GET("/calendar/today", h.calendar.Today)

	return r
}
