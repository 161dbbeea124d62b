package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	_ "github.com/noah-isme/liveclass-api/api/swagger"
	"github.com/noah-isme/liveclass-api/internal/handler"
	"github.com/noah-isme/liveclass-api/internal/middleware"
	"github.com/noah-isme/liveclass-api/internal/repository"
	"github.com/noah-isme/liveclass-api/internal/service"
	"github.com/noah-isme/liveclass-api/pkg/cache"
	"github.com/noah-isme/liveclass-api/pkg/config"
	"github.com/noah-isme/liveclass-api/pkg/database"
	"github.com/noah-isme/liveclass-api/pkg/logger"
)

// @title LiveClass API
// @version 1.0.0
// @description Live session scheduling, attendance and trial booking service
// @BasePath /api/v1
// @schemes http https

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(database.URL(cfg.Database)); err != nil {
			logr.Fatal("migrations failed", zap.Error(err))
		}
		logr.Info("database schema up to date")
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	app := buildApp(ctx, cfg, db, logr)
	defer app.close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type application struct {
	router *gin.Engine
	close  func()
}

func buildApp(ctx context.Context, cfg *config.Config, db *sqlx.DB, logr *zap.Logger) *application {
	validate := validator.New()
	metrics := service.NewMetricsService()
	closers := make([]func(), 0, 1)

	var calendarCache *service.CacheService
	if cfg.Calendar.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, calendar cache disabled", zap.Error(err))
		} else {
			closers = append(closers, func() { _ = client.Close() })
			calendarCache = service.NewCacheService(repository.NewCacheRepository(client), metrics, cfg.Calendar.CacheTTL, logr, true)
		}
	}

	teacherRepo := repository.NewTeacherRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	bookingRepo := repository.NewBookingRepository(db)

	availabilitySvc := service.NewAvailabilityService(availabilityRepo, sessionRepo, teacherRepo, cfg.Scheduling.SlotMinutes, validate, logr)
	rosterSvc := service.NewRosterService(sessionRepo, attendanceRepo, logr)
	sessionSvc := service.NewSessionService(sessionRepo, teacherRepo, batchRepo, rosterSvc, calendarCache, metrics, service.SessionConfig{
		DefaultDurationMinutes: cfg.Scheduling.DefaultDurationMinutes,
		HorizonWeeks:           cfg.Scheduling.HorizonWeeks,
		MaxHorizonWeeks:        cfg.Scheduling.MaxHorizonWeeks,
	}, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, sessionRepo, metrics, validate, logr)
	bookingSvc := service.NewBookingService(bookingRepo, sessionRepo, availabilitySvc, teacherRepo, calendarCache, metrics, validate, logr)
	calendarSvc := service.NewCalendarService(sessionRepo, bookingRepo, calendarCache, cfg.Scheduling.SlotMinutes, cfg.Scheduling.Location(), logr)
	exportSvc := service.NewExportService(sessionRepo, attendanceSvc, nil, nil, logr)

	handlers := routeHandlers{
		availability: handler.NewAvailabilityHandler(availabilitySvc),
		sessions:     handler.NewSessionHandler(sessionSvc),
		attendance:   handler.NewAttendanceHandler(attendanceSvc, exportSvc),
		bookings:     handler.NewBookingHandler(bookingSvc),
		calendar:     handler.NewCalendarHandler(calendarSvc),
		metrics:      handler.NewMetricsHandler(metrics),
		bookingLimit: middleware.NewRateLimiter(cfg.Bookings.RateLimitPerMinute, cfg.Bookings.RateLimitBurst, 10*time.Minute, logr),
		ready: func(c context.Context) error {
			return db.PingContext(c)
		},
	}

	return &application{
		router: newRouter(cfg, logr, metrics, handlers),
		close: func() {
			for _, fn := range closers {
				fn()
			}
		},
	}
}
