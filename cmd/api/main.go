package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/medflow/scheduler-api/config"
	"github.com/medflow/scheduler-api/internal/email"
	checkinHandler "github.com/medflow/scheduler-api/internal/handler/checkin"
	healthHandler "github.com/medflow/scheduler-api/internal/handler/health"
	schedulingHandler "github.com/medflow/scheduler-api/internal/handler/scheduling"
	"github.com/medflow/scheduler-api/internal/middleware"
	"github.com/medflow/scheduler-api/internal/repository/postgres"
	"github.com/medflow/scheduler-api/internal/repository/redisrepo"
	"github.com/medflow/scheduler-api/internal/router"
	appointmentService "github.com/medflow/scheduler-api/internal/service/appointment"
	checkinService "github.com/medflow/scheduler-api/internal/service/checkin"
	eventService "github.com/medflow/scheduler-api/internal/service/event"
	ruleService "github.com/medflow/scheduler-api/internal/service/rule"
	"github.com/medflow/scheduler-api/internal/service/scheduling"
	workflowService "github.com/medflow/scheduler-api/internal/service/workflow"
	"github.com/medflow/scheduler-api/pkg/auth"
	"github.com/medflow/scheduler-api/pkg/logger"
	"github.com/medflow/scheduler-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse Redis URL")
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	// Repositories
	appointmentRepo := postgres.NewAppointmentRepository(db)
	slotRepo := postgres.NewSlotRepository(db)
	ruleRepo := postgres.NewRuleRepository(db)
	clinicRepo := postgres.NewClinicRepository(db)
	availabilityRepo := postgres.NewAvailabilityRepository(db)
	locationRepo := postgres.NewLocationRepository(db)
	queueRepo := postgres.NewQueueRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)
	queueCounter := redisrepo.NewQueueCounter(rdb)

	m := metrics.NewMetrics("medflow", "scheduler")

	// Services
	ruleCache := gocache.New(cfg.Scheduling.RuleCacheTTL, 2*cfg.Scheduling.RuleCacheTTL)
	ruleSvc := ruleService.NewService(ruleRepo, clinicRepo, slotRepo, ruleCache, appLogger)

	detector := scheduling.NewDetector(clinicRepo, availabilityRepo, slotRepo)
	ranker := scheduling.NewRanker(detector, clinicRepo)
	resolver := scheduling.NewResolver(detector, ranker)

	workflowSvc := workflowService.NewService(appointmentRepo, appLogger)
	eventSvc := eventService.NewService(outboxRepo, appLogger)
	emailSvc := email.NewService(email.Config{
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
	})

	appointmentSvc := appointmentService.NewService(
		appointmentRepo,
		slotRepo,
		ruleSvc,
		resolver,
		workflowSvc,
		eventSvc,
		emailSvc,
		m,
		appLogger,
		appointmentService.Config{
			BufferMinutes:          cfg.Scheduling.BufferMinutes,
			MaxAlternatives:        cfg.Scheduling.MaxAlternatives,
			SuggestAlternatives:    cfg.Scheduling.SuggestAlternatives,
			AllowEmergencyOverride: cfg.Scheduling.AllowEmergencyOverride,
			EscalationAddress:      cfg.Scheduling.EscalationAddress,
		},
	)

	checkinSvc := checkinService.NewService(
		locationRepo,
		queueRepo,
		queueCounter,
		appointmentRepo,
		workflowSvc,
		appLogger,
		cfg.CheckIn.MinutesPerSlot,
	)

	// Middleware and handlers
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	authMiddleware := middleware.NewAuthMiddleware(jwtSvc)

	schedulingH := schedulingHandler.NewHandler(appointmentSvc)
	checkinH := checkinHandler.NewHandler(checkinSvc, eventSvc, m, appLogger)
	healthH := healthHandler.NewHandler(db, rdb)

	r := router.NewRouter(authMiddleware, schedulingH, checkinH, healthH, router.Config{
		RateLimit:     rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst:     cfg.RateLimit.Burst,
		MetricsPrefix: "scheduler_http",
	})
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		appLogger.Info("starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	appLogger.Info("server exited")
}
