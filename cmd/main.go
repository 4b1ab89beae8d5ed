package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	redisbus "github.com/sagelearn/engage-backend/internal/clients/redis"
	"github.com/sagelearn/engage-backend/internal/clients/scoring"
	"github.com/sagelearn/engage-backend/internal/db"
	"github.com/sagelearn/engage-backend/internal/http/handlers"
	"github.com/sagelearn/engage-backend/internal/http/middleware"
	"github.com/sagelearn/engage-backend/internal/pkg/keylock"
	"github.com/sagelearn/engage-backend/internal/platform/envutil"
	"github.com/sagelearn/engage-backend/internal/platform/logger"
	"github.com/sagelearn/engage-backend/internal/repos"
	"github.com/sagelearn/engage-backend/internal/server"
	"github.com/sagelearn/engage-backend/internal/services"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecret := envutil.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	port := envutil.GetEnv("PORT", "8080", log)
	oracleBaseURL := envutil.GetEnv("SCORING_ORACLE_URL", "", log)
	oracleTimeout := envutil.GetEnvAsDuration("SCORING_ORACLE_TIMEOUT", 5*time.Second, log)
	policyFile := envutil.GetEnv("POLICY_FILE", "", log)
	extraOrigins := envutil.GetEnv("CORS_EXTRA_ORIGINS", "", log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	sessionRepo := repos.NewSessionRepo(thePG, log)
	sampleRepo := repos.NewEngagementSampleRepo(thePG, log)
	interventionRepo := repos.NewInterventionRepo(thePG, log)
	statRepo := repos.NewPlatformStatRepo(thePG, log)
	resourceRepo := repos.NewLearningResourceRepo(thePG, log)

	// Decision policy, with env overrides on top of any policy file.
	policy := services.DefaultPolicy()
	if policyFile != "" {
		policy, err = services.LoadPolicy(policyFile)
		if err != nil {
			log.Warn("Policy file rejected, using defaults", "path", policyFile, "error", err)
			policy = services.DefaultPolicy()
		}
	}
	policy.CooldownSeconds = envutil.GetEnvAsInt("INTERVENTION_COOLDOWN_SECONDS", policy.CooldownSeconds, log)
	policy.LowEngagementThreshold = envutil.GetEnvAsFloat("LOW_ENGAGEMENT_THRESHOLD", policy.LowEngagementThreshold, log)
	policy.BoredomThreshold = envutil.GetEnvAsFloat("BOREDOM_THRESHOLD", policy.BoredomThreshold, log)

	// Optional externals
	var oracle scoring.Oracle
	if oracleBaseURL != "" {
		client, err := scoring.New(scoring.Options{BaseURL: oracleBaseURL, Timeout: oracleTimeout})
		if err != nil {
			log.Warn("Could not init scoring oracle client", "error", err)
		} else {
			oracle = client
		}
	}
	var bus redisbus.EngagementBus
	if b, err := redisbus.NewEngagementBus(log); err != nil {
		log.Warn("Redis engagement bus unavailable", "error", err)
	} else {
		bus = b
		defer bus.Close()
	}

	// Services
	log.Info("Setting up Services from main...")
	locks := keylock.New()
	statsService := services.NewStatsService(thePG, log, sessionRepo, statRepo)
	sessionService := services.NewSessionService(thePG, log, sessionRepo, sampleRepo, interventionRepo, statsService, locks)
	telemetryService := services.NewTelemetryService(thePG, log, sessionRepo, sampleRepo, oracle, bus, policy)
	interventionService := services.NewInterventionService(thePG, log, sessionRepo, sampleRepo, interventionRepo, resourceRepo, oracle, policy, locks)

	// Handlers
	healthHandler := handlers.NewHealthHandler()
	sessionHandler := handlers.NewSessionHandler(log, sessionService, statsService)
	engagementHandler := handlers.NewEngagementHandler(log, telemetryService)
	interventionHandler := handlers.NewInterventionHandler(log, interventionService)
	resourceHandler := handlers.NewResourceHandler(log, resourceRepo)
	authMiddleware := middleware.NewAuthMiddleware(log, jwtSecret)

	router := server.NewRouter(server.RouterConfig{
		Log:                 log,
		AuthMiddleware:      authMiddleware,
		HealthHandler:       healthHandler,
		SessionHandler:      sessionHandler,
		EngagementHandler:   engagementHandler,
		InterventionHandler: interventionHandler,
		ResourceHandler:     resourceHandler,
		ExtraOrigins:        splitOrigins(extraOrigins),
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// Dev aid: mirror the live engagement channel into the log.
	if bus != nil && envutil.GetEnv("ENGAGEMENT_TAP", "", log) != "" {
		if err := bus.Subscribe(gctx, func(update redisbus.EngagementUpdate) {
			log.Debug("Engagement update",
				"learner_id", update.LearnerID, "session_id", update.SessionID,
				"score", update.Score, "emotion", update.Emotion)
		}); err != nil {
			log.Warn("Engagement tap subscribe failed", "error", err)
		}
	}

	g.Go(func() error {
		log.Info("HTTP server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("Server stopped")
}

func splitOrigins(raw string) []string {
	var out []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}
