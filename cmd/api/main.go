package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"supamon-backend/internal/config"
	"supamon-backend/internal/credentials"
	"supamon-backend/internal/dashboard"
	"supamon-backend/internal/health"
	"supamon-backend/internal/management"
	"supamon-backend/internal/middleware"
	"supamon-backend/internal/postgrest"
	"supamon-backend/internal/projects"
	"supamon-backend/internal/repository"
	"supamon-backend/internal/secrets"
	"supamon-backend/pkg/utils"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	utils.ConfigureLogging(cfg.LogLevel, cfg.LogFormat)
	logrus.Info("Starting Supamon API server")

	sentryEnv := cfg.SentryEnvironment
	if sentryEnv == "" {
		sentryEnv = cfg.Environment
	}
	flush, sentryEnabled := utils.InitSentry(cfg.SentryDSN, sentryEnv)
	defer flush()

	store, err := secrets.Open(cfg)
	if err != nil {
		logrus.Fatalf("Failed to open secure store (%s): %v", cfg.StoreDriver, err)
	}
	defer func() {
		utils.HandleError(store.Close(), "secrets.Close")
	}()
	logrus.WithField("driver", cfg.StoreDriver).Info("Secure store ready")

	svc, err := buildService(cfg, store, prometheus.DefaultRegisterer)
	if err != nil {
		logrus.Fatalf("Failed to initialize services: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	limiter := middleware.NewIPRateLimiter(rate.Every(time.Second/20), 40)
	limiter.StartCleanup(ctx, 5*time.Minute)

	originCheck := middleware.WebSocketOriginCheck(cfg.CORSOrigins, cfg.IsDevelopment())
	router := newRouter(cfg, routerDeps{
		health:   health.NewHandler(store),
		projects: projects.NewHandler(svc, projects.WithOriginCheck(originCheck)),
		limiter:  limiter,
		metrics:  promhttp.Handler(),
		sentry:   sentryEnabled,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.Infof("Server listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	utils.HandleError(srv.Shutdown(shutdownCtx), "server.Shutdown")
}

// buildService wires the repositories, the credential validator and the
// dashboard aggregator into the project service.
func buildService(cfg *config.Config, store repository.SecretStore, reg prometheus.Registerer) (*projects.Service, error) {
	projectRepo := repository.NewProjectRepository(store, cfg.StoreNamespace)
	ruleRepo := repository.NewRuleRepository(store, cfg.StoreNamespace)

	validator, err := credentials.NewValidator(cfg.ProviderDomain, cfg.ProbeTable, postgrest.WithTimeout(cfg.UpstreamTimeout))
	if err != nil {
		return nil, err
	}

	mgmt, err := management.NewClient(cfg.ManagementAPIURL, management.WithRate(cfg.ManagementRate, 2))
	if err != nil {
		return nil, err
	}

	agg := dashboard.New(dashboard.Config{
		UsersTable:       cfg.UsersTable,
		ActivityLimit:    cfg.ActivityLimit,
		MetricsPrincipal: cfg.MetricsPrincipal,
		SourceTimeout:    cfg.UpstreamTimeout,
	},
		dashboard.WithManagementClient(mgmt),
		dashboard.WithMetrics(dashboard.NewMetrics(reg)),
	)

	return projects.NewService(projectRepo, ruleRepo, validator, agg), nil
}

type routerDeps struct {
	health   *health.Handler
	projects *projects.Handler
	limiter  *middleware.IPRateLimiter
	metrics  http.Handler
	sentry   bool
}

func newRouter(cfg *config.Config, deps routerDeps) *gin.Engine {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	} else if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	if deps.sentry {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true, Timeout: 2 * time.Second}))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(cors.New(middleware.SecureCORSConfig(cfg.CORSOrigins, cfg.IsDevelopment())))
	router.Use(middleware.SecurityHeaders(cfg.IsDevelopment()))
	router.Use(middleware.RequestSizeLimit(cfg.MaxRequestBytes))
	if deps.limiter != nil {
		router.Use(middleware.GeneralRateLimit(deps.limiter))
	}

	deps.health.RegisterRoutes(router)
	if deps.metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.metrics))
	}

	api := router.Group("/api/v1")
	deps.projects.RegisterRoutes(api, router)

	return router
}
