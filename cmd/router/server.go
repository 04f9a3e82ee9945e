// Package main wires the router's process: config, logging, the core
// dispatch subsystems, and the HTTP/metrics servers.
package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smart-router/router/api/handlers"
	"github.com/smart-router/router/config"
	"github.com/smart-router/router/internal/apikeyregistry"
	"github.com/smart-router/router/internal/dispatcher"
	"github.com/smart-router/router/internal/metrics"
	"github.com/smart-router/router/internal/modelregistry"
	"github.com/smart-router/router/internal/profile"
	"github.com/smart-router/router/internal/requestlog"
	"github.com/smart-router/router/internal/scoring"
	"github.com/smart-router/router/internal/selector"
	"github.com/smart-router/router/internal/server"
	"github.com/smart-router/router/internal/telemetry"
)

// Server owns the router process's whole lifecycle: the core dispatch
// subsystems (profile store, model registry, provider adapters), the
// client-facing HTTP handlers built around them, and the HTTP/metrics
// listeners and hot-reload manager that front them.
type Server struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	otel       *telemetry.Providers
	db         *gorm.DB

	httpManager    *server.Manager
	metricsManager *server.Manager

	profiles  *profile.Store
	models    *modelregistry.Registry
	apiKeys   *apikeyregistry.Registry
	dispatch  *dispatcher.Dispatcher
	envMap    map[string]string

	healthHandler  *handlers.HealthHandler
	chatHandler    *handlers.ChatHandler
	modelsHandler  *handlers.ModelsHandler
	apiKeyHandler  *handlers.APIKeyHandler

	metricsCollector *metrics.Collector

	hotReloadManager *config.HotReloadManager
	configAPIHandler *config.ConfigAPIHandler

	wg sync.WaitGroup
}

// NewServer builds a Server around an already-loaded config. otel and db
// may be nil (telemetry/request-log persistence are both optional: see
// Start, which falls back to a no-op request-log sink when db is nil).
func NewServer(cfg *config.Config, configPath string, logger *zap.Logger, otelProviders *telemetry.Providers, db *gorm.DB) *Server {
	return &Server{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		otel:       otelProviders,
		db:         db,
	}
}

// Start brings every subsystem up: metrics collector, the core dispatch
// pipeline, client-facing handlers, the hot-reload manager, and finally
// the HTTP and metrics listeners.
func (s *Server) Start() error {
	s.metricsCollector = metrics.NewCollector("smart_router", s.logger)

	if err := s.initCore(); err != nil {
		return fmt.Errorf("failed to init core: %w", err)
	}

	if err := s.initHandlers(); err != nil {
		return fmt.Errorf("failed to init handlers: %w", err)
	}

	if err := s.initHotReloadManager(); err != nil {
		return fmt.Errorf("failed to init hot reload manager: %w", err)
	}

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("all servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("hot_reload_enabled", s.configPath != ""),
	)

	return nil
}

// initCore constructs the profile store, model registry, provider adapter
// registry, API-key registry, request-log sink, and the dispatcher that
// ties them together.
func (s *Server) initCore() error {
	profileStorePath := s.cfg.Dispatcher.ProfileStorePath
	store, err := profile.Open(profileStorePath, s.logger)
	if err != nil {
		return fmt.Errorf("failed to open profile store %q: %w", profileStorePath, err)
	}
	s.profiles = store

	s.models = modelregistry.New(modelregistry.DefaultModels(), modelregistry.DefaultAliases())
	s.apiKeys = apikeyregistry.New()
	s.envMap = dispatcher.DefaultEnvMap()

	var reqLog requestlog.Sink = requestlog.NoopSink{}
	if s.db != nil {
		gormSink, err := requestlog.NewGormSink(s.db, s.logger)
		if err != nil {
			s.logger.Warn("request log sink unavailable, falling back to no-op", zap.Error(err))
		} else {
			reqLog = gormSink
		}
	}

	s.dispatch = dispatcher.New(dispatcher.Options{
		Registry:      dispatcher.NewDefaultRegistry(),
		Models:        s.models,
		Profiles:      s.profiles,
		ScoringConfig: scoring.DefaultConfig(),
		SelectorConfig: func() selector.Config {
			return toSelectorConfig(s.cfg.Selector)
		},
		EnvMap:     s.envMap,
		APIKeys:    s.apiKeys,
		RequestLog: reqLog,
		Metrics:    s.metricsCollector,
		Logger:     s.logger,
	})

	s.logger.Info("core dispatch pipeline initialized",
		zap.Int("models", len(s.models.GetAllModels())),
		zap.Int("profiles", len(s.profiles.ListAllProfiles())),
	)
	return nil
}

// initHandlers builds the client-facing HTTP handlers around the core.
func (s *Server) initHandlers() error {
	s.healthHandler = handlers.NewHealthHandler(s.logger).WithRouterCounts(
		func() int { return len(s.profiles.GetAvailableProviders(s.envMap)) },
		func() int { return len(s.profiles.ListAllProfiles()) },
	)
	s.chatHandler = handlers.NewChatHandler(s.dispatch, s.logger)
	s.modelsHandler = handlers.NewModelsHandler(s.models, s.profiles, s.envMap, s.logger)
	s.apiKeyHandler = handlers.NewAPIKeyHandler(s.apiKeys, s.logger)

	s.logger.Info("handlers initialized")
	return nil
}

// initHotReloadManager wires the config hot-reload manager and its HTTP
// admin API.
func (s *Server) initHotReloadManager() error {
	opts := []config.HotReloadOption{
		config.WithHotReloadLogger(s.logger),
	}
	if s.configPath != "" {
		opts = append(opts, config.WithConfigPath(s.configPath))
	}

	s.hotReloadManager = config.NewHotReloadManager(s.cfg, opts...)

	s.hotReloadManager.OnChange(func(change config.ConfigChange) {
		s.logger.Info("configuration changed",
			zap.String("path", change.Path),
			zap.String("source", change.Source),
			zap.Bool("requires_restart", change.RequiresRestart),
		)
	})

	s.hotReloadManager.OnReload(func(oldConfig, newConfig *config.Config) {
		s.logger.Info("configuration reloaded")
		s.cfg = newConfig
	})

	ctx := context.Background()
	if err := s.hotReloadManager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start hot reload manager: %w", err)
	}

	s.configAPIHandler = config.NewConfigAPIHandler(s.hotReloadManager)
	return nil
}

// startHTTPServer registers every route and brings the listener up.
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	mux.HandleFunc("/v1/chat/completions", s.chatHandler.HandleCompletion)
	mux.HandleFunc("/v1/models", s.modelsHandler.HandleList)

	mux.HandleFunc("/api/v1/keys", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			s.apiKeyHandler.HandleList(w, r)
		case http.MethodPost:
			s.apiKeyHandler.HandleCreate(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/keys/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := r.URL.Path[len("/api/v1/keys/"):]
		s.apiKeyHandler.HandleRevoke(w, r, id)
	})

	adminMux := http.NewServeMux()
	if s.configAPIHandler != nil {
		s.configAPIHandler.RegisterRoutes(adminMux)
		s.logger.Info("configuration API registered")
	}
	mux.Handle("/api/v1/config", JWTAuth(s.cfg.Admin.JWTSecret, nil, s.logger)(adminMux))
	mux.Handle("/api/v1/config/", JWTAuth(s.cfg.Admin.JWTSecret, nil, s.logger)(adminMux))

	// Client authentication is the dispatcher's own optional Bearer
	// sk-sr-... check, not the static X-API-Key scheme
	// APIKeyAuth implements — that middleware has no populated key set in
	// this deployment and is left unwired here.
	handler := Chain(mux,
		Recovery(s.logger),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		OTelTracing(),
		CORS(s.cfg.Server.CORSOrigins),
		RateLimiter(context.Background(), float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
		RequestID(),
		SecurityHeaders(),
	)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     120 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// startMetricsServer brings up the Prometheus /metrics listener.
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// WaitForShutdown blocks on the HTTP manager's signal handling, then runs
// Shutdown.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown tears every subsystem down in reverse dependency order.
func (s *Server) Shutdown() {
	s.logger.Info("starting graceful shutdown")

	ctx := context.Background()

	if s.hotReloadManager != nil {
		if err := s.hotReloadManager.Stop(); err != nil {
			s.logger.Error("hot reload manager shutdown error", zap.Error(err))
		}
	}

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}

	if s.otel != nil {
		if err := s.otel.Shutdown(ctx); err != nil {
			s.logger.Error("telemetry shutdown error", zap.Error(err))
		}
	}

	s.wg.Wait()
	s.logger.Info("graceful shutdown completed")
}
