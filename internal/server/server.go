package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"route-editor/internal/backend"
	"route-editor/internal/config"
	"route-editor/internal/database"
	"route-editor/internal/directions"
	"route-editor/internal/estimate"
	"route-editor/internal/geocoding"
	"route-editor/internal/handlers"
	"route-editor/internal/logging"
	"route-editor/internal/session"
)

// Server wraps the HTTP server and all dependencies
type Server struct {
	httpServer *http.Server
	handler    *handlers.Handler
	sessions   *session.Store
	db         *database.DB
	redis      *directions.RedisCache
	listener   net.Listener
	addr       string
	logger     *zap.Logger
}

// New creates and initializes a new server (does not start it)
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	logger = logging.OrNop(logger)
	s := &Server{addr: cfg.ServerAddr, logger: logger.Named("server")}

	db, err := openArchive(cfg, logger)
	if err != nil {
		return nil, err
	}
	s.db = db

	dirClient, err := s.directionsClient(ctx, cfg, logger)
	if err != nil {
		s.close()
		return nil, err
	}

	geocoder := geocoding.NewNominatimGeocoder(cfg.NominatimURL, logger)
	deps := session.Deps{
		Backend:   backend.NewHTTPClient(cfg.BackendURL, cfg.BackendTimeout(), logger),
		Estimator: estimate.NewEstimator(dirClient, cfg.Dwell(), logger),
		Archive:   db.Archive(),
		Logger:    logger,
	}
	if cfg.GeocodeMissing {
		deps.Geocoder = geocoder
	}
	s.sessions = session.NewStore(deps)

	s.handler = &handlers.Handler{
		Sessions: s.sessions,
		History:  db.Archive(),
		Geocoder: geocoder,
		DB:       db,
		Logger:   logger,
	}

	s.httpServer = &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("Server initialized",
		zap.String("directions", cfg.DirectionsProvider),
		zap.String("route_cache", cfg.RouteCache),
		zap.String("archive", cfg.ArchiveDriver),
		zap.Bool("geocode_missing", cfg.GeocodeMissing))
	return s, nil
}

func openArchive(cfg *config.Config, logger *zap.Logger) (*database.DB, error) {
	if cfg.ArchiveDriver == config.ArchivePostgres {
		db, err := database.OpenPostgres(cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize archive: %w", err)
		}
		return db, nil
	}

	path := cfg.SQLitePath
	if path == "" {
		var err error
		if path, err = database.GetDefaultDBPath(); err != nil {
			return nil, err
		}
	}
	db, err := database.OpenSQLite(path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize archive: %w", err)
	}
	return db, nil
}

// directionsClient builds the mapping provider wrapped in the configured cache
func (s *Server) directionsClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (directions.Client, error) {
	var client directions.Client
	switch cfg.DirectionsProvider {
	case config.ProviderGoogle:
		client = directions.NewGoogleClient("", cfg.GoogleAPIKey, cfg.DirectionsRatePerSec, logger)
	default:
		client = directions.NewOSRMClient(cfg.OSRMURL, cfg.DirectionsRatePerSec, logger)
	}

	switch cfg.RouteCache {
	case config.CacheRedis:
		cache, err := directions.NewRedisCache(ctx, &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.RouteCacheTTL())
		if err != nil {
			return nil, fmt.Errorf("failed to initialize route cache: %w", err)
		}
		s.redis = cache
		return directions.NewCachedClient(client, cache, logger), nil
	case config.CacheDatabase:
		cache := s.db.RouteCache(cfg.RouteCacheTTL())
		if removed, err := cache.Prune(ctx); err != nil {
			s.logger.Warn("Failed to prune route cache", zap.Error(err))
		} else if removed > 0 {
			s.logger.Info("Pruned expired routes", zap.Int64("removed", removed))
		}
		return directions.NewCachedClient(client, cache, logger), nil
	default:
		return client, nil
	}
}

// Handler returns the routed HTTP handler with middleware applied
func (s *Server) Handler() http.Handler {
	return loggingMiddleware(s.logger.Named("http"), corsMiddleware(setupRoutes(s.handler)))
}

// Start starts the server and returns the actual address (useful for random port)
func (s *Server) Start() (string, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = listener
	actualAddr := listener.Addr().String()
	s.logger.Info("Starting server", zap.String("addr", actualAddr))

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server error", zap.Error(err))
		}
	}()

	return actualAddr, nil
}

// Shutdown stops accepting requests, lets running edit pipelines finish and
// closes the stores
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Shutdown deadline reached with edit pipelines still running")
	}

	return s.close()
}

func (s *Server) close() error {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("Failed to close redis", zap.Error(err))
		}
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// setupRoutes configures all HTTP routes
func setupRoutes(handler *handlers.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", handler.HandleHealthCheck)
	mux.HandleFunc("GET /api/v1/address-search", handler.HandleAddressSearch)

	mux.HandleFunc("POST /api/v1/sessions", handler.HandleCreateSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}", handler.HandleGetSession)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", handler.HandleDeleteSession)
	mux.HandleFunc("POST /api/v1/sessions/{id}/drag/start", handler.HandleDragStart)
	mux.HandleFunc("POST /api/v1/sessions/{id}/drag/hover", handler.HandleDragHover)
	mux.HandleFunc("POST /api/v1/sessions/{id}/drag/drop", handler.HandleDragDrop)
	mux.HandleFunc("POST /api/v1/sessions/{id}/drag/cancel", handler.HandleDragCancel)
	mux.HandleFunc("POST /api/v1/sessions/{id}/move", handler.HandleMoveStop)
	mux.HandleFunc("POST /api/v1/sessions/{id}/reset", handler.HandleResetRoutes)

	mux.HandleFunc("GET /api/v1/history", handler.HandleListHistory)
	mux.HandleFunc("GET /api/v1/history/{id}", handler.HandleGetHistory)

	return mux
}

func loggingMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logger.Info("Request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", lrw.statusCode),
			zap.Duration("duration", time.Since(start)))
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Only allow localhost origins (local rendering surface and development)
		if origin == "" ||
			strings.HasPrefix(origin, "http://localhost:") ||
			strings.HasPrefix(origin, "http://127.0.0.1:") {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
