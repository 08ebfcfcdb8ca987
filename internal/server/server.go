package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nativebridge/internal/bridge"
	"github.com/GriffinCanCode/nativebridge/internal/host/ws"
	"github.com/GriffinCanCode/nativebridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/nativebridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/nativebridge/internal/infrastructure/monitoring"
)

const shutdownTimeout = 5 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	registry *bridge.Registry
	host     *ws.Host
	metrics  *monitoring.Metrics
	logger   *logging.Logger
	config   config.ServerConfig
	started  time.Time
}

// Deps are the collaborators the server exposes over HTTP.
type Deps struct {
	Registry *bridge.Registry
	Host     *ws.Host
	Metrics  *monitoring.Metrics
	Logger   *logging.Logger
}

// NewServer creates a new server instance. The host must already have the
// dispatcher installed.
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = monitoring.NewMetrics()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(monitoring.Middleware(metrics))
	router.Use(cors.New(corsConfig(cfg.AllowedOrigin)))
	if rl := (RateLimitConfig{RequestsPerSecond: cfg.RateLimit, Burst: cfg.RateBurst}); rl.Enabled() {
		logger.Info("Rate limiting enabled",
			zap.Float64("rps", rl.RequestsPerSecond),
			zap.Int("burst", rl.Burst),
		)
		router.Use(RateLimit(rl))
	}

	s := &Server{
		router:   router,
		registry: deps.Registry,
		host:     deps.Host,
		metrics:  metrics,
		logger:   logger.Named("http"),
		config:   cfg,
		started:  time.Now(),
	}

	router.GET("/", s.root)
	router.GET("/health", s.health)
	router.GET("/channels", s.channels)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/bridge", gin.WrapH(deps.Host))

	return s
}

// CheckOrigin returns the websocket origin check for allowed. An empty
// value accepts every origin.
func CheckOrigin(allowed string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if allowed == "" {
			return true
		}
		return r.Header.Get("Origin") == allowed
	}
}

func corsConfig(allowed string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Cache-Control"},
		MaxAge:       12 * time.Hour,
	}
	if allowed == "" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = []string{allowed}
	}
	return cfg
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully and tears
// down every websocket connection.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.host.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// hijacked websocket connections are not tracked by Shutdown
	s.host.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	<-errCh
	return nil
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":  "nativebridge",
		"bridge":   "/bridge",
		"channels": len(s.registry.Names()),
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"connections": s.host.Connections(),
		"uptime":      time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) channels(c *gin.Context) {
	list := s.registry.List()
	if list == nil {
		list = []bridge.ChannelInfo{}
	}
	c.JSON(http.StatusOK, gin.H{"channels": list})
}
