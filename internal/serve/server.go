package serve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hupe1980/filaserve/internal/version"
)

// HealthPath answers liveness probes without touching the serving directory.
const HealthPath = "/_filaserve/healthz"

// Server serves a single directory over HTTP.
type Server struct {
	dir     string
	mime    map[string]string
	logger  *slog.Logger
	onServe func(net.Addr)

	engine *gin.Engine
	http   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithMIMEType adds or replaces a content-type override for ext (".wasm").
func WithMIMEType(ext, contentType string) Option {
	return func(s *Server) {
		s.mime[ext] = contentType
	}
}

// WithLogger sets the logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithOnServe registers a hook called once the listener is bound, right
// before connections are accepted.
func WithOnServe(fn func(net.Addr)) Option {
	return func(s *Server) {
		s.onServe = fn
	}
}

// New creates a Server for dir.
func New(dir string, opts ...Option) *Server {
	s := &Server{
		dir:    dir,
		mime:   maps.Clone(DefaultMIMETypes),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(s.logger), mimeOverride(s.mime))

	engine.GET(HealthPath, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.GetInfo().Version})
	})

	files := http.FileServer(http.Dir(dir))
	engine.NoRoute(func(c *gin.Context) {
		c.Header("Server", version.GetInfo().ServerHeader())
		c.Header("Cache-Control", "no-cache")
		files.ServeHTTP(c.Writer, c.Request)
	})

	s.engine = engine
	s.http = &http.Server{
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the HTTP handler serving the directory.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Serve accepts connections on ln until Shutdown is called. A shutdown is
// reported as a nil error.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("serving", slog.String("dir", s.dir), slog.String("addr", ln.Addr().String()))

	if s.onServe != nil {
		s.onServe(ln.Addr())
	}

	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving %s: %w", s.dir, err)
	}

	return nil
}

// Shutdown stops accepting connections and unblocks Serve. Requests still
// in flight when ctx expires are abandoned.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return s.http.Close()
	}

	return err
}

// requestLogger logs every request at debug level.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Debug("request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}
