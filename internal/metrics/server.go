package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/julienstroheker/sockwrench/internal/logging"
)

// Server is the optional HTTP server exposing /metrics and /healthz
type Server struct {
	server   *http.Server
	listener net.Listener
}

// Options configures the HTTP server
type Options struct {
	// Addr is the host:port to listen on
	Addr    string
	Metrics *Metrics

	// Logger receives one debug line per request; nil disables it
	Logger *logging.Logger
}

// NewServer binds the listening socket so address errors surface before the
// relay starts. Serving begins with Serve.
func NewServer(opts *Options) (*Server, error) {
	listener, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", HealthHandler)
	mux.Handle("/metrics", opts.Metrics.Handler())

	return &Server{
		server: &http.Server{
			Handler:           logRequests(opts.Logger, mux),
			ReadHeaderTimeout: 10 * time.Second,
		},
		listener: listener,
	}, nil
}

// Addr returns the address the server listens on
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve handles requests until Shutdown or Close. It returns nil after a
// graceful shutdown.
func (s *Server) Serve() error {
	err := s.server.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Close immediately closes the server
func (s *Server) Close() error {
	return s.server.Close()
}

// HealthHandler answers GET with 200 OK while the process is running
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.WriteHeader(http.StatusOK)
	// Ignore write error for health check as status is already set
	_, _ = w.Write([]byte("OK"))
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter

	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests logs each scrape or health probe at debug level
func logRequests(logger *logging.Logger, next http.Handler) http.Handler {
	if logger == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		logger.Debug("Metrics request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.String("remote_addr", r.RemoteAddr),
			logging.Int("status", rec.status),
			logging.Duration("duration", time.Since(start)))
	})
}
