package invoice

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// DefaultMaxUploadSize is the largest accepted upload in bytes
const DefaultMaxUploadSize int64 = 20 << 20

// ServerConfig tunes the HTTP server
type ServerConfig struct {
	MaxUploadSize int64
	Version       string
}

// Server handles HTTP requests for invoice analysis
type Server struct {
	analyzer *Analyzer
	config   ServerConfig
	mux      *http.ServeMux
}

// NewServer creates a new Server with default mux
func NewServer(analyzer *Analyzer, config ServerConfig) *Server {
	return NewServerWithMux(analyzer, config, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(analyzer *Analyzer, config ServerConfig, mux *http.ServeMux) *Server {
	if config.MaxUploadSize <= 0 {
		config.MaxUploadSize = DefaultMaxUploadSize
	}
	s := &Server{
		analyzer: analyzer,
		config:   config,
		mux:      mux,
	}
	s.registerRoutes()
	return s
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// registerRoutes registers all routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /static/app.css", s.handleStaticCSS)
	s.mux.HandleFunc("GET /static/app.js", s.handleStaticJS)

	s.mux.HandleFunc("POST /api/invoices/analyze", s.handleAnalyzeInvoice)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	// Static HTML interface (register last as it's the catch-all)
	s.mux.HandleFunc("GET /index.html", s.handleIndex)
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.corsMiddleware(s.mux).ServeHTTP(w, r)
}
