// Package httpserver exposes the guest entry operations as HTML form
// endpoints.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/duncanmcclean/guest-entries/internal/logging"
	"github.com/duncanmcclean/guest-entries/internal/server/guestentries"
	"github.com/gorilla/mux"
)

// Submitter runs the guest entry operations.
type Submitter interface {
	Create(ctx context.Context, sub *guestentries.Submission) (*guestentries.Result, error)
	Update(ctx context.Context, sub *guestentries.Submission) (*guestentries.Result, error)
	Delete(ctx context.Context, sub *guestentries.Submission) (*guestentries.Result, error)
}

type Options struct {
	RoutePrefix       string
	MaxUploadBytes    int64
	ReadHeaderTimeout time.Duration
}

type HTTPServer struct {
	address   string
	logger    logging.Logger
	submitter Submitter
	opts      Options
}

func NewHTTPServer(address string, l logging.Logger, s Submitter, opts Options) *HTTPServer {
	return &HTTPServer{
		address:   address,
		logger:    l.With("module", "http_server"),
		submitter: s,
		opts:      opts,
	}
}

// Handler builds the router with the guest entry routes under the prefix.
func (s *HTTPServer) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.withRequestLogging)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	g := r
	if prefix := strings.Trim(s.opts.RoutePrefix, "/"); prefix != "" {
		g = r.PathPrefix("/" + prefix).Subrouter()
	}
	g.HandleFunc("/create", s.handle(s.submitter.Create)).Methods(http.MethodPost)
	g.HandleFunc("/update", s.handle(s.submitter.Update)).Methods(http.MethodPost)
	g.HandleFunc("/delete", s.handle(s.submitter.Delete)).Methods(http.MethodDelete)
	g.HandleFunc("/delete", s.handleMethodOverride(http.MethodDelete, s.submitter.Delete)).Methods(http.MethodPost)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.opts.ReadHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
