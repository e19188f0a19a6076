package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/nao1215/imagefinder/internal/crawler"
	"github.com/nao1215/imagefinder/internal/model"
	"github.com/nao1215/imagefinder/internal/pipeline"
)

const (
	// contentType is the response media type of every endpoint.
	contentType = "text/json"

	// DefaultShutdownTimeout bounds how long in-flight requests may run
	// after shutdown starts.
	DefaultShutdownTimeout = 10 * time.Second

	readHeaderTimeout = 10 * time.Second
)

// CrawlerFactory builds the crawler for one request's seed.
type CrawlerFactory func(seed string) (pipeline.Crawler, error)

// Server serves the crawl endpoint.
type Server struct {
	newCrawler      CrawlerFactory
	saver           pipeline.ReportSaver
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for request and crawl events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithSaver archives every successful crawl through saver.
func WithSaver(saver pipeline.ReportSaver) Option {
	return func(s *Server) {
		s.saver = saver
	}
}

// WithShutdownTimeout sets how long Serve waits for in-flight requests.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// New creates a Server that crawls with crawlers built by newCrawler.
func New(newCrawler CrawlerFactory, opts ...Option) *Server {
	s := &Server{
		newCrawler:      newCrawler,
		logger:          slog.Default(),
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/main", s.handleMain)
	return mux
}

// ListenAndServe listens on addr and serves until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled. In-flight crawls get the
// shutdown timeout to finish; after that their contexts are cancelled and
// they return partial results.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	baseCtx, cancelRequests := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRequests()

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	// Crawls ignore connection close, so cancel them once the deadline hits.
	stop := context.AfterFunc(shutdownCtx, cancelRequests)
	defer stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = srv.Close() //nolint:errcheck
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}

func (s *Server) handleMain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	seed := strings.TrimSpace(r.FormValue("url"))
	if seed == "" {
		writeError(w, http.StatusBadRequest, "missing url parameter")
		return
	}

	s.logger.Info("crawl requested", "seed", seed, "remote", r.RemoteAddr)

	c, err := s.newCrawler(seed)
	if err != nil {
		s.logger.Error("failed to build crawler", "seed", seed, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	steps := []pipeline.Step{pipeline.NewCrawlStep(c)}
	if s.saver != nil {
		steps = append(steps, pipeline.NewSaveStep(s.saver, s.logger))
	}
	p := pipeline.New(pipeline.WithLogger(s.logger), pipeline.WithContinueOnError(true))
	p.AddSteps(steps...)

	report := model.NewCrawlReport(seed)
	err = p.Execute(r.Context(), report)
	switch {
	case err == nil:
	case errors.Is(err, crawler.ErrInvalidSeed):
		writeError(w, http.StatusBadRequest, report.Error)
		return
	case errors.Is(err, crawler.ErrSeedUnreachable):
		writeError(w, http.StatusBadGateway, report.Error)
		return
	case pipeline.StepFailed(err, pipeline.CrawlStepName):
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	default:
		s.logger.Warn("serving unarchived result", "seed", seed, "error", err)
	}

	s.logger.Info("crawl finished",
		"seed", seed,
		"images", len(report.Result.Images),
		"favicons", len(report.Result.Favicons),
		"timed_out", report.Stats.TimedOut,
	)
	writeJSON(w, http.StatusOK, report.Result.Normalize())
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
