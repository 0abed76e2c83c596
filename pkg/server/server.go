// Package server exposes the rollup engine and tracker over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/entrhq/pagetrail/pkg/config"
	"github.com/entrhq/pagetrail/pkg/llm"
	"github.com/entrhq/pagetrail/pkg/logging"
	"github.com/entrhq/pagetrail/pkg/notify"
	"github.com/entrhq/pagetrail/pkg/rollup"
	"github.com/entrhq/pagetrail/pkg/tracker"
	"github.com/entrhq/pagetrail/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	maxJSONBody = 4 << 20
	maxHTMLBody = 16 << 20

	defaultHeartbeat = 15 * time.Second
)

// Timeline is the read and delete side of the rollup engine.
type Timeline interface {
	GetLevel(ctx context.Context, level int) ([]types.Node, error)
	Pages(ctx context.Context) ([]types.Node, error)
	DeletePage(ctx context.Context, id string) error
}

// Recorder accepts page visits and tab switches.
type Recorder interface {
	Record(ctx context.Context, rec types.PageRecord) (types.Node, error)
	Activate(ctx context.Context, tabID int, url string) (tracker.Visit, error)
	Deactivate(ctx context.Context) (tracker.Visit, error)
}

// Server routes HTTP requests to the engine, tracker and notification hub.
type Server struct {
	timeline  Timeline
	recorder  Recorder
	activity  llm.ActivitySummarizer
	hub       *notify.Hub
	tracking  *config.TrackingSection
	save      func() error
	gatherer  prometheus.Gatherer
	logger    *logging.Logger
	now       func() time.Time
	heartbeat time.Duration

	router chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithHub enables the notification stream.
func WithHub(h *notify.Hub) Option {
	return func(s *Server) { s.hub = h }
}

// WithActivitySummarizer enables POST /v1/pages/summary.
func WithActivitySummarizer(a llm.ActivitySummarizer) Option {
	return func(s *Server) { s.activity = a }
}

// WithTracking exposes the tracking section at /v1/settings. save persists
// changes and may be nil.
func WithTracking(section *config.TrackingSection, save func() error) Option {
	return func(s *Server) {
		s.tracking = section
		s.save = save
	}
}

// WithGatherer serves the registry at /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLogger sets the request logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithClock overrides the time source used for captures.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithHeartbeat sets the keep-alive interval of the notification stream.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

// New builds the router.
func New(timeline Timeline, recorder Recorder, opts ...Option) *Server {
	s := &Server{
		timeline:  timeline,
		recorder:  recorder,
		logger:    logging.NewNop(),
		now:       time.Now,
		heartbeat: defaultHeartbeat,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/pages", func(r chi.Router) {
			r.Get("/", s.handleListPages)
			r.Post("/", s.handleIngest)
			r.Delete("/{id}", s.handleDeletePage)
			if s.activity != nil {
				r.Post("/summary", s.handleSummarizePages)
			}
		})
		r.Post("/capture", s.handleCapture)
		r.Get("/levels/{level}", s.handleGetLevel)
		r.Post("/tabs/activate", s.handleActivate)

		if s.tracking != nil {
			r.Get("/settings", s.handleGetSettings)
			r.Put("/settings", s.handlePutSettings)
		}
		if s.hub != nil {
			r.Get("/notifications", s.handleNotifications)
		}
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debugf("%s %s -> %d (%s) [%s]", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Millisecond), middleware.GetReqID(r.Context()))
	})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, rollup.ErrInvalidLevel):
		return http.StatusBadRequest
	case errors.Is(err, rollup.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, rollup.ErrStoreUnavailable), errors.Is(err, rollup.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, llm.ErrNoCredential):
		return http.StatusServiceUnavailable
	case errors.Is(err, llm.ErrRequestFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Errorf("%s %s failed: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v); err != nil {
		badRequest(w, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
