// Package httpapi exposes the dispatcher over HTTP.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/R3E-Network/scoring_api/internal/api"
	"github.com/R3E-Network/scoring_api/internal/errors"
	"github.com/R3E-Network/scoring_api/internal/httputil"
	"github.com/R3E-Network/scoring_api/internal/logging"
	"github.com/R3E-Network/scoring_api/internal/metrics"
	"github.com/R3E-Network/scoring_api/internal/middleware"
)

// DefaultMaxBodyBytes caps request bodies when Config leaves it unset.
const DefaultMaxBodyBytes = 1 << 20

// DefaultRateIdle is how long an unseen client keeps its rate limiter.
const DefaultRateIdle = 5 * time.Minute

// Dispatcher runs one decoded method request.
type Dispatcher interface {
	Dispatch(ctx context.Context, body any, rc *api.Context) (any, error)
}

// HealthChecker reports whether the cache backend is reachable.
type HealthChecker interface {
	EnsureConnected(ctx context.Context) error
}

// Config wires the router.
type Config struct {
	Dispatcher Dispatcher
	Health     HealthChecker
	Logger     *logging.Logger

	MaxBodyBytes   int64
	AllowedOrigins []string
	// RateLimit is requests per second per client address; zero disables it.
	RateLimit int
	RateBurst int
	// RateIdle evicts limiters of clients unseen for this long.
	RateIdle time.Duration
}

type server struct {
	dispatcher Dispatcher
	health     HealthChecker
	logger     *logging.Logger
	maxBody    int64
}

// NewHandler builds the full HTTP handler: routes plus middleware.
// Background work started for the handler stops when ctx is done.
func NewHandler(ctx context.Context, cfg Config) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	s := &server{
		dispatcher: cfg.Dispatcher,
		health:     cfg.Health,
		logger:     cfg.Logger,
		maxBody:    cfg.MaxBodyBytes,
	}

	r := mux.NewRouter()
	r.Use(middleware.MetricsMiddleware())
	r.HandleFunc("/method", s.method).Methods(http.MethodPost)
	r.HandleFunc("/method/", s.method).Methods(http.MethodPost)
	r.HandleFunc("/health", s.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusNotFound, "")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "")
	})

	var h http.Handler = r
	if cfg.RateLimit > 0 {
		if cfg.RateIdle <= 0 {
			cfg.RateIdle = DefaultRateIdle
		}
		rl := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst, cfg.Logger)
		rl.StartCleanup(ctx, cfg.RateIdle)
		h = rl.Handler(h)
	}
	if len(cfg.AllowedOrigins) > 0 {
		h = middleware.NewCORSMiddleware(cfg.AllowedOrigins).Handler(h)
	}
	return middleware.NewTracingMiddleware(cfg.Logger).Handler(h)
}

var errNotObject = stderrors.New("request body must be a JSON object")

// decodeBody parses exactly one JSON object. Numbers stay json.Number so
// that phone numbers keep their literal form.
func decodeBody(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, stderrors.New("unexpected data after JSON value")
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return obj, nil
}

// methodLabel reads the method name for metrics even when the envelope
// does not validate.
func methodLabel(data []byte) string {
	if !gjson.ValidBytes(data) {
		return ""
	}
	label := gjson.GetBytes(data, "method")
	switch label.String() {
	case api.MethodOnlineScore, api.MethodClientsInterests:
		return label.String()
	case "":
		return ""
	default:
		return "other"
	}
}

func (s *server) method(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rc := &api.Context{RequestID: logging.GetTraceID(ctx)}

	data, err := httputil.ReadAllStrict(r.Body, s.maxBody)
	if err != nil {
		s.finish(w, r, rc, "", nil, errors.BadRequest(err))
		return
	}
	label := methodLabel(data)

	body, err := decodeBody(data)
	if err != nil {
		s.finish(w, r, rc, label, nil, errors.BadRequest(err))
		return
	}

	response, err := s.dispatcher.Dispatch(ctx, body, rc)
	s.finish(w, r, rc, label, response, err)
}

func (s *server) finish(w http.ResponseWriter, r *http.Request, rc *api.Context, label string, response any, err error) {
	ctx := logging.WithLogin(r.Context(), rc.Login)
	entry := s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"method_name": rc.Method,
		"has":         rc.Has,
		"nclients":    rc.NClients,
	})

	if err == nil {
		metrics.RecordDispatch(label, http.StatusOK)
		entry.WithField("code", http.StatusOK).Info("method handled")
		httputil.WriteResult(w, response)
		return
	}

	se := errors.GetServiceError(err)
	metrics.RecordDispatch(label, se.HTTPStatus)
	entry = entry.WithField("code", se.HTTPStatus)
	if se.HTTPStatus >= http.StatusInternalServerError {
		entry.WithError(err).Error("unexpected error")
	} else {
		entry.WithError(err).Info("method rejected")
	}
	httputil.WriteError(w, se.HTTPStatus, se.Message)
}

func (s *server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.EnsureConnected(r.Context()); err != nil {
			s.logger.WithContext(r.Context()).WithError(err).Warn("health check failed")
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "code": http.StatusServiceUnavailable})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok", "code": http.StatusOK})
}
