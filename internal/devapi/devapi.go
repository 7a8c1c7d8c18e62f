// Package devapi is an in-memory stand-in for the restaurant API.
//
// It serves the three routes the dashboard uses and can be told to fail or
// slow down profile writes, which is how the rollback path is exercised
// locally.
package devapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/pders01/restodash/internal/models"
)

// RequestRecorder is told about every request served
type RequestRecorder interface {
	APIRequest(route string, status int)
}

// Faults controls injected failures and latency
type Faults struct {
	// FailWrites makes the next n profile writes fail with 500
	FailWrites int
	// AlwaysFail makes every profile write fail
	AlwaysFail bool
	// Latency delays every profile write
	Latency time.Duration
}

// Server holds the stub state
type Server struct {
	mu         sync.Mutex
	restaurant models.ManagedRestaurant
	registered []models.RegisterRestaurantRequest
	faults     Faults
	reads      int
	writes     int
	recorder   RequestRecorder
	logger     *slog.Logger
	metrics    http.Handler
	now        func() time.Time
}

// Option configures a Server
type Option func(*Server)

// WithRecorder counts served requests
func WithRecorder(r RequestRecorder) Option {
	return func(s *Server) {
		s.recorder = r
	}
}

// WithMetricsHandler mounts h at /metrics
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithFaults sets the initial fault injection
func WithFaults(f Faults) Option {
	return func(s *Server) {
		s.faults = f
	}
}

// New creates a stub API managing restaurant
func New(restaurant models.ManagedRestaurant, opts ...Option) *Server {
	s := &Server{
		restaurant: restaurant,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.restaurant.ID == "" {
		s.restaurant.ID = uuid.NewString()
	}
	if s.restaurant.CreatedAt.IsZero() {
		s.restaurant.CreatedAt = s.now().UTC()
		s.restaurant.UpdatedAt = s.restaurant.CreatedAt
	}
	return s
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.record)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/managed-restaurant", s.getManagedRestaurant)
	r.Put("/profile", s.updateProfile)
	r.Post("/restaurants", s.registerRestaurant)

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	return r
}

// SetFaults replaces the fault injection settings
func (s *Server) SetFaults(f Faults) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = f
}

// Faults returns the current fault injection settings
func (s *Server) Faults() Faults {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faults
}

// Restaurant returns the server-side state of the managed restaurant
func (s *Server) Restaurant() models.ManagedRestaurant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restaurant
}

// Registered returns the registrations received so far
func (s *Server) Registered() []models.RegisterRestaurantRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.RegisterRestaurantRequest, len(s.registered))
	copy(out, s.registered)
	return out
}

// Counts returns how many reads and profile writes were served
func (s *Server) Counts() (reads, writes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads, s.writes
}

func (s *Server) getManagedRestaurant(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.reads++
	restaurant := s.restaurant
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, restaurant)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := models.ValidateProfile(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	faults := s.faults
	fail := faults.AlwaysFail || faults.FailWrites > 0
	if faults.FailWrites > 0 {
		s.faults.FailWrites--
	}
	s.mu.Unlock()

	if faults.Latency > 0 {
		select {
		case <-time.After(faults.Latency):
		case <-r.Context().Done():
			return
		}
	}

	if fail {
		s.logger.Info("injected profile write failure", "request_id", middleware.GetReqID(r.Context()))
		writeError(w, http.StatusInternalServerError, "injected failure")
		return
	}

	s.mu.Lock()
	s.writes++
	s.restaurant = s.restaurant.WithProfile(req)
	s.restaurant.UpdatedAt = s.now().UTC()
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) registerRestaurant(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRestaurantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := models.ValidateRegistration(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	for _, existing := range s.registered {
		if strings.EqualFold(existing.Email, req.Email) {
			s.mu.Unlock()
			writeError(w, http.StatusConflict, "manager email already registered")
			return
		}
	}
	s.registered = append(s.registered, req)
	s.mu.Unlock()

	w.WriteHeader(http.StatusCreated)
}

// record counts every request by route pattern and status
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		if s.recorder != nil {
			s.recorder.APIRequest(route, status)
		}
		s.logger.Debug("request served",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
