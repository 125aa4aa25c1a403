// Package httpserver exposes the store and prediction engine to the
// maintenance dashboard over JSON HTTP.
package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/harborside/cranetrack/internal/model"
	"github.com/harborside/cranetrack/internal/predict"
	"github.com/harborside/cranetrack/internal/store"
)

// TriggerFunc starts a batch ingest run. The server calls it asynchronously;
// the run's outcome is recorded in ingest_runs, not in the HTTP response.
type TriggerFunc func(ctx context.Context)

// Server wires the HTTP routes to the store and engine.
type Server struct {
	store   store.Store
	engine  *predict.Engine
	trigger TriggerFunc
	limiter *rate.Limiter
	log     *zap.Logger
}

// New builds a server. triggerInterval is the minimum spacing between batch
// runs started over HTTP; trigger may be nil to disable POST /ingest.
func New(st store.Store, eng *predict.Engine, trigger TriggerFunc, triggerInterval time.Duration, log *zap.Logger) *Server {
	return &Server{
		store:   st,
		engine:  eng,
		trigger: trigger,
		limiter: rate.NewLimiter(rate.Every(triggerInterval), 1),
		log:     log,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /predict", s.handlePredict)
	mux.HandleFunc("POST /service-log", s.handleLogService)
	mux.HandleFunc("GET /service-log", s.handleListServices)
	mux.HandleFunc("DELETE /service-log/{id}", s.handleDeleteService)
	mux.HandleFunc("GET /tasks", s.handleListTasks)
	mux.HandleFunc("POST /ingest", s.handleTriggerIngest)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.Error("health check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePredict always answers 200 for a well-formed query; prediction
// failures travel in the result's error field so the dashboard can render
// them per task.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entityID := q.Get("entity_id")
	entityType := q.Get("entity_type")
	taskID := q.Get("task_id")
	if entityID == "" || entityType == "" || taskID == "" {
		writeError(w, http.StatusBadRequest, "entity_id, entity_type and task_id are required")
		return
	}

	p := s.engine.Predict(r.Context(), entityID, model.EntityType(entityType), taskID)
	writeJSON(w, http.StatusOK, p)
}

type serviceLogRequest struct {
	EntityID        string   `json:"entity_id"`
	EntityType      string   `json:"entity_type"`
	TaskID          string   `json:"task_id"`
	ServiceDate     string   `json:"service_date"`
	ServicedAtValue *float64 `json:"serviced_at_value,omitempty"`
	ServicedBy      string   `json:"serviced_by"`
	DurationHours   float64  `json:"duration_hours"`
}

func (s *Server) handleLogService(w http.ResponseWriter, r *http.Request) {
	var req serviceLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EntityID == "" || req.TaskID == "" {
		writeError(w, http.StatusBadRequest, "entity_id and task_id are required")
		return
	}
	entityType, err := model.ParseEntityType(req.EntityType)
	if err != nil {
		writeError(w, http.StatusBadRequest, "entity_type must be crane or spreader")
		return
	}
	serviceDate, err := time.Parse(time.RFC3339, req.ServiceDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "service_date must be RFC 3339")
		return
	}

	id, err := s.store.LogService(r.Context(), model.ServiceRecord{
		EntityID:        req.EntityID,
		EntityType:      entityType,
		TaskID:          req.TaskID,
		ServiceDate:     serviceDate,
		ServicedAtValue: req.ServicedAtValue,
		ServicedBy:      req.ServicedBy,
		DurationHours:   req.DurationHours,
	})
	if err != nil {
		s.log.Error("log service failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entityID := q.Get("entity_id")
	taskID := q.Get("task_id")
	entityType, err := model.ParseEntityType(q.Get("entity_type"))
	if entityID == "" || taskID == "" || err != nil {
		writeError(w, http.StatusBadRequest, "entity_id, entity_type and task_id are required")
		return
	}

	recs, err := s.store.ListServices(r.Context(), entityID, entityType, taskID)
	if err != nil {
		s.log.Error("list services failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	if recs == nil {
		recs = []model.ServiceRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleDeleteService(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	deleted, err := s.store.DeleteService(r.Context(), id)
	if err != nil {
		s.log.Error("delete service failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "no such service record")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.store.ListTasks(r.Context())
	if err != nil {
		s.log.Error("list tasks failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "storage failure")
		return
	}
	if tasks == nil {
		tasks = []model.TaskConfig{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// handleTriggerIngest starts a batch run in the background. The limiter
// keeps a dashboard refresh loop from stacking runs on top of each other;
// dedup in the store makes an extra run harmless but not free.
func (s *Server) handleTriggerIngest(w http.ResponseWriter, r *http.Request) {
	if s.trigger == nil {
		writeError(w, http.StatusNotFound, "ingest trigger not configured")
		return
	}
	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "a run was triggered too recently")
		return
	}

	go s.trigger(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
