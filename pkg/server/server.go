// Package server is an in-memory replay of the analysis service REST
// surface, used for offline development of the dashboard client and as
// the fixture backend in client tests. It serves stored collections and
// raw counts only; all aggregation stays client-side.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/reveris/aetherwatch/pkg/domain"
)

// Store holds the replayed collections. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	nextJobID int64
	healthy   bool
	celeryOK  bool
	jobs      []domain.Job
	findings  []domain.Finding
	artifacts []domain.Artifact
	events    []domain.TraceEvent
}

// NewStore returns an empty store reporting a healthy service.
func NewStore() *Store {
	return &Store{nextJobID: 1, healthy: true, celeryOK: true}
}

// SetHealth overrides the health flags reported on /status.
func (s *Store) SetHealth(healthy, celeryOK bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = healthy
	s.celeryOK = celeryOK
}

// AddJob inserts a job, assigning the next id, and returns the stored copy.
func (s *Store) AddJob(job domain.Job) domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.ID = s.nextJobID
	s.nextJobID++
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	s.jobs = append(s.jobs, job)
	return job
}

// AddFinding inserts a finding.
func (s *Store) AddFinding(f domain.Finding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.ID = int64(len(s.findings) + 1)
	s.findings = append(s.findings, f)
}

// AddArtifact inserts an artifact.
func (s *Store) AddArtifact(a domain.Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = int64(len(s.artifacts) + 1)
	s.artifacts = append(s.artifacts, a)
}

// AddEvent inserts a trace event.
func (s *Store) AddEvent(e domain.TraceEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = int64(len(s.events) + 1)
	s.events = append(s.events, e)
}

func (s *Store) snapshot() domain.StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.StatusSnapshot{
		Healthy:  s.healthy,
		CeleryOK: s.celeryOK,
		Counts: &domain.StatusCounts{
			Jobs:      int64(len(s.jobs)),
			Findings:  int64(len(s.findings)),
			Artifacts: int64(len(s.artifacts)),
			Events:    int64(len(s.events)),
		},
	}
}

// Server exposes the store over the service's REST routes.
type Server struct {
	store  *Store
	router *mux.Router
	logger *zap.Logger
}

// New builds a server around the given store.
func New(store *Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:  store,
		router: mux.NewRouter(),
		logger: logger,
	}
	s.routes()
	return s
}

// Router returns the HTTP handler for mounting or httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/jobs", s.handleListJobs).Methods(http.MethodGet)
	s.router.HandleFunc("/jobs", s.handleCreateJob).Methods(http.MethodPost)
	s.router.HandleFunc("/jobs/{id}", s.handleGetJob).Methods(http.MethodGet)
	s.router.HandleFunc("/jobs/{id}/findings", s.handleJobFindings).Methods(http.MethodGet)
	s.router.HandleFunc("/jobs/{id}/artifacts", s.handleJobArtifacts).Methods(http.MethodGet)
	s.router.HandleFunc("/jobs/{id}/events", s.handleJobEvents).Methods(http.MethodGet)
	s.router.HandleFunc("/findings", s.handleListFindings).Methods(http.MethodGet)
	s.router.HandleFunc("/artifacts", s.handleListArtifacts).Methods(http.MethodGet)
	s.router.Use(s.loggingMiddleware)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request served",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, map[string]string{"detail": detail})
}

func jobID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil
}

func (s *Server) findJob(id int64) (domain.Job, bool) {
	s.store.mu.RLock()
	defer s.store.mu.RUnlock()
	for _, j := range s.store.jobs {
		if j.ID == id {
			return j, true
		}
	}
	return domain.Job{}, false
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.snapshot())
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	s.store.mu.RLock()
	jobs := make([]domain.Job, len(s.store.jobs))
	copy(jobs, s.store.jobs)
	s.store.mu.RUnlock()
	s.writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	job, found := s.findJob(id)
	if !found {
		s.writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target     string   `json:"target"`
		PipelineID string   `json:"pipeline_id"`
		Tags       []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Target == "" {
		s.writeError(w, http.StatusUnprocessableEntity, "target must not be empty")
		return
	}
	if req.PipelineID == "" {
		req.PipelineID = domain.PipelineQuicklook
	}
	known := false
	for _, p := range domain.KnownPipelines {
		if p == req.PipelineID {
			known = true
			break
		}
	}
	if !known {
		s.writeError(w, http.StatusUnprocessableEntity, "unknown pipeline_id")
		return
	}

	job := s.store.AddJob(domain.Job{
		Target:     req.Target,
		Status:     domain.JobPending,
		PipelineID: req.PipelineID,
		Tags:       req.Tags,
	})
	s.logger.Info("job created",
		zap.Int64("job_id", job.ID),
		zap.String("pipeline_id", job.PipelineID))
	s.writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobFindings(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	if _, found := s.findJob(id); !found {
		s.writeError(w, http.StatusNotFound, "Job not found")
		return
	}

	s.store.mu.RLock()
	out := make([]domain.Finding, 0)
	for _, f := range s.store.findings {
		if f.JobID == id {
			out = append(out, f)
		}
	}
	s.store.mu.RUnlock()
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleJobArtifacts(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	if _, found := s.findJob(id); !found {
		s.writeError(w, http.StatusNotFound, "Job not found")
		return
	}

	s.store.mu.RLock()
	out := make([]domain.Artifact, 0)
	for _, a := range s.store.artifacts {
		if a.JobID == id {
			out = append(out, a)
		}
	}
	s.store.mu.RUnlock()
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}
	if _, found := s.findJob(id); !found {
		s.writeError(w, http.StatusNotFound, "Job not found")
		return
	}

	s.store.mu.RLock()
	out := make([]domain.TraceEvent, 0)
	for _, e := range s.store.events {
		if e.JobID == id {
			out = append(out, e)
		}
	}
	s.store.mu.RUnlock()
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListFindings(w http.ResponseWriter, r *http.Request) {
	s.store.mu.RLock()
	findings := make([]domain.Finding, len(s.store.findings))
	copy(findings, s.store.findings)
	s.store.mu.RUnlock()
	s.writeJSON(w, http.StatusOK, findings)
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	s.store.mu.RLock()
	artifacts := make([]domain.Artifact, len(s.store.artifacts))
	copy(artifacts, s.store.artifacts)
	s.store.mu.RUnlock()
	s.writeJSON(w, http.StatusOK, artifacts)
}
