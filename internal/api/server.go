// Package api wires the HTTP surface of spec §5: submit, statusOf,
// resultOf, eventsOf, and the supplemented failed-job listing, on top of
// chi the way the teacher's internal/api/server.go does it.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"videoscan/internal/apperr"
	"videoscan/internal/config"
	"videoscan/internal/jobstore"
	"videoscan/internal/model"
	"videoscan/internal/orchestrator"
	"videoscan/internal/ratelimit"
	"videoscan/internal/telemetry"
)

// Server wires HTTP handlers for the job submission API.
type Server struct {
	cfg     config.Config
	orch    *orchestrator.Orchestrator
	store   *jobstore.Store
	limiter *ratelimit.TokenBucket
}

func New(cfg config.Config, orch *orchestrator.Orchestrator, store *jobstore.Store, limiter *ratelimit.TokenBucket) *Server {
	return &Server{cfg: cfg, orch: orch, store: store, limiter: limiter}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Mount("/metrics", telemetry.Handler())

	r.Post("/jobs", s.handleSubmit)
	r.Get("/jobs", s.handleList)
	r.Get("/jobs/{id}", s.handleStatus)
	r.Get("/jobs/{id}/result", s.handleResult)
	r.Get("/jobs/{id}/events", s.handleEvents)
	return r
}

type submitResponse struct {
	JobID  model.JobID     `json:"jobId"`
	Status model.JobStatus `json:"status"`
}

// handleSubmit implements spec §5's submit operation: rate limiting, then
// multipart upload with size and MIME validation, then admission.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil {
		allowed, _, err := s.limiter.Allow(r.Context(), clientKey(r))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "rate limit check failed")
			return
		}
		if !allowed {
			telemetry.RateLimitHits.Inc()
			writeError(w, http.StatusTooManyRequests, "rate limited")
			return
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large or malformed")
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing \"video\" form field")
		return
	}
	defer file.Close()

	if !s.allowedMIME(header) {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported media type")
		return
	}

	id, err := s.orch.Submit(header.Filename, file)
	if err != nil {
		if errors.Is(err, apperr.ErrRejected) {
			writeError(w, http.StatusTooManyRequests, "submission rejected: queue full or invalid upload")
			return
		}
		writeError(w, http.StatusInternalServerError, "submission failed")
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{JobID: id, Status: model.StatusPending})
}

func (s *Server) allowedMIME(header *multipart.FileHeader) bool {
	declared := header.Header.Get("Content-Type")
	if declared == "" {
		declared = mime.TypeByExtension(extOf(header.Filename))
	}
	for _, allowed := range s.cfg.AllowedMIMETypes {
		if strings.EqualFold(declared, allowed) {
			return true
		}
	}
	return len(s.cfg.AllowedMIMETypes) == 0
}

func extOf(filename string) string {
	if i := strings.LastIndex(filename, "."); i >= 0 {
		return filename[i:]
	}
	return ""
}

type statusResponse struct {
	JobID       model.JobID      `json:"jobId"`
	Status      model.JobStatus  `json:"status"`
	Progress    float64          `json:"progress"`
	ErrorKind   model.ErrorKind  `json:"errorKind,omitempty"`
	ErrorDetail string           `json:"errorDetail,omitempty"`
}

// handleStatus implements spec §5's statusOf operation.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := model.JobID(chi.URLParam(r, "id"))
	rec, err := s.store.Read(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		JobID:       rec.ID,
		Status:      rec.Status,
		Progress:    rec.Progress,
		ErrorKind:   rec.ErrorKind,
		ErrorDetail: rec.ErrorDetail,
	})
}

// handleResult implements spec §5's resultOf operation.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	id := model.JobID(chi.URLParam(r, "id"))
	rec, err := s.store.Read(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if rec.Status == model.StatusFailed {
		writeError(w, http.StatusConflict, fmt.Sprintf("job failed: %s: %s", rec.ErrorKind, rec.ErrorDetail))
		return
	}
	result, err := s.store.GetResult(id)
	if err != nil {
		writeError(w, http.StatusConflict, "result not ready")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleEvents implements spec §5's eventsOf operation: the same events
// carried on the result payload, surfaced standalone for callers that only
// want anomaly timelines.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := model.JobID(chi.URLParam(r, "id"))
	result, err := s.store.GetResult(id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusConflict, "result not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": result.Events})
}

// handleList is the supplemented "?status=failed" DLQ-equivalent listing.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("status") != "failed" {
		writeError(w, http.StatusBadRequest, "only ?status=failed is supported")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": s.store.ListFailed()})
}

func clientKey(r *http.Request) string {
	if v := r.Header.Get("X-Client-ID"); v != "" {
		return "rl:" + v
	}
	return "rl:" + r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
