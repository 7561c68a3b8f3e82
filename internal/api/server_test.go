package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"videoscan/internal/config"
	"videoscan/internal/jobstore"
	"videoscan/internal/model"
)

func newTestServer(store *jobstore.Store) *Server {
	return New(config.Config{}, nil, store, nil)
}

func TestHandleStatusReturnsJobState(t *testing.T) {
	store := jobstore.New()
	_ = store.Insert("job-1", "clip.mp4", 1024)
	srv := newTestServer(store)

	req := httptest.NewRequest(http.MethodGet, "/jobs/job-1", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != model.StatusPending {
		t.Fatalf("expected PENDING, got %s", body.Status)
	}
}

func TestHandleStatusUnknownJobReturns404(t *testing.T) {
	srv := newTestServer(jobstore.New())

	req := httptest.NewRequest(http.MethodGet, "/jobs/missing", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleResultBeforeCompletionReturns409(t *testing.T) {
	store := jobstore.New()
	_ = store.Insert("job-1", "clip.mp4", 1024)
	srv := newTestServer(store)

	req := httptest.NewRequest(http.MethodGet, "/jobs/job-1/result", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestHandleResultOnFailedJobReturns409WithDetail(t *testing.T) {
	store := jobstore.New()
	_ = store.Insert("job-1", "clip.mp4", 1024)
	_ = store.Update("job-1", func(r *model.JobRecord) {
		r.Status = model.StatusFailed
		r.Phase = model.PhaseFailed
		r.ErrorKind = model.ErrorKindSampling
		r.ErrorDetail = "ffmpeg exited 1"
	})
	srv := newTestServer(store)

	req := httptest.NewRequest(http.MethodGet, "/jobs/job-1/result", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if !contains(rec.Body.String(), "ffmpeg exited 1") {
		t.Fatalf("expected error detail in body, got %s", rec.Body.String())
	}
}

func TestHandleResultOnCompletedJobReturnsResult(t *testing.T) {
	store := jobstore.New()
	_ = store.Insert("job-1", "clip.mp4", 1024)
	_ = store.SetResult("job-1", model.AnalysisResult{JobID: "job-1", Label: model.LabelLikelyReal, Confidence: 0.9})
	srv := newTestServer(store)

	req := httptest.NewRequest(http.MethodGet, "/jobs/job-1/result", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result model.AnalysisResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Label != model.LabelLikelyReal {
		t.Fatalf("expected LIKELY_REAL, got %s", result.Label)
	}
}

func TestHandleEventsOnUnknownJobReturns404(t *testing.T) {
	srv := newTestServer(jobstore.New())

	req := httptest.NewRequest(http.MethodGet, "/jobs/missing/events", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleEventsOnCompletedJobReturnsEvents(t *testing.T) {
	store := jobstore.New()
	_ = store.Insert("job-1", "clip.mp4", 1024)
	_ = store.SetResult("job-1", model.AnalysisResult{
		JobID:  "job-1",
		Events: []model.EventPayload{{Module: "visual_clip", Event: "static_segment", TS: 1.0, Dur: 2.0}},
	})
	srv := newTestServer(store)

	req := httptest.NewRequest(http.MethodGet, "/jobs/job-1/events", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Events []model.EventPayload `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Events) != 1 || body.Events[0].Event != "static_segment" {
		t.Fatalf("unexpected events: %+v", body.Events)
	}
}

func TestHandleListOnlySupportsFailedFilter(t *testing.T) {
	srv := newTestServer(jobstore.New())

	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported filter, got %d", rec.Code)
	}
}

func TestHandleListReturnsFailedJobs(t *testing.T) {
	store := jobstore.New()
	_ = store.Insert("job-1", "clip.mp4", 1024)
	_ = store.Update("job-1", func(r *model.JobRecord) {
		r.Status = model.StatusFailed
		r.Phase = model.PhaseFailed
		r.ErrorKind = model.ErrorKindSampling
	})
	srv := newTestServer(store)

	req := httptest.NewRequest(http.MethodGet, "/jobs?status=failed", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Jobs []model.JobRecord `json:"jobs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Jobs) != 1 || body.Jobs[0].ID != "job-1" {
		t.Fatalf("unexpected jobs: %+v", body.Jobs)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}
