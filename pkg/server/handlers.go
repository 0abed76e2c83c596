package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/entrhq/pagetrail/pkg/capture"
	"github.com/entrhq/pagetrail/pkg/llm"
	"github.com/entrhq/pagetrail/pkg/rollup"
	"github.com/entrhq/pagetrail/pkg/tracker"
	"github.com/entrhq/pagetrail/pkg/types"
	"github.com/go-chi/chi/v5"
)

// IngestResponse reports whether a visit was recorded.
type IngestResponse struct {
	Recorded bool        `json:"recorded"`
	Reason   string      `json:"reason,omitempty"`
	Node     *types.Node `json:"node,omitempty"`
}

// ActivateRequest is the body of POST /v1/tabs/activate. An empty URL means
// no tab is active any more.
type ActivateRequest struct {
	TabID int    `json:"tabId"`
	URL   string `json:"url"`
}

// ActivateResponse describes the visit that just ended, if any.
type ActivateResponse struct {
	PreviousURL string `json:"previousUrl,omitempty"`
	Seconds     int    `json:"seconds"`
}

// ActivitySummaryResponse is the body returned by POST /v1/pages/summary.
type ActivitySummaryResponse struct {
	PageCount int    `json:"pageCount"`
	Summary   string `json:"summary"`
}

// POST /v1/pages
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var rec types.PageRecord
	if !decodeJSON(w, r, &rec) {
		return
	}
	if rec.URL == "" {
		badRequest(w, "url is required")
		return
	}
	s.record(w, r, rec)
}

// POST /v1/capture?url=...
func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	pageURL := r.URL.Query().Get("url")
	if u, err := url.Parse(pageURL); pageURL == "" || err != nil || !u.IsAbs() {
		badRequest(w, "absolute url query parameter is required")
		return
	}

	rec, err := capture.FromHTML(pageURL, http.MaxBytesReader(w, r.Body, maxHTMLBody), s.now())
	if err != nil {
		badRequest(w, fmt.Sprintf("failed to read page: %v", err))
		return
	}
	s.record(w, r, rec)
}

func (s *Server) record(w http.ResponseWriter, r *http.Request, rec types.PageRecord) {
	leaf, err := s.recorder.Record(r.Context(), rec)
	switch {
	case errors.Is(err, tracker.ErrTrackingOff), errors.Is(err, tracker.ErrFiltered):
		writeJSON(w, http.StatusAccepted, IngestResponse{Reason: err.Error()})
	case err != nil:
		s.writeError(w, r, err)
	default:
		writeJSON(w, http.StatusCreated, IngestResponse{Recorded: true, Node: &leaf})
	}
}

// GET /v1/pages
func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	pages, err := s.timeline.Pages(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pages)
}

// POST /v1/pages/summary summarizes the whole flat history in one request.
func (s *Server) handleSummarizePages(w http.ResponseWriter, r *http.Request) {
	pages, err := s.timeline.GetLevel(r.Context(), 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	text, err := llm.SummarizeHistory(r.Context(), s.activity, pages)
	switch {
	case errors.Is(err, llm.ErrNoPages):
		writeJSON(w, http.StatusOK, ActivitySummaryResponse{Summary: llm.NoPagesToSummarize})
	case err != nil:
		s.writeError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, ActivitySummaryResponse{PageCount: len(pages), Summary: text})
	}
}

// DELETE /v1/pages/{id}
func (s *Server) handleDeletePage(w http.ResponseWriter, r *http.Request) {
	if err := s.timeline.DeletePage(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /v1/levels/{level}
func (s *Server) handleGetLevel(w http.ResponseWriter, r *http.Request) {
	level, err := strconv.Atoi(chi.URLParam(r, "level"))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %q", rollup.ErrInvalidLevel, chi.URLParam(r, "level")))
		return
	}
	nodes, err := s.timeline.GetLevel(r.Context(), level)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

// POST /v1/tabs/activate
func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	var req ActivateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		prev tracker.Visit
		err  error
	)
	if req.URL == "" {
		prev, err = s.recorder.Deactivate(r.Context())
	} else {
		prev, err = s.recorder.Activate(r.Context(), req.TabID, req.URL)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ActivateResponse{PreviousURL: prev.URL, Seconds: prev.Seconds})
}

// GET /v1/settings
func (s *Server) handleGetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.tracking.Data())
}

// PUT /v1/settings accepts a partial update.
func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if !decodeJSON(w, r, &patch) {
		return
	}

	previous := s.tracking.Data()
	if err := s.tracking.SetData(patch); err != nil {
		_ = s.tracking.SetData(previous)
		badRequest(w, err.Error())
		return
	}
	if err := s.tracking.Validate(); err != nil {
		_ = s.tracking.SetData(previous)
		badRequest(w, err.Error())
		return
	}
	if s.save != nil {
		if err := s.save(); err != nil {
			s.writeError(w, r, fmt.Errorf("failed to save settings: %w", err))
			return
		}
	}
	writeJSON(w, http.StatusOK, s.tracking.Data())
}
