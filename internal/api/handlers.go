package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/sift/internal/classifier"
	"github.com/MikeSquared-Agency/sift/internal/conversation"
	"github.com/MikeSquared-Agency/sift/internal/filter"
	"github.com/MikeSquared-Agency/sift/internal/metrics"
	"github.com/MikeSquared-Agency/sift/internal/report"
	"github.com/MikeSquared-Agency/sift/internal/store"
)

// batchRequest is embedded by every request that carries conversations.
type batchRequest struct {
	Conversations json.RawMessage `json:"conversations"`
}

type ClassifyResponse struct {
	Results []classifier.Result `json:"results"`
	Summary classifier.Summary  `json:"summary"`
	Skipped int                 `json:"skipped"`
}

type FilterRequest struct {
	batchRequest
	Query string `json:"query"`
}

type FilterResponse struct {
	Kind            filter.Kind           `json:"kind"`
	Query           string                `json:"query,omitempty"`
	Count           int                   `json:"count"`
	Matches         []filter.Match        `json:"matches"`
	Troubleshooting []filter.PatternCount `json:"troubleshooting,omitempty"`
	Skipped         int                   `json:"skipped"`
}

type ExamplesRequest struct {
	batchRequest
	Category  string `json:"category"`
	Sentiment string `json:"sentiment"`
	Target    int    `json:"target"`
	// FilterFirst narrows the conversations to the category before selecting.
	FilterFirst bool `json:"filter_first"`
}

type ReportRequest struct {
	batchRequest
	BatchID   string `json:"batch_id"`
	Sentiment string `json:"sentiment"`
}

// decode reads the request body into v and the embedded conversation list.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any, raw *json.RawMessage) ([]conversation.Conversation, int, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "read body: %v", err)
		return nil, 0, false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: %v", err)
		return nil, 0, false
	}
	if len(*raw) == 0 {
		return nil, 0, true
	}
	convs, skipped, err := conversation.DecodeList(*raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversations: %v", err)
		return nil, 0, false
	}
	if skipped > 0 {
		metrics.ConversationsSkipped.Add(float64(skipped))
	}
	return convs, skipped, true
}

func (s *Server) classify(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	convs, skipped, ok := s.decode(w, r, &req, &req.Conversations)
	if !ok {
		return
	}

	results := s.deps.Builder.Classifier().ClassifyAll(convs)
	writeJSON(w, http.StatusOK, ClassifyResponse{
		Results: results,
		Summary: classifier.Aggregate(results),
		Skipped: skipped,
	})
}

func (s *Server) filter(w http.ResponseWriter, r *http.Request) {
	kind := filter.Kind(chi.URLParam(r, "kind"))

	var req FilterRequest
	convs, skipped, ok := s.decode(w, r, &req, &req.Conversations)
	if !ok {
		return
	}
	if req.Query == "" {
		req.Query = r.URL.Query().Get("q")
	}

	matches, err := s.deps.Builder.Filters().Run(kind, convs, req.Query)
	if errors.Is(err, filter.ErrUnknownKind) {
		writeError(w, http.StatusNotFound, "%v", err)
		return
	}
	if matches == nil {
		matches = []filter.Match{}
	}
	metrics.FilterMatches.WithLabelValues(string(kind)).Add(float64(len(matches)))

	resp := FilterResponse{Kind: kind, Query: req.Query, Count: len(matches), Matches: matches, Skipped: skipped}
	if kind == filter.KindTechnical {
		resp.Troubleshooting = filter.SummarizeTechnical(matches)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) examples(w http.ResponseWriter, r *http.Request) {
	var req ExamplesRequest
	convs, _, ok := s.decode(w, r, &req, &req.Conversations)
	if !ok {
		return
	}
	if req.Category == "" {
		writeError(w, http.StatusBadRequest, "category is required")
		return
	}
	if req.FilterFirst {
		convs = filter.Conversations(s.deps.Builder.Filters().FilterByCategory(convs, req.Category))
	}

	sel := s.deps.Selector.Select(r.Context(), req.Category, convs, req.Sentiment, req.Target)
	writeJSON(w, http.StatusOK, sel)
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	var req ReportRequest
	convs, _, ok := s.decode(w, r, &req, &req.Conversations)
	if !ok {
		return
	}

	rep, err := s.deps.Builder.Build(r.Context(), convs, report.Options{BatchID: req.BatchID, Sentiment: req.Sentiment})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "build report: %v", err)
		return
	}
	if s.deps.Store != nil {
		if err := s.deps.Store.WriteReport(r.Context(), rep); err != nil {
			s.deps.Logger.Error("failed to persist report", "run_id", rep.RunID, "error", err)
			writeError(w, http.StatusInternalServerError, "persist report: %v", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence not configured")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit %q", v)
			return
		}
		limit = n
	}

	runs, err := s.deps.Store.RecentRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	if runs == nil {
		runs = []store.RunRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence not configured")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id: %v", err)
		return
	}

	run, err := s.deps.Store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run %s not found", id)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}
