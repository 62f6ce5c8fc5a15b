package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prepvoice/prepvoice/pkg/core/realtime"
	"github.com/prepvoice/prepvoice/pkg/gateway/apierror"
	"github.com/prepvoice/prepvoice/pkg/gateway/metrics"
	"github.com/prepvoice/prepvoice/pkg/gateway/mw"
	"github.com/prepvoice/prepvoice/pkg/gateway/store"
)

// InterviewsHandler persists finished interviews and serves the history.
type InterviewsHandler struct {
	Store   *store.Store
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

type saveInterviewRequest struct {
	Transcript []realtime.Turn `json:"transcript"`
	Summary    string          `json:"summary,omitempty"`
}

// List handles GET /v1/interviews.
func (h *InterviewsHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID, _ := mw.RequestIDFrom(r.Context())
	if h.Store == nil {
		apierror.Write(w, errStoreDisabled, requestID)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	interviews, err := h.Store.ListInterviews(r.Context(), limit)
	if err != nil {
		h.Logger.Error("list interviews failed", "error", err, "request_id", requestID)
		apierror.Write(w, err, requestID)
		return
	}
	if interviews == nil {
		interviews = []store.Interview{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"interviews": interviews})
}

// Get handles GET /v1/interviews/{id}.
func (h *InterviewsHandler) Get(w http.ResponseWriter, r *http.Request) {
	requestID, _ := mw.RequestIDFrom(r.Context())
	if h.Store == nil {
		apierror.Write(w, errStoreDisabled, requestID)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		apierror.Write(w, apierror.BadRequest("invalid interview id"), requestID)
		return
	}

	interview, err := h.Store.GetInterview(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		apierror.Write(w, apierror.NotFound("interview not found"), requestID)
		return
	}
	if err != nil {
		h.Logger.Error("get interview failed", "error", err, "request_id", requestID)
		apierror.Write(w, err, requestID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(interview)
}

// Save handles POST /v1/interviews.
func (h *InterviewsHandler) Save(w http.ResponseWriter, r *http.Request) {
	requestID, _ := mw.RequestIDFrom(r.Context())
	if h.Store == nil {
		apierror.Write(w, errStoreDisabled, requestID)
		return
	}

	var req saveInterviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.Write(w, apierror.BadRequest("invalid JSON body"), requestID)
		return
	}
	if len(req.Transcript) == 0 {
		apierror.Write(w, apierror.BadRequest("transcript is required"), requestID)
		return
	}

	interview, err := h.Store.SaveInterview(r.Context(), req.Transcript, req.Summary)
	if err != nil {
		h.Logger.Error("save interview failed", "error", err, "request_id", requestID)
		apierror.Write(w, err, requestID)
		return
	}
	h.Metrics.InterviewsSaved.Inc()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(interview)
}
