package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prepvoice/prepvoice/pkg/core/realtime"
	"github.com/prepvoice/prepvoice/pkg/gateway/apierror"
	"github.com/prepvoice/prepvoice/pkg/gateway/config"
	"github.com/prepvoice/prepvoice/pkg/gateway/metrics"
	"github.com/prepvoice/prepvoice/pkg/gateway/mw"
)

// SummaryHandler turns a finished interview transcript into coaching
// feedback.
type SummaryHandler struct {
	Config     config.Config
	Summarizer realtime.Summarizer
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

type summaryRequest struct {
	Conversation []realtime.Turn `json:"conversation"`
}

type summaryResponse struct {
	Summary string `json:"summary"`
}

func (h *SummaryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID, _ := mw.RequestIDFrom(r.Context())
	h.Metrics.SummariesRequested.Inc()

	if h.Summarizer == nil {
		h.Metrics.SummaryFailures.Inc()
		apierror.Write(w, &apierror.HTTPError{
			Status:  http.StatusServiceUnavailable,
			Type:    "summarizer_disabled",
			Message: "no summarizer configured",
		}, requestID)
		return
	}

	var req summaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Metrics.SummaryFailures.Inc()
		apierror.Write(w, apierror.BadRequest("invalid JSON body"), requestID)
		return
	}
	if len(req.Conversation) == 0 {
		h.Metrics.SummaryFailures.Inc()
		apierror.Write(w, apierror.BadRequest("conversation is required"), requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Config.SummaryTimeout)
	defer cancel()

	started := time.Now()
	summary, err := h.Summarizer.Summarize(ctx, req.Conversation)
	h.Metrics.SummaryDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		h.Metrics.SummaryFailures.Inc()
		h.Logger.Error("summary failed", "error", err, "request_id", requestID)
		apierror.Write(w, err, requestID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(summaryResponse{Summary: summary})
}
