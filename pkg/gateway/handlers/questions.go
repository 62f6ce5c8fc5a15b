package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prepvoice/prepvoice/pkg/gateway/apierror"
	"github.com/prepvoice/prepvoice/pkg/gateway/mw"
	"github.com/prepvoice/prepvoice/pkg/gateway/store"
)

// QuestionsHandler serves the question bank.
type QuestionsHandler struct {
	Store  *store.Store
	Logger *slog.Logger
}

func (h *QuestionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID, _ := mw.RequestIDFrom(r.Context())
	if h.Store == nil {
		apierror.Write(w, errStoreDisabled, requestID)
		return
	}

	questions, err := h.Store.ListQuestions(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		h.Logger.Error("list questions failed", "error", err, "request_id", requestID)
		apierror.Write(w, err, requestID)
		return
	}
	if questions == nil {
		questions = []store.Question{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"questions": questions})
}

var errStoreDisabled = &apierror.HTTPError{
	Status:  http.StatusServiceUnavailable,
	Type:    "store_disabled",
	Message: "no database configured",
}
