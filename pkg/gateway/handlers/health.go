package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/prepvoice/prepvoice/pkg/gateway/config"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// ReadyHandler reports configuration problems that would make the gateway
// unusable, without leaking secrets.
type ReadyHandler struct {
	Config config.Config

	// StoreReady reports whether the database is reachable; nil when the
	// gateway runs without a store.
	StoreReady func() bool
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK           bool     `json:"ok"`
		AuthEnabled  bool     `json:"auth_enabled"`
		StoreEnabled bool     `json:"store_enabled"`
		Issues       []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 2)
	if err := h.Config.Validate(); err != nil {
		issues = append(issues, err.Error())
	}
	if h.StoreReady != nil && !h.StoreReady() {
		issues = append(issues, "database unreachable")
	}

	resp := readyResp{
		OK:           len(issues) == 0,
		AuthEnabled:  h.Config.AuthEnabled(),
		StoreEnabled: h.StoreReady != nil,
		Issues:       issues,
	}

	w.Header().Set("Content-Type", "application/json")
	if !resp.OK {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
