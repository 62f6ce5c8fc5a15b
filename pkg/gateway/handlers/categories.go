package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/prepvoice/prepvoice/pkg/gateway/apierror"
	"github.com/prepvoice/prepvoice/pkg/gateway/mw"
	"github.com/prepvoice/prepvoice/pkg/gateway/store"
)

// CategoriesHandler implements question category CRUD.
type CategoriesHandler struct {
	Store  *store.Store
	Logger *slog.Logger
}

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// List handles GET /v1/categories.
func (h *CategoriesHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID, _ := mw.RequestIDFrom(r.Context())
	if h.Store == nil {
		apierror.Write(w, errStoreDisabled, requestID)
		return
	}

	categories, err := h.Store.ListCategories(r.Context())
	if err != nil {
		h.Logger.Error("list categories failed", "error", err, "request_id", requestID)
		apierror.Write(w, err, requestID)
		return
	}
	if categories == nil {
		categories = []store.Category{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"categories": categories})
}

// Create handles POST /v1/categories.
func (h *CategoriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	requestID, _ := mw.RequestIDFrom(r.Context())
	if h.Store == nil {
		apierror.Write(w, errStoreDisabled, requestID)
		return
	}

	req, err := decodeCategory(r)
	if err != nil {
		apierror.Write(w, err, requestID)
		return
	}

	category, err := h.Store.CreateCategory(r.Context(), req.Name, req.Description)
	if err != nil {
		h.Logger.Error("create category failed", "error", err, "request_id", requestID)
		apierror.Write(w, err, requestID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(category)
}

// Update handles PUT /v1/categories/{id}.
func (h *CategoriesHandler) Update(w http.ResponseWriter, r *http.Request) {
	requestID, _ := mw.RequestIDFrom(r.Context())
	if h.Store == nil {
		apierror.Write(w, errStoreDisabled, requestID)
		return
	}

	id, err := categoryID(r)
	if err != nil {
		apierror.Write(w, err, requestID)
		return
	}
	req, err := decodeCategory(r)
	if err != nil {
		apierror.Write(w, err, requestID)
		return
	}

	category, err := h.Store.UpdateCategory(r.Context(), id, req.Name, req.Description)
	if errors.Is(err, store.ErrNotFound) {
		apierror.Write(w, apierror.NotFound("category not found"), requestID)
		return
	}
	if err != nil {
		h.Logger.Error("update category failed", "error", err, "request_id", requestID)
		apierror.Write(w, err, requestID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(category)
}

// Delete handles DELETE /v1/categories/{id}.
func (h *CategoriesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requestID, _ := mw.RequestIDFrom(r.Context())
	if h.Store == nil {
		apierror.Write(w, errStoreDisabled, requestID)
		return
	}

	id, err := categoryID(r)
	if err != nil {
		apierror.Write(w, err, requestID)
		return
	}

	err = h.Store.DeleteCategory(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		apierror.Write(w, apierror.NotFound("category not found"), requestID)
		return
	}
	if err != nil {
		h.Logger.Error("delete category failed", "error", err, "request_id", requestID)
		apierror.Write(w, err, requestID)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func decodeCategory(r *http.Request) (categoryRequest, error) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, apierror.BadRequest("invalid JSON body")
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return req, apierror.BadRequest("name is required")
	}
	return req, nil
}

func categoryID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apierror.BadRequest("invalid category id")
	}
	return id, nil
}
