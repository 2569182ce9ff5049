package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/notdp/franxx-store-sub000/internal/admin/db"
	"github.com/notdp/franxx-store-sub000/internal/logger"
	"github.com/notdp/franxx-store-sub000/internal/models"
	"github.com/notdp/franxx-store-sub000/internal/utils"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Page is the list payload for paginated back-office endpoints.
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Resource exposes CRUD endpoints for one back-office table.
type Resource[T any] struct {
	Name     string
	Store    *db.Store[T]
	Logger   *logger.Logger
	validate *validator.Validate
}

func NewResource[T any](name string, store *db.Store[T], validate *validator.Validate, log *logger.Logger) *Resource[T] {
	return &Resource[T]{Name: name, Store: store, Logger: log, validate: validate}
}

func (h *Resource[T]) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	return r
}

func (h *Resource[T]) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	items, total, err := h.Store.List(r.Context(), limit, offset)
	if err != nil {
		h.Logger.Error("ADMIN", fmt.Sprintf("List %s: %v", h.Name, err))
		utils.WriteError(w, http.StatusInternalServerError, "Failed to list "+h.Name, "internal error")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, h.Name+" retrieved", Page[T]{Items: items, Total: total, Limit: limit, Offset: offset})
}

func (h *Resource[T]) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := h.Store.Get(r.Context(), id)
	if h.writeStoreError(w, "Get", id, err) {
		return
	}
	utils.WriteSuccess(w, http.StatusOK, h.Name+" retrieved", item)
}

func (h *Resource[T]) Create(w http.ResponseWriter, r *http.Request) {
	item, ok := h.decode(w, r)
	if !ok {
		return
	}
	if h.writeStoreError(w, "Create", "", h.Store.Create(r.Context(), item)) {
		return
	}
	h.Logger.LogDatabase("INSERT", h.Name, "record created")
	utils.WriteSuccess(w, http.StatusCreated, h.Name+" created", item)
}

func (h *Resource[T]) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, ok := h.decode(w, r)
	if !ok {
		return
	}
	updated, err := h.Store.Update(r.Context(), id, item)
	if h.writeStoreError(w, "Update", id, err) {
		return
	}
	h.Logger.LogDatabase("UPDATE", h.Name, fmt.Sprintf("record %s updated", id))
	utils.WriteSuccess(w, http.StatusOK, h.Name+" updated", updated)
}

func (h *Resource[T]) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.Store.Delete(r.Context(), id)
	if h.writeStoreError(w, "Delete", id, err) {
		return
	}
	h.Logger.LogDatabase("DELETE", h.Name, fmt.Sprintf("record %s deleted", id))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Resource[T]) decode(w http.ResponseWriter, r *http.Request) (*T, bool) {
	item := new(T)
	if err := json.NewDecoder(r.Body).Decode(item); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return nil, false
	}
	if err := h.validate.Struct(item); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Validation failed", err.Error())
		return nil, false
	}
	return item, true
}

func (h *Resource[T]) writeStoreError(w http.ResponseWriter, op, id string, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, models.ErrRecordNotFound):
		utils.WriteError(w, http.StatusNotFound, h.Name+" not found", "not found")
	case errors.Is(err, models.ErrDuplicateRecord):
		utils.WriteError(w, http.StatusConflict, h.Name+" already exists", "duplicate record")
	default:
		h.Logger.Error("ADMIN", strings.TrimSpace(fmt.Sprintf("%s %s %s", op, h.Name, id))+": "+err.Error())
		utils.WriteError(w, http.StatusInternalServerError, op+" "+h.Name+" failed", "internal error")
	}
	return true
}

// pagination reads limit and offset query parameters, clamped to sane values.
func pagination(r *http.Request) (int, int) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
