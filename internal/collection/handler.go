package collection

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"grantflow/internal/app/apiresp"
)

type Handler struct {
	svc collectionService
}

type collectionService interface {
	CreateGrant(ctx context.Context, name string) (*Grant, error)
	GetGrant(ctx context.Context, id uuid.UUID) (*Grant, error)
	CreateCollection(ctx context.Context, in CreateCollectionInput) (*CollectionRecord, error)
	GetCollection(ctx context.Context, id uuid.UUID) (*CollectionRecord, error)
	LoadSchema(ctx context.Context, collectionID uuid.UUID) (*Schema, error)
}

type response struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type createGrantRequest struct {
	Name string `json:"name"`
}

type createCollectionRequest struct {
	Key       string     `json:"key"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

type schemaPayload struct {
	Key       string     `json:"key"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

func NewHandler(svc collectionService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) CreateGrant(w http.ResponseWriter, r *http.Request) {
	var req createGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}
	grant, err := h.svc.CreateGrant(r.Context(), req.Name)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "name is required"})
			return
		}
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusCreated, response{OK: true, Data: grant})
}

func (h *Handler) GetGrant(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid grant id"})
		return
	}
	grant, err := h.svc.GetGrant(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrGrantNotFound) {
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "grant not found"})
			return
		}
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: grant})
}

func (h *Handler) CreateCollection(w http.ResponseWriter, r *http.Request) {
	grantID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid grant id"})
		return
	}
	var req createCollectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}
	record, err := h.svc.CreateCollection(r.Context(), CreateCollectionInput{
		GrantID:   grantID,
		Key:       req.Key,
		Title:     req.Title,
		Questions: req.Questions,
	})
	if err != nil {
		var schemaErr *SchemaError
		switch {
		case errors.As(err, &schemaErr):
			apiresp.WriteErrorDetails(w, r, http.StatusUnprocessableEntity, "schema is invalid", schemaErr.Problems)
		case errors.Is(err, ErrInvalidInput):
			writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "key, title, questions are required"})
		case errors.Is(err, ErrGrantNotFound):
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "grant not found"})
		default:
			writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		}
		return
	}
	writeJSON(w, r, http.StatusCreated, response{OK: true, Data: record})
}

func (h *Handler) GetCollection(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid collection id"})
		return
	}
	record, err := h.svc.GetCollection(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrCollectionNotFound) {
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "collection not found"})
			return
		}
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: record})
}

func (h *Handler) GetSchema(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid collection id"})
		return
	}
	schema, err := h.svc.LoadSchema(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrCollectionNotFound) {
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "collection not found"})
			return
		}
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: schemaPayload{
		Key:       schema.Key(),
		Title:     schema.Title(),
		Questions: schema.Questions(),
	}})
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload response) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error)
}
