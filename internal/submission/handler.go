package submission

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"grantflow/internal/app/apiresp"
	"grantflow/internal/collection"
)

type Handler struct {
	svc submissionService
}

type submissionService interface {
	Create(ctx context.Context, in CreateInput) (*Submission, error)
	Get(ctx context.Context, id uuid.UUID) (*Submission, error)
	SaveAnswer(ctx context.Context, in SaveAnswerInput) (*Submission, error)
	Finalize(ctx context.Context, id uuid.UUID) (*Submission, error)
}

type response struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type createSubmissionRequest struct {
	Mode      string `json:"mode"`
	CreatedBy string `json:"created_by"`
}

type submissionPayload struct {
	*Submission
	Answers map[string]collection.Answer `json:"answers"`
}

func NewHandler(svc submissionService) *Handler {
	return &Handler{svc: svc}
}

func payloadFor(sub *Submission) submissionPayload {
	return submissionPayload{Submission: sub, Answers: sub.Answers.Map()}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	collectionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid collection id"})
		return
	}
	var req createSubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}
	sub, err := h.svc.Create(r.Context(), CreateInput{
		CollectionID: collectionID,
		Mode:         req.Mode,
		CreatedBy:    req.CreatedBy,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: err.Error()})
		case errors.Is(err, collection.ErrCollectionNotFound):
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "collection not found"})
		default:
			writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		}
		return
	}
	writeJSON(w, r, http.StatusCreated, response{OK: true, Data: payloadFor(sub)})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid submission id"})
		return
	}
	sub, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrSubmissionNotFound) {
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "submission not found"})
			return
		}
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: payloadFor(sub)})
}

func (h *Handler) SaveAnswer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid submission id"})
		return
	}
	questionKey := chi.URLParam(r, "questionKey")

	var answer collection.Answer
	if err := json.NewDecoder(r.Body).Decode(&answer); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid answer body"})
		return
	}

	sub, err := h.svc.SaveAnswer(r.Context(), SaveAnswerInput{
		SubmissionID: id,
		QuestionKey:  questionKey,
		Answer:       answer,
	})
	if err != nil {
		var mismatch *collection.TypeMismatchError
		switch {
		case errors.As(err, &mismatch):
			apiresp.WriteErrorDetails(w, r, http.StatusUnprocessableEntity, mismatch.Error(), collection.TypeMismatch{
				Question: mismatch.Question,
				Want:     mismatch.Want,
				Got:      mismatch.Got,
			})
		case errors.Is(err, ErrInvalidInput):
			writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: err.Error()})
		case errors.Is(err, ErrSubmissionNotFound):
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "submission not found"})
		case errors.Is(err, ErrQuestionNotFound):
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "question not found"})
		case errors.Is(err, ErrSubmissionCompleted):
			writeJSON(w, r, http.StatusConflict, response{OK: false, Error: "submission already completed"})
		default:
			writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		}
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: payloadFor(sub)})
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid submission id"})
		return
	}
	sub, err := h.svc.Finalize(r.Context(), id)
	if err != nil {
		var validation *collection.ValidationError
		switch {
		case errors.As(err, &validation):
			apiresp.WriteErrorDetails(w, r, http.StatusUnprocessableEntity, "submission is incomplete", validation)
		case errors.Is(err, ErrSubmissionNotFound):
			writeJSON(w, r, http.StatusNotFound, response{OK: false, Error: "submission not found"})
		case errors.Is(err, ErrSubmissionCompleted):
			writeJSON(w, r, http.StatusConflict, response{OK: false, Error: "submission already completed"})
		default:
			writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		}
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: payloadFor(sub)})
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload response) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error)
}
