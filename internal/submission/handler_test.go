package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"grantflow/internal/collection"
)

type mockSubmissionService struct {
	createFn     func(ctx context.Context, in CreateInput) (*Submission, error)
	getFn        func(ctx context.Context, id uuid.UUID) (*Submission, error)
	saveAnswerFn func(ctx context.Context, in SaveAnswerInput) (*Submission, error)
	finalizeFn   func(ctx context.Context, id uuid.UUID) (*Submission, error)
}

func (m *mockSubmissionService) Create(ctx context.Context, in CreateInput) (*Submission, error) {
	if m.createFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.createFn(ctx, in)
}

func (m *mockSubmissionService) Get(ctx context.Context, id uuid.UUID) (*Submission, error) {
	if m.getFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.getFn(ctx, id)
}

func (m *mockSubmissionService) SaveAnswer(ctx context.Context, in SaveAnswerInput) (*Submission, error) {
	if m.saveAnswerFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.saveAnswerFn(ctx, in)
}

func (m *mockSubmissionService) Finalize(ctx context.Context, id uuid.UUID) (*Submission, error) {
	if m.finalizeFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.finalizeFn(ctx, id)
}

func withChiParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func emptySubmission(id uuid.UUID) *Submission {
	return &Submission{
		ID:        id,
		Reference: "ABCD1234",
		Mode:      ModeLive,
		Status:    StatusInProgress,
		Answers:   collection.NewAnswerSet(nil),
	}
}

func TestCreateSubmissionOK(t *testing.T) {
	collectionID := uuid.New()
	var gotInput CreateInput
	h := NewHandler(&mockSubmissionService{
		createFn: func(ctx context.Context, in CreateInput) (*Submission, error) {
			gotInput = in
			return emptySubmission(uuid.New()), nil
		},
	})

	body := []byte(`{"mode":"test","created_by":"alex@example.org"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/collections/"+collectionID.String()+"/submissions", bytes.NewReader(body))
	req = withChiParam(req, "id", collectionID.String())
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if gotInput.CollectionID != collectionID || gotInput.Mode != "test" || gotInput.CreatedBy != "alex@example.org" {
		t.Fatalf("input not forwarded: %+v", gotInput)
	}
}

func TestSaveAnswerForwardsTypedAnswer(t *testing.T) {
	id := uuid.New()
	var gotInput SaveAnswerInput
	h := NewHandler(&mockSubmissionService{
		saveAnswerFn: func(ctx context.Context, in SaveAnswerInput) (*Submission, error) {
			gotInput = in
			return emptySubmission(id), nil
		},
	})

	body := []byte(`{"kind":"number","number":15000}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/submissions/"+id.String()+"/answers/q_budget", bytes.NewReader(body))
	req = withChiParam(req, "id", id.String())
	req = withChiParam(req, "questionKey", "q_budget")
	w := httptest.NewRecorder()

	h.SaveAnswer(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gotInput.QuestionKey != "q_budget" {
		t.Fatalf("question key not forwarded: %+v", gotInput)
	}
	if gotInput.Answer.Kind != collection.AnswerNumber || gotInput.Answer.Number != 15000 {
		t.Fatalf("answer not decoded: %+v", gotInput.Answer)
	}
}

func TestSaveAnswerTypeMismatchIs422(t *testing.T) {
	id := uuid.New()
	h := NewHandler(&mockSubmissionService{
		saveAnswerFn: func(ctx context.Context, in SaveAnswerInput) (*Submission, error) {
			return nil, &collection.TypeMismatchError{
				Question: "q_budget",
				Want:     collection.TypeNumber,
				Got:      collection.AnswerText,
			}
		},
	})

	body := []byte(`{"kind":"text","text":"lots"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/submissions/"+id.String()+"/answers/q_budget", bytes.NewReader(body))
	req = withChiParam(req, "id", id.String())
	req = withChiParam(req, "questionKey", "q_budget")
	w := httptest.NewRecorder()

	h.SaveAnswer(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
}

func TestSaveAnswerCompletedIsConflict(t *testing.T) {
	id := uuid.New()
	h := NewHandler(&mockSubmissionService{
		saveAnswerFn: func(ctx context.Context, in SaveAnswerInput) (*Submission, error) {
			return nil, ErrSubmissionCompleted
		},
	})

	body := []byte(`{"kind":"text","text":"too late"}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/submissions/"+id.String()+"/answers/q_region", bytes.NewReader(body))
	req = withChiParam(req, "id", id.String())
	req = withChiParam(req, "questionKey", "q_region")
	w := httptest.NewRecorder()

	h.SaveAnswer(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestSubmitValidationErrorCarriesFullLists(t *testing.T) {
	id := uuid.New()
	h := NewHandler(&mockSubmissionService{
		finalizeFn: func(ctx context.Context, id uuid.UUID) (*Submission, error) {
			return nil, &collection.ValidationError{
				Missing: []string{"q_budget", "q_cofunding"},
				Mismatches: []collection.TypeMismatch{
					{Question: "q_country", Want: collection.TypeSingleChoice, Got: collection.AnswerText},
				},
			}
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions/"+id.String()+"/submit", nil)
	req = withChiParam(req, "id", id.String())
	w := httptest.NewRecorder()

	h.Submit(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	var envelope struct {
		Error struct {
			Details struct {
				Missing    []string                  `json:"missing"`
				Mismatches []collection.TypeMismatch `json:"type_mismatches"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Error.Details.Missing) != 2 || len(envelope.Error.Details.Mismatches) != 1 {
		t.Fatalf("expected full violation lists, got %+v", envelope.Error.Details)
	}
}

func TestSubmitNotFound(t *testing.T) {
	id := uuid.New()
	h := NewHandler(&mockSubmissionService{
		finalizeFn: func(ctx context.Context, id uuid.UUID) (*Submission, error) {
			return nil, ErrSubmissionNotFound
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions/"+id.String()+"/submit", nil)
	req = withChiParam(req, "id", id.String())
	w := httptest.NewRecorder()

	h.Submit(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
