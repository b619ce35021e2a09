package collection

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
)

type mockCollectionService struct {
	createGrantFn      func(ctx context.Context, name string) (*Grant, error)
	getGrantFn         func(ctx context.Context, id uuid.UUID) (*Grant, error)
	createCollectionFn func(ctx context.Context, in CreateCollectionInput) (*CollectionRecord, error)
	getCollectionFn    func(ctx context.Context, id uuid.UUID) (*CollectionRecord, error)
	loadSchemaFn       func(ctx context.Context, collectionID uuid.UUID) (*Schema, error)
}

func (m *mockCollectionService) CreateGrant(ctx context.Context, name string) (*Grant, error) {
	if m.createGrantFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.createGrantFn(ctx, name)
}

func (m *mockCollectionService) GetGrant(ctx context.Context, id uuid.UUID) (*Grant, error) {
	if m.getGrantFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.getGrantFn(ctx, id)
}

func (m *mockCollectionService) CreateCollection(ctx context.Context, in CreateCollectionInput) (*CollectionRecord, error) {
	if m.createCollectionFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.createCollectionFn(ctx, in)
}

func (m *mockCollectionService) GetCollection(ctx context.Context, id uuid.UUID) (*CollectionRecord, error) {
	if m.getCollectionFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.getCollectionFn(ctx, id)
}

func (m *mockCollectionService) LoadSchema(ctx context.Context, collectionID uuid.UUID) (*Schema, error) {
	if m.loadSchemaFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.loadSchemaFn(ctx, collectionID)
}

func withChiParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestCreateGrantOK(t *testing.T) {
	var gotName string
	h := NewHandler(&mockCollectionService{
		createGrantFn: func(ctx context.Context, name string) (*Grant, error) {
			gotName = name
			return &Grant{ID: uuid.New(), Name: name}, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/grants", bytes.NewReader([]byte(`{"name":"Community fund"}`)))
	w := httptest.NewRecorder()

	h.CreateGrant(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if gotName != "Community fund" {
		t.Fatalf("expected name forwarded, got %q", gotName)
	}
}

func TestCreateGrantInvalidInput(t *testing.T) {
	h := NewHandler(&mockCollectionService{
		createGrantFn: func(ctx context.Context, name string) (*Grant, error) {
			return nil, ErrInvalidInput
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/grants", bytes.NewReader([]byte(`{"name":""}`)))
	w := httptest.NewRecorder()

	h.CreateGrant(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetGrantNotFound(t *testing.T) {
	h := NewHandler(&mockCollectionService{
		getGrantFn: func(ctx context.Context, id uuid.UUID) (*Grant, error) {
			return nil, ErrGrantNotFound
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/grants/"+uuid.NewString(), nil)
	req = withChiParam(req, "id", uuid.NewString())
	w := httptest.NewRecorder()

	h.GetGrant(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestCreateCollectionSchemaErrorCarriesDetails(t *testing.T) {
	h := NewHandler(&mockCollectionService{
		createCollectionFn: func(ctx context.Context, in CreateCollectionInput) (*CollectionRecord, error) {
			return nil, &SchemaError{Problems: []string{"duplicate question key \"a\"", "question \"b\" has no label"}}
		},
	})

	grantID := uuid.NewString()
	body := []byte(`{"key":"k","title":"T","questions":[{"key":"a","label":"A","type":"short_text"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/grants/"+grantID+"/collections", bytes.NewReader(body))
	req = withChiParam(req, "id", grantID)
	w := httptest.NewRecorder()

	h.CreateCollection(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	var envelope struct {
		Error struct {
			Details []string `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Error.Details) != 2 {
		t.Fatalf("expected both schema problems in details, got %v", envelope.Error.Details)
	}
}

func TestCreateCollectionForwardsQuestions(t *testing.T) {
	var gotInput CreateCollectionInput
	h := NewHandler(&mockCollectionService{
		createCollectionFn: func(ctx context.Context, in CreateCollectionInput) (*CollectionRecord, error) {
			gotInput = in
			return &CollectionRecord{ID: uuid.New(), GrantID: in.GrantID, Key: in.Key, Title: in.Title, Version: 1}, nil
		},
	})

	grantID := uuid.New()
	body := []byte(`{"key":"village-hall","title":"Village hall","questions":[{"key":"q1","label":"Q1","type":"yes_no","required":true}]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/grants/"+grantID.String()+"/collections", bytes.NewReader(body))
	req = withChiParam(req, "id", grantID.String())
	w := httptest.NewRecorder()

	h.CreateCollection(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if gotInput.GrantID != grantID || gotInput.Key != "village-hall" {
		t.Fatalf("input not forwarded: %+v", gotInput)
	}
	if len(gotInput.Questions) != 1 || gotInput.Questions[0].Type != TypeYesNo {
		t.Fatalf("questions not forwarded: %+v", gotInput.Questions)
	}
}

func TestGetSchemaOK(t *testing.T) {
	schema := fundingSchema(t)
	h := NewHandler(&mockCollectionService{
		loadSchemaFn: func(ctx context.Context, collectionID uuid.UUID) (*Schema, error) {
			return schema, nil
		},
	})

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/collections/"+id+"/schema", nil)
	req = withChiParam(req, "id", id)
	w := httptest.NewRecorder()

	h.GetSchema(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var envelope struct {
		Data struct {
			Key       string     `json:"key"`
			Questions []Question `json:"questions"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Key != "village-hall" || len(envelope.Data.Questions) != schema.Len() {
		t.Fatalf("schema payload mismatch: %+v", envelope.Data)
	}
}

func TestGetCollectionInvalidID(t *testing.T) {
	h := NewHandler(&mockCollectionService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/collections/not-a-uuid", nil)
	req = withChiParam(req, "id", "not-a-uuid")
	w := httptest.NewRecorder()

	h.GetCollection(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
