package collection

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrGrantNotFound      = errors.New("grant not found")
	ErrCollectionNotFound = errors.New("collection not found")
)

// Service owns grant and collection persistence. Question rows are stored in
// schema order with options and conditions as JSONB; loading always passes
// through NewSchema so a corrupted row can never produce a half-valid schema.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

type Grant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type CollectionRecord struct {
	ID        uuid.UUID `json:"id"`
	GrantID   uuid.UUID `json:"grant_id"`
	Key       string    `json:"key"`
	Title     string    `json:"title"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateCollectionInput struct {
	GrantID   uuid.UUID
	Key       string
	Title     string
	Questions []Question
}

func (s *Service) CreateGrant(ctx context.Context, name string) (*Grant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: grant name is required", ErrInvalidInput)
	}

	var out Grant
	if err := s.db.QueryRowContext(ctx, `
		INSERT INTO grants (id, name, created_at)
		VALUES ($1, $2, now())
		RETURNING id, name, created_at
	`, uuid.New(), name).Scan(&out.ID, &out.Name, &out.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert grant: %w", err)
	}
	return &out, nil
}

func (s *Service) GetGrant(ctx context.Context, id uuid.UUID) (*Grant, error) {
	var out Grant
	if err := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_at
		FROM grants
		WHERE id = $1
	`, id).Scan(&out.ID, &out.Name, &out.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGrantNotFound
		}
		return nil, fmt.Errorf("load grant: %w", err)
	}
	return &out, nil
}

// CreateCollection validates the question list as a whole schema before
// anything is written, so malformed schemas never reach the database, let
// alone a submission.
func (s *Service) CreateCollection(ctx context.Context, in CreateCollectionInput) (*CollectionRecord, error) {
	if in.GrantID == uuid.Nil {
		return nil, fmt.Errorf("%w: grant_id is required", ErrInvalidInput)
	}

	schema, err := NewSchema(in.Key, in.Title, in.Questions)
	if err != nil {
		return nil, err
	}

	var grantExists bool
	if err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM grants WHERE id = $1)
	`, in.GrantID).Scan(&grantExists); err != nil {
		return nil, fmt.Errorf("check grant: %w", err)
	}
	if !grantExists {
		return nil, ErrGrantNotFound
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var out CollectionRecord
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO collections (id, grant_id, key, title, version, created_at)
		VALUES ($1, $2, $3, $4, 1, now())
		RETURNING id, grant_id, key, title, version, created_at
	`, uuid.New(), in.GrantID, schema.Key(), schema.Title()).Scan(
		&out.ID, &out.GrantID, &out.Key, &out.Title, &out.Version, &out.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert collection: %w", err)
	}

	for i, q := range schema.Questions() {
		optionsRaw, err := json.Marshal(q.Options)
		if err != nil {
			return nil, fmt.Errorf("marshal options for %s: %w", q.Key, err)
		}
		var conditionRaw []byte
		if q.Condition != nil {
			conditionRaw, err = json.Marshal(q.Condition)
			if err != nil {
				return nil, fmt.Errorf("marshal condition for %s: %w", q.Key, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO questions (
				collection_id, key, label, section, question_type, required,
				group_key, ord, options, condition
			) VALUES (
				$1, $2, $3, $4, $5, $6,
				NULLIF($7, ''), $8, $9::jsonb, $10::jsonb
			)
		`, out.ID, q.Key, q.Label, q.Section, string(q.Type), q.Required,
			q.Group, i, optionsRaw, nullBytes(conditionRaw)); err != nil {
			return nil, fmt.Errorf("insert question %s: %w", q.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &out, nil
}

func (s *Service) GetCollection(ctx context.Context, id uuid.UUID) (*CollectionRecord, error) {
	var out CollectionRecord
	if err := s.db.QueryRowContext(ctx, `
		SELECT id, grant_id, key, title, version, created_at
		FROM collections
		WHERE id = $1
	`, id).Scan(&out.ID, &out.GrantID, &out.Key, &out.Title, &out.Version, &out.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCollectionNotFound
		}
		return nil, fmt.Errorf("load collection: %w", err)
	}
	return &out, nil
}

// LoadSchema materialises a collection's full validated schema. The rows are
// re-validated on every load regardless of how they got there.
func (s *Service) LoadSchema(ctx context.Context, collectionID uuid.UUID) (*Schema, error) {
	rec, err := s.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, label, section, question_type, required, group_key, options, condition
		FROM questions
		WHERE collection_id = $1
		ORDER BY ord ASC
	`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	questions := make([]Question, 0)
	for rows.Next() {
		var q Question
		var qType string
		var groupKey sql.NullString
		var optionsRaw, conditionRaw []byte
		if err := rows.Scan(&q.Key, &q.Label, &q.Section, &qType, &q.Required, &groupKey, &optionsRaw, &conditionRaw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Type = QuestionType(qType)
		if groupKey.Valid {
			q.Group = groupKey.String
		}
		if len(optionsRaw) > 0 {
			if err := json.Unmarshal(optionsRaw, &q.Options); err != nil {
				return nil, fmt.Errorf("unmarshal options for %s: %w", q.Key, err)
			}
		}
		if len(conditionRaw) > 0 {
			q.Condition = &Condition{}
			if err := json.Unmarshal(conditionRaw, q.Condition); err != nil {
				return nil, fmt.Errorf("unmarshal condition for %s: %w", q.Key, err)
			}
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}

	return NewSchema(rec.Key, rec.Title, questions)
}

func nullBytes(v []byte) any {
	if len(v) == 0 {
		return nil
	}
	return v
}
