package submission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"grantflow/internal/collection"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrSubmissionNotFound  = errors.New("submission not found")
	ErrQuestionNotFound    = errors.New("question not found")
	ErrSubmissionCompleted = errors.New("submission already completed")
)

// Submission lifecycle states.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Submission modes. Test submissions never mix into live exports.
const (
	ModeTest = "test"
	ModeLive = "live"
)

// Service owns submission persistence. Answers live in a single JSONB
// document per submission, updated under row locks so concurrent saves to
// the same submission serialise instead of clobbering each other.
type Service struct {
	db          *sql.DB
	collections *collection.Service
}

func NewService(db *sql.DB, collections *collection.Service) *Service {
	return &Service{db: db, collections: collections}
}

type Submission struct {
	ID           uuid.UUID            `json:"id"`
	CollectionID uuid.UUID            `json:"collection_id"`
	Reference    string               `json:"reference"`
	Mode         string               `json:"mode"`
	Status       string               `json:"status"`
	CreatedBy    string               `json:"created_by"`
	CreatedAt    time.Time            `json:"created_at"`
	SubmittedAt  *time.Time           `json:"submitted_at,omitempty"`
	Answers      collection.AnswerSet `json:"-"`
}

type CreateInput struct {
	CollectionID uuid.UUID
	Mode         string
	CreatedBy    string
}

// Create opens a new submission against a collection. The human-facing
// reference is derived from the submission id, so it is unique without a
// second sequence.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Submission, error) {
	if in.CollectionID == uuid.Nil {
		return nil, fmt.Errorf("%w: collection_id is required", ErrInvalidInput)
	}
	createdBy := strings.TrimSpace(in.CreatedBy)
	if createdBy == "" {
		return nil, fmt.Errorf("%w: created_by is required", ErrInvalidInput)
	}
	mode := in.Mode
	if mode == "" {
		mode = ModeLive
	}
	if mode != ModeTest && mode != ModeLive {
		return nil, fmt.Errorf("%w: mode must be test or live", ErrInvalidInput)
	}

	if _, err := s.collections.GetCollection(ctx, in.CollectionID); err != nil {
		return nil, err
	}

	id := uuid.New()
	out := Submission{Answers: collection.NewAnswerSet(nil)}
	if err := s.db.QueryRowContext(ctx, `
		INSERT INTO submissions (id, collection_id, reference, mode, status, created_by, created_at, data)
		VALUES ($1, $2, $3, $4, $5, $6, now(), '{}'::jsonb)
		RETURNING id, collection_id, reference, mode, status, created_by, created_at
	`, id, in.CollectionID, referenceFor(id), mode, StatusNotStarted, createdBy).Scan(
		&out.ID, &out.CollectionID, &out.Reference, &out.Mode, &out.Status, &out.CreatedBy, &out.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert submission: %w", err)
	}
	return &out, nil
}

// referenceFor derives the short reference shown to users: the first eight
// hex digits of the id, uppercased.
func referenceFor(id uuid.UUID) string {
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Submission, error) {
	var (
		out         Submission
		submittedAt sql.NullTime
		data        []byte
	)
	if err := s.db.QueryRowContext(ctx, `
		SELECT id, collection_id, reference, mode, status, created_by, created_at, submitted_at, data
		FROM submissions
		WHERE id = $1
	`, id).Scan(
		&out.ID, &out.CollectionID, &out.Reference, &out.Mode, &out.Status,
		&out.CreatedBy, &out.CreatedAt, &submittedAt, &data,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("load submission: %w", err)
	}
	if submittedAt.Valid {
		t := submittedAt.Time
		out.SubmittedAt = &t
	}

	answers, err := collection.ParseAnswerDocument(data)
	if err != nil {
		return nil, fmt.Errorf("submission %s: %w", out.Reference, err)
	}
	out.Answers = answers
	return &out, nil
}

type SaveAnswerInput struct {
	SubmissionID uuid.UUID
	QuestionKey  string
	Answer       collection.Answer
}

// SaveAnswer stores one typed answer. The answer is rejected up front when
// its kind contradicts the question type; answers to questions that are
// currently invisible are accepted and stored, because visibility can flip
// back and stored answers for inactive questions are inert everywhere else.
func (s *Service) SaveAnswer(ctx context.Context, in SaveAnswerInput) (*Submission, error) {
	key := strings.TrimSpace(in.QuestionKey)
	if in.SubmissionID == uuid.Nil || key == "" {
		return nil, fmt.Errorf("%w: submission id and question key are required", ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		collectionID uuid.UUID
		status       string
		data         []byte
	)
	if err := tx.QueryRowContext(ctx, `
		SELECT collection_id, status, data
		FROM submissions
		WHERE id = $1
		FOR UPDATE
	`, in.SubmissionID).Scan(&collectionID, &status, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("lock submission: %w", err)
	}
	if status == StatusCompleted {
		return nil, ErrSubmissionCompleted
	}

	schema, err := s.collections.LoadSchema(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	q, ok := schema.Question(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrQuestionNotFound, key)
	}
	if q.Type == collection.TypeGroup {
		return nil, fmt.Errorf("%w: %s is a group and takes no answer", ErrInvalidInput, key)
	}
	if !collection.TypeAcceptsKind(q.Type, in.Answer.Kind) {
		return nil, &collection.TypeMismatchError{Question: key, Want: q.Type, Got: in.Answer.Kind}
	}

	answers, err := collection.ParseAnswerDocument(data)
	if err != nil {
		return nil, fmt.Errorf("submission %s: %w", in.SubmissionID, err)
	}
	updated, err := collection.EncodeAnswerDocument(answers.With(key, in.Answer))
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE submissions
		SET data = $2::jsonb, status = $3
		WHERE id = $1
	`, in.SubmissionID, updated, StatusInProgress); err != nil {
		return nil, fmt.Errorf("update submission: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return s.Get(ctx, in.SubmissionID)
}

// Finalize validates the submission against its schema's active questions
// and, if clean, marks it completed. Failure returns the full aggregated
// *collection.ValidationError; the submission stays editable.
func (s *Service) Finalize(ctx context.Context, id uuid.UUID) (*Submission, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		collectionID uuid.UUID
		status       string
		data         []byte
	)
	if err := tx.QueryRowContext(ctx, `
		SELECT collection_id, status, data
		FROM submissions
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&collectionID, &status, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("lock submission: %w", err)
	}
	if status == StatusCompleted {
		return nil, ErrSubmissionCompleted
	}

	schema, err := s.collections.LoadSchema(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	answers, err := collection.ParseAnswerDocument(data)
	if err != nil {
		return nil, fmt.Errorf("submission %s: %w", id, err)
	}
	if result := collection.Validate(schema, answers); !result.OK() {
		return nil, result.Err()
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE submissions
		SET status = $2, submitted_at = now()
		WHERE id = $1
	`, id, StatusCompleted); err != nil {
		return nil, fmt.Errorf("update submission: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO submission_events (id, submission_id, event_type, created_at)
		VALUES ($1, $2, 'submission_submitted', now())
	`, uuid.New(), id); err != nil {
		return nil, fmt.Errorf("insert submission event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return s.Get(ctx, id)
}
