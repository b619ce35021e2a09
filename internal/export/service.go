package export

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"grantflow/internal/collection"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrInvalidMode       = errors.New("invalid submission mode")
)

// Format selects the output encoding of an export stream.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Observer receives a record of each finished export stream.
type Observer interface {
	ObserveExport(format string, rows int64)
}

type ServiceOptions struct {
	Delimiter  string
	TrimUnused bool
	Observer   Observer
}

// Service streams collection submissions out of the database in a chosen
// format. Rows are read and written one at a time; only the TrimUnused
// pre-pass touches the batch twice, and even then one submission at a time.
type Service struct {
	db          *sql.DB
	collections *collection.Service
	obs         Observer
	delimiter   string
	trimUnused  bool
}

func NewService(db *sql.DB, collections *collection.Service, opts ServiceOptions) *Service {
	return &Service{
		db:          db,
		collections: collections,
		obs:         opts.Observer,
		delimiter:   opts.Delimiter,
		trimUnused:  opts.TrimUnused,
	}
}

type ExportInput struct {
	CollectionID uuid.UUID
	Mode         string
	Format       Format
}

const submissionQuery = `
SELECT reference, created_by, created_at, status, submitted_at, data
FROM submissions
WHERE collection_id = $1 AND mode = $2
ORDER BY created_at ASC, id ASC`

// Export writes all submissions of a collection, in the given mode, to w.
// The error cases a caller can act on: collection.ErrCollectionNotFound,
// ErrInvalidMode, ErrUnsupportedFormat, and a *FlatteningError when the
// schema cannot be rendered with the configured delimiter. Any error after
// the first row means the stream is incomplete.
func (s *Service) Export(ctx context.Context, w io.Writer, in ExportInput) error {
	mode := in.Mode
	if mode == "" {
		mode = "live"
	}
	if mode != "live" && mode != "test" {
		return fmt.Errorf("%w: %q", ErrInvalidMode, in.Mode)
	}

	schema, err := s.collections.LoadSchema(ctx, in.CollectionID)
	if err != nil {
		return err
	}
	f, err := NewFlattener(schema, Options{Delimiter: s.delimiter})
	if err != nil {
		return err
	}

	if s.trimUnused {
		union, err := s.activeUnion(ctx, schema, in.CollectionID, mode)
		if err != nil {
			return err
		}
		f.RestrictTo(union)
	}

	rows, err := s.db.QueryContext(ctx, submissionQuery, in.CollectionID, mode)
	if err != nil {
		return fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	src := &rowSource{rows: rows}
	var written int64
	switch in.Format {
	case FormatCSV:
		written, err = WriteCSV(ctx, w, f, src)
	case FormatJSON:
		written, err = WriteJSON(ctx, w, f, src)
	case FormatXLSX:
		written, err = WriteXLSX(ctx, w, f, src)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, in.Format)
	}
	if s.obs != nil {
		s.obs.ObserveExport(string(in.Format), written)
	}
	return err
}

// activeUnion is the TrimUnused pre-pass: it re-reads the batch and resolves
// each submission's active set without retaining the submissions themselves.
func (s *Service) activeUnion(ctx context.Context, schema *collection.Schema, collectionID uuid.UUID, mode string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, submissionQuery, collectionID, mode)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	src := &rowSource{rows: rows}
	union := make(map[string]bool)
	for {
		rec, err := src.Next(ctx)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			break
		}
		active := collection.Resolve(schema, rec.Answers)
		for _, k := range active.Keys() {
			union[k] = true
		}
	}
	return union, nil
}

// rowSource adapts a sql.Rows cursor over the submissions table to
// SubmissionSource.
type rowSource struct {
	rows *sql.Rows
}

func (s *rowSource) Next(ctx context.Context) (*SubmissionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate submissions: %w", err)
		}
		return nil, nil
	}

	var (
		rec         SubmissionRecord
		createdAt   time.Time
		submittedAt sql.NullTime
		data        []byte
	)
	if err := s.rows.Scan(&rec.Reference, &rec.CreatedBy, &createdAt, &rec.Status, &submittedAt, &data); err != nil {
		return nil, fmt.Errorf("scan submission: %w", err)
	}
	rec.CreatedAt = createdAt
	if submittedAt.Valid {
		t := submittedAt.Time
		rec.SubmittedAt = &t
	}

	answers, err := collection.ParseAnswerDocument(data)
	if err != nil {
		return nil, fmt.Errorf("decode answers for %s: %w", rec.Reference, err)
	}
	rec.Answers = answers
	return &rec, nil
}
