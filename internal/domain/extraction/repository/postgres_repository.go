package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/common"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/entity"
)

// PgxPool abstracts the subset of pgxpool.Pool used by the repository to allow mocking in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var (
	_ PgxPool              = (*pgxpool.Pool)(nil)
	_ ExtractionRepository = (*PostgresExtractionRepository)(nil)
)

const (
	maxListLimit = 500

	insertExtractionQuery = `
		INSERT INTO extractions (id, source, message, sender, entities, summary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	getExtractionQuery = `
		SELECT id, source, message, sender, entities, summary, created_at
		FROM extractions
		WHERE id = $1
	`

	listRecentQuery = `
		SELECT id, source, message, sender, entities, summary, created_at
		FROM extractions
		ORDER BY created_at DESC
		LIMIT $1
	`
)

// PostgresExtractionRepository implements ExtractionRepository using PostgreSQL.
// Entities and the transaction summary are stored as JSONB.
type PostgresExtractionRepository struct {
	pgpool PgxPool
}

// NewPostgresExtractionRepository creates a new PostgreSQL-backed extraction repository
func NewPostgresExtractionRepository(pgpool PgxPool) *PostgresExtractionRepository {
	return &PostgresExtractionRepository{pgpool: pgpool}
}

type extractionRow struct {
	ID        uuid.UUID `db:"id"`
	Source    string    `db:"source"`
	Message   string    `db:"message"`
	Sender    *string   `db:"sender"`
	Entities  []byte    `db:"entities"`
	Summary   []byte    `db:"summary"`
	CreatedAt time.Time `db:"created_at"`
}

func (row extractionRow) decode() (*Extraction, error) {
	e := &Extraction{
		ID:        row.ID,
		Source:    Source(row.Source),
		Message:   row.Message,
		Sender:    row.Sender,
		CreatedAt: row.CreatedAt,
	}
	if err := json.Unmarshal(row.Entities, &e.Entities); err != nil {
		return nil, fmt.Errorf("decode entities of %s: %w", row.ID, err)
	}
	if len(row.Summary) > 0 {
		if err := json.Unmarshal(row.Summary, &e.Transaction); err != nil {
			return nil, fmt.Errorf("decode summary of %s: %w", row.ID, err)
		}
	}
	return e, nil
}

// SaveExtraction inserts a record, assigning an ID and timestamp when unset.
func (r *PostgresExtractionRepository) SaveExtraction(ctx context.Context, e *Extraction) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Entities == nil {
		e.Entities = []entity.Entity{}
	}

	entities, err := json.Marshal(e.Entities)
	if err != nil {
		return fmt.Errorf("encode entities: %w", err)
	}
	summary, err := json.Marshal(e.Transaction)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	_, err = r.pgpool.Exec(ctx, insertExtractionQuery,
		e.ID, string(e.Source), e.Message, e.Sender, entities, summary, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save extraction: %w", err)
	}
	return nil
}

// GetExtraction retrieves one record by id.
func (r *PostgresExtractionRepository) GetExtraction(ctx context.Context, id uuid.UUID) (*Extraction, error) {
	rows, err := r.pgpool.Query(ctx, getExtractionQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get extraction: %w", err)
	}

	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[extractionRow])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan extraction: %w", err)
	}
	return row.decode()
}

// ListRecent returns the newest records. limit is clamped to [1, 500].
func (r *PostgresExtractionRepository) ListRecent(ctx context.Context, limit int) ([]*Extraction, error) {
	limit = max(1, min(limit, maxListLimit))

	rows, err := r.pgpool.Query(ctx, listRecentQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list extractions: %w", err)
	}

	collected, err := pgx.CollectRows(rows, pgx.RowToStructByName[extractionRow])
	if err != nil {
		return nil, fmt.Errorf("failed to scan extractions: %w", err)
	}

	out := make([]*Extraction, 0, len(collected))
	for _, row := range collected {
		e, err := row.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
