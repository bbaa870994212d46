// Package repository persists extraction records.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/entity"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/summary"
)

// Source tells which surface produced an extraction.
type Source string

const (
	SourceRPC  Source = "rpc"
	SourceFile Source = "file"
)

// Extraction is one processed message with its entities and folded transaction.
type Extraction struct {
	ID          uuid.UUID           `json:"id"`
	Source      Source              `json:"source"`
	Message     string              `json:"message"`
	Sender      *string             `json:"sender,omitempty"`
	Entities    []entity.Entity     `json:"entities"`
	Transaction summary.Transaction `json:"transaction"`
	CreatedAt   time.Time           `json:"created_at"`
}

// ExtractionRepository defines data access operations for extraction records.
type ExtractionRepository interface {
	SaveExtraction(ctx context.Context, e *Extraction) error
	// GetExtraction returns common.ErrNotFound when id is unknown.
	GetExtraction(ctx context.Context, id uuid.UUID) (*Extraction, error)
	// ListRecent returns at most limit records, newest first.
	ListRecent(ctx context.Context, limit int) ([]*Extraction, error)
}
