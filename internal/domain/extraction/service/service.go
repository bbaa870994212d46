// Package service runs the extraction pipeline: tokenize, classify, decode, augment and
// reconcile, plus the batch, stream and file variants built on it.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/common"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/augmenter"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/bundle"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/classifier"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/decoder"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/entity"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/lexicon"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/reconciler"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/repository"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/summary"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/tokenizer"
	"github.com/FACorreiaa/echo-entity-extractor/pkg/observability"
)

// ErrClassifier wraps every failure reported by the classifier.
var ErrClassifier = errors.New("classifier failed")

// Options tune an Extractor. The zero value is usable.
type Options struct {
	// MaxLength is the padded sequence length fed to the classifier.
	MaxLength int
	// Workers bounds ExtractBatch and ExtractStream concurrency; GOMAXPROCS when zero.
	Workers int
	Lexicon *lexicon.Lexicon
	// Location and DateFormat are used when parsing dates for summaries.
	Location   *time.Location
	DateFormat string
	// Repository, when set, stores every Analyze result.
	Repository repository.ExtractionRepository
	Metrics    *observability.Metrics
	Tracer     trace.Tracer
}

// Extractor is safe for concurrent use. Its collaborators are read-only after construction.
type Extractor struct {
	tokenizer  *tokenizer.Tokenizer
	classifier classifier.Classifier
	decoder    *decoder.Decoder
	augmenter  *augmenter.Augmenter
	reconciler *reconciler.Reconciler
	summarizer *summary.Summarizer

	repo    repository.ExtractionRepository
	metrics *observability.Metrics
	tracer  trace.Tracer
	logger  *slog.Logger

	maxLength int
	workers   int
}

// NewExtractor wires the pipeline over a loaded bundle and a classifier.
func NewExtractor(b *bundle.Bundle, clf classifier.Classifier, opts Options, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	lex := opts.Lexicon
	if lex == nil {
		lex = lexicon.Default()
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = tokenizer.DefaultMaxLength
	}
	if opts.Workers <= 0 {
		opts.Workers = max(1, runtime.GOMAXPROCS(0))
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("extraction/service")
	}

	return &Extractor{
		tokenizer:  tokenizer.New(b),
		classifier: clf,
		decoder:    decoder.New(b.Labels, b.Specials.IsStructural, lex),
		augmenter:  augmenter.New(lex),
		reconciler: reconciler.New(lex.Brands),
		summarizer: summary.New(lex, opts.Location, opts.DateFormat),
		repo:       opts.Repository,
		metrics:    opts.Metrics,
		tracer:     opts.Tracer,
		logger:     logger,
		maxLength:  opts.MaxLength,
		workers:    opts.Workers,
	}
}

// Extract runs the pipeline on one message. Blank text yields an empty list without
// calling the classifier.
func (s *Extractor) Extract(ctx context.Context, text string) ([]entity.Entity, error) {
	ctx, span := s.tracer.Start(ctx, "Extractor.Extract")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		s.metrics.ObserveExtraction("empty", 0, nil)
		return []entity.Entity{}, nil
	}

	start := time.Now()
	enc := s.tokenizer.Tokenize(text, s.maxLength, true, true)
	s.metrics.ObserveStage("tokenize", start)
	span.SetAttributes(attribute.Int("extraction.tokens", len(enc.Tokens)))

	start = time.Now()
	probs, err := s.classify(ctx, enc)
	s.metrics.ObserveStage("classify", start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.ObserveExtraction("error", len(enc.Tokens), nil)
		return nil, err
	}

	start = time.Now()
	tokens := enc.Texts()
	candidates := s.decoder.Decode(tokens, probs)
	candidates = append(candidates, s.augmenter.Augment(tokens, probs)...)
	entities := s.reconciler.Reconcile(candidates)
	s.metrics.ObserveStage("decode", start)

	if entities == nil {
		entities = []entity.Entity{}
	}
	span.SetAttributes(
		attribute.Int("extraction.candidates", len(candidates)),
		attribute.Int("extraction.entities", len(entities)),
	)
	s.metrics.ObserveExtraction("ok", len(enc.Tokens), countEntities(entities))
	return entities, nil
}

func (s *Extractor) classify(ctx context.Context, enc tokenizer.Result) ([][]float32, error) {
	ctx, span := s.tracer.Start(ctx, "Extractor.classify")
	defer span.End()

	probs, err := s.classifier.Classify(ctx, classifier.NewInput(enc.IDs, enc.Mask))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClassifier, err)
	}
	if len(probs) < len(enc.Tokens) {
		return nil, fmt.Errorf("%w: %w: %d rows for %d tokens",
			ErrClassifier, classifier.ErrShapeMismatch, len(probs), len(enc.Tokens))
	}
	return probs, nil
}

func countEntities(entities []entity.Entity) map[[2]string]int {
	counts := make(map[[2]string]int, len(entities))
	for _, e := range entities {
		counts[[2]string{e.Category.String(), string(e.Source)}]++
	}
	return counts
}

// Message is one notification with the optional metadata an export carries.
type Message struct {
	Seq    int
	Text   string
	Sender *string
	// Date is the export's own timestamp, used when the text has no parsable date.
	Date string
}

// Analyze extracts entities, folds them into a transaction and, when a repository is
// configured, stores the record. A storage failure is logged and reported through
// Stored rather than failing the extraction.
func (s *Extractor) Analyze(ctx context.Context, msg Message, source repository.Source) (*Analysis, error) {
	entities, err := s.Extract(ctx, msg.Text)
	if err != nil {
		return nil, err
	}

	tx := s.summarizer.Summarize(entities)
	if tx.Date == nil && msg.Date != "" {
		if d, ok := s.summarizer.ParseDate(msg.Date); ok {
			tx.Date = &d
		}
	}

	rec := &repository.Extraction{
		ID:          uuid.New(),
		Source:      source,
		Message:     msg.Text,
		Sender:      msg.Sender,
		Entities:    entities,
		Transaction: tx,
		CreatedAt:   time.Now().UTC(),
	}
	result := &Analysis{Extraction: rec}

	if s.repo != nil {
		if err := s.repo.SaveExtraction(ctx, rec); err != nil {
			s.logger.Warn("failed to store extraction", "id", rec.ID, "error", err)
		} else {
			result.Stored = true
		}
	}
	return result, nil
}

// Analysis is an extraction record plus whether it was persisted.
type Analysis struct {
	*repository.Extraction
	Stored bool `json:"stored"`
}

// Summarize folds already reconciled entities into a transaction.
func (s *Extractor) Summarize(entities []entity.Entity) summary.Transaction {
	return s.summarizer.Summarize(entities)
}

// Get returns a stored extraction.
func (s *Extractor) Get(ctx context.Context, id uuid.UUID) (*repository.Extraction, error) {
	if s.repo == nil {
		return nil, common.ErrStoreDisabled
	}
	return s.repo.GetExtraction(ctx, id)
}

// Recent lists stored extractions, newest first.
func (s *Extractor) Recent(ctx context.Context, limit int) ([]*repository.Extraction, error) {
	if s.repo == nil {
		return nil, common.ErrStoreDisabled
	}
	return s.repo.ListRecent(ctx, limit)
}

// ExtractBatch processes every text concurrently, at most Options.Workers at a time.
// Results are index-aligned with texts. The first failure cancels the rest and is returned.
func (s *Extractor) ExtractBatch(ctx context.Context, texts []string) ([][]entity.Entity, error) {
	ctx, span := s.tracer.Start(ctx, "Extractor.ExtractBatch", trace.WithAttributes(
		attribute.Int("extraction.batch_size", len(texts)),
	))
	defer span.End()

	results := make([][]entity.Entity, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, text := range texts {
		g.Go(func() error {
			entities, err := s.Extract(gctx, text)
			if err != nil {
				return fmt.Errorf("message %d: %w", i, err)
			}
			results[i] = entities
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return results, nil
}
