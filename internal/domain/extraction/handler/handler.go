// Package handler exposes the extraction service over Connect RPC.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/common"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/entity"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/repository"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/service"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/sniffer"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/summary"
)

const (
	maxTextBytes = 4 << 10
	maxBatchSize = 256
	defaultLimit = 50
)

// Extractor is the service surface the handler depends on.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]entity.Entity, error)
	ExtractBatch(ctx context.Context, texts []string) ([][]entity.Entity, error)
	Analyze(ctx context.Context, msg service.Message, source repository.Source) (*service.Analysis, error)
	Summarize(entities []entity.Entity) summary.Transaction
	Get(ctx context.Context, id uuid.UUID) (*repository.Extraction, error)
	Recent(ctx context.Context, limit int) ([]*repository.Extraction, error)
	ExtractFile(ctx context.Context, data []byte) (*service.FileResult, error)
}

// ExtractorHandler implements ExtractorServiceHandler.
type ExtractorHandler struct {
	svc    Extractor
	logger *slog.Logger
}

var _ ExtractorServiceHandler = (*ExtractorHandler)(nil)

// NewExtractorHandler constructs a new handler.
func NewExtractorHandler(svc Extractor, logger *slog.Logger) *ExtractorHandler {
	return &ExtractorHandler{svc: svc, logger: logger}
}

// Extract returns the entities of one message.
func (h *ExtractorHandler) Extract(
	ctx context.Context,
	req *connect.Request[ExtractRequest],
) (*connect.Response[ExtractResponse], error) {
	if err := validateText(req.Msg.Text); err != nil {
		return nil, err
	}

	entities, err := h.svc.Extract(ctx, req.Msg.Text)
	if err != nil {
		return nil, h.toConnectError(err)
	}
	return connect.NewResponse(&ExtractResponse{Entities: entities}), nil
}

// ExtractBatch returns entities for every text, in request order.
func (h *ExtractorHandler) ExtractBatch(
	ctx context.Context,
	req *connect.Request[ExtractBatchRequest],
) (*connect.Response[ExtractBatchResponse], error) {
	texts := req.Msg.Texts
	if len(texts) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("texts is required"))
	}
	if len(texts) > maxBatchSize {
		return nil, connect.NewError(connect.CodeInvalidArgument,
			fmt.Errorf("batch of %d exceeds the limit of %d", len(texts), maxBatchSize))
	}
	for i, text := range texts {
		if len(text) > maxTextBytes || !utf8.ValidString(text) {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("texts[%d] is invalid", i))
		}
	}

	results, err := h.svc.ExtractBatch(ctx, texts)
	if err != nil {
		return nil, h.toConnectError(err)
	}

	resp := &ExtractBatchResponse{Results: make([]ExtractResponse, len(results))}
	for i, entities := range results {
		resp.Results[i] = ExtractResponse{Entities: entities}
	}
	return connect.NewResponse(resp), nil
}

// Analyze extracts, summarizes and stores one message.
func (h *ExtractorHandler) Analyze(
	ctx context.Context,
	req *connect.Request[AnalyzeRequest],
) (*connect.Response[AnalyzeResponse], error) {
	if err := validateText(req.Msg.Text); err != nil {
		return nil, err
	}

	analysis, err := h.svc.Analyze(ctx, service.Message{
		Text:   req.Msg.Text,
		Sender: req.Msg.Sender,
		Date:   req.Msg.Date,
	}, repository.SourceRPC)
	if err != nil {
		return nil, h.toConnectError(err)
	}
	return connect.NewResponse(toAnalyzeResponse(analysis)), nil
}

// Summarize folds caller-supplied entities into a transaction.
func (h *ExtractorHandler) Summarize(
	_ context.Context,
	req *connect.Request[SummarizeRequest],
) (*connect.Response[SummarizeResponse], error) {
	if len(req.Msg.Entities) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("entities is required"))
	}
	return connect.NewResponse(&SummarizeResponse{Transaction: h.svc.Summarize(req.Msg.Entities)}), nil
}

// GetExtraction returns a stored extraction by id.
func (h *ExtractorHandler) GetExtraction(
	ctx context.Context,
	req *connect.Request[GetExtractionRequest],
) (*connect.Response[repository.Extraction], error) {
	id, err := uuid.Parse(req.Msg.ID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid id: %w", err))
	}

	rec, err := h.svc.Get(ctx, id)
	if err != nil {
		return nil, h.toConnectError(err)
	}
	return connect.NewResponse(rec), nil
}

// ListExtractions returns the most recent stored extractions.
func (h *ExtractorHandler) ListExtractions(
	ctx context.Context,
	req *connect.Request[ListExtractionsRequest],
) (*connect.Response[ListExtractionsResponse], error) {
	limit := req.Msg.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	recs, err := h.svc.Recent(ctx, limit)
	if err != nil {
		return nil, h.toConnectError(err)
	}
	if recs == nil {
		recs = []*repository.Extraction{}
	}
	return connect.NewResponse(&ListExtractionsResponse{Extractions: recs}), nil
}

// ExtractFile analyzes every message of a CSV/TSV export.
func (h *ExtractorHandler) ExtractFile(
	ctx context.Context,
	req *connect.Request[ExtractFileRequest],
) (*connect.Response[ExtractFileResponse], error) {
	if len(req.Msg.Data) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("data is required"))
	}

	result, err := h.svc.ExtractFile(ctx, req.Msg.Data)
	if err != nil {
		return nil, h.toConnectError(err)
	}

	resp := &ExtractFileResponse{
		Fingerprint:   result.Fingerprint,
		RowsTotal:     result.RowsTotal,
		RowsExtracted: result.RowsExtracted,
		RowsFailed:    result.RowsFailed,
		Rows:          make([]ExtractFileRow, 0, len(result.Rows)),
		Errors:        result.Errors,
	}
	for _, row := range result.Rows {
		resp.Rows = append(resp.Rows, ExtractFileRow{Line: row.Line, AnalyzeResponse: *toAnalyzeResponse(row.Analysis)})
	}
	return connect.NewResponse(resp), nil
}

func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return connect.NewError(connect.CodeInvalidArgument, errors.New("text is required"))
	}
	if len(text) > maxTextBytes {
		return connect.NewError(connect.CodeInvalidArgument,
			fmt.Errorf("text of %d bytes exceeds the limit of %d", len(text), maxTextBytes))
	}
	if !utf8.ValidString(text) {
		return connect.NewError(connect.CodeInvalidArgument, errors.New("text is not valid UTF-8"))
	}
	return nil
}

func toAnalyzeResponse(a *service.Analysis) *AnalyzeResponse {
	return &AnalyzeResponse{
		ID:          a.ID.String(),
		Entities:    a.Entities,
		Transaction: a.Transaction,
		Stored:      a.Stored,
		CreatedAt:   a.CreatedAt,
	}
}

// toConnectError maps domain errors to Connect codes.
func (h *ExtractorHandler) toConnectError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, service.ErrClassifier):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, common.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, common.ErrStoreDisabled):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, common.ErrBadRequest),
		errors.Is(err, sniffer.ErrEmptyFile),
		errors.Is(err, sniffer.ErrNoHeadersFound),
		errors.Is(err, sniffer.ErrNoMessageCol):
		return connect.NewError(connect.CodeInvalidArgument, err)
	default:
		h.logger.Error("unexpected extraction error", "error", err)
		return connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}
}
