package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/common"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/entity"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/repository"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/service"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/sniffer"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/summary"
)

// MockExtractor is a mock implementation of Extractor
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, text string) ([]entity.Entity, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Entity), args.Error(1)
}

func (m *MockExtractor) ExtractBatch(ctx context.Context, texts []string) ([][]entity.Entity, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]entity.Entity), args.Error(1)
}

func (m *MockExtractor) Analyze(ctx context.Context, msg service.Message, source repository.Source) (*service.Analysis, error) {
	args := m.Called(ctx, msg, source)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Analysis), args.Error(1)
}

func (m *MockExtractor) Summarize(entities []entity.Entity) summary.Transaction {
	args := m.Called(entities)
	return args.Get(0).(summary.Transaction)
}

func (m *MockExtractor) Get(ctx context.Context, id uuid.UUID) (*repository.Extraction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Extraction), args.Error(1)
}

func (m *MockExtractor) Recent(ctx context.Context, limit int) ([]*repository.Extraction, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Extraction), args.Error(1)
}

func (m *MockExtractor) ExtractFile(ctx context.Context, data []byte) (*service.FileResult, error) {
	args := m.Called(ctx, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.FileResult), args.Error(1)
}

var hsbc = entity.Entity{Category: entity.Bank, Text: "HSBC", Start: 1, End: 2, Confidence: 0.8, Source: entity.FromPattern}

func setup(t *testing.T) (*MockExtractor, *ExtractorServiceClient) {
	t.Helper()
	svc := new(MockExtractor)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	path, h := NewExtractorServiceHandler(NewExtractorHandler(svc, logger))
	mux := http.NewServeMux()
	mux.Handle(path, h)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return svc, NewExtractorServiceClient(srv.Client(), srv.URL)
}

func TestExtract(t *testing.T) {
	svc, client := setup(t)
	svc.On("Extract", mock.Anything, "HSBC card ****9273").Return([]entity.Entity{hsbc}, nil)

	resp, err := client.Extract(context.Background(), connect.NewRequest(&ExtractRequest{Text: "HSBC card ****9273"}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Entities, 1)
	assert.Equal(t, hsbc, resp.Msg.Entities[0])
	svc.AssertExpectations(t)
}

func TestExtract_ErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code connect.Code
	}{
		{"classifier", fmt.Errorf("%w: timeout", service.ErrClassifier), connect.CodeUnavailable},
		{"deadline", context.DeadlineExceeded, connect.CodeDeadlineExceeded},
		{"unexpected", errors.New("boom"), connect.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, client := setup(t)
			svc.On("Extract", mock.Anything, "card").Return(nil, tt.err)

			_, err := client.Extract(context.Background(), connect.NewRequest(&ExtractRequest{Text: "card"}))
			assert.Equal(t, tt.code, connect.CodeOf(err))
		})
	}
}

func TestExtract_InvalidArgument(t *testing.T) {
	svc, client := setup(t)

	for _, text := range []string{"", "   ", strings.Repeat("a", maxTextBytes+1)} {
		_, err := client.Extract(context.Background(), connect.NewRequest(&ExtractRequest{Text: text}))
		assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	}
	svc.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestExtractBatch(t *testing.T) {
	svc, client := setup(t)
	texts := []string{"HSBC", ""}
	svc.On("ExtractBatch", mock.Anything, texts).Return([][]entity.Entity{{hsbc}, {}}, nil)

	resp, err := client.ExtractBatch(context.Background(), connect.NewRequest(&ExtractBatchRequest{Texts: texts}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Results, 2)
	assert.Len(t, resp.Msg.Results[0].Entities, 1)
	assert.Empty(t, resp.Msg.Results[1].Entities)

	_, err = client.ExtractBatch(context.Background(), connect.NewRequest(&ExtractBatchRequest{}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = client.ExtractBatch(context.Background(), connect.NewRequest(&ExtractBatchRequest{Texts: make([]string, maxBatchSize+1)}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestAnalyze(t *testing.T) {
	svc, client := setup(t)
	amount := decimal.RequireFromString("280.45")
	sender := "HSBC"
	id := uuid.New()

	svc.On("Analyze", mock.Anything, service.Message{Text: "HSBC debited SAR 280.45", Sender: &sender}, repository.SourceRPC).
		Return(&service.Analysis{
			Extraction: &repository.Extraction{
				ID:          id,
				Entities:    []entity.Entity{hsbc},
				Transaction: summary.Transaction{Bank: "HSBC", Amount: &amount, Currency: "SAR", Direction: summary.Debit},
				CreatedAt:   time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC),
			},
			Stored: true,
		}, nil)

	resp, err := client.Analyze(context.Background(), connect.NewRequest(&AnalyzeRequest{Text: "HSBC debited SAR 280.45", Sender: &sender}))
	require.NoError(t, err)
	assert.Equal(t, id.String(), resp.Msg.ID)
	assert.True(t, resp.Msg.Stored)
	assert.Equal(t, "SAR", resp.Msg.Transaction.Currency)
	require.NotNil(t, resp.Msg.Transaction.Amount)
	assert.True(t, amount.Equal(*resp.Msg.Transaction.Amount))
}

func TestSummarize(t *testing.T) {
	svc, client := setup(t)
	svc.On("Summarize", []entity.Entity{hsbc}).Return(summary.Transaction{Bank: "HSBC"})

	resp, err := client.Summarize(context.Background(), connect.NewRequest(&SummarizeRequest{Entities: []entity.Entity{hsbc}}))
	require.NoError(t, err)
	assert.Equal(t, "HSBC", resp.Msg.Transaction.Bank)

	_, err = client.Summarize(context.Background(), connect.NewRequest(&SummarizeRequest{}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestGetExtraction(t *testing.T) {
	svc, client := setup(t)
	found, missing := uuid.New(), uuid.New()
	svc.On("Get", mock.Anything, found).Return(&repository.Extraction{ID: found, Message: "m"}, nil)
	svc.On("Get", mock.Anything, missing).Return(nil, common.ErrNotFound)

	resp, err := client.GetExtraction(context.Background(), connect.NewRequest(&GetExtractionRequest{ID: found.String()}))
	require.NoError(t, err)
	assert.Equal(t, found, resp.Msg.ID)

	_, err = client.GetExtraction(context.Background(), connect.NewRequest(&GetExtractionRequest{ID: missing.String()}))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	_, err = client.GetExtraction(context.Background(), connect.NewRequest(&GetExtractionRequest{ID: "nope"}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestListExtractions(t *testing.T) {
	svc, client := setup(t)
	svc.On("Recent", mock.Anything, defaultLimit).Return(nil, common.ErrStoreDisabled).Once()
	svc.On("Recent", mock.Anything, 5).Return(nil, nil).Once()

	_, err := client.ListExtractions(context.Background(), connect.NewRequest(&ListExtractionsRequest{}))
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))

	resp, err := client.ListExtractions(context.Background(), connect.NewRequest(&ListExtractionsRequest{Limit: 5}))
	require.NoError(t, err)
	assert.NotNil(t, resp.Msg.Extractions)
	assert.Empty(t, resp.Msg.Extractions)
}

func TestExtractFile(t *testing.T) {
	svc, client := setup(t)
	data := []byte("body\nHSBC card ****9273\n")
	svc.On("ExtractFile", mock.Anything, data).Return(&service.FileResult{
		Fingerprint:   "abc",
		RowsTotal:     1,
		RowsExtracted: 1,
		Rows: []service.FileRow{{Line: 2, Analysis: &service.Analysis{
			Extraction: &repository.Extraction{ID: uuid.New(), Entities: []entity.Entity{hsbc}},
		}}},
	}, nil).Once()
	svc.On("ExtractFile", mock.Anything, []byte("x")).Return(nil, fmt.Errorf("failed to map columns: %w", sniffer.ErrNoMessageCol)).Once()

	resp, err := client.ExtractFile(context.Background(), connect.NewRequest(&ExtractFileRequest{Data: data}))
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Msg.RowsExtracted)
	require.Len(t, resp.Msg.Rows, 1)
	assert.Equal(t, 2, resp.Msg.Rows[0].Line)

	_, err = client.ExtractFile(context.Background(), connect.NewRequest(&ExtractFileRequest{Data: []byte("x")}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = client.ExtractFile(context.Background(), connect.NewRequest(&ExtractFileRequest{}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}
