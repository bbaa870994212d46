package handler

import (
	"time"

	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/entity"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/repository"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/summary"
)

type ExtractRequest struct {
	Text string `json:"text"`
}

type ExtractResponse struct {
	Entities []entity.Entity `json:"entities"`
}

type ExtractBatchRequest struct {
	Texts []string `json:"texts"`
}

type ExtractBatchResponse struct {
	Results []ExtractResponse `json:"results"`
}

type AnalyzeRequest struct {
	Text   string  `json:"text"`
	Sender *string `json:"sender,omitempty"`
	// Date is the message's received time, used when the text carries none.
	Date string `json:"date,omitempty"`
}

type AnalyzeResponse struct {
	ID          string              `json:"id"`
	Entities    []entity.Entity     `json:"entities"`
	Transaction summary.Transaction `json:"transaction"`
	Stored      bool                `json:"stored"`
	CreatedAt   time.Time           `json:"created_at"`
}

type SummarizeRequest struct {
	Entities []entity.Entity `json:"entities"`
}

type SummarizeResponse struct {
	Transaction summary.Transaction `json:"transaction"`
}

type GetExtractionRequest struct {
	ID string `json:"id"`
}

type ListExtractionsRequest struct {
	Limit int `json:"limit"`
}

type ListExtractionsResponse struct {
	Extractions []*repository.Extraction `json:"extractions"`
}

type ExtractFileRequest struct {
	// Data is the raw CSV/TSV export, base64 encoded on the wire.
	Data []byte `json:"data"`
}

type ExtractFileRow struct {
	Line int `json:"line"`
	AnalyzeResponse
}

type ExtractFileResponse struct {
	Fingerprint   string           `json:"fingerprint"`
	RowsTotal     int              `json:"rows_total"`
	RowsExtracted int              `json:"rows_extracted"`
	RowsFailed    int              `json:"rows_failed"`
	Rows          []ExtractFileRow `json:"rows"`
	Errors        []string         `json:"errors,omitempty"`
}
