package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/repository"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/sniffer"
)

// StreamResult is the outcome for one streamed message, tagged with its Seq.
type StreamResult struct {
	Seq      int
	Analysis *Analysis
	Err      error
}

// ExtractStream analyzes messages with a fixed worker pool. Results arrive in completion
// order and the channel is closed once messages is drained or ctx is done.
func (s *Extractor) ExtractStream(ctx context.Context, messages <-chan Message, source repository.Source) <-chan StreamResult {
	results := make(chan StreamResult, s.workers*4)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				var msg Message
				var ok bool
				select {
				case <-ctx.Done():
					return
				case msg, ok = <-messages:
					if !ok {
						return
					}
				}

				analysis, err := s.Analyze(ctx, msg, source)
				select {
				case results <- StreamResult{Seq: msg.Seq, Analysis: analysis, Err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// FileRow is one analyzed line of an export file.
type FileRow struct {
	Line int `json:"line"`
	*Analysis
}

// FileResult summarizes an export file run.
type FileResult struct {
	Fingerprint   string    `json:"fingerprint"`
	RowsTotal     int       `json:"rows_total"`
	RowsExtracted int       `json:"rows_extracted"`
	RowsFailed    int       `json:"rows_failed"`
	Rows          []FileRow `json:"rows"`
	Errors        []string  `json:"errors,omitempty"`
}

// ExtractFile sniffs a CSV/TSV message export, streams every row through the pipeline and
// returns the rows in file order. Per-row failures are collected, not fatal.
func (s *Extractor) ExtractFile(ctx context.Context, data []byte) (*FileResult, error) {
	config, err := sniffer.DetectConfig(data)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze file: %w", err)
	}
	cols, err := sniffer.SuggestColumns(config.Headers)
	if err != nil {
		return nil, fmt.Errorf("failed to map columns: %w", err)
	}

	s.logger.Info("extracting export file",
		"fingerprint", config.Fingerprint,
		"delimiter", string(config.Delimiter),
		"message_col", cols.MessageCol,
		"date_col", cols.DateCol,
		"sender_col", cols.SenderCol,
	)

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	messages := make(chan Message, s.workers*4)
	var readErrors []lineError
	go func() {
		defer close(messages)
		readErrors = s.readMessages(streamCtx, data, config, cols, messages)
	}()

	result := &FileResult{Fingerprint: config.Fingerprint}
	var rowErrors []lineError
	for res := range s.ExtractStream(streamCtx, messages, repository.SourceFile) {
		if res.Err != nil {
			rowErrors = append(rowErrors, lineError{line: res.Seq, err: res.Err})
			continue
		}
		result.Rows = append(result.Rows, FileRow{Line: res.Seq, Analysis: res.Analysis})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// the reader finished before the stream closed
	rowErrors = append(rowErrors, readErrors...)
	sort.Slice(rowErrors, func(i, j int) bool { return rowErrors[i].line < rowErrors[j].line })
	for _, e := range rowErrors {
		result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", e.line, e.err))
	}
	sort.Slice(result.Rows, func(i, j int) bool { return result.Rows[i].Line < result.Rows[j].Line })

	result.RowsExtracted = len(result.Rows)
	result.RowsFailed = len(rowErrors)
	result.RowsTotal = result.RowsExtracted + result.RowsFailed
	return result, nil
}

var errEmptyMessage = errors.New("empty message")

type lineError struct {
	line int
	err  error
}

// readMessages feeds data rows to out and returns the rows it could not use.
func (s *Extractor) readMessages(ctx context.Context, data []byte, config *sniffer.FileConfig, cols *sniffer.ColumnSuggestions, out chan<- Message) []lineError {
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	reader.Comma = config.Delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	if err := sniffer.SkipToHeader(reader, config.Headers); err != nil {
		return []lineError{{err: err}}
	}

	var errs []lineError
	for {
		if ctx.Err() != nil {
			return errs
		}
		record, err := reader.Read()
		if err == io.EOF {
			return errs
		}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return append(errs, lineError{err: err})
			}
			errs = append(errs, lineError{line: parseErr.StartLine, err: parseErr.Err})
			continue
		}
		line, _ := reader.FieldPos(0)

		text := column(record, cols.MessageCol)
		if text == "" {
			errs = append(errs, lineError{line: line, err: errEmptyMessage})
			continue
		}
		msg := Message{Seq: line, Text: text, Date: column(record, cols.DateCol)}
		if sender := column(record, cols.SenderCol); sender != "" {
			msg.Sender = &sender
		}

		select {
		case out <- msg:
		case <-ctx.Done():
			return errs
		}
	}
}

func column(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
