// Package remote provides a Classifier that calls a model-serving sidecar over HTTP.
// Unlike a best-effort enrichment layer, failures are returned to the caller.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/classifier"
)

var ErrUnavailable = errors.New("classifier sidecar unavailable")

// Client calls the sidecar's /classify endpoint.
type Client struct {
	url  string
	http *http.Client
}

// New creates a client for baseURL (e.g. "http://ner-model:8001").
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url: strings.TrimRight(baseURL, "/") + "/classify",
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

type classifyResponse struct {
	Probabilities [][]float32 `json:"probabilities"`
	Logits        [][]float32 `json:"logits"`
}

// Classify sends one encoded sequence and returns a probability row per position.
// A sidecar that answers with raw logits is soft-maxed locally.
func (c *Client) Classify(ctx context.Context, in classifier.Input) ([][]float32, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("remote classifier: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("remote classifier: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("remote classifier: decode: %w", err)
	}

	rows := result.Probabilities
	if len(rows) == 0 && len(result.Logits) > 0 {
		rows = make([][]float32, len(result.Logits))
		for i, logits := range result.Logits {
			rows[i] = classifier.Softmax(logits)
		}
	}
	if len(rows) != len(in.IDs) {
		return nil, fmt.Errorf("%w: got %d rows for %d positions", classifier.ErrShapeMismatch, len(rows), len(in.IDs))
	}
	return rows, nil
}
