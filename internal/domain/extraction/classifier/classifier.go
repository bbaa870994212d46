// Package classifier defines the boundary to the token-classification model.
package classifier

import (
	"context"
	"errors"
)

var ErrShapeMismatch = errors.New("classifier output does not match input length")

// Input is one encoded sequence. All three slices have the same length.
type Input struct {
	IDs     []int64 `json:"input_ids"`
	Mask    []int64 `json:"attention_mask"`
	TypeIDs []int64 `json:"token_type_ids"`
}

// NewInput builds an input with all-zero segment ids.
func NewInput(ids, mask []int64) Input {
	return Input{IDs: ids, Mask: mask, TypeIDs: make([]int64, len(ids))}
}

// Classifier returns, for every input position, a probability vector over the label set.
type Classifier interface {
	Classify(ctx context.Context, in Input) ([][]float32, error)
}

// Func adapts a function to Classifier.
type Func func(ctx context.Context, in Input) ([][]float32, error)

func (f Func) Classify(ctx context.Context, in Input) ([][]float32, error) {
	return f(ctx, in)
}
