package classifier

import "math"

// Softmax converts one logit vector into probabilities.
func Softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}
	maxVal := logits[0]
	for _, v := range logits[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	sum := 0.0
	out := make([]float32, len(logits))
	for i, v := range logits {
		exp := math.Exp(float64(v - maxVal))
		out[i] = float32(exp)
		sum += exp
	}
	if sum == 0 {
		return out
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}

// Rows splits a flat [seqLen*numLabels] logit buffer into soft-maxed rows.
func Rows(flat []float32, seqLen, numLabels int) ([][]float32, error) {
	if numLabels <= 0 || len(flat) < seqLen*numLabels {
		return nil, ErrShapeMismatch
	}
	rows := make([][]float32, seqLen)
	for i := range rows {
		rows[i] = Softmax(flat[i*numLabels : (i+1)*numLabels])
	}
	return rows, nil
}
