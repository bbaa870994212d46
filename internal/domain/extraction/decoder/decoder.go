// Package decoder turns per-token class probabilities into entity candidates with a BIO
// state machine. Tokens that look like financial values pass a lower confidence bar.
package decoder

import (
	"regexp"
	"strings"

	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/entity"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/lexicon"
)

const (
	// FinancialThreshold gates non-outside labels on plausible financial tokens.
	FinancialThreshold = 0.10
	// DefaultThreshold gates non-outside labels on every other token.
	DefaultThreshold = 0.30
	// FallbackConfidence is used when no probability is available for a candidate.
	FallbackConfidence = 0.8
)

var dashDatePattern = regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`)

// Decoder holds the read-only context for decoding.
type Decoder struct {
	labels     []entity.Label
	structural func(string) bool
	lex        *lexicon.Lexicon
}

// New builds a decoder. labels is indexed by classifier output class; structural reports
// the start, end and padding markers.
func New(labels []entity.Label, structural func(string) bool, lex *lexicon.Lexicon) *Decoder {
	if lex == nil {
		lex = lexicon.Default()
	}
	return &Decoder{labels: labels, structural: structural, lex: lex}
}

// Decode walks tokens with their probability vectors and returns candidates in token
// order. probs may be longer than tokens (padding positions) and is sliced first.
func (d *Decoder) Decode(tokens []string, probs [][]float32) []entity.Candidate {
	if len(probs) > len(tokens) {
		probs = probs[:len(tokens)]
	}

	var (
		out     []entity.Candidate
		current *entity.Candidate
		scores  []float64
	)
	flush := func() {
		if current == nil {
			return
		}
		current.Confidence = meanOr(scores, FallbackConfidence)
		out = append(out, *current)
		current, scores = nil, nil
	}

	for i, tok := range tokens {
		if d.structural != nil && d.structural(tok) {
			continue
		}

		label, p, ok := d.argmax(probs, i)
		threshold := DefaultThreshold
		if IsPlausibleFinancialToken(tok, d.lex) {
			threshold = FinancialThreshold
		}
		if !ok || label.IsOutside() || float64(p) < threshold {
			flush()
			continue
		}

		ref := entity.TokenRef{Text: tok, Index: i}
		switch {
		case label.Prefix == entity.Begin:
			flush()
			current = &entity.Candidate{Category: label.Category, Start: i, End: i, Source: entity.FromModel}
			current.Tokens = append(current.Tokens, ref)
			scores = append(scores, float64(p))
		case label.Prefix == entity.Inside && current != nil && current.Category == label.Category:
			current.Tokens = append(current.Tokens, ref)
			current.End = i
			scores = append(scores, float64(p))
		default:
			// An inside label without a matching open entity starts nothing.
			flush()
		}
	}
	flush()
	return out
}

// argmax returns the most probable label at position i.
func (d *Decoder) argmax(probs [][]float32, i int) (entity.Label, float32, bool) {
	if i >= len(probs) || len(probs[i]) == 0 {
		return entity.Label{}, 0, false
	}
	best := 0
	for j, p := range probs[i] {
		if p > probs[i][best] {
			best = j
		}
	}
	if best >= len(d.labels) {
		return entity.Label{}, 0, false
	}
	return d.labels[best], probs[i][best], true
}

// Confidence is the mean arg-max probability over the given token positions, or
// FallbackConfidence when none of them has a probability vector.
func Confidence(probs [][]float32, refs []entity.TokenRef) float64 {
	scores := make([]float64, 0, len(refs))
	for _, ref := range refs {
		if ref.Index < 0 || ref.Index >= len(probs) || len(probs[ref.Index]) == 0 {
			continue
		}
		best := probs[ref.Index][0]
		for _, p := range probs[ref.Index][1:] {
			if p > best {
				best = p
			}
		}
		scores = append(scores, float64(best))
	}
	return meanOr(scores, FallbackConfidence)
}

func meanOr(values []float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// IsPlausibleFinancialToken reports whether tok looks like part of an amount, card,
// date, bank name or transaction verb.
func IsPlausibleFinancialToken(tok string, lex *lexicon.Lexicon) bool {
	if tok == "" {
		return false
	}
	if isDigits(tok) || strings.Trim(tok, "*") == "" {
		return true
	}
	if rest, cont := entity.StripContinuation(tok); cont && isDigits(rest) {
		return true
	}
	if dashDatePattern.MatchString(tok) {
		return true
	}
	return lex.IsCurrency(tok) || lex.IsTransactionKeyword(tok) || lex.ContainsBankName(tok)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
