// Package reconciler merges model and pattern candidates into a final entity list in
// which no two entities of the same category overlap.
package reconciler

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/entity"
)

const (
	BrandBonus      = 10.0
	FragmentPenalty = 5.0
	// fragmentLength is the longest cleaned text that is penalized as a fragment.
	fragmentLength = 3
)

// DefaultBrands are names whose presence marks a candidate as a complete brand mention.
var DefaultBrands = []string{"HSBC", "CIB", "RAJHI", "VODAFONE"}

// Reconciler resolves same-category overlaps by score.
type Reconciler struct {
	brands []string
}

// New creates a reconciler with the given brand list, or DefaultBrands when empty.
func New(brands []string) *Reconciler {
	if len(brands) == 0 {
		brands = DefaultBrands
	}
	upper := make([]string, 0, len(brands))
	for _, b := range brands {
		if b = strings.ToUpper(strings.TrimSpace(b)); b != "" {
			upper = append(upper, b)
		}
	}
	return &Reconciler{brands: upper}
}

// Reconcile folds candidates in start order. Each candidate is compared with the kept
// candidates of its category that overlap it; the highest scoring of that group replaces
// the whole group. The incoming candidate is ranked first, so it wins ties.
func (r *Reconciler) Reconcile(candidates []entity.Candidate) []entity.Entity {
	sorted := append([]entity.Candidate(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	var kept []entity.Candidate
	for _, c := range sorted {
		group := []entity.Candidate{c}
		rest := kept[:0:0]
		for _, k := range kept {
			if k.Category == c.Category && k.Overlaps(c) {
				group = append(group, k)
			} else {
				rest = append(rest, k)
			}
		}

		best := group[0]
		bestScore := r.Score(best)
		for _, g := range group[1:] {
			if s := r.Score(g); s > bestScore {
				best, bestScore = g, s
			}
		}
		kept = append(rest, best)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Start < kept[j].Start
	})

	out := make([]entity.Entity, len(kept))
	for i, k := range kept {
		out[i] = entity.Entity{
			Category:   k.Category,
			Text:       k.Text(),
			Start:      k.Start,
			End:        k.End,
			Confidence: k.Confidence,
			Source:     k.Source,
		}
	}
	return out
}

// Score ranks a candidate: twice the text length plus confidence, a bonus when the text
// names a known brand, and a penalty for short non-numeric fragments. Length is measured on
// the whitespace-joined tokens (Candidate.Words), not the glued display text, so
// "280 . 45" counts 8 runes while its entity text reads "280.45".
func (r *Reconciler) Score(c entity.Candidate) float64 {
	clean := strings.TrimSpace(c.Words())
	length := utf8.RuneCountInString(clean)
	score := 2*float64(length) + c.Confidence

	compact := strings.ToUpper(strings.Join(strings.Fields(clean), ""))
	for _, brand := range r.brands {
		if strings.Contains(compact, brand) {
			score += BrandBonus
			break
		}
	}
	if length <= fragmentLength && !isNumeric(clean) {
		score -= FragmentPenalty
	}
	return score
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
