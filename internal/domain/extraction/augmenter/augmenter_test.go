package augmenter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/decoder"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/entity"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/lexicon"
)

type span struct {
	Category entity.Category
	Start    int
	End      int
	Text     string
}

func spans(cands []entity.Candidate) []span {
	out := make([]span, 0, len(cands))
	for _, c := range cands {
		out = append(out, span{Category: c.Category, Start: c.Start, End: c.End, Text: c.Text()})
	}
	return out
}

func only(cands []entity.Candidate, cat entity.Category) []entity.Candidate {
	var out []entity.Candidate
	for _, c := range cands {
		if c.Category == cat {
			out = append(out, c)
		}
	}
	return out
}

func TestAugment_EnglishDebit(t *testing.T) {
	tokens := []string{"[CLS]", "HS", "##BC", "card", "****", "92", "##73", "Debited", "SAR", "280", ".", "45", "[SEP]"}

	got := New(lexicon.Default()).Augment(tokens, nil)
	assert.ElementsMatch(t, []span{
		{entity.Bank, 1, 2, "HSBC"},
		{entity.Card, 4, 6, "****9273"},
		{entity.TransactionType, 7, 7, "Debited"},
		{entity.Amount, 8, 11, "SAR 280.45"},
	}, spans(got))

	for _, c := range got {
		assert.Equal(t, entity.FromPattern, c.Source)
		assert.InDelta(t, decoder.FallbackConfidence, c.Confidence, 1e-9)
	}
}

func TestAugment_ArabicDebit(t *testing.T) {
	tokens := []string{"[CLS]", "تم", "خ", "##ص", "##م", "543", ".", "25", "جنيه", "[SEP]"}

	got := New(nil).Augment(tokens, nil)
	assert.ElementsMatch(t, []span{
		{entity.TransactionType, 1, 4, "تم خصم"},
		{entity.Amount, 5, 8, "543.25 جنيه"},
	}, spans(got))
}

func TestAugment_Dates(t *testing.T) {
	a := New(nil)

	got := a.Augment([]string{"on", "15", "##/", "##10", "##/", "##2025"}, nil)
	assert.Equal(t, []span{{entity.Date, 1, 5, "15/10/2025"}}, spans(got))

	got = a.Augment([]string{"15", "-", "10", "-", "2025"}, nil)
	assert.Equal(t, []span{{entity.Date, 0, 4, "15-10-2025"}}, spans(got))

	got = a.Augment([]string{"2025", "##/", "##10", "##/", "##15"}, nil)
	assert.Len(t, got, 1)

	// Three-digit lead and truncated shapes do not match.
	assert.Empty(t, a.Augment([]string{"150", "##/", "##10", "##/", "##2025"}, nil))
	assert.Empty(t, a.Augment([]string{"15", "##/", "##10", "##/"}, nil))
	assert.Empty(t, a.Augment([]string{"15", "##/", "##ab", "##/", "##2025"}, nil))
}

func TestAugment_CurrencyNeedsAmount(t *testing.T) {
	a := New(nil)
	assert.Empty(t, only(a.Augment([]string{"SAR", "card"}, nil), entity.Amount))
	assert.Empty(t, only(a.Augment([]string{"SAR", "."}, nil), entity.Amount))
	assert.Empty(t, only(a.Augment([]string{"card", "جنيه"}, nil), entity.Amount))
	assert.Empty(t, only(a.Augment([]string{",", "جنيه"}, nil), entity.Amount))
}

func TestAugment_AmountLookahead(t *testing.T) {
	tokens := []string{"egp"}
	for range 12 {
		tokens = append(tokens, "1")
	}
	got := only(New(nil).Augment(tokens, nil), entity.Amount)
	require.Len(t, got, 1)
	assert.Equal(t, 10, got[0].End)
}

func TestAugment_Card(t *testing.T) {
	a := New(nil)
	assert.Empty(t, a.Augment([]string{"****", "card"}, nil))

	got := a.Augment([]string{"XX", "**", "1", "2", "3", "4", "5"}, nil)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Start)
	assert.Equal(t, 5, got[0].End)
}

func TestAugment_Merchant(t *testing.T) {
	a := New(nil)

	got := a.Augment([]string{"at", "voda", "##fone", "store", "mall", "center"}, nil)
	assert.Equal(t, []span{{entity.Merchant, 1, 4, "vodafone store mall"}}, spans(got))

	got = a.Augment([]string{"Carrefour"}, nil)
	assert.Equal(t, []span{{entity.Merchant, 0, 0, "Carrefour"}}, spans(got))
}

func TestAugment_TransactionVerbs(t *testing.T) {
	a := New(nil)

	assert.Equal(t, []span{{entity.TransactionType, 0, 1, "repayment"}}, spans(a.Augment([]string{"re", "##payment"}, nil)))
	assert.Equal(t, []span{{entity.TransactionType, 0, 1, "transferred"}}, spans(a.Augment([]string{"transfer", "##red"}, nil)))
	assert.Empty(t, a.Augment([]string{"x", "##payment"}, nil))
}

func TestAugment_BankURL(t *testing.T) {
	a := New(nil)

	tokens := []string{"visit", "https", "www", "hsbc", "com", "eg", "now"}
	refs := only(a.Augment(tokens, nil), entity.Ref)
	assert.Equal(t, []span{{entity.Ref, 1, 5, "https www hsbc com eg"}}, spans(refs))

	refs = only(a.Augment([]string{"mybank", "com"}, nil), entity.Ref)
	assert.Len(t, refs, 1)

	assert.Empty(t, only(a.Augment([]string{"shop", "com"}, nil), entity.Ref))
	assert.Empty(t, only(a.Augment([]string{"hsbc", "net"}, nil), entity.Ref))
}

func TestAugment_Confidence(t *testing.T) {
	tokens := []string{"SAR", "280"}
	probs := [][]float32{{0.6, 0.4}, {0.2, 0.8}}
	got := New(nil).Augment(tokens, probs)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.7, got[0].Confidence, 1e-6)
}

func TestRuleRegistry(t *testing.T) {
	names := make(map[string]bool)
	for _, r := range rules {
		assert.False(t, names[r.name], "duplicate rule %s", r.name)
		names[r.name] = true
		assert.NotEqual(t, entity.CategoryUnknown, r.category, r.name)
		assert.NotNil(t, r.trigger, r.name)
	}
	assert.True(t, names["currency-leading"])
	assert.True(t, names["currency-trailing"])
}
