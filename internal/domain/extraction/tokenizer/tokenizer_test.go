package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/bundle"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/entity"
)

var testTokens = []string{
	"[PAD]", "[UNK]", "[CLS]", "[SEP]",
	"HS", "##BC", "card", "Debited", "debit", "##ed", "SAR",
	"280", ".", "45", "92", "##73",
	"15", "##/", "##10", "##2025", "-", "10", "2025",
	"un", "##aff", "##able",
	"https", "www",
	"تم", "خ", "##ص", "##م", "543", "25", "جنيه",
}

func newTestTokenizer(t *testing.T, lowercase bool) *Tokenizer {
	t.Helper()
	tokens := testTokens
	if lowercase {
		tokens = append([]string{}, testTokens...)
		for i, tok := range tokens {
			if !strings.HasPrefix(tok, "[") {
				tokens[i] = strings.ToLower(tok)
			}
		}
	}
	b, err := bundle.New(bundle.NewVocabulary(tokens), bundle.DefaultSpecialTokens, lowercase, []entity.Label{entity.OutsideLabel})
	require.NoError(t, err)
	return New(b)
}

// words tokenizes text and strips the start and end markers.
func words(tok *Tokenizer, text string) []string {
	texts := tok.Tokenize(text, 0, false, false).Texts()
	return texts[1 : len(texts)-1]
}

func TestTokenize_Rules(t *testing.T) {
	tok := newTestTokenizer(t, false)

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"greedy longest match", "unaffable", []string{"un", "##aff", "##able"}},
		{"vocabulary word", "card", []string{"card"}},
		{"unknown word", "zzz", []string{"[UNK]"}},
		{"unknown remainder", "unzz", []string{"un", "[UNK]"}},
		{"continuation split", "HSBC", []string{"HS", "##BC"}},
		{"masked card", "****9273", []string{"****", "92", "##73"}},
		{"url", "https://www.hsbc.com/eg?x=1", []string{"https", "www", "hsbc", "com", "eg", "x", "1"}},
		{"amount", "280.45", []string{"280", ".", "45"}},
		{"amount with unknown separator", "280,45", []string{"280", "45"}},
		{"separators only", "..,,", []string{".", "."}},
		{"unresolvable amount", ",,", []string{"[UNK]"}},
		{"dash date", "15-10-2025", []string{"15", "-", "10", "-", "2025"}},
		{"slash date", "15/10/2025", []string{"15", "##/", "##10", "##/", "##2025"}},
		{"trailing punctuation kept", "card.", []string{"card", "."}},
		{"trailing punctuation dropped", "card!", []string{"card"}},
		{"arabic digits", "تم خصم ٥٤٣٫٢٥ جنيه", []string{"تم", "خ", "##ص", "##م", "543", ".", "25", "جنيه"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, words(tok, tc.input))
		})
	}
}

func TestTokenize_Lowercase(t *testing.T) {
	tok := newTestTokenizer(t, true)
	assert.Equal(t, []string{"hs", "##bc", "card", "debited", "sar"}, words(tok, "HSBC Card DEBITED Sar"))
}

func TestTokenize_URLBypassesVocabulary(t *testing.T) {
	vocab := append([]string{}, testTokens...)
	vocab = append(vocab, "https://hsbc.com")
	b, err := bundle.New(bundle.NewVocabulary(vocab), bundle.DefaultSpecialTokens, false, []entity.Label{entity.OutsideLabel})
	require.NoError(t, err)

	assert.Equal(t, []string{"https", "hsbc", "com"}, words(New(b), "https://hsbc.com"))
}

func TestTokenize_Encoding(t *testing.T) {
	tok := newTestTokenizer(t, false)
	res := tok.Tokenize("HSBC card", 8, true, true)

	require.Len(t, res.IDs, 8)
	require.Len(t, res.Mask, 8)
	assert.Equal(t, []string{"[CLS]", "HS", "##BC", "card", "[SEP]"}, res.Texts())
	assert.Equal(t, []int64{2, 4, 5, 6, 3, 0, 0, 0}, res.IDs)
	assert.Equal(t, []int64{1, 1, 1, 1, 1, 0, 0, 0}, res.Mask)
}

func TestTokenize_UnknownID(t *testing.T) {
	tok := newTestTokenizer(t, false)
	res := tok.Tokenize("****", 0, false, false)
	assert.Equal(t, []string{"[CLS]", "****", "[SEP]"}, res.Texts())
	assert.Equal(t, int64(1), res.IDs[1])
}

func TestTokenize_Truncation(t *testing.T) {
	tok := newTestTokenizer(t, false)

	res := tok.Tokenize("card card card card card", 4, true, true)
	assert.Equal(t, []string{"[CLS]", "card", "card", "[SEP]"}, res.Texts())
	assert.Equal(t, []int64{1, 1, 1, 1}, res.Mask)

	res = tok.Tokenize("card card card card card", 4, true, false)
	assert.Len(t, res.IDs, 7)

	res = tok.Tokenize("card", 1, true, true)
	assert.Equal(t, []string{"[SEP]"}, res.Texts())
}

func TestTokenize_Offsets(t *testing.T) {
	tok := newTestTokenizer(t, false)

	input := "HSBC card"
	res := tok.Tokenize(input, 0, false, false)
	assert.Equal(t, Token{Text: "HS", Start: 0, End: 2}, res.Tokens[1])
	assert.Equal(t, Token{Text: "##BC", Start: 2, End: 4}, res.Tokens[2])
	assert.Equal(t, Token{Text: "card", Start: 5, End: 9}, res.Tokens[3])
	assert.Equal(t, -1, res.Tokens[0].Start)

	arabic := "تم خصم ٥٤٣٫٢٥ جنيه"
	res = tok.Tokenize(arabic, 0, false, false)
	amount := res.Tokens[5]
	require.Equal(t, "543", amount.Text)
	assert.Equal(t, "٥٤٣", arabic[amount.Start:amount.End])
	assert.Equal(t, "٢٥", arabic[res.Tokens[7].Start:res.Tokens[7].End])
}

func FuzzTokenizeFixedLength(f *testing.F) {
	for _, seed := range []string{"", "HSBC card ****9273 Debited SAR 280.45", "تم خصم ٥٤٣٫٢٥ جنيه", "https://a.b/c?d=e", "..,,", "15-10-2025!"} {
		f.Add(seed, 16)
	}
	b, err := bundle.New(bundle.NewVocabulary(testTokens), bundle.DefaultSpecialTokens, false, []entity.Label{entity.OutsideLabel})
	if err != nil {
		f.Fatal(err)
	}
	tok := New(b)

	f.Fuzz(func(t *testing.T, text string, maxLength int) {
		if maxLength < 1 || maxLength > 512 {
			return
		}
		res := tok.Tokenize(text, maxLength, true, true)
		if len(res.IDs) != maxLength || len(res.Mask) != maxLength {
			t.Fatalf("lengths ids=%d mask=%d, want %d", len(res.IDs), len(res.Mask), maxLength)
		}
		if len(res.Tokens) > maxLength {
			t.Fatalf("%d tokens exceed %d", len(res.Tokens), maxLength)
		}
		if last := res.Tokens[len(res.Tokens)-1].Text; last != "[SEP]" {
			t.Fatalf("last token %q, want [SEP]", last)
		}
		var ones int
		for _, m := range res.Mask {
			ones += int(m)
		}
		if ones != len(res.Tokens) {
			t.Fatalf("mask has %d ones for %d tokens", ones, len(res.Tokens))
		}
	})
}

func TestGreedyMatchReproducesVocabularyEntries(t *testing.T) {
	tok := newTestTokenizer(t, false)
	for _, entry := range testTokens {
		if strings.HasPrefix(entry, "[") || strings.HasPrefix(entry, entity.ContinuationPrefix) {
			continue
		}
		assert.Equal(t, []string{entry}, words(tok, entry), entry)
	}
}
