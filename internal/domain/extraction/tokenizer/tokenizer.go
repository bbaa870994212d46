// Package tokenizer implements the WordPiece-style subword tokenizer used in front of the
// sequence classifier. It routes URLs, masked card numbers, dates and amounts through
// dedicated splitting rules so that financial values survive as recognizable pieces.
package tokenizer

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/bundle"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/entity"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/normalizer"
)

// DefaultMaxLength is the sequence length used when the caller passes a non-positive one.
const DefaultMaxLength = 128

var (
	dashDatePattern = regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`)
	amountPattern   = regexp.MustCompile(`^[0-9.,]+$`)
)

// Token is one tokenizer output piece. Start and End are byte offsets into the text
// passed to Tokenize; structural tokens carry -1.
type Token struct {
	Text  string
	Start int
	End   int
}

// Result is the classifier-ready encoding of one message.
type Result struct {
	IDs    []int64
	Mask   []int64
	Tokens []Token
}

// Texts returns the token strings, aligned with the first len(Tokens) ids.
func (r Result) Texts() []string {
	out := make([]string, len(r.Tokens))
	for i, t := range r.Tokens {
		out[i] = t.Text
	}
	return out
}

// Tokenizer is safe for concurrent use; it only reads the vocabulary.
type Tokenizer struct {
	vocab     *bundle.Vocabulary
	specials  bundle.SpecialTokens
	lowercase bool
}

// New creates a tokenizer over a loaded bundle.
func New(b *bundle.Bundle) *Tokenizer {
	return &Tokenizer{
		vocab:     b.Vocab,
		specials:  b.Specials,
		lowercase: b.Lowercase,
	}
}

// Tokenize encodes text. The sequence is wrapped in the start and end markers; with
// truncate it is cut to maxLength keeping the end marker last, with pad it is right-padded
// to maxLength. Tokenize never fails: unmatched material becomes the unknown token.
func (t *Tokenizer) Tokenize(text string, maxLength int, pad, truncate bool) Result {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	norm, offsets := normalizer.TextWithOffsets(text)
	pieces := t.splitWords(norm)
	for i := range pieces {
		pieces[i].Start = offsets[pieces[i].Start]
		pieces[i].End = offsets[pieces[i].End]
	}

	tokens := make([]Token, 0, len(pieces)+2)
	tokens = append(tokens, Token{Text: t.specials.CLS, Start: -1, End: -1})
	tokens = append(tokens, pieces...)
	tokens = append(tokens, Token{Text: t.specials.SEP, Start: -1, End: -1})

	if truncate && len(tokens) > maxLength {
		tokens = append(tokens[:maxLength-1], Token{Text: t.specials.SEP, Start: -1, End: -1})
	}

	size := len(tokens)
	if pad && size < maxLength {
		size = maxLength
	}
	ids := make([]int64, size)
	mask := make([]int64, size)
	for i, tok := range tokens {
		ids[i] = int64(t.id(tok.Text))
		mask[i] = 1
	}
	for i := len(tokens); i < size; i++ {
		ids[i] = int64(t.specials.PADID)
	}

	return Result{IDs: ids, Mask: mask, Tokens: tokens}
}

func (t *Tokenizer) id(tok string) int {
	if id, ok := t.vocab.ID(tok); ok {
		return id
	}
	return t.specials.UNKID
}

// splitWords splits on whitespace and tokenizes every word.
func (t *Tokenizer) splitWords(s string) []Token {
	var out []Token
	start := -1
	for i, r := range s {
		if unicode.IsSpace(r) {
			if start >= 0 {
				out = append(out, t.word(s[start:i], start)...)
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, t.word(s[start:], start)...)
	}
	return out
}

// word applies the first matching splitting rule. off is the byte offset of w.
func (t *Tokenizer) word(w string, off int) []Token {
	// URL pieces are emitted verbatim, never looked up.
	lower := strings.ToLower(w)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return splitURL(w, off)
	}
	if folded := t.fold(w); t.vocab.Contains(folded) {
		return []Token{{Text: folded, Start: off, End: off + len(w)}}
	}

	switch {
	case strings.ContainsRune(w, '*'):
		return t.masked(w, off)
	case dashDatePattern.MatchString(w):
		return t.dashDate(w, off)
	case amountPattern.MatchString(w):
		return t.numeric(w, off)
	}

	if stem, suffix := splitTrailingPunct(w); suffix != "" {
		var out []Token
		if stem != "" {
			out = t.subword(stem, off)
		}
		return append(out, t.punctuation(suffix, off+len(stem))...)
	}
	return t.subword(w, off)
}

// splitURL breaks a URL on its structural characters. Pieces are kept verbatim.
func splitURL(w string, off int) []Token {
	var out []Token
	start := 0
	for i, r := range w {
		if strings.ContainsRune(":/.?=&", r) {
			if i > start {
				out = append(out, Token{Text: w[start:i], Start: off + start, End: off + i})
			}
			start = i + utf8.RuneLen(r)
		}
	}
	if start < len(w) {
		out = append(out, Token{Text: w[start:], Start: off + start, End: off + len(w)})
	}
	return out
}

type runClass int

const (
	runOther runClass = iota
	runMask
	runDigit
)

func classify(r rune) runClass {
	switch {
	case r == '*':
		return runMask
	case r >= '0' && r <= '9':
		return runDigit
	}
	return runOther
}

// masked separates mask runs, digit runs and the remaining fragments of a word like
// "XXXX****1234".
func (t *Tokenizer) masked(w string, off int) []Token {
	var out []Token
	flush := func(class runClass, start, end int) {
		frag := w[start:end]
		switch class {
		case runMask:
			out = append(out, Token{Text: frag, Start: off + start, End: off + end})
		case runDigit:
			out = append(out, t.numeric(frag, off+start)...)
		default:
			out = append(out, t.subword(frag, off+start)...)
		}
	}

	start := 0
	current := runOther
	for i, r := range w {
		class := classify(r)
		if i == 0 {
			current = class
			continue
		}
		if class != current {
			flush(current, start, i)
			start, current = i, class
		}
	}
	if start < len(w) {
		flush(current, start, len(w))
	}
	return out
}

// dashDate handles dd-dd-dddd words.
func (t *Tokenizer) dashDate(w string, off int) []Token {
	if t.vocab.Contains(w) {
		return []Token{{Text: w, Start: off, End: off + len(w)}}
	}
	var out []Token
	pos := 0
	for i, part := range strings.Split(w, "-") {
		if i > 0 {
			if t.vocab.Contains("-") {
				out = append(out, Token{Text: "-", Start: off + pos - 1, End: off + pos})
			}
		}
		out = append(out, t.numeric(part, off+pos)...)
		pos += len(part) + 1
	}
	return out
}

// numeric decomposes a string of digits, '.' and ','.
func (t *Tokenizer) numeric(w string, off int) []Token {
	if t.vocab.Contains(w) {
		return []Token{{Text: w, Start: off, End: off + len(w)}}
	}
	var out []Token
	start := 0
	emitPart := func(end int) {
		if end <= start {
			return
		}
		part := w[start:end]
		if t.vocab.Contains(part) {
			out = append(out, Token{Text: part, Start: off + start, End: off + end})
			return
		}
		out = append(out, t.subword(part, off+start)...)
	}
	for i := 0; i < len(w); i++ {
		if w[i] != '.' && w[i] != ',' {
			continue
		}
		emitPart(i)
		if sep := w[i : i+1]; t.vocab.Contains(sep) {
			out = append(out, Token{Text: sep, Start: off + i, End: off + i + 1})
		}
		start = i + 1
	}
	emitPart(len(w))

	if len(out) == 0 {
		return []Token{t.unknown(off, off+len(w))}
	}
	return out
}

func splitTrailingPunct(w string) (string, string) {
	end := len(w)
	for end > 0 {
		r, size := utf8.DecodeLastRuneInString(w[:end])
		if !unicode.IsPunct(r) {
			break
		}
		end -= size
	}
	return w[:end], w[end:]
}

// punctuation keeps a trailing punctuation run only where the vocabulary knows it.
func (t *Tokenizer) punctuation(suffix string, off int) []Token {
	if t.vocab.Contains(suffix) {
		return []Token{{Text: suffix, Start: off, End: off + len(suffix)}}
	}
	var out []Token
	for i, r := range suffix {
		p := string(r)
		if t.vocab.Contains(p) {
			out = append(out, Token{Text: p, Start: off + i, End: off + i + len(p)})
		}
	}
	return out
}

// subword is greedy longest-prefix-first matching. Pieces after the first carry the
// continuation prefix. When no prefix of the remainder matches, the remainder becomes a
// single unknown token and matching stops.
func (t *Tokenizer) subword(w string, off int) []Token {
	form := t.fold(w)
	// Offsets stay exact only when folding preserved byte length.
	exact := len(form) == len(w)
	span := func(start, end int) (int, int) {
		if exact {
			return off + start, off + end
		}
		return off, off + len(w)
	}

	var out []Token
	start := 0
	for start < len(form) {
		end := len(form)
		var match string
		for end > start {
			candidate := form[start:end]
			if start > 0 {
				candidate = entity.ContinuationPrefix + candidate
			}
			if t.vocab.Contains(candidate) {
				match = candidate
				break
			}
			_, size := utf8.DecodeLastRuneInString(form[start:end])
			end -= size
		}
		if match == "" {
			s, e := span(start, len(form))
			return append(out, t.unknown(s, e))
		}
		s, e := span(start, end)
		out = append(out, Token{Text: match, Start: s, End: e})
		start = end
	}
	return out
}

func (t *Tokenizer) fold(w string) string {
	if t.lowercase {
		return strings.ToLower(w)
	}
	return w
}

func (t *Tokenizer) unknown(start, end int) Token {
	return Token{Text: t.specials.UNK, Start: start, End: end}
}
