// Package augmenter proposes entity candidates from fixed token patterns, independently
// of the classifier. It recovers values the model tends to miss: amounts next to currency
// markers, masked card numbers, split dates, known bank and merchant names, transaction
// verbs and bank links.
package augmenter

import (
	"strings"

	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/decoder"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/entity"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/lexicon"
)

// Direction is the side of the trigger an extension consumes tokens from.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// extension grows a triggered span by up to max consecutive accepted tokens.
type extension struct {
	dir    Direction
	max    int
	min    int
	accept func(lex *lexicon.Lexicon, tok string) bool
	// needs, when set, must hold for at least one consumed token.
	needs func(tok string) bool
}

// rule is one entry of the pattern registry.
type rule struct {
	name     string
	category entity.Category
	trigger  func(lex *lexicon.Lexicon, tokens []string, i int) (start, end int, ok bool)
	extend   []extension
}

var rules = []rule{
	{
		name:     "currency-leading",
		category: entity.Amount,
		trigger:  single(func(lex *lexicon.Lexicon, tok string) bool { return lex.IsLeadingCurrency(tok) }),
		// A lone "." or "," is not an amount: at least one consumed token must carry a digit.
		extend:   []extension{{dir: Forward, max: 10, min: 1, accept: amountPiece, needs: hasDigit}},
	},
	{
		name:     "currency-trailing",
		category: entity.Amount,
		trigger:  single(func(lex *lexicon.Lexicon, tok string) bool { return lex.IsTrailingCurrency(tok) }),
		// A lone "." or "," is not an amount: at least one consumed token must carry a digit.
		extend:   []extension{{dir: Backward, max: 10, min: 1, accept: amountPiece, needs: hasDigit}},
	},
	{
		name:     "masked-card",
		category: entity.Card,
		trigger:  single(func(_ *lexicon.Lexicon, tok string) bool { return strings.ContainsRune(tok, '*') }),
		extend:   []extension{{dir: Forward, max: 4, min: 1, accept: digitPiece}},
	},
	{
		name:     "date",
		category: entity.Date,
		trigger:  dateShape,
	},
	{
		name:     "bank-fragment",
		category: entity.Bank,
		trigger: func(lex *lexicon.Lexicon, tokens []string, i int) (int, int, bool) {
			return longestSequence(lex.Banks.Fragments, tokens, i)
		},
	},
	{
		name:     "merchant-fragment",
		category: entity.Merchant,
		trigger: func(lex *lexicon.Lexicon, tokens []string, i int) (int, int, bool) {
			return longestSequence(lex.Merchants.Fragments, tokens, i)
		},
		extend: []extension{{dir: Forward, max: 2, accept: func(lex *lexicon.Lexicon, tok string) bool { return lex.IsMerchantDescriptor(tok) }}},
	},
	{
		name:     "transaction-verb",
		category: entity.TransactionType,
		trigger:  transactionKeyword,
		extend:   []extension{{dir: Forward, max: 2, accept: func(lex *lexicon.Lexicon, tok string) bool { return lex.IsTransactionSuffix(tok) }}},
	},
	{
		name:     "transaction-phrase",
		category: entity.TransactionType,
		trigger: func(lex *lexicon.Lexicon, tokens []string, i int) (int, int, bool) {
			return longestSequence(lex.Transactions.Phrases, tokens, i)
		},
	},
	{
		name:     "bank-url",
		category: entity.Ref,
		trigger:  bankDomain,
		extend: []extension{
			{dir: Backward, max: 2, accept: func(lex *lexicon.Lexicon, tok string) bool { return lex.IsURLScheme(tok) }},
			{dir: Forward, max: 3, accept: func(lex *lexicon.Lexicon, tok string) bool { return lex.IsURLTail(tok) }},
		},
	},
}

// Augmenter applies the rule registry. It is safe for concurrent use.
type Augmenter struct {
	lex *lexicon.Lexicon
}

// New creates an augmenter over lex, or the embedded lexicon when lex is nil.
func New(lex *lexicon.Lexicon) *Augmenter {
	if lex == nil {
		lex = lexicon.Default()
	}
	return &Augmenter{lex: lex}
}

// Augment runs every rule at every position. probs supplies candidate confidence.
func (a *Augmenter) Augment(tokens []string, probs [][]float32) []entity.Candidate {
	var out []entity.Candidate
	for i := range tokens {
		for _, r := range rules {
			if c, ok := a.apply(r, tokens, probs, i); ok {
				out = append(out, c)
			}
		}
	}
	return out
}

func (a *Augmenter) apply(r rule, tokens []string, probs [][]float32, i int) (entity.Candidate, bool) {
	start, end, ok := r.trigger(a.lex, tokens, i)
	if !ok {
		return entity.Candidate{}, false
	}
	for _, ext := range r.extend {
		n, satisfied := a.consume(ext, tokens, start, end)
		if n < ext.min || (ext.needs != nil && !satisfied) {
			return entity.Candidate{}, false
		}
		if ext.dir == Forward {
			end += n
		} else {
			start -= n
		}
	}

	refs := make([]entity.TokenRef, 0, end-start+1)
	for j := start; j <= end; j++ {
		refs = append(refs, entity.TokenRef{Text: tokens[j], Index: j})
	}
	return entity.Candidate{
		Category:   r.category,
		Tokens:     refs,
		Start:      start,
		End:        end,
		Confidence: decoder.Confidence(probs, refs),
		Source:     entity.FromPattern,
	}, true
}

// consume counts accepted tokens next to [start,end] in ext's direction.
func (a *Augmenter) consume(ext extension, tokens []string, start, end int) (int, bool) {
	step, j := 1, end+1
	if ext.dir == Backward {
		step, j = -1, start-1
	}
	n := 0
	satisfied := false
	for ; n < ext.max && j >= 0 && j < len(tokens); j += step {
		if !ext.accept(a.lex, tokens[j]) {
			break
		}
		if ext.needs != nil && ext.needs(tokens[j]) {
			satisfied = true
		}
		n++
	}
	return n, satisfied
}

func single(pred func(lex *lexicon.Lexicon, tok string) bool) func(*lexicon.Lexicon, []string, int) (int, int, bool) {
	return func(lex *lexicon.Lexicon, tokens []string, i int) (int, int, bool) {
		return i, i, pred(lex, tokens[i])
	}
}

func longestSequence(seqs []lexicon.Sequence, tokens []string, i int) (int, int, bool) {
	best := 0
	for _, seq := range seqs {
		if len(seq) > best && seq.MatchAt(tokens, i) {
			best = len(seq)
		}
	}
	return i, i + best - 1, best > 0
}

// dateShape matches a 1-2 or 4 digit token followed by separator, digits, separator,
// digits: "15 ##/ ##10 ##/ ##2025".
func dateShape(_ *lexicon.Lexicon, tokens []string, i int) (int, int, bool) {
	if i+4 >= len(tokens) {
		return i, i, false
	}
	first := tokens[i]
	if !isDigits(first) || (len(first) > 2 && len(first) != 4) {
		return i, i, false
	}
	ok := isDateSeparator(tokens[i+1]) && digitPiece(nil, tokens[i+2]) &&
		isDateSeparator(tokens[i+3]) && digitPiece(nil, tokens[i+4])
	return i, i + 4, ok
}

func isDateSeparator(tok string) bool {
	switch tok {
	case "##/", "##-", "/", "-":
		return true
	}
	return false
}

// transactionKeyword matches a keyword token, or a keyword continuation directly after a
// recognized prefix ("re ##payment").
func transactionKeyword(lex *lexicon.Lexicon, tokens []string, i int) (int, int, bool) {
	word, cont := entity.StripContinuation(tokens[i])
	if !lex.IsTransactionKeyword(word) {
		return i, i, false
	}
	if !cont {
		return i, i, true
	}
	if i > 0 && lex.IsTransactionPrefix(tokens[i-1]) {
		return i - 1, i, true
	}
	return i, i, false
}

// bankDomain matches "<bank slug> com".
func bankDomain(lex *lexicon.Lexicon, tokens []string, i int) (int, int, bool) {
	if i+1 >= len(tokens) || !strings.EqualFold(tokens[i+1], "com") {
		return i, i, false
	}
	tok := strings.ToLower(tokens[i])
	return i, i + 1, strings.Contains(tok, "bank") || lex.IsBankSlug(tok)
}

func amountPiece(_ *lexicon.Lexicon, tok string) bool {
	switch tok {
	case ".", ",", "##.", "##,":
		return true
	}
	return digitPiece(nil, tok)
}

func digitPiece(_ *lexicon.Lexicon, tok string) bool {
	rest, _ := entity.StripContinuation(tok)
	return isDigits(rest)
}

func hasDigit(tok string) bool {
	return strings.ContainsAny(tok, "0123456789")
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
