// Package lexicon holds the word lists that drive the pattern pass and the decoder's
// plausibility heuristics. A default table is embedded; deployments may load their own.
package lexicon

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var defaultYAML []byte

var ErrEmptyLexicon = errors.New("lexicon has no currencies or bank names")

// Sequence is an exact token run, compared case-insensitively.
type Sequence []string

// Lexicon is the parsed table. It is read-only once built.
type Lexicon struct {
	Currencies struct {
		Leading  []string          `yaml:"leading"`
		Trailing []string          `yaml:"trailing"`
		Codes    map[string]string `yaml:"codes"`
	} `yaml:"currencies"`
	Banks struct {
		Substrings []string   `yaml:"substrings"`
		Fragments  []Sequence `yaml:"fragments"`
	} `yaml:"banks"`
	Merchants struct {
		Fragments   []Sequence `yaml:"fragments"`
		Descriptors []string   `yaml:"descriptors"`
	} `yaml:"merchants"`
	Transactions struct {
		Keywords []string   `yaml:"keywords"`
		Credits  []string   `yaml:"credits"`
		Prefixes []string   `yaml:"prefixes"`
		Suffixes []string   `yaml:"suffixes"`
		Phrases  []Sequence `yaml:"phrases"`
	} `yaml:"transactions"`
	References struct {
		Slugs   []string `yaml:"slugs"`
		Schemes []string `yaml:"schemes"`
		Tails   []string `yaml:"tails"`
	} `yaml:"references"`
	Brands []string `yaml:"brands"`

	leading     set
	trailing    set
	keywords    set
	credits     set
	codes       map[string]string
	prefixes    set
	suffixes    set
	descriptors set
	slugs       set
	schemes     set
	tails       set
	bankSubs    []string
}

type set map[string]struct{}

func newSet(words []string) set {
	s := make(set, len(words))
	for _, w := range words {
		s[fold(w)] = struct{}{}
	}
	return s
}

func (s set) has(word string) bool {
	_, ok := s[fold(word)]
	return ok
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Parse decodes a YAML lexicon.
func Parse(data []byte) (*Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	if len(lex.Currencies.Leading)+len(lex.Currencies.Trailing) == 0 || len(lex.Banks.Substrings) == 0 {
		return nil, ErrEmptyLexicon
	}
	lex.index()
	return &lex, nil
}

// Load reads a YAML lexicon from path.
func Load(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the embedded lexicon.
func Default() *Lexicon {
	lex, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded lexicon: %v", err))
	}
	return lex
}

func (l *Lexicon) index() {
	l.leading = newSet(l.Currencies.Leading)
	l.trailing = newSet(l.Currencies.Trailing)
	l.keywords = newSet(l.Transactions.Keywords)
	l.credits = newSet(l.Transactions.Credits)
	l.codes = make(map[string]string, len(l.Currencies.Codes))
	for word, code := range l.Currencies.Codes {
		l.codes[fold(word)] = strings.ToUpper(code)
	}
	l.prefixes = newSet(l.Transactions.Prefixes)
	l.suffixes = newSet(l.Transactions.Suffixes)
	l.descriptors = newSet(l.Merchants.Descriptors)
	l.slugs = newSet(l.References.Slugs)
	l.schemes = newSet(l.References.Schemes)
	l.tails = newSet(l.References.Tails)
	l.bankSubs = make([]string, 0, len(l.Banks.Substrings))
	for _, s := range l.Banks.Substrings {
		if f := fold(s); f != "" {
			l.bankSubs = append(l.bankSubs, f)
		}
	}
}

func (l *Lexicon) IsLeadingCurrency(tok string) bool  { return l.leading.has(tok) }
func (l *Lexicon) IsTrailingCurrency(tok string) bool { return l.trailing.has(tok) }

func (l *Lexicon) IsCurrency(tok string) bool {
	return l.leading.has(tok) || l.trailing.has(tok)
}

// CurrencyCode returns the ISO code for a currency word, or the upper-cased word when it
// is already a code.
func (l *Lexicon) CurrencyCode(tok string) (string, bool) {
	if !l.IsCurrency(tok) {
		return "", false
	}
	if code, ok := l.codes[fold(tok)]; ok {
		return code, true
	}
	return strings.ToUpper(fold(tok)), true
}

func (l *Lexicon) IsTransactionKeyword(tok string) bool { return l.keywords.has(tok) }
func (l *Lexicon) IsCreditKeyword(tok string) bool      { return l.credits.has(tok) }
func (l *Lexicon) IsTransactionPrefix(tok string) bool  { return l.prefixes.has(tok) }
func (l *Lexicon) IsTransactionSuffix(tok string) bool  { return l.suffixes.has(tok) }
func (l *Lexicon) IsMerchantDescriptor(tok string) bool { return l.descriptors.has(tok) }
func (l *Lexicon) IsBankSlug(tok string) bool           { return l.slugs.has(tok) }
func (l *Lexicon) IsURLScheme(tok string) bool          { return l.schemes.has(tok) }
func (l *Lexicon) IsURLTail(tok string) bool            { return l.tails.has(tok) }

// ContainsBankName reports whether tok contains any known bank substring.
func (l *Lexicon) ContainsBankName(tok string) bool {
	tok = fold(tok)
	if tok == "" {
		return false
	}
	for _, sub := range l.bankSubs {
		if strings.Contains(tok, sub) {
			return true
		}
	}
	return false
}

// MatchAt reports whether seq occurs in tokens starting at i.
func (seq Sequence) MatchAt(tokens []string, i int) bool {
	if len(seq) == 0 || i < 0 || i+len(seq) > len(tokens) {
		return false
	}
	for j, want := range seq {
		if fold(tokens[i+j]) != fold(want) {
			return false
		}
	}
	return true
}
