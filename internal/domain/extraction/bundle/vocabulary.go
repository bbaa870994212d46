package bundle

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Vocabulary is the closed, ordered set of token strings the classifier was trained on.
// The position of a token is its id.
type Vocabulary struct {
	tokens []string
	ids    map[string]int
}

// NewVocabulary builds a vocabulary from an ordered token list. When a token repeats,
// the first position wins.
func NewVocabulary(tokens []string) *Vocabulary {
	v := &Vocabulary{
		tokens: append([]string(nil), tokens...),
		ids:    make(map[string]int, len(tokens)),
	}
	for i, tok := range v.tokens {
		if tok == "" {
			continue
		}
		if _, exists := v.ids[tok]; !exists {
			v.ids[tok] = i
		}
	}
	return v
}

// ReadVocabulary parses a vocab.txt stream: one token per line, line number = id.
func ReadVocabulary(r io.Reader) (*Vocabulary, error) {
	var tokens []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		tokens = append(tokens, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	if len(tokens) == 0 {
		return nil, ErrEmptyVocabulary
	}
	return NewVocabulary(tokens), nil
}

// ID returns the id of tok.
func (v *Vocabulary) ID(tok string) (int, bool) {
	id, ok := v.ids[tok]
	return id, ok
}

// Contains reports whether tok is a vocabulary entry.
func (v *Vocabulary) Contains(tok string) bool {
	_, ok := v.ids[tok]
	return ok
}

// Token returns the token string for id.
func (v *Vocabulary) Token(id int) (string, bool) {
	if id < 0 || id >= len(v.tokens) {
		return "", false
	}
	return v.tokens[id], true
}

// Size is the number of entries, including blank lines of the source file.
func (v *Vocabulary) Size() int {
	return len(v.tokens)
}
