package entity

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ContinuationPrefix marks a subword piece that continues the previous piece of the same word.
const ContinuationPrefix = "##"

// StripContinuation removes the continuation marker from a token, reporting whether it had one.
func StripContinuation(token string) (string, bool) {
	return strings.CutPrefix(token, ContinuationPrefix)
}

// JoinWords joins a token run with single spaces, attaching only continuation pieces.
func JoinWords(tokens []string) string {
	var b strings.Builder
	for _, tok := range tokens {
		piece, cont := StripContinuation(tok)
		if piece == "" {
			continue
		}
		if !cont && b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(piece)
	}
	return b.String()
}

// JoinTokens rebuilds display text from a token run. Continuation pieces attach to the
// previous piece, numeric separators between digits attach on both sides, and digits
// directly after a mask run attach to it. Everything else is joined with a single space.
func JoinTokens(tokens []string) string {
	var b strings.Builder
	var prev string
	glueNext := false
	for i, tok := range tokens {
		piece, cont := StripContinuation(tok)
		if piece == "" {
			continue
		}
		glue := cont || b.Len() == 0
		separator := false
		switch {
		case glue:
		case glueNext && startsWithDigit(piece):
			glue = true
		case isNumericSeparator(piece) && endsWithDigit(prev) && nextStartsWithDigit(tokens, i):
			glue = true
			separator = true
		case isMaskRun(prev) && startsWithDigit(piece):
			glue = true
		}
		if !glue {
			b.WriteByte(' ')
		}
		b.WriteString(piece)
		glueNext = separator
		prev = piece
	}
	return strings.TrimSpace(b.String())
}

func isNumericSeparator(s string) bool {
	switch s {
	case ".", ",", "/", "-", ":":
		return true
	}
	return false
}

func isMaskRun(s string) bool {
	return s != "" && strings.Trim(s, "*") == ""
}

func startsWithDigit(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r != utf8.RuneError && unicode.IsDigit(r)
}

func endsWithDigit(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r != utf8.RuneError && unicode.IsDigit(r)
}

func nextStartsWithDigit(tokens []string, i int) bool {
	if i+1 >= len(tokens) {
		return false
	}
	next, _ := StripContinuation(tokens[i+1])
	return startsWithDigit(next)
}
