// Package normalizer canonicalizes notification text and parses the money and date
// values found in it.
package normalizer

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

var (
	ErrInvalidAmount = errors.New("invalid amount format")
	ErrInvalidDate   = errors.New("invalid date format")
)

const (
	arabicDecimalSeparator = '٫'
	arabicComma            = '،'
)

// canonicalRune maps Arabic-Indic digits and Arabic separators to their ASCII forms.
func canonicalRune(r rune) rune {
	switch {
	case r >= '٠' && r <= '٩':
		return '0' + (r - '٠')
	case r == arabicDecimalSeparator:
		return '.'
	case r == arabicComma:
		return ','
	}
	return r
}

// Text returns s with Arabic-Indic digits and separators replaced by ASCII ones.
// It is total and idempotent.
func Text(s string) string {
	out, _, err := transform.String(runes.Map(canonicalRune), s)
	if err != nil {
		return s
	}
	return out
}

// TextWithOffsets normalizes s like Text and also returns, for every byte of the
// result plus one trailing sentinel, the byte offset in s it was produced from.
func TextWithOffsets(s string) (string, []int) {
	var b strings.Builder
	b.Grow(len(s))
	offsets := make([]int, 0, len(s)+1)
	for i, r := range s {
		n, _ := b.WriteRune(canonicalRune(r))
		for range n {
			offsets = append(offsets, i)
		}
	}
	offsets = append(offsets, len(s))
	return b.String(), offsets
}

// ParseAmount converts an amount string into a decimal value. The decimal separator is
// inferred: when both '.' and ',' appear the last one wins, a lone ',' followed by exactly
// two digits is decimal, any other ',' groups thousands.
func ParseAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		r = canonicalRune(r)
		if unicode.IsDigit(r) || r == ',' || r == '.' || r == '-' {
			return r
		}
		return -1
	}, raw)
	cleaned = strings.Trim(cleaned, ".,")
	if cleaned == "" || cleaned == "-" {
		return decimal.Zero, ErrInvalidAmount
	}

	isNegative := strings.HasPrefix(cleaned, "-")
	cleaned = strings.TrimPrefix(cleaned, "-")

	lastDot := strings.LastIndexByte(cleaned, '.')
	lastComma := strings.LastIndexByte(cleaned, ',')
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			// European: 1.234,56
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(cleaned, ",") == 1 && len(cleaned)-lastComma-1 == 2 {
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case strings.Count(cleaned, ".") > 1:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	}

	val, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if isNegative {
		val = val.Neg()
	}
	return val, nil
}

// Date layouts seen in banking notifications. Day-first layouts come before month-first.
var dateFormats = []string{
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2/1/2006",
	"2-1-2006",
	"02/01/06",
	"01/02/2006",
	"2006-01-02",
	"2006/01/02",
	"02/01/2006 15:04",
	"02-01-2006 15:04",
	"2006-01-02 15:04:05",
	"02-Jan-2006",
	"02 Jan 2006",
	"02Jan2006",
}

// ParseFlexibleDate attempts to parse a date using the preferred layout first and then
// every known layout.
func ParseFlexibleDate(raw string, preferredFormat string, loc *time.Location) (time.Time, error) {
	raw = Text(strings.TrimSpace(raw))
	if raw == "" {
		return time.Time{}, ErrInvalidDate
	}

	if loc == nil {
		loc = time.UTC
	}

	if preferredFormat != "" {
		goFormat := convertDateFormat(preferredFormat)
		if t, err := time.ParseInLocation(goFormat, raw, loc); err == nil {
			return t, nil
		}
	}

	for _, format := range dateFormats {
		if t, err := time.ParseInLocation(format, raw, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, ErrInvalidDate
}

// convertDateFormat converts "DD-MM-YYYY" style layouts to Go layouts.
func convertDateFormat(format string) string {
	replacer := strings.NewReplacer(
		"YYYY", "2006",
		"YY", "06",
		"MM", "01",
		"DD", "02",
		"HH", "15",
		"mm", "04",
		"ss", "05",
	)
	return replacer.Replace(format)
}

var spacePattern = regexp.MustCompile(`\s+`)

// CleanDescription trims and collapses whitespace in free text such as merchant names.
func CleanDescription(raw string) string {
	return spacePattern.ReplaceAllString(strings.TrimSpace(raw), " ")
}
