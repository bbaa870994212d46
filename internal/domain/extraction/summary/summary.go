// Package summary folds the reconciled entities of one message into a single
// transaction record with typed amount and date values.
package summary

import (
	"cmp"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/entity"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/lexicon"
	"github.com/FACorreiaa/echo-entity-extractor/internal/domain/extraction/normalizer"
)

// Direction tells whether money left or entered the account.
type Direction string

const (
	DirectionUnknown Direction = ""
	Debit            Direction = "debit"
	Credit           Direction = "credit"
)

// Transaction is the structured view of one notification.
type Transaction struct {
	Bank      string           `json:"bank,omitempty"`
	CardLast4 string           `json:"card_last4,omitempty"`
	Account   string           `json:"account,omitempty"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	Currency  string           `json:"currency,omitempty"`
	Date      *time.Time       `json:"date,omitempty"`
	RawDate   string           `json:"raw_date,omitempty"`
	Merchant  string           `json:"merchant,omitempty"`
	Type      string           `json:"type,omitempty"`
	Direction Direction        `json:"direction,omitempty"`
	Reference string           `json:"reference,omitempty"`
}

// Summarizer builds transactions using a lexicon for currency and direction words.
type Summarizer struct {
	lex        *lexicon.Lexicon
	loc        *time.Location
	dateFormat string
}

// New creates a summarizer. loc is used for parsed dates; nil means UTC.
// dateFormat is an optional "DD/MM/YYYY" style layout tried before the built-in ones.
func New(lex *lexicon.Lexicon, loc *time.Location, dateFormat string) *Summarizer {
	if lex == nil {
		lex = lexicon.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Summarizer{lex: lex, loc: loc, dateFormat: dateFormat}
}

// Summarize picks, per category, the most confident entity (earliest on ties) and
// converts it. Amounts and dates that do not parse fall through to the next entity
// of the same category.
func (s *Summarizer) Summarize(entities []entity.Entity) Transaction {
	byCategory := make(map[entity.Category][]entity.Entity)
	for _, e := range entities {
		byCategory[e.Category] = append(byCategory[e.Category], e)
	}
	for _, group := range byCategory {
		slices.SortStableFunc(group, func(a, b entity.Entity) int {
			if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
				return c
			}
			return cmp.Compare(a.Start, b.Start)
		})
	}

	var tx Transaction
	if e, ok := first(byCategory[entity.Bank]); ok {
		tx.Bank = normalizer.CleanDescription(e.Text)
	}
	if e, ok := first(byCategory[entity.Merchant]); ok {
		tx.Merchant = normalizer.CleanDescription(e.Text)
	}
	if e, ok := first(byCategory[entity.Ref]); ok {
		tx.Reference = strings.ReplaceAll(e.Text, " ", "")
	}
	if e, ok := first(byCategory[entity.Account]); ok {
		tx.Account = normalizer.CleanDescription(e.Text)
	}
	for _, e := range byCategory[entity.Card] {
		if last4 := lastDigits(e.Text, 4); last4 != "" {
			tx.CardLast4 = last4
			break
		}
	}
	for _, e := range byCategory[entity.Amount] {
		if amount, currency, ok := s.amount(e.Text); ok {
			tx.Amount = &amount
			tx.Currency = currency
			break
		}
	}
	if dates := byCategory[entity.Date]; len(dates) > 0 {
		tx.RawDate = dates[0].Text
		for _, e := range dates {
			if d, ok := s.ParseDate(e.Text); ok {
				tx.Date = &d
				tx.RawDate = e.Text
				break
			}
		}
	}
	if e, ok := first(byCategory[entity.TransactionType]); ok {
		tx.Type = normalizer.CleanDescription(e.Text)
		tx.Direction = s.direction(e.Text)
	}
	return tx
}

func first(group []entity.Entity) (entity.Entity, bool) {
	if len(group) == 0 {
		return entity.Entity{}, false
	}
	return group[0], true
}

// amount separates currency words from the numeric part, e.g. "SAR 280.45" or "543.25 جنيه".
func (s *Summarizer) amount(text string) (decimal.Decimal, string, bool) {
	var currency string
	var number strings.Builder
	for _, word := range strings.Fields(normalizer.Text(text)) {
		if code, ok := s.lex.CurrencyCode(word); ok {
			if currency == "" {
				currency = code
			}
			continue
		}
		number.WriteString(word)
	}
	value, err := normalizer.ParseAmount(number.String())
	if err != nil {
		return decimal.Zero, "", false
	}
	return value, currency, true
}

// ParseDate parses a date as found in a message or an export column.
func (s *Summarizer) ParseDate(text string) (time.Time, bool) {
	if d, err := normalizer.ParseFlexibleDate(text, s.dateFormat, s.loc); err == nil {
		return d, true
	}
	compact := strings.ReplaceAll(text, " ", "")
	if d, err := normalizer.ParseFlexibleDate(compact, s.dateFormat, s.loc); err == nil {
		return d, true
	}
	return time.Time{}, false
}

func (s *Summarizer) direction(text string) Direction {
	words := strings.Fields(text)
	if len(words) == 0 {
		return DirectionUnknown
	}
	for _, w := range words {
		if s.lex.IsCreditKeyword(w) {
			return Credit
		}
	}
	return Debit
}

// lastDigits returns the final n digits of s, or all of them when s has fewer.
func lastDigits(s string, n int) string {
	digits := []rune(strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, normalizer.Text(s)))
	if len(digits) > n {
		digits = digits[len(digits)-n:]
	}
	return string(digits)
}

var defaultSummarizer = New(nil, nil, "")

// Summarize folds entities with the embedded lexicon and UTC dates.
func Summarize(entities []entity.Entity) Transaction {
	return defaultSummarizer.Summarize(entities)
}
