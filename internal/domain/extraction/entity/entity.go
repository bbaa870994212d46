// Package entity defines the label and entity types shared by the extraction pipeline.
package entity

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Category is the kind of financial entity a span of tokens denotes.
type Category int

const (
	CategoryUnknown Category = iota
	Bank
	Card
	Amount
	Date
	Merchant
	TransactionType
	Ref
	Account
	Other
)

var categoryNames = [...]string{
	CategoryUnknown: "",
	Bank:            "BANK",
	Card:            "CARD",
	Amount:          "AMOUNT",
	Date:            "DATE",
	Merchant:        "MERCHANT",
	TransactionType: "TRANSACTION_TYPE",
	Ref:             "REF",
	Account:         "ACCOUNT",
	Other:           "OTHER",
}

// Categories lists every concrete category in label order.
func Categories() []Category {
	return []Category{Bank, Card, Amount, Date, Merchant, TransactionType, Ref, Account, Other}
}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// ParseCategory resolves a category name such as "TRANSACTION_TYPE".
func ParseCategory(s string) (Category, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range categoryNames {
		if name != "" && name == s {
			return Category(i), true
		}
	}
	return CategoryUnknown, false
}

func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, ok := ParseCategory(s)
	if !ok {
		return fmt.Errorf("unknown category %q", s)
	}
	*c = parsed
	return nil
}

// Prefix is the BIO position marker of a label.
type Prefix byte

const (
	Outside Prefix = 'O'
	Begin   Prefix = 'B'
	Inside  Prefix = 'I'
)

// Label is one output class of the sequence classifier.
type Label struct {
	Prefix   Prefix
	Category Category
}

// OutsideLabel is the "no entity" label.
var OutsideLabel = Label{Prefix: Outside}

// ParseLabel parses "O", "B-BANK", "I-AMOUNT" and the like.
func ParseLabel(s string) (Label, error) {
	s = strings.TrimSpace(s)
	if s == "O" {
		return OutsideLabel, nil
	}
	prefix, name, ok := strings.Cut(s, "-")
	if !ok || len(prefix) != 1 {
		return Label{}, fmt.Errorf("malformed label %q", s)
	}
	cat, found := ParseCategory(name)
	if !found {
		return Label{}, fmt.Errorf("unknown label category %q", s)
	}
	switch Prefix(prefix[0]) {
	case Begin, Inside:
		return Label{Prefix: Prefix(prefix[0]), Category: cat}, nil
	default:
		return Label{}, fmt.Errorf("unknown label prefix %q", s)
	}
}

func (l Label) IsOutside() bool { return l.Prefix == Outside }

func (l Label) String() string {
	if l.IsOutside() {
		return "O"
	}
	return string(l.Prefix) + "-" + l.Category.String()
}

// Provenance records which stage produced a candidate.
type Provenance string

const (
	FromModel   Provenance = "model"
	FromPattern Provenance = "pattern"
)

// TokenRef is a token string together with its position in the token sequence.
type TokenRef struct {
	Text  string `json:"text"`
	Index int    `json:"index"`
}

// Candidate is an entity proposed by the decoder or the augmenter, before reconciliation.
type Candidate struct {
	Category   Category
	Tokens     []TokenRef
	Start      int
	End        int
	Confidence float64
	Source     Provenance
}

// Text reconstructs the surface text of the candidate from its tokens.
func (c Candidate) Text() string {
	texts := make([]string, len(c.Tokens))
	for i, t := range c.Tokens {
		texts[i] = t.Text
	}
	return JoinTokens(texts)
}

// Words is the whitespace-joined token text with only continuation pieces attached.
func (c Candidate) Words() string {
	texts := make([]string, len(c.Tokens))
	for i, t := range c.Tokens {
		texts[i] = t.Text
	}
	return JoinWords(texts)
}

// Overlaps reports whether the inclusive token ranges of c and o intersect.
func (c Candidate) Overlaps(o Candidate) bool {
	return c.Start <= o.End && o.Start <= c.End
}

// Entity is a reconciled extraction result.
type Entity struct {
	Category   Category   `json:"category"`
	Text       string     `json:"text"`
	Start      int        `json:"start"`
	End        int        `json:"end"`
	Confidence float64    `json:"confidence"`
	Source     Provenance `json:"source,omitempty"`
}
