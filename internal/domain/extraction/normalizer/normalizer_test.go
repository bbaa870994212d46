package normalizer

import (
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

func TestText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"تم خصم ٥٤٣٫٢٥ جنيه", "تم خصم 543.25 جنيه"},
		{"١٢٬٣٤٥", "12٬345"}, // Arabic thousands sign is left untouched
		{"٠١٢٣٤٥٦٧٨٩", "0123456789"},
		{"١،٢", "1,2"},
		{"Debited SAR 280.45", "Debited SAR 280.45"},
		{"", ""},
	}

	for _, tc := range tests {
		got := Text(tc.input)
		if got != tc.expected {
			t.Errorf("Text(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestTextWithOffsets(t *testing.T) {
	input := "خصم ٥٤٣"
	got, offsets := TextWithOffsets(input)
	if got != Text(input) {
		t.Fatalf("TextWithOffsets text = %q, want %q", got, Text(input))
	}
	if len(offsets) != len(got)+1 {
		t.Fatalf("expected %d offsets, got %d", len(got)+1, len(offsets))
	}
	// "خصم " is 7 bytes in both forms; each Arabic digit shrinks from 2 bytes to 1.
	if offsets[7] != 7 || offsets[8] != 9 || offsets[9] != 11 {
		t.Errorf("unexpected digit offsets: %v", offsets[7:])
	}
	if offsets[len(offsets)-1] != len(input) {
		t.Errorf("sentinel offset = %d, want %d", offsets[len(offsets)-1], len(input))
	}
}

func FuzzTextIdempotent(f *testing.F) {
	for _, seed := range []string{"٥٤٣٫٢٥", "HSBC ****9273", "١،٢", "\xff\xfe"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, s string) {
		once := Text(s)
		if twice := Text(once); twice != once {
			t.Fatalf("Text not idempotent: %q -> %q -> %q", s, once, twice)
		}
		if utf8.ValidString(s) {
			withOffsets, _ := TextWithOffsets(s)
			if withOffsets != once {
				t.Fatalf("TextWithOffsets(%q) = %q, Text = %q", s, withOffsets, once)
			}
		}
	})
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"280.45", "280.45"},
		{"SAR 280.45", "280.45"},
		{"1,234.56", "1234.56"},
		{"1.234,56", "1234.56"},
		{"45,23", "45.23"},
		{"1,000", "1000"},
		{"1,000,000", "1000000"},
		{"٥٤٣٫٢٥", "543.25"},
		{"-29.99", "-29.99"},
		{"280.", "280"},
	}

	for _, tc := range tests {
		got, err := ParseAmount(tc.input)
		if err != nil {
			t.Errorf("ParseAmount(%q) error: %v", tc.input, err)
			continue
		}
		if !got.Equal(decimal.RequireFromString(tc.expected)) {
			t.Errorf("ParseAmount(%q) = %s, want %s", tc.input, got, tc.expected)
		}
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	for _, input := range []string{"", "SAR", "-", "..", "1.2.3,4,5"} {
		if _, err := ParseAmount(input); err == nil {
			t.Errorf("ParseAmount(%q) expected error", input)
		}
	}
}

func TestParseFlexibleDate(t *testing.T) {
	tests := []struct {
		input    string
		format   string
		expected time.Time
	}{
		{"15/10/2025", "", time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC)},
		{"15-10-2025", "", time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC)},
		{"١٥/١٠/٢٠٢٥", "", time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC)},
		{"2025-10-15", "", time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC)},
		{"10/15/2025", "", time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC)},
		{"05/10/2025", "MM/DD/YYYY", time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)},
		{"15-Oct-2025", "", time.Date(2025, 10, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range tests {
		got, err := ParseFlexibleDate(tc.input, tc.format, time.UTC)
		if err != nil {
			t.Errorf("ParseFlexibleDate(%q) error: %v", tc.input, err)
			continue
		}
		if !got.Equal(tc.expected) {
			t.Errorf("ParseFlexibleDate(%q) = %v, want %v", tc.input, got, tc.expected)
		}
	}

	if _, err := ParseFlexibleDate("yesterday", "", nil); err != ErrInvalidDate {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
}

func TestCleanDescription(t *testing.T) {
	if got := CleanDescription("  Vodafone \t  store "); got != "Vodafone store" {
		t.Errorf("CleanDescription = %q", got)
	}
}
