// Package sniffer detects the layout of exported SMS/notification files (CSV or TSV):
// delimiter, header row and which columns hold the message body, date and sender.
package sniffer

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"unicode"
)

// Header keywords used by phone backup tools and bank notification exports.
var headerKeywords = []string{
	// English
	"body", "message", "text", "sms", "content", "date", "time", "sender", "address", "from",
	// Arabic
	"الرسالة", "النص", "التاريخ", "المرسل",
}

var (
	messageKeywords = []string{"body", "message", "text", "content", "sms", "الرسالة", "النص"}
	dateKeywords    = []string{"date", "time", "received", "sent", "التاريخ"}
	senderKeywords  = []string{"sender", "address", "from", "number", "contact", "المرسل"}
)

// FileConfig holds the detected configuration for an export file.
type FileConfig struct {
	Delimiter   rune       // The field delimiter (',', ';', '\t', '|')
	SkipLines   int        // Number of metadata lines before headers
	Headers     []string   // Detected header names
	Fingerprint string     // SHA256 hash of normalized headers
	SampleRows  [][]string // First few data rows for preview
}

// ColumnSuggestions provides auto-detected column indices, -1 when absent.
type ColumnSuggestions struct {
	MessageCol int
	DateCol    int
	SenderCol  int
}

var (
	ErrEmptyFile      = errors.New("file is empty")
	ErrNoHeadersFound = errors.New("could not find data headers")
	ErrNoMessageCol   = errors.New("could not find a message column")
)

const maxHeaderSearch = 20

// DetectConfig analyzes an export file and returns its configuration.
func DetectConfig(data []byte) (*FileConfig, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	lines := strings.Split(string(data), "\n")

	delimiter, skipLines, err := findHeaderRow(lines)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(lines[skipLines]))
	reader.Comma = delimiter
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		return nil, err
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	return &FileConfig{
		Delimiter:   delimiter,
		SkipLines:   skipLines,
		Headers:     headers,
		Fingerprint: generateFingerprint(headers),
		SampleRows:  getSampleRows(data, delimiter, headers, 5),
	}, nil
}

// SuggestColumns matches header names to the message, date and sender roles.
// Keywords are tried in order so "body" beats an "sms_id" column. The message column
// is required.
func SuggestColumns(headers []string) (*ColumnSuggestions, error) {
	lowered := make([]string, len(headers))
	for i, h := range headers {
		lowered[i] = strings.ToLower(strings.TrimSpace(h))
	}
	taken := make(map[int]bool, 3)

	pick := func(keywords []string) int {
		for _, kw := range keywords {
			for i, h := range lowered {
				if !taken[i] && strings.Contains(h, kw) {
					taken[i] = true
					return i
				}
			}
		}
		return -1
	}

	s := &ColumnSuggestions{
		MessageCol: pick(messageKeywords),
		DateCol:    pick(dateKeywords),
		SenderCol:  pick(senderKeywords),
	}
	if s.MessageCol == -1 {
		return s, ErrNoMessageCol
	}
	return s, nil
}

func containsAny(h string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(h, kw) {
			return true
		}
	}
	return false
}

// findHeaderRow locates the header row and picks the delimiter that splits it most.
func findHeaderRow(lines []string) (rune, int, error) {
	delimiters := []rune{'\t', ';', ',', '|'}

	for i, line := range lines {
		if i > maxHeaderSearch {
			break
		}
		if !containsAny(strings.ToLower(line), headerKeywords) {
			continue
		}

		best, bestCount := ',', 0
		for _, d := range delimiters {
			if count := strings.Count(line, string(d)); count > bestCount {
				best, bestCount = d, count
			}
		}
		return best, i, nil
	}

	return 0, 0, ErrNoHeadersFound
}

// generateFingerprint creates a stable hash from header names.
func generateFingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}

	hash := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(hash[:])
}

// SkipToHeader advances reader past the header record. SkipLines counts raw lines
// while csv.Reader drops blank ones, so the header is found by content.
func SkipToHeader(reader *csv.Reader, headers []string) error {
	for i := 0; i <= maxHeaderSearch; i++ {
		record, err := reader.Read()
		if err == io.EOF {
			return ErrNoHeadersFound
		}
		if err != nil {
			continue
		}
		if sameHeaders(record, headers) {
			return nil
		}
	}
	return ErrNoHeadersFound
}

func sameHeaders(record, headers []string) bool {
	if len(record) != len(headers) {
		return false
	}
	for i, f := range record {
		if strings.TrimSpace(f) != headers[i] {
			return false
		}
	}
	return true
}

// getSampleRows returns up to maxRows records following the header record.
func getSampleRows(data []byte, delimiter rune, headers []string, maxRows int) [][]string {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	if err := SkipToHeader(reader, headers); err != nil {
		return nil
	}

	var rows [][]string
	for len(rows) < maxRows {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		rows = append(rows, record)
	}

	return rows
}
