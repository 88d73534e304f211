// Package schema turns an uploaded CSV or a free-text prompt into an ordered
// column list and a description.
package schema

import (
	"encoding/csv"
	"errors"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrSchema means no usable column list could be extracted.
	ErrSchema = errors.New("invalid schema input")
	// ErrPromptTooLong is returned by SanitizePrompt.
	ErrPromptTooLong = errors.New("prompt too long")
)

var (
	fillerWords   = regexp.MustCompile(`\b(?:for|with)\s+`)
	fallbackWords = regexp.MustCompile(`\b(?:generate|dataset|data|sample|records)\b`)
	strictPolicy  = bluemonday.StrictPolicy()
)

// Resolve extracts columns and a description. With isFile the input is CSV
// content whose header row names the columns; otherwise it is a prompt.
func Resolve(input string, isFile bool) ([]string, string, error) {
	if isFile {
		return fromCSV(input)
	}
	return fromPrompt(input)
}

func fromCSV(input string) ([]string, string, error) {
	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(input, "\ufeff")))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, "", fmt.Errorf("%w: file is empty", ErrSchema)
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: reading csv header: %v", ErrSchema, err)
	}

	columns := clean(header)
	if len(columns) == 0 {
		return nil, "", fmt.Errorf("%w: csv header has no column names", ErrSchema)
	}
	return columns, "Sample dataset with columns: " + strings.Join(columns, ", "), nil
}

// fromPrompt understands "name, age and city", "id: integer, name: string"
// and, as a last resort, a phrase such as "generate customer records".
func fromPrompt(prompt string) ([]string, string, error) {
	description := strings.TrimSpace(prompt)

	s := strings.ToLower(description)
	s = strings.ReplaceAll(s, " and ", ", ")
	s = fillerWords.ReplaceAllString(s, "")
	s = strings.Trim(strings.TrimSpace(s), ".")

	var raw []string
	switch {
	case strings.Contains(s, ","):
		for _, part := range strings.Split(s, ",") {
			part = strings.TrimSpace(part)
			if strings.HasPrefix(part, "format:") {
				continue
			}
			raw = append(raw, beforeColon(part))
		}
	case strings.Contains(s, ":"):
		raw = append(raw, beforeColon(s))
	}

	columns := clean(raw)
	if len(columns) == 0 {
		s = strings.Join(strings.Fields(fallbackWords.ReplaceAllString(s, "")), " ")
		columns = clean(strings.Split(s, ","))
	}
	if len(columns) == 0 {
		return nil, "", fmt.Errorf("%w: no columns found in prompt", ErrSchema)
	}
	return columns, description, nil
}

func beforeColon(s string) string {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// clean normalizes names to NFC, drops control characters and blanks, and
// removes duplicates keeping the first occurrence.
func clean(names []string) []string {
	t := transform.Chain(norm.NFC, runes.Remove(runes.In(unicode.Cc)))
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n, _, _ = transform.String(t, n)
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// maxSanitizePasses bounds how many layers of entity encoding are peeled.
const maxSanitizePasses = 8

// SanitizePrompt strips markup from a prompt and enforces a length limit in
// characters. A maxChars of zero disables the limit.
//
// Entities are decoded after each sanitize pass and the pass repeats until
// the text is stable, so entity-encoded markup is stripped too.
func SanitizePrompt(prompt string, maxChars int) (string, error) {
	s := stripMarkup(prompt)
	s = strings.TrimSpace(s)
	if n := len([]rune(s)); maxChars > 0 && n > maxChars {
		return "", fmt.Errorf("%w: %d characters, max %d", ErrPromptTooLong, n, maxChars)
	}
	return s, nil
}

func stripMarkup(s string) string {
	for range maxSanitizePasses {
		next := html.UnescapeString(strictPolicy.Sanitize(s))
		if next == s {
			return s
		}
		s = next
	}
	// Still changing: keep the escaped form so no raw markup survives.
	return strictPolicy.Sanitize(s)
}
