package importer

import (
	"fmt"
	"strings"
	"unicode"

	"catalog-import-service/internal/models"
)

// ValidationError lists every required column the file does not provide.
// No row is ingested when it is returned.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// ColumnMapping maps schema keys to the headers discovered in the file
type ColumnMapping struct {
	headers   map[string]string
	Unmatched []string `json:"unmatched,omitempty"`
	Ignored   []string `json:"ignored,omitempty"`
}

// Header returns the source header mapped to a schema key
func (m ColumnMapping) Header(key string) (string, bool) {
	h, ok := m.headers[key]
	return h, ok
}

// Value reads a schema key from a row; unmapped keys read as empty
func (m ColumnMapping) Value(rec RowRecord, key string) string {
	h, ok := m.headers[key]
	if !ok {
		return ""
	}
	return rec.Get(h)
}

// Headers returns a copy of the key to header mapping
func (m ColumnMapping) Headers() map[string]string {
	out := make(map[string]string, len(m.headers))
	for k, v := range m.headers {
		out[k] = v
	}
	return out
}

type matchRule func(header string, col models.ImportColumn) bool

// Rules in priority order. A rule is applied to every schema key before the
// next, looser rule is tried, so exact matches are never taken by fuzzy ones.
var matchRules = []matchRule{
	func(h string, col models.ImportColumn) bool { return strings.EqualFold(h, col.Key) },
	func(h string, col models.ImportColumn) bool { return strings.EqualFold(h, col.Label) },
	func(h string, col models.ImportColumn) bool {
		n := compactName(h)
		return n != "" && (n == compactName(col.Key) || n == compactName(col.Label))
	},
}

// compactName lowercases and strips whitespace, underscores and hyphens
func compactName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsSpace(r) || r == '_' || r == '-' {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Reconcile matches source headers against the column schema. Each header is
// claimed by at most one key.
func Reconcile(headers []string, schema []models.ImportColumn) (ColumnMapping, error) {
	mapping := ColumnMapping{headers: make(map[string]string, len(schema))}
	claimed := make([]bool, len(headers))

	for _, rule := range matchRules {
		for _, col := range schema {
			if _, done := mapping.headers[col.Key]; done {
				continue
			}
			for i, h := range headers {
				if claimed[i] || h == "" {
					continue
				}
				if rule(h, col) {
					mapping.headers[col.Key] = h
					claimed[i] = true
					break
				}
			}
		}
	}

	var missing []string
	for _, col := range schema {
		if _, ok := mapping.headers[col.Key]; ok {
			continue
		}
		mapping.Unmatched = append(mapping.Unmatched, col.Key)
		if col.Required {
			missing = append(missing, col.Label)
		}
	}
	for i, h := range headers {
		if !claimed[i] && h != "" {
			mapping.Ignored = append(mapping.Ignored, h)
		}
	}

	if len(missing) > 0 {
		return mapping, &ValidationError{Missing: missing}
	}
	return mapping, nil
}
