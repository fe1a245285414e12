package record

import (
	"strings"
	"unicode"

	"rawcheck/internal/schema"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const utf8BOM = "\uFEFF"

// Layout maps source column positions onto schema fields. It is built once
// per input (from the header line) and shared by every row.
type Layout struct {
	schema *schema.Schema
	src    []int // src[field] = source column, or -1

	// Unmatched lists header cells that matched no field.
	Unmatched []string
	// Missing lists fields with no source column; they are always absent.
	Missing []string
}

// Schema returns the schema the layout targets.
func (l *Layout) Schema() *schema.Schema { return l.schema }

// Source returns the source column for field index i, or -1.
func (l *Layout) Source(i int) int { return l.src[i] }

// Positional maps column i onto field i.
func Positional(s *schema.Schema) *Layout {
	l := &Layout{schema: s, src: make([]int, s.Len())}
	for i := range l.src {
		l.src[i] = i
	}
	return l
}

// NewLayout matches header cells to field names.
//
// Each header cell is trimmed, stripped of a UTF-8 BOM and NFC-normalized.
// A cell listed in headerMap is renamed; otherwise an exact field-name match
// wins, falling back to FoldHeader ("Počet Míst" matches pocet_mist). The
// first matching column wins for a field.
func NewLayout(s *schema.Schema, header []string, headerMap map[string]string) *Layout {
	l := &Layout{schema: s, src: make([]int, s.Len())}
	for i := range l.src {
		l.src[i] = -1
	}

	for ci, h := range header {
		h = NormalizeHeader(h)
		name := h
		if mapped, ok := headerMap[h]; ok {
			name = mapped
		} else if s.IndexOf(name) < 0 {
			name = FoldHeader(h)
		}
		fi := s.IndexOf(name)
		if fi < 0 {
			l.Unmatched = append(l.Unmatched, h)
			continue
		}
		if l.src[fi] < 0 {
			l.src[fi] = ci
		}
	}

	for i, f := range s.Fields {
		if l.src[i] < 0 {
			l.Missing = append(l.Missing, f.Name)
		}
	}
	return l
}

// NormalizeHeader trims h, removes a leading BOM and returns its NFC form.
func NormalizeHeader(h string) string {
	h = strings.TrimPrefix(h, utf8BOM)
	h = strings.TrimSpace(h)
	return norm.NFC.String(h)
}

// FoldHeader lower-cases h, strips diacritics and replaces spaces with
// underscores.
func FoldHeader(h string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, h)
	if err != nil {
		folded = h
	}
	return strings.ReplaceAll(strings.ToLower(folded), " ", "_")
}
