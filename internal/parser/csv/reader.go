// Package csv streams CSV input into raw records.
//
// The reader never interprets cell contents: every cell stays text and an
// empty or missing cell becomes an absent value. Typing is left to the
// validate package.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"rawcheck/internal/config"
	"rawcheck/internal/record"
	"rawcheck/internal/schema"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// Row is one CSV record projected onto a schema.
type Row struct {
	// Line is the 1-based line where the record starts.
	Line int
	// Cells holds the source cells in file order.
	Cells []string
	Raw   record.Raw
	// Err is set, and the other fields are empty except Line, when a caller
	// forwards a record the reader could not parse.
	Err error
}

// RowError is a recoverable error for a single record. The reader can
// continue after it.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }
func (e *RowError) Unwrap() error { return e.Err }

// Reader reads CSV records and builds raw records for a schema.
type Reader struct {
	cr     *csv.Reader
	src    io.Closer
	layout *record.Layout
	header []string
	trim   bool
}

// NewReader wraps src and, when has_header is set, consumes the header line
// to build the column layout.
//
// Options (all optional):
//   - has_header (bool; default true)
//   - comma (string; first rune used; default ',')
//   - trim_space (bool; default false)
//   - lazy_quotes (bool; default false)
//   - fields_per_record (int; 0 means variable, >0 enforces a width)
//   - encoding (WHATWG label such as "windows-1250"; default utf-8)
//   - header_map (object; source header -> field name)
//
// headerMap entries come from the contract; header_map options override them.
func NewReader(src io.ReadCloser, s *schema.Schema, opt config.Options, headerMap map[string]string) (*Reader, error) {
	in, err := decoder(src, opt.String("encoding", ""))
	if err != nil {
		src.Close()
		return nil, err
	}

	cr := csv.NewReader(in)
	cr.Comma = opt.Rune("comma", ',')
	cr.LazyQuotes = opt.Bool("lazy_quotes", false)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1
	if n := opt.Int("fields_per_record", 0); n > 0 {
		cr.FieldsPerRecord = n
	}

	r := &Reader{cr: cr, src: src, trim: opt.Bool("trim_space", false)}

	if !opt.Bool("has_header", true) {
		r.layout = record.Positional(s)
		return r, nil
	}

	hdr, err := cr.Read()
	switch {
	case err == io.EOF:
		r.layout = record.NewLayout(s, nil, nil)
		return r, nil
	case err != nil:
		src.Close()
		return nil, fmt.Errorf("read header: %w", err)
	}
	r.header = append([]string(nil), hdr...)
	r.layout = record.NewLayout(s, r.header, mergeHeaderMaps(headerMap, opt.StringMap("header_map")))
	return r, nil
}

// Layout returns the column-to-field mapping.
func (r *Reader) Layout() *record.Layout { return r.layout }

// Header returns the raw header cells, or nil without a header line.
func (r *Reader) Header() []string { return r.header }

// Next returns the next row. It returns io.EOF at the end of input and a
// *RowError for a malformed record; any other error is fatal.
func (r *Reader) Next() (Row, error) {
	rec, err := r.cr.Read()
	if err == io.EOF {
		return Row{}, io.EOF
	}
	if err != nil {
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return Row{Line: pe.StartLine}, &RowError{Line: pe.StartLine, Err: err}
		}
		return Row{}, err
	}

	line, _ := r.cr.FieldPos(0)
	cells := make([]string, len(rec))
	for i, c := range rec {
		if r.trim {
			c = strings.TrimSpace(c)
		}
		cells[i] = c
	}
	return Row{Line: line, Cells: cells, Raw: record.FromCells(r.layout, cells)}, nil
}

// Close closes the underlying source.
func (r *Reader) Close() error { return r.src.Close() }

// StreamRaw sends every row of r to out until EOF, a fatal error or ctx
// cancellation. Malformed records go to onErr and the stream continues.
// The caller closes out.
func StreamRaw(ctx context.Context, r *Reader, out chan<- Row, onErr func(line int, err error)) error {
	const logEveryN = 50_000
	emitted := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		row, err := r.Next()
		if err == io.EOF {
			return nil
		}
		var re *RowError
		if errors.As(err, &re) {
			if onErr != nil {
				onErr(re.Line, re.Err)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("csv read: %w", err)
		}

		select {
		case out <- row:
			emitted++
			if emitted%logEveryN == 0 {
				log.Printf("reader: line=%d emitted=%d", row.Line, emitted)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func decoder(r io.Reader, label string) (io.Reader, error) {
	if label == "" {
		return r, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("encoding %q: %w", label, err)
	}
	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		return r, nil
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

func mergeHeaderMaps(base, override map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[record.NormalizeHeader(k)] = v
	}
	for k, v := range override {
		out[record.NormalizeHeader(k)] = v
	}
	return out
}
