// Package csvfile implements a reject sink that appends rows to a CSV file.
// The DSN is the file path; missing parent directories are created and a
// header row is written when the file is new or empty.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"rawcheck/internal/storage"
)

// Repository writes reject rows to a CSV file.
type Repository struct {
	mu sync.Mutex
	f  *os.File
	w  *csv.Writer
}

// Open creates or appends to path.
func Open(path string) (*Repository, error) {
	if path == "" {
		return nil, fmt.Errorf("csvfile: path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("csvfile: create dir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("csvfile: open %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("csvfile: stat %s: %w", path, err)
	}

	r := &Repository{f: f, w: csv.NewWriter(f)}
	if st.Size() == 0 {
		if err := r.w.Write(storage.RejectColumns); err != nil {
			f.Close()
			return nil, fmt.Errorf("csvfile: write header: %w", err)
		}
		r.w.Flush()
	}
	return r, nil
}

// CopyFrom appends rows and flushes. Columns must match RejectColumns.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) != len(storage.RejectColumns) {
		return 0, fmt.Errorf("csvfile: %d columns, want %d", len(columns), len(storage.RejectColumns))
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	rec := make([]string, len(columns))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if len(row) != len(columns) {
			return n, fmt.Errorf("csvfile: row length %d != columns length %d", len(row), len(columns))
		}
		for i, v := range row {
			rec[i] = cell(v)
		}
		if err := r.w.Write(rec); err != nil {
			return n, fmt.Errorf("csvfile: write: %w", err)
		}
		n++
	}
	r.w.Flush()
	return n, r.w.Error()
}

// Exec is a no-op; a CSV file has no schema to bootstrap.
func (r *Repository) Exec(context.Context, string) error { return nil }

// Close flushes and closes the file.
func (r *Repository) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.w.Flush()
	_ = r.f.Close()
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(x)
	}
}

func init() {
	storage.Register("csv", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		return Open(cfg.DSN)
	})
	storage.RegisterDDL("csv", func(context.Context, storage.Repository, string) error { return nil })
}
