// Package datasource opens the byte stream a pipeline reads rows from.
package datasource

import (
	"context"
	"fmt"
	"io"

	"rawcheck/internal/config"
	"rawcheck/internal/datasource/file"
)

// Source opens a stream of input bytes.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// FromConfig returns the Source selected by cfg.Kind.
func FromConfig(cfg config.Source) (Source, error) {
	switch cfg.Kind {
	case "file":
		return file.NewLocal(cfg.File.Path), nil
	case "stdin":
		return file.Stdin{}, nil
	default:
		return nil, fmt.Errorf("datasource: unknown kind %q", cfg.Kind)
	}
}
