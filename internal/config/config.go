// Package config defines the JSON-serializable configuration model for a
// rawcheck run: where rows come from, how they are parsed, the record
// contract they are validated against, and where rejected rows go.
//
// Pipelines are decoded with the standard library; environment overrides
// (RAWCHECK_*) are layered on top by ApplyEnv.
//
// Example (trimmed):
//
//	{
//	  "job":      "vehicles",
//	  "source":   { "kind": "file", "file": { "path": "path/to.csv" } },
//	  "parser":   { "kind": "csv", "options": { "has_header": true } },
//	  "contract": { "name": "vehicle", "fields": [
//	    { "name": "pcv", "type": "uint64" },
//	    { "name": "owner", "type": "string", "optional": true, "validate": "max_length=120" }
//	  ]},
//	  "rejects":  { "kind": "sqlite", "dsn": "rejects.db", "table": "rejects", "auto_create_table": true },
//	  "runtime":  { "workers": 4, "batch_size": 500 }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"rawcheck/internal/schema"
)

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job names the run in logs, metrics and reject rows.
	Job string `json:"job"`

	Source Source `json:"source"`
	Parser Parser `json:"parser"`

	// Contract declares the record fields every row is validated against.
	Contract schema.Contract `json:"contract"`

	// Rejects selects the sink that receives invalid rows. Empty kind or
	// "none" disables persistence; reports are still printed.
	Rejects Rejects `json:"rejects"`

	Runtime RuntimeConfig `json:"runtime"`
	Metrics MetricsConfig `json:"metrics"`
}

// Source identifies the data source.
type Source struct {
	// Kind selects the source implementation: "file" or "stdin".
	Kind string     `json:"kind"`
	File SourceFile `json:"file"`
}

// SourceFile holds configuration for the "file" source kind.
type SourceFile struct {
	Path string `json:"path"`
}

// Parser selects how raw bytes become rows.
type Parser struct {
	// Kind selects the parser implementation. Current value: "csv".
	Kind string `json:"kind"`

	// Options is interpreted by the parser. For CSV:
	//   has_header (bool), comma (string), trim_space (bool),
	//   lazy_quotes (bool), fields_per_record (int), encoding (string),
	//   header_map (object)
	Options Options `json:"options"`
}

// Rejects configures the reject sink.
type Rejects struct {
	// Kind is a registered storage kind: "sqlite", "postgres", "mssql", "csv".
	Kind string `json:"kind" env:"KIND"`

	// DSN is the connection string; for "csv" it is the output file path.
	DSN string `json:"dsn" env:"DSN"`

	// Table receives reject rows (ignored by "csv").
	Table string `json:"table" env:"TABLE"`

	// AutoCreateTable creates Table on open when it does not exist.
	AutoCreateTable bool `json:"auto_create_table" env:"AUTO_CREATE_TABLE"`
}

// Enabled reports whether a sink is configured.
func (r Rejects) Enabled() bool { return r.Kind != "" && r.Kind != "none" }

// RuntimeConfig controls concurrency, batching and channel buffer sizes.
type RuntimeConfig struct {
	// Workers is the number of validation goroutines.
	Workers int `json:"workers" env:"WORKERS"`
	// ChannelBuffer sizes the channels between stages.
	ChannelBuffer int `json:"channel_buffer" env:"CHANNEL_BUFFER"`
	// BatchSize is the number of reject rows written per sink call.
	BatchSize int `json:"batch_size" env:"BATCH_SIZE"`
	// Dedupe skips rows whose raw cells repeat an earlier row exactly.
	Dedupe bool `json:"dedupe" env:"DEDUPE"`
}

// Runtime defaults applied by WithDefaults.
const (
	DefaultChannelBuffer = 1024
	DefaultBatchSize     = 500
)

// WithDefaults fills zero values.
func (r RuntimeConfig) WithDefaults() RuntimeConfig {
	if r.Workers <= 0 {
		r.Workers = runtime.NumCPU()
	}
	if r.ChannelBuffer <= 0 {
		r.ChannelBuffer = DefaultChannelBuffer
	}
	if r.BatchSize <= 0 {
		r.BatchSize = DefaultBatchSize
	}
	return r
}

// MetricsConfig selects a metrics backend.
type MetricsConfig struct {
	// Backend is "none", "pushgateway" or "datadog".
	Backend        string `json:"backend" env:"BACKEND"`
	PushgatewayURL string `json:"pushgateway_url" env:"PUSHGATEWAY_URL"`
	StatsdAddr     string `json:"statsd_addr" env:"STATSD_ADDR"`
	Namespace      string `json:"namespace" env:"NAMESPACE"`
}

// Load decodes the pipeline file at path.
func Load(path string) (Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return Pipeline{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var p Pipeline
	if err := json.NewDecoder(f).Decode(&p); err != nil {
		return Pipeline{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return p, nil
}

// Options is a small helper to fetch typed values from arbitrary JSON maps.
// It performs only minimal type coercion and returns the provided default
// when a key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers decode as float64,
// so float64 is accepted and truncated.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns a map[string]string for key when the value is an object.
// Non-string values are ignored; a missing key yields an empty map.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		switch m := v.(type) {
		case map[string]any:
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		case map[string]string:
			for k, s := range m {
				res[k] = s
			}
		}
	}
	return res
}

// Any returns the raw value for key.
func (o Options) Any(key string) any {
	if v, ok := o[key]; ok {
		return v
	}
	return nil
}

// UnmarshalJSON decodes a missing or null "options" object to an empty,
// non-nil map.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
