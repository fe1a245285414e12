// This file adds a lightweight linter for Pipeline values. It performs
// static checks over a decoded Pipeline and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"

	"rawcheck/internal/schema"

	"golang.org/x/text/encoding/htmlindex"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single lint finding. Path is a dotted path into the
// config (e.g. "contract.fields[2].type").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline performs static validation of a Pipeline without
// mutating it.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels metrics and reject rows",
		})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateParser(p.Parser)...)
	issues = append(issues, validateContract(p.Contract)...)
	issues = append(issues, validateRejects(p.Rejects)...)
	issues = append(issues, validateRuntime(p.Runtime)...)
	issues = append(issues, validateMetrics(p.Metrics)...)
	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue
	switch s.Kind {
	case "":
		issues = append(issues, Issue{SeverityError, "source.kind", "source.kind must not be empty"})
	case "file":
		if strings.TrimSpace(s.File.Path) == "" {
			issues = append(issues, Issue{SeverityError, "source.file.path", "file source requires a non-empty path"})
		}
	case "stdin":
	default:
		issues = append(issues, Issue{SeverityError, "source.kind",
			fmt.Sprintf("unknown source kind %q; want file or stdin", s.Kind)})
	}
	return issues
}

func validateParser(p Parser) []Issue {
	var issues []Issue
	switch p.Kind {
	case "", "csv":
	default:
		return append(issues, Issue{SeverityError, "parser.kind",
			fmt.Sprintf("unknown parser kind %q; only csv is supported", p.Kind)})
	}

	if c := p.Options.String("comma", ","); len([]rune(c)) != 1 {
		issues = append(issues, Issue{SeverityError, "parser.options.comma",
			fmt.Sprintf("comma must be a single character, got %q", c)})
	}
	if enc := p.Options.String("encoding", ""); enc != "" {
		if _, err := htmlindex.Get(enc); err != nil {
			issues = append(issues, Issue{SeverityError, "parser.options.encoding",
				fmt.Sprintf("unknown encoding %q", enc)})
		}
	}
	if !p.Options.Bool("has_header", true) {
		issues = append(issues, Issue{SeverityWarning, "parser.options.has_header",
			"has_header is false; columns map to contract fields by position"})
	}
	return issues
}

// validateContract checks what schema.FromContract would reject, plus
// constraint annotations that lenient parsing would silently drop.
func validateContract(c schema.Contract) []Issue {
	var issues []Issue
	if len(c.Fields) == 0 {
		return append(issues, Issue{SeverityError, "contract.fields", "contract has no fields"})
	}

	seen := make(map[string]struct{}, len(c.Fields))
	for i, f := range c.Fields {
		path := fmt.Sprintf("contract.fields[%d]", i)
		name := strings.TrimSpace(f.Name)
		if name == "" {
			issues = append(issues, Issue{SeverityError, path + ".name", "field name must not be empty"})
		} else if _, dup := seen[name]; dup {
			issues = append(issues, Issue{SeverityError, path + ".name", fmt.Sprintf("duplicate field %q", name)})
		}
		seen[name] = struct{}{}

		kind, known := schema.ClassifyName(f.Type)
		if !known {
			if _, ok := schema.LookupOpaque(f.Type); !ok {
				issues = append(issues, Issue{SeverityError, path + ".type",
					fmt.Sprintf("unknown type %q; registered opaque types: %s",
						f.Type, strings.Join(schema.OpaqueNames(), ", "))})
			}
		}

		if f.Validate == "" {
			continue
		}
		cons, err := schema.ParseConstraints(f.Validate, true)
		if err != nil {
			sev := SeverityWarning
			msg := "constraint annotation is malformed and will be ignored: "
			if c.Strict {
				sev = SeverityError
				msg = "constraint annotation is malformed: "
			}
			issues = append(issues, Issue{sev, path + ".validate", msg + err.Error()})
			continue
		}
		if !cons.IsZero() && kind.Kind != schema.Text {
			issues = append(issues, Issue{SeverityWarning, path + ".validate",
				fmt.Sprintf("length constraints only apply to text fields; %q is %s", f.Name, kind)})
		}
	}
	return issues
}

func validateRejects(r Rejects) []Issue {
	var issues []Issue
	switch r.Kind {
	case "", "none":
		return nil
	case "sqlite", "postgres", "mssql", "csv":
	default:
		issues = append(issues, Issue{SeverityWarning, "rejects.kind",
			fmt.Sprintf("unknown rejects kind %q; ensure a matching backend is registered", r.Kind)})
	}
	if strings.TrimSpace(r.DSN) == "" {
		issues = append(issues, Issue{SeverityError, "rejects.dsn", "rejects.dsn must not be empty"})
	}
	if r.Kind != "csv" && strings.TrimSpace(r.Table) == "" {
		issues = append(issues, Issue{SeverityError, "rejects.table", "rejects.table must not be empty"})
	}
	return issues
}

func validateRuntime(r RuntimeConfig) []Issue {
	var issues []Issue
	if r.Workers < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.workers", "workers must not be negative"})
	}
	if r.ChannelBuffer < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.channel_buffer", "channel_buffer must not be negative"})
	}
	if r.BatchSize < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.batch_size", "batch_size must not be negative"})
	}
	return issues
}

func validateMetrics(m MetricsConfig) []Issue {
	switch m.Backend {
	case "", "none":
	case "pushgateway":
		if m.PushgatewayURL == "" {
			return []Issue{{SeverityWarning, "metrics.pushgateway_url", "no pushgateway_url; the CLI flag or default will be used"}}
		}
	case "datadog":
		if m.StatsdAddr == "" {
			return []Issue{{SeverityError, "metrics.statsd_addr", "datadog backend requires statsd_addr"}}
		}
	default:
		return []Issue{{SeverityWarning, "metrics.backend", fmt.Sprintf("unknown metrics backend %q; metrics disabled", m.Backend)}}
	}
	return nil
}
