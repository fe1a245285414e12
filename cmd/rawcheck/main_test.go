package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rawcheck/internal/config"
)

const peopleCSV = "id,name,score\n" +
	"1,Ann,10\n" +
	"2,Bob,999\n" +
	"-3,,abc\n"

// writeFixture writes a CSV input and a pipeline config that rejects into
// a CSV file inside dir. It returns the config path and the rejects path.
func writeFixture(t *testing.T, data string, extra string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	in := filepath.Join(dir, "people.csv")
	if err := os.WriteFile(in, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	rejects := filepath.Join(dir, "out", "rejects.csv")
	cfg := fmt.Sprintf(`{
  "job": "people",
  "source": { "kind": "file", "file": { "path": %q } },
  "parser": { "kind": "csv", "options": { "has_header": true } },
  "contract": {
    "name": "person",
    "fields": [
      { "name": "id", "type": "u32" },
      { "name": "name", "type": "string", "validate": "min_length=2" },
      { "name": "score", "type": "i8", "optional": true }
    ]
  },
  "rejects": { "kind": "csv", "dsn": %q },
  "runtime": { "workers": 1 }%s
}`, in, rejects, extra)
	path := filepath.Join(dir, "pipeline.json")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return path, rejects
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	args = append([]string{"-env-file", filepath.Join(t.TempDir(), "none.env")}, args...)
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_InvalidRows(t *testing.T) {
	cfg, rejects := writeFixture(t, peopleCSV, "")
	code, out, errOut := runCLI(t, "-config", cfg)
	if code != exitInvalid {
		t.Fatalf("exit=%d stderr=%s", code, errOut)
	}
	for _, want := range []string{
		"line 3: score: ",
		"line 4: id: ",
		"line 4: name: ",
		"processed=3 valid=1 invalid=2",
		"out_of_range=1",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("stdout missing %q:\n%s", want, out)
		}
	}

	f, err := os.Open(rejects)
	if err != nil {
		t.Fatalf("open rejects: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read rejects: %v", err)
	}
	// header + score(3) + id, name, score(4)
	if len(rows) != 5 {
		t.Fatalf("rejects rows=%d: %v", len(rows), rows)
	}
}

/*
TestRun_ParseErrorsAndInvalidRows mixes records with a bare quote and rows
that fail validation. Every parse error and every field error is printed as
its own whole line.
*/
func TestRun_ParseErrorsAndInvalidRows(t *testing.T) {
	var b strings.Builder
	b.WriteString("id,name,score\n")
	for i := 0; i < 500; i++ {
		if i%2 == 0 {
			b.WriteString("1,a\"b,3\n")
		} else {
			b.WriteString("-1,A,999\n")
		}
	}
	cfg, rejects := writeFixture(t, b.String(), "")
	code, out, errOut := runCLI(t, "-config", cfg, "-max-print", "-1")
	if code != exitInvalid {
		t.Fatalf("exit=%d stderr=%s", code, errOut)
	}
	if !strings.Contains(out, "invalid=250 duplicates=0 parse_errors=250") {
		t.Fatalf("summary missing:\n%s", out)
	}

	var parseLines, fieldLines int
	for _, l := range strings.Split(out, "\n") {
		switch {
		case !strings.HasPrefix(l, "line "):
		case strings.Contains(l, "bare \""):
			parseLines++
		case strings.Contains(l, ": id: "), strings.Contains(l, ": name: "), strings.Contains(l, ": score: "):
			fieldLines++
		default:
			t.Fatalf("garbled output line %q", l)
		}
	}
	if parseLines != 250 || fieldLines != 750 {
		t.Fatalf("parse lines=%d field lines=%d", parseLines, fieldLines)
	}

	f, err := os.Open(rejects)
	if err != nil {
		t.Fatalf("open rejects: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read rejects: %v", err)
	}
	if len(rows) != 1+250+750 {
		t.Fatalf("rejects rows=%d", len(rows))
	}
}

func TestRun_AllValid(t *testing.T) {
	cfg, _ := writeFixture(t, "id,name,score\n1,Ann,\n2,Bob,-7\n", "")
	code, out, errOut := runCLI(t, "-config", cfg)
	if code != exitOK {
		t.Fatalf("exit=%d stdout=%s stderr=%s", code, out, errOut)
	}
	if !strings.Contains(out, "valid=2 invalid=0") {
		t.Fatalf("summary: %s", out)
	}
}

func TestRun_MaxPrint(t *testing.T) {
	cfg, _ := writeFixture(t, peopleCSV, "")
	_, out, _ := runCLI(t, "-config", cfg, "-max-print", "0")
	if strings.Contains(out, "line ") {
		t.Fatalf("rows printed with -max-print 0:\n%s", out)
	}
	_, out, _ = runCLI(t, "-config", cfg, "-max-print", "1")
	if strings.Contains(out, "line 4:") || !strings.Contains(out, "line 3:") {
		t.Fatalf("-max-print 1 output:\n%s", out)
	}
}

func TestRun_ValidateOnly(t *testing.T) {
	cfg, rejects := writeFixture(t, peopleCSV, "")
	code, out, _ := runCLI(t, "-config", cfg, "-validate")
	if code != exitOK || !strings.Contains(out, "configuration is valid") {
		t.Fatalf("exit=%d out=%s", code, out)
	}
	if _, err := os.Stat(rejects); !os.IsNotExist(err) {
		t.Fatalf("validate-only run touched the rejects sink: %v", err)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg, _ := writeFixture(t, peopleCSV, `, "metrics": { "backend": "datadog" }`)
	code, _, errOut := runCLI(t, "-config", cfg, "-validate")
	if code != exitError || !strings.Contains(errOut, "metrics.statsd_addr") {
		t.Fatalf("exit=%d stderr=%s", code, errOut)
	}
}

func TestRun_MissingConfig(t *testing.T) {
	code, _, _ := runCLI(t, "-config", filepath.Join(t.TempDir(), "nope.json"))
	if code != exitError {
		t.Fatalf("exit=%d", code)
	}
}

func TestRun_BadFlag(t *testing.T) {
	code, _, errOut := runCLI(t, "-no-such-flag")
	if code != exitError || !strings.Contains(errOut, "no-such-flag") {
		t.Fatalf("exit=%d stderr=%s", code, errOut)
	}
}

func TestRun_EnvOverride(t *testing.T) {
	cfg, _ := writeFixture(t, peopleCSV, "")
	t.Setenv("RAWCHECK_REJECTS_KIND", "none")
	code, out, _ := runCLI(t, "-config", cfg)
	if code != exitInvalid || !strings.Contains(out, "rejects_written=0") {
		t.Fatalf("exit=%d out=%s", code, out)
	}
}

func TestSetupMetrics_Disabled(t *testing.T) {
	for _, backend := range []string{"", "none", "graphite"} {
		if f := setupMetrics("job", config.MetricsConfig{Backend: backend}); f != nil {
			t.Fatalf("backend %q returned a flush func", backend)
		}
	}
}

func TestSampleConfig(t *testing.T) {
	p, err := config.Load(filepath.Join("..", "..", "configs", "sample.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if issues := config.ValidatePipeline(p); config.HasErrors(issues) {
		t.Fatalf("sample config has errors: %v", issues)
	}
}
