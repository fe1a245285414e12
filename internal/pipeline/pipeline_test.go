package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"rawcheck/internal/config"
	"rawcheck/internal/schema"
	"rawcheck/internal/storage"
	_ "rawcheck/internal/storage/csvfile"
	"rawcheck/internal/validate"
)

// fakeRepo records CopyFrom batches; copyErr makes every call fail.
type fakeRepo struct {
	mu      sync.Mutex
	rows    [][]any
	execs   int
	closed  bool
	copyErr error
}

func (f *fakeRepo) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if f.copyErr != nil {
		return 0, f.copyErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rows {
		f.rows = append(f.rows, append([]any(nil), r...))
	}
	return int64(len(rows)), nil
}
func (f *fakeRepo) Exec(ctx context.Context, sql string) error { f.execs++; return nil }
func (f *fakeRepo) Close()                                     { f.closed = true }

// useSource replaces the source opener with an in-memory document.
func useSource(t *testing.T, body string) {
	t.Helper()
	orig := openSourceFn
	openSourceFn = func(context.Context, config.Source) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(body)), nil
	}
	t.Cleanup(func() { openSourceFn = orig })
}

// useRepo routes storage.New to repo.
func useRepo(t *testing.T, repo *fakeRepo) *storage.Config {
	t.Helper()
	var got storage.Config
	orig := newRepositoryFn
	newRepositoryFn = func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		got = cfg
		return repo, nil
	}
	t.Cleanup(func() { newRepositoryFn = orig })
	return &got
}

func testPipeline() config.Pipeline {
	return config.Pipeline{
		Job:    "people",
		Source: config.Source{Kind: "file", File: config.SourceFile{Path: "unused.csv"}},
		Parser: config.Parser{Kind: "csv", Options: config.Options{"has_header": true}},
		Contract: schema.Contract{
			Name: "person",
			Fields: []schema.ContractField{
				{Name: "id", Type: "u32"},
				{Name: "name", Type: "string", Validate: "min_length=2,max_length=5"},
				{Name: "score", Type: "i8", Optional: true},
			},
		},
		Rejects: config.Rejects{Kind: "fake", DSN: "mem", Table: "rejects"},
		Runtime: config.RuntimeConfig{Workers: 3, ChannelBuffer: 4, BatchSize: 2, Dedupe: true},
	}
}

const peopleCSV = "id,name,score\n" +
	"1,Alice,5\n" + // valid
	"2,Bo,-200\n" + // score out of range
	"-3,,x\n" + // negative id, missing name, malformed score
	"1,Alice,5\n" + // duplicate
	"4,\"bad\"x,1\n" + // parse error
	"5,Eve,\n" // valid, score absent

/*
TestRun_EndToEnd covers counting, dedupe, parse errors and the reject rows
written to the sink, with several workers and small batches.
*/
func TestRun_EndToEnd(t *testing.T) {
	useSource(t, peopleCSV)
	repo := &fakeRepo{}
	gotCfg := useRepo(t, repo)

	var (
		mu      sync.Mutex
		results []Result
	)
	sum, err := Run(context.Background(), testPipeline(), Options{
		RunID: "run-1",
		OnResult: func(r Result) {
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if gotCfg.Kind != "fake" || gotCfg.Table != "rejects" {
		t.Fatalf("storage config=%+v", *gotCfg)
	}
	if !repo.closed {
		t.Fatalf("repository not closed")
	}
	if sum.Processed != 4 || sum.Valid != 2 || sum.Invalid != 2 || sum.Duplicates != 1 || sum.ParseErrors != 1 {
		t.Fatalf("summary=%+v", sum)
	}
	if sum.RejectsWritten != 5 || len(repo.rows) != 5 {
		t.Fatalf("rejects written=%d rows=%d", sum.RejectsWritten, len(repo.rows))
	}
	wantCodes := map[validate.Code]int64{
		validate.OutOfRange:               1,
		validate.NegativeValueForUnsigned: 1,
		validate.RequiredFieldMissing:     1,
		validate.MalformedNumber:          1,
	}
	for code, n := range wantCodes {
		if sum.FieldErrors[code] != n {
			t.Fatalf("FieldErrors[%s]=%d; want %d (all=%v)", code, sum.FieldErrors[code], n, sum.FieldErrors)
		}
	}
	if len(results) != 4 {
		t.Fatalf("OnResult calls=%d", len(results))
	}

	// Flatten reject rows into "line:field:code" keys.
	var keys []string
	for _, r := range repo.rows {
		if r[0] != "run-1" || r[1] != "people" {
			t.Fatalf("reject run/job=%v/%v", r[0], r[1])
		}
		keys = append(keys, strings.Join([]string{strconv.FormatInt(r[2].(int64), 10), r[3].(string), r[4].(string)}, ":"))
	}
	sort.Strings(keys)
	want := []string{
		"3:score:out_of_range",
		"4:id:negative_value_for_unsigned",
		"4:name:required_field_missing",
		"4:score:malformed_number",
		"6::parse_error",
	}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Fatalf("reject keys\ngot : %v\nwant: %v", keys, want)
	}
}

func TestRun_NoSink(t *testing.T) {
	useSource(t, peopleCSV)
	p := testPipeline()
	p.Rejects = config.Rejects{}
	p.Runtime = config.RuntimeConfig{Workers: 1}

	var lines []int
	var parseLines []int
	sum, err := Run(context.Background(), p, Options{
		OnResult:     func(r Result) { lines = append(lines, r.Line) },
		OnParseError: func(line int, err error) { parseLines = append(parseLines, line) },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Dedupe is off: the repeated row is validated again.
	if sum.Processed != 5 || sum.Duplicates != 0 || sum.RejectsWritten != 0 {
		t.Fatalf("summary=%+v", sum)
	}
	if sum.RunID == "" {
		t.Fatalf("RunID not generated")
	}
	// One worker keeps input order.
	if want := []int{2, 3, 4, 5, 7}; !slices.Equal(lines, want) {
		t.Fatalf("lines=%v; want %v", lines, want)
	}
	if !slices.Equal(parseLines, []int{6}) {
		t.Fatalf("parse lines=%v", parseLines)
	}
}

/*
TestRun_CallbacksOnOneGoroutine feeds parse errors between invalid rows.
Both callbacks append to one unguarded slice, which the race detector
would flag if they ran on different goroutines. With one worker the merged
sequence follows input order.
*/
func TestRun_CallbacksOnOneGoroutine(t *testing.T) {
	var b strings.Builder
	b.WriteString("id,name,score\n")
	for i := 0; i < 200; i++ {
		if i%2 == 0 {
			b.WriteString("1,a\"b,3\n")
		} else {
			b.WriteString("-1,A,999\n")
		}
	}

	for _, workers := range []int{1, 4} {
		t.Run("workers="+strconv.Itoa(workers), func(t *testing.T) {
			useSource(t, b.String())
			p := testPipeline()
			p.Rejects = config.Rejects{}
			p.Runtime = config.RuntimeConfig{Workers: workers, ChannelBuffer: 2}

			var events []string
			sum, err := Run(context.Background(), p, Options{
				OnResult: func(r Result) {
					events = append(events, "r"+strconv.Itoa(r.Line))
				},
				OnParseError: func(line int, err error) {
					events = append(events, "p"+strconv.Itoa(line))
				},
			})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if sum.ParseErrors != 100 || sum.Invalid != 100 || sum.Processed != 100 {
				t.Fatalf("summary=%+v", sum)
			}
			if len(events) != 200 {
				t.Fatalf("events=%d; want 200", len(events))
			}
			if workers > 1 {
				return
			}
			for i, ev := range events {
				kind := "p"
				if i%2 == 1 {
					kind = "r"
				}
				if want := kind + strconv.Itoa(i+2); ev != want {
					t.Fatalf("events[%d]=%s; want %s", i, ev, want)
				}
			}
		})
	}
}

func TestResult_ValidWithParseError(t *testing.T) {
	if (Result{Line: 3, Err: errors.New("bare quote")}).Valid() {
		t.Fatalf("a parse error must not count as valid")
	}
}

func TestRun_HeaderBookkeeping(t *testing.T) {
	useSource(t, "ID,Name,extra\n1,Al,z\n")
	p := testPipeline()
	p.Rejects = config.Rejects{}
	sum, err := Run(context.Background(), p, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !slices.Equal(sum.Unmatched, []string{"extra"}) || !slices.Equal(sum.Missing, []string{"score"}) {
		t.Fatalf("unmatched=%v missing=%v", sum.Unmatched, sum.Missing)
	}
	if sum.Valid != 1 {
		t.Fatalf("summary=%+v", sum)
	}
}

func TestRun_SinkFailure(t *testing.T) {
	useSource(t, peopleCSV)
	boom := errors.New("disk full")
	useRepo(t, &fakeRepo{copyErr: boom})

	_, err := Run(context.Background(), testPipeline(), Options{})
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v; want %v", err, boom)
	}
}

func TestRun_ContractError(t *testing.T) {
	p := testPipeline()
	p.Contract.Fields[0].Type = "Money"
	_, err := Run(context.Background(), p, Options{})
	if !errors.Is(err, schema.ErrUnknownType) {
		t.Fatalf("err=%v; want ErrUnknownType", err)
	}
}

func TestRun_SourceError(t *testing.T) {
	p := testPipeline()
	p.Rejects = config.Rejects{}
	p.Source.File.Path = filepath.Join(t.TempDir(), "missing.csv")
	_, err := Run(context.Background(), p, Options{})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v; want os.ErrNotExist", err)
	}
}

func TestRun_AutoCreateTable(t *testing.T) {
	useSource(t, "id,name\n1,Al\n")
	repo := &fakeRepo{}
	useRepo(t, repo)
	storage.RegisterDDL("fake", func(ctx context.Context, r storage.Repository, table string) error {
		return r.Exec(ctx, "CREATE TABLE "+table)
	})

	p := testPipeline()
	p.Rejects.AutoCreateTable = true
	if _, err := Run(context.Background(), p, Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if repo.execs != 1 {
		t.Fatalf("DDL execs=%d", repo.execs)
	}
}

func TestRun_Canceled(t *testing.T) {
	useSource(t, peopleCSV)
	p := testPipeline()
	p.Rejects = config.Rejects{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, p, Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v; want context.Canceled", err)
	}
}

/*
TestRun_CSVSink runs against a real file source and the csv reject sink.
*/
func TestRun_CSVSink(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "people.csv")
	if err := os.WriteFile(in, []byte(peopleCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "rejects", "people.csv")

	p := testPipeline()
	p.Source.File.Path = in
	p.Rejects = config.Rejects{Kind: "csv", DSN: out}
	sum, err := Run(context.Background(), p, Options{RunID: "r"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open rejects: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read rejects: %v", err)
	}
	if int64(len(rows)-1) != sum.RejectsWritten || sum.RejectsWritten != 5 {
		t.Fatalf("csv rows=%d written=%d", len(rows)-1, sum.RejectsWritten)
	}
	for _, r := range rows[1:] {
		if r[4] == "out_of_range" && r[5] != "-200" {
			t.Fatalf("out_of_range value=%q", r[5])
		}
		if r[4] == "required_field_missing" && r[5] != "" {
			t.Fatalf("missing value should be empty, got %q", r[5])
		}
	}
}

func TestRowHash(t *testing.T) {
	if rowHash([]string{"ab", "c"}) == rowHash([]string{"a", "bc"}) {
		t.Fatalf("cell boundaries not part of the hash")
	}
	if rowHash([]string{"x", ""}) != rowHash([]string{"x", ""}) {
		t.Fatalf("hash not deterministic")
	}
}
