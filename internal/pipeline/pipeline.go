// Package pipeline runs a streaming validation job: CSV rows are read into
// raw records, checked by a compiled validator on a pool of workers, and
// every field error is written to the configured reject sink in batches.
//
// Concurrency model:
//
//	Reader (1)  →  tap (dedupe, count)  →  N validators  →  collector  →  loader
//
// Channels are bounded by runtime.channel_buffer, so memory stays around
// O(workers + channel_buffer + batch_size) rows. A fatal error in any stage
// cancels the others.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"rawcheck/internal/config"
	"rawcheck/internal/datasource"
	"rawcheck/internal/metrics"
	csvparser "rawcheck/internal/parser/csv"
	"rawcheck/internal/record"
	"rawcheck/internal/schema"
	"rawcheck/internal/storage"
	"rawcheck/internal/validate"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"
)

// CodeParseError marks reject rows for records the CSV reader could not parse.
const CodeParseError = "parse_error"

// Result is the outcome of one input record: a validation report, or Err
// when the reader could not parse the record.
type Result struct {
	Line   int
	Raw    record.Raw
	Report *validate.Report
	Err    error
}

// Valid reports whether the record parsed and passed every rule.
func (r Result) Valid() bool { return r.Err == nil && r.Report.Empty() }

// Summary aggregates a run.
type Summary struct {
	RunID          string
	Processed      int64 // rows validated
	Valid          int64
	Invalid        int64
	Duplicates     int64 // rows skipped by dedupe
	ParseErrors    int64 // records the reader rejected
	RejectsWritten int64
	FieldErrors    map[validate.Code]int64
	Unmatched      []string // header cells that matched no field
	Missing        []string // fields with no source column
	Elapsed        time.Duration
}

// Options customizes a run.
type Options struct {
	// RunID tags reject rows; a random UUID is used when empty.
	RunID string
	// OnResult, when set, receives every validated row. With more than one
	// worker the order is completion order.
	OnResult func(Result)
	// OnParseError, when set, receives records the reader rejected.
	//
	// Both callbacks run on the collector goroutine and are never called
	// concurrently, so they may share an unsynchronized writer.
	OnParseError func(line int, err error)
}

// Test seams.
var (
	openSourceFn = func(ctx context.Context, cfg config.Source) (io.ReadCloser, error) {
		src, err := datasource.FromConfig(cfg)
		if err != nil {
			return nil, err
		}
		return src.Open(ctx)
	}
	newRepositoryFn = storage.New
)

type counters struct {
	processed   atomic.Int64
	valid       atomic.Int64
	invalid     atomic.Int64
	duplicates  atomic.Int64
	parseErrors atomic.Int64
}

// Run executes p until the input is exhausted, a stage fails or ctx is
// canceled. The returned Summary is populated even when err is non-nil.
func Run(ctx context.Context, p config.Pipeline, opts Options) (sum Summary, err error) {
	start := time.Now()
	defer func() {
		sum.Elapsed = time.Since(start)
		metrics.RecordStep(p.Job, "run", err, sum.Elapsed)
	}()

	sum.RunID = opts.RunID
	if sum.RunID == "" {
		sum.RunID = uuid.NewString()
	}
	sum.FieldErrors = map[validate.Code]int64{}

	s, err := schema.FromContract(p.Contract)
	if err != nil {
		return sum, fmt.Errorf("contract: %w", err)
	}
	v := validate.Compile(s)
	rt := p.Runtime.WithDefaults()

	var repo storage.Repository
	if p.Rejects.Enabled() {
		repo, err = openRejects(ctx, p.Rejects)
		if err != nil {
			return sum, err
		}
		defer repo.Close()
	}

	src, err := openSourceFn(ctx, p.Source)
	if err != nil {
		return sum, fmt.Errorf("open source: %w", err)
	}
	reader, err := csvparser.NewReader(src, s, p.Parser.Options, p.Contract.HeaderMap)
	if err != nil {
		return sum, err
	}
	defer reader.Close()

	sum.Unmatched = reader.Layout().Unmatched
	sum.Missing = reader.Layout().Missing
	if len(sum.Unmatched) > 0 {
		log.Printf("reader: ignoring columns: %s", strings.Join(sum.Unmatched, ", "))
	}
	if len(sum.Missing) > 0 {
		log.Printf("reader: no column for fields: %s", strings.Join(sum.Missing, ", "))
	}
	log.Printf("run %s: job=%s workers=%d buffer=%d batch=%d dedupe=%t rejects=%s",
		sum.RunID, p.Job, rt.Workers, rt.ChannelBuffer, rt.BatchSize, rt.Dedupe, rejectsKind(p.Rejects))

	var (
		stats    counters
		written  atomic.Int64
		g, gctx  = errgroup.WithContext(ctx)
		rawCh    = make(chan csvparser.Row, rt.ChannelBuffer)
		tapCh    = make(chan csvparser.Row, rt.ChannelBuffer)
		resultCh = make(chan Result, rt.ChannelBuffer)
		rejectCh chan storage.Reject
	)
	sendReject := func(storage.Reject) error { return nil }
	if repo != nil {
		rejectCh = make(chan storage.Reject, rt.ChannelBuffer)
		sendReject = func(r storage.Reject) error {
			r.RunID, r.Job = sum.RunID, p.Job
			select {
			case rejectCh <- r:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	}

	// Reader.
	g.Go(func() error {
		defer close(rawCh)
		// Forwarded in stream order; StreamRaw sees cancellation on its
		// next iteration.
		onErr := func(line int, err error) {
			select {
			case rawCh <- csvparser.Row{Line: line, Err: err}:
			case <-gctx.Done():
			}
		}
		t0 := time.Now()
		err := csvparser.StreamRaw(gctx, reader, rawCh, onErr)
		metrics.RecordStep(p.Job, "read", err, time.Since(t0))
		return err
	})

	// Tap: dedupe and count. Parse errors pass through untouched.
	g.Go(func() error {
		defer close(tapCh)
		var seen map[xxh3.Uint128]struct{}
		if rt.Dedupe {
			seen = make(map[xxh3.Uint128]struct{})
		}
		for row := range rawCh {
			if row.Err == nil && seen != nil {
				h := rowHash(row.Cells)
				if _, dup := seen[h]; dup {
					stats.duplicates.Add(1)
					continue
				}
				seen[h] = struct{}{}
			}
			if row.Err == nil {
				stats.processed.Add(1)
			}
			select {
			case tapCh <- row:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	// Validators.
	var wgWorkers sync.WaitGroup
	wgWorkers.Add(rt.Workers)
	for i := 0; i < rt.Workers; i++ {
		g.Go(func() error {
			defer wgWorkers.Done()
			for row := range tapCh {
				res := Result{Line: row.Line, Err: row.Err}
				if row.Err == nil {
					res.Raw, res.Report = row.Raw, v.Check(row.Raw)
				}
				select {
				case resultCh <- res:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		wgWorkers.Wait()
		close(resultCh)
		return nil
	})

	// Collector.
	g.Go(func() error {
		if rejectCh != nil {
			defer close(rejectCh)
		}
		for res := range resultCh {
			if res.Err != nil {
				stats.parseErrors.Add(1)
				log.Printf("line %d: %v", res.Line, res.Err)
				if opts.OnParseError != nil {
					opts.OnParseError(res.Line, res.Err)
				}
				r := storage.Reject{Line: res.Line, Code: CodeParseError, Message: res.Err.Error()}
				if err := sendReject(r); err != nil {
					return err
				}
				continue
			}
			if res.Valid() {
				stats.valid.Add(1)
			} else {
				stats.invalid.Add(1)
			}
			if opts.OnResult != nil {
				opts.OnResult(res)
			}
			if res.Valid() {
				continue
			}
			for code, n := range res.Report.CodeCounts() {
				sum.FieldErrors[code] += int64(n)
			}
			for _, fe := range res.Report.All() {
				r := storage.Reject{Line: res.Line, Field: fe.Field, Code: string(fe.Code), Message: fe.Message}
				if fe.Code != validate.RequiredFieldMissing {
					val := fe.Value
					r.Value = &val
				}
				if err := sendReject(r); err != nil {
					return err
				}
			}
		}
		return nil
	})

	// Loader.
	if repo != nil {
		g.Go(func() error {
			t0 := time.Now()
			n, err := storage.LoadBatches(gctx, rejectCh, rt.BatchSize,
				func(ctx context.Context, cols []string, rows [][]any) (int64, error) {
					n, err := repo.CopyFrom(ctx, cols, rows)
					if err == nil {
						metrics.RecordBatches(p.Job, 1)
					}
					return n, err
				})
			written.Store(n)
			metrics.RecordStep(p.Job, "rejects", err, time.Since(t0))
			if err != nil {
				return fmt.Errorf("write rejects: %w", err)
			}
			return nil
		})
	}

	err = g.Wait()

	sum.Processed = stats.processed.Load()
	sum.Valid = stats.valid.Load()
	sum.Invalid = stats.invalid.Load()
	sum.Duplicates = stats.duplicates.Load()
	sum.ParseErrors = stats.parseErrors.Load()
	sum.RejectsWritten = written.Load()

	recordSummary(p.Job, sum)
	log.Printf("run %s: processed=%d valid=%d invalid=%d duplicates=%d parse_errors=%d rejects_written=%d elapsed=%s",
		sum.RunID, sum.Processed, sum.Valid, sum.Invalid, sum.Duplicates, sum.ParseErrors, sum.RejectsWritten,
		time.Since(start).Truncate(time.Millisecond))
	return sum, err
}

func openRejects(ctx context.Context, r config.Rejects) (storage.Repository, error) {
	cfg := storage.Config{Kind: r.Kind, DSN: r.DSN, Table: r.Table}
	repo, err := newRepositoryFn(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open rejects %s: %w", r.Kind, err)
	}
	if r.AutoCreateTable {
		if err := storage.EnsureTable(ctx, cfg, repo); err != nil {
			repo.Close()
			return nil, fmt.Errorf("create rejects table: %w", err)
		}
	}
	return repo, nil
}

// rowHash hashes cells with a unit separator so ["ab","c"] and ["a","bc"]
// differ.
func rowHash(cells []string) xxh3.Uint128 {
	h := xxh3.New()
	for _, c := range cells {
		_, _ = h.WriteString(c)
		_, _ = h.Write([]byte{0x1f})
	}
	return h.Sum128()
}

func recordSummary(job string, s Summary) {
	metrics.RecordRow(job, "processed", s.Processed)
	metrics.RecordRow(job, "valid", s.Valid)
	metrics.RecordRow(job, "invalid", s.Invalid)
	metrics.RecordRow(job, "duplicate", s.Duplicates)
	metrics.RecordRow(job, "parse_error", s.ParseErrors)
	metrics.RecordRow(job, "rejected_written", s.RejectsWritten)
	for code, n := range s.FieldErrors {
		metrics.RecordFieldError(job, string(code), n)
	}
}

func rejectsKind(r config.Rejects) string {
	if !r.Enabled() {
		return "none"
	}
	return r.Kind
}
