// Command rawcheck validates a CSV file against a record contract and writes
// every field error to a reject sink.
//
//	rawcheck -config configs/sample.json
//	rawcheck -config configs/sample.json -validate
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"rawcheck/internal/config"
	"rawcheck/internal/metrics"
	"rawcheck/internal/metrics/datadog"
	"rawcheck/internal/metrics/prompush"
	"rawcheck/internal/pipeline"
	"rawcheck/internal/validate"

	_ "rawcheck/internal/storage/all"
)

// Exit codes.
const (
	exitOK      = 0
	exitInvalid = 1 // rows failed validation or could not be parsed
	exitError   = 2 // configuration or runtime failure
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rawcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		cfgPath     = fs.String("config", "configs/sample.json", "pipeline config JSON path")
		envFile     = fs.String("env-file", ".env", "dotenv file loaded before RAWCHECK_* overrides (missing file is ignored)")
		validateCfg = fs.Bool("validate", false, "validate the configuration and exit")
		backendFlg  = fs.String("metrics-backend", "", "metrics backend: none, pushgateway, datadog (overrides config)")
		gatewayFlg  = fs.String("pushgateway-url", "", "Pushgateway base URL (overrides config)")
		statsdFlg   = fs.String("statsd-addr", "", "DogStatsD address (overrides config)")
		maxPrint    = fs.Int("max-print", 100, "print at most this many invalid rows; 0 prints none, -1 prints all")
		verbose     = fs.Bool("v", false, "enable verbose logs")
	)
	if err := fs.Parse(args); err != nil {
		return exitError
	}

	log.SetOutput(stderr)
	if !*verbose {
		log.SetOutput(io.Discard)
	}

	p, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	config.LoadDotEnv(*envFile)
	if err := config.ApplyEnv(&p); err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		fmt.Fprintf(stderr, "configuration is invalid: %s\n", *cfgPath)
		return exitError
	}
	if *validateCfg {
		fmt.Fprintf(stdout, "configuration is valid: %s\n", *cfgPath)
		return exitOK
	}

	mc := p.Metrics
	if *backendFlg != "" {
		mc.Backend = *backendFlg
	}
	if *gatewayFlg != "" {
		mc.PushgatewayURL = *gatewayFlg
	}
	if *statsdFlg != "" {
		mc.StatsdAddr = *statsdFlg
	}
	if flush := setupMetrics(p.Job, mc); flush != nil {
		defer flush()
	}

	printed := 0
	onResult := func(r pipeline.Result) {
		if r.Valid() || (*maxPrint >= 0 && printed >= *maxPrint) {
			return
		}
		printed++
		for _, fe := range r.Report.All() {
			fmt.Fprintf(stdout, "line %d: %s: %s\n", r.Line, fe.Field, fe.Message)
		}
	}
	onParseErr := func(line int, err error) {
		fmt.Fprintf(stdout, "line %d: %v\n", line, err)
	}

	sum, err := pipeline.Run(ctx, p, pipeline.Options{OnResult: onResult, OnParseError: onParseErr})
	printSummary(stdout, sum)
	if err != nil {
		fmt.Fprintf(stderr, "run failed: %v\n", err)
		return exitError
	}
	if sum.Invalid > 0 || sum.ParseErrors > 0 {
		return exitInvalid
	}
	return exitOK
}

// setupMetrics installs the selected backend and returns its flush function,
// or nil when metrics are disabled.
func setupMetrics(job string, mc config.MetricsConfig) func() {
	var (
		b   metrics.Backend
		err error
	)
	switch mc.Backend {
	case "", "none":
		return nil
	case "pushgateway":
		url := mc.PushgatewayURL
		if url == "" {
			url = "http://localhost:9091"
		}
		b, err = prompush.NewBackend(job, url)
	case "datadog":
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       mc.StatsdAddr,
			Namespace:  mc.Namespace,
			GlobalTags: []string{"job:" + job},
		})
	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", mc.Backend)
		return nil
	}
	if err != nil {
		log.Printf("metrics: init %s: %v; using nop", mc.Backend, err)
		return nil
	}
	log.Printf("metrics: backend=%s job=%s", mc.Backend, job)
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}

func printSummary(w io.Writer, s pipeline.Summary) {
	fmt.Fprintf(w, "run %s: processed=%d valid=%d invalid=%d duplicates=%d parse_errors=%d rejects_written=%d\n",
		s.RunID, s.Processed, s.Valid, s.Invalid, s.Duplicates, s.ParseErrors, s.RejectsWritten)

	codes := make([]validate.Code, 0, len(s.FieldErrors))
	for c := range s.FieldErrors {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	for _, c := range codes {
		fmt.Fprintf(w, "  %s=%d\n", c, s.FieldErrors[c])
	}
}
