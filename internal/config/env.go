package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RAWCHECK_"

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env")
// into the process environment. Missing files are ignored; variables that
// are already set win.
func LoadDotEnv(paths ...string) {
	_ = godotenv.Load(paths...)
}

// ApplyEnv overlays environment variables onto p. Only variables that are
// set change a field:
//
//	RAWCHECK_JOB
//	RAWCHECK_WORKERS, RAWCHECK_CHANNEL_BUFFER, RAWCHECK_BATCH_SIZE, RAWCHECK_DEDUPE
//	RAWCHECK_REJECTS_KIND, RAWCHECK_REJECTS_DSN, RAWCHECK_REJECTS_TABLE,
//	RAWCHECK_REJECTS_AUTO_CREATE_TABLE
//	RAWCHECK_METRICS_BACKEND, RAWCHECK_METRICS_PUSHGATEWAY_URL,
//	RAWCHECK_METRICS_STATSD_ADDR, RAWCHECK_METRICS_NAMESPACE
func ApplyEnv(p *Pipeline) error {
	return applyEnv(p, env.Options{})
}

// applyEnv takes options so tests can inject an environment map.
func applyEnv(p *Pipeline, base env.Options) error {
	var top struct {
		Job string `env:"JOB"`
	}
	steps := []struct {
		prefix string
		dst    any
	}{
		{EnvPrefix, &top},
		{EnvPrefix, &p.Runtime},
		{EnvPrefix + "REJECTS_", &p.Rejects},
		{EnvPrefix + "METRICS_", &p.Metrics},
	}
	for _, s := range steps {
		opts := base
		opts.Prefix = s.prefix
		if err := env.ParseWithOptions(s.dst, opts); err != nil {
			return fmt.Errorf("env %s*: %w", s.prefix, err)
		}
	}
	if top.Job != "" {
		p.Job = top.Job
	}
	return nil
}
