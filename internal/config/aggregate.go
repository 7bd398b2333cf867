package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Window stats sinks accepted by the sink key.
const (
	SinkStdout   = "stdout"
	SinkPostgres = "postgres"
)

// AggregateConfig holds configuration for receipt aggregation.
type AggregateConfig struct {
	Input         string
	Window        time.Duration
	Sink          string
	PGDSN         string
	BatchSize     int
	StateFile     string
	RecomputeFrom uint64
	LogLevel      string
}

// WindowSeconds is Window truncated to whole seconds.
func (c AggregateConfig) WindowSeconds() uint64 {
	return uint64(c.Window / time.Second)
}

// LoadAggregate merges config file, environment variables, and flags into AggregateConfig.
func LoadAggregate(cfgFile string, flags *pflag.FlagSet) (AggregateConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"in":         "./data/receipts.jsonl",
		"window":     "1h",
		"sink":       SinkStdout,
		"batch-size": 500,
		"log-level":  "info",
	})
	if err != nil {
		return AggregateConfig{}, err
	}

	window, err := time.ParseDuration(v.GetString("window"))
	if err != nil {
		return AggregateConfig{}, fmt.Errorf("invalid window: %w", err)
	}
	if window < time.Second {
		return AggregateConfig{}, fmt.Errorf("window must be at least 1s")
	}

	recomputeFrom, err := ParseTimestamp(v.GetString("recompute-from"))
	if err != nil {
		return AggregateConfig{}, fmt.Errorf("parse recompute-from: %w", err)
	}

	cfg := AggregateConfig{
		Input:         v.GetString("in"),
		Window:        window,
		Sink:          strings.ToLower(strings.TrimSpace(v.GetString("sink"))),
		PGDSN:         v.GetString("pg-dsn"),
		BatchSize:     v.GetInt("batch-size"),
		StateFile:     v.GetString("state-file"),
		RecomputeFrom: recomputeFrom,
		LogLevel:      v.GetString("log-level"),
	}

	if cfg.Input == "" {
		return AggregateConfig{}, fmt.Errorf("input path is required")
	}
	switch cfg.Sink {
	case SinkStdout:
	case SinkPostgres:
		if cfg.PGDSN == "" {
			return AggregateConfig{}, fmt.Errorf("pg-dsn is required for the postgres sink")
		}
	default:
		return AggregateConfig{}, fmt.Errorf("unknown sink %q", cfg.Sink)
	}

	return cfg, nil
}

// ParseTimestamp accepts unix seconds or an RFC3339 time; empty means zero.
func ParseTimestamp(input string) (uint64, error) {
	input = strings.TrimSpace(input)
	switch {
	case input == "":
		return 0, nil
	case strings.IndexFunc(input, notDigit) == -1:
		return strconv.ParseUint(input, 10, 64)
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	if tm.Before(time.Unix(0, 0)) {
		return 0, fmt.Errorf("timestamp %s before unix epoch", input)
	}
	return uint64(tm.Unix()), nil
}

func notDigit(r rune) bool {
	return r < '0' || r > '9'
}
