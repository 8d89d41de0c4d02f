// Package config resolves one run's parameters from CLI flags, an optional
// YAML overlay file, and environment-variable defaults, in that order of
// increasing-to-decreasing precedence: environment defaults are read first,
// a YAML file (if named) overrides them, and explicit CLI flags win last.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/c2h5oh/datasize"
	"github.com/caarlos0/env/v7"
	"gopkg.in/yaml.v2"

	"github.com/agurim/agurim/internal/agflow"
	"github.com/agurim/agurim/internal/agufmt"
	"github.com/agurim/agurim/internal/hhhengine"
)

// defaultAggrInterval is the default pass-1 re-discovery window, matching
// query_init's aggr_interval default.
const defaultAggrInterval = 60 * time.Second

// defaultTotalDuration is the default analysis window for the plotting
// formats when the run names no duration and does not name both the start
// and the end time.
const defaultTotalDuration = 24 * time.Hour

// Config is one run's fully resolved parameters: which files to read, how
// to slice them into aggregation windows, which HHH threshold and view to
// search with, and where/how to write the result.
type Config struct {
	// Paths lists the input files or directories named on the command
	// line. Empty means read from stdin.
	Paths []string

	// Filter restricts discovery to flows overlapping one address-pair or
	// proto-port spec, in either "<src> <dst>" or "<proto>:<sport>:<dport>"
	// form. Empty means no filtering.
	Filter string

	Basis agflow.Basis
	View  hhhengine.View

	Format     agufmt.Format
	OutputPath string

	ThresholdPct    float64
	SubThresholdPct float64
	MaxAggregates   int

	AggrInterval  time.Duration
	TotalDuration time.Duration
	StartTime     time.Time
	EndTime       time.Time

	Concurrency int
	MaxFileSize datasize.ByteSize
}

// envOverlay holds the subset of Config fields that may carry an
// environment-variable default, read via [env.Parse], grounded on the
// struct-tag idiom the teacher's own environment loader used.
type envOverlay struct {
	ConfigPath string `env:"AGURIM_CONFIG_PATH"`
	OutputPath string `env:"AGURIM_OUTPUT_PATH" envDefault:"-"`

	ThresholdPct float64           `env:"AGURIM_THRESHOLD"`
	NFlow        int               `env:"AGURIM_NFLOW"`
	AggrInterval int64             `env:"AGURIM_AGGR_INTERVAL" envDefault:"60"`
	Concurrency  int               `env:"AGURIM_CONCURRENCY" envDefault:"4"`
	MaxFileSize  datasize.ByteSize `env:"AGURIM_MAX_FILE_SIZE" envDefault:"64MB"`
}

// fileOverlay is the subset of envOverlay's fields that a YAML config file
// (-config) may also set, read via gopkg.in/yaml.v2. It overrides the
// environment defaults and is itself overridden by any flag the user set
// explicitly.
type fileOverlay struct {
	ThresholdPct *float64 `yaml:"threshold"`
	NFlow        *int     `yaml:"nflow"`
	AggrInterval *int64   `yaml:"aggr_interval"`
	Concurrency  *int     `yaml:"concurrency"`
	OutputPath   *string  `yaml:"output_path"`
}

// Load resolves a Config from args (excluding the program name, as in
// flag.FlagSet.Parse), overlaying CLI flags onto environment defaults and
// an optional YAML file, and validates the result.
func Load(args []string) (cfg *Config, err error) {
	var envs envOverlay
	if err = env.Parse(&envs); err != nil {
		return nil, fmt.Errorf("config: reading environment: %w", err)
	}

	fs := flag.NewFlagSet("agurim", flag.ContinueOnError)

	debug := fs.Bool("d", false, "debug CSV output, byte basis")
	jsonOut := fs.Bool("p", false, "JSON output")
	protoView := fs.Bool("P", false, "aggregate on protocol/port instead of address")
	filterSpec := fs.String("f", "", "filter spec: '<src> <dst>' or '<proto>:<sport>:<dport>'")
	aggrInterval := fs.Int64("i", 0, "pass-1 re-discovery interval, seconds")
	basisFlag := fs.String("m", "", "counter basis: byte or packet")
	nflow := fs.Int("n", 0, "max accepted aggregates")
	totalDuration := fs.Int64("s", 0, "analysis window duration, seconds")
	thresholdPct := fs.Float64("t", 0, "aggregation threshold percentage")
	startTime := fs.Int64("S", 0, "analysis window start, unix seconds")
	endTime := fs.Int64("E", 0, "analysis window end, unix seconds")
	configPath := fs.String("config", envs.ConfigPath, "optional YAML overlay file")
	outputPath := fs.String("o", "", "output path, - for stdout")

	if err = fs.Parse(args); err != nil {
		return nil, err
	}

	var file fileOverlay
	if *configPath != "" {
		if file, err = loadFile(*configPath); err != nil {
			return nil, err
		}
	}

	cfg = &Config{
		Paths:         fs.Args(),
		Filter:        *filterSpec,
		View:          hhhengine.AddressView,
		Format:        agufmt.FormatText,
		OutputPath:    resolveString(*outputPath, file.OutputPath, envs.OutputPath),
		ThresholdPct:  resolveFloat(*thresholdPct, file.ThresholdPct, envs.ThresholdPct),
		AggrInterval:  resolveDuration(*aggrInterval, file.AggrInterval, envs.AggrInterval, defaultAggrInterval),
		TotalDuration: time.Duration(*totalDuration) * time.Second,
		Concurrency:   resolveInt(0, file.Concurrency, envs.Concurrency),
		MaxFileSize:   envs.MaxFileSize,
		MaxAggregates: resolveInt(*nflow, file.NFlow, envs.NFlow),
	}

	if *startTime > 0 {
		cfg.StartTime = time.Unix(*startTime, 0)
	}
	if *endTime > 0 {
		cfg.EndTime = time.Unix(*endTime, 0)
	}

	if *protoView {
		cfg.View = hhhengine.ProtocolView
	}

	switch {
	case *debug:
		cfg.Format = agufmt.FormatCSV
		cfg.Basis = agflow.BasisByte
	case *jsonOut:
		cfg.Format = agufmt.FormatJSON
		cfg.Basis = agflow.BasisByte
	default:
		cfg.Format = agufmt.FormatText
	}

	if *basisFlag != "" {
		switch {
		case strings.HasPrefix(*basisFlag, "byte"):
			cfg.Basis = agflow.BasisByte
		case strings.HasPrefix(*basisFlag, "packet"):
			cfg.Basis = agflow.BasisPacket
		default:
			return nil, fmt.Errorf("config: -m: unknown basis %q", *basisFlag)
		}
	} else if cfg.Format == agufmt.FormatText && cfg.Basis == 0 {
		cfg.Basis = agflow.BasisCombination
	}

	applyDefaults(cfg)
	cfg.SubThresholdPct = cfg.ThresholdPct

	if err = cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults fills in the threshold, nflow, and window fields query_init
// leaves to mode-dependent defaults: a lower threshold and an unbounded
// aggregate count for the single-pass reaggregation-text format, a higher
// threshold and a 7-aggregate cutoff for the two-pass plotting formats.
func applyDefaults(cfg *Config) {
	plotting := cfg.Format != agufmt.FormatText

	if cfg.ThresholdPct == 0 {
		if plotting {
			cfg.ThresholdPct = 3
		} else {
			cfg.ThresholdPct = 1
		}
	}

	if cfg.MaxAggregates == 0 && plotting {
		cfg.MaxAggregates = 7
	}

	if !plotting {
		return
	}

	switch {
	case cfg.StartTime.IsZero() && cfg.EndTime.IsZero() && cfg.TotalDuration == 0:
		cfg.TotalDuration = defaultTotalDuration
	case (cfg.StartTime.IsZero() || cfg.EndTime.IsZero()) && cfg.TotalDuration == 0:
		cfg.TotalDuration = defaultTotalDuration
	}

	switch {
	case cfg.TotalDuration != 0 && !cfg.EndTime.IsZero() && cfg.StartTime.IsZero():
		cfg.StartTime = cfg.EndTime.Add(-cfg.TotalDuration)
	case cfg.TotalDuration != 0 && !cfg.StartTime.IsZero() && cfg.EndTime.IsZero():
		cfg.EndTime = cfg.StartTime.Add(cfg.TotalDuration)
	case !cfg.StartTime.IsZero() && !cfg.EndTime.IsZero():
		cfg.TotalDuration = cfg.EndTime.Sub(cfg.StartTime)
	}
}

func (cfg *Config) validate() (err error) {
	if cfg.ThresholdPct < 0 || cfg.ThresholdPct > 100 {
		return newOutOfRangeError("threshold", cfg.ThresholdPct)
	}
	if cfg.AggrInterval <= 0 {
		return newNotPositiveError("aggr_interval", cfg.AggrInterval)
	}
	if cfg.MaxAggregates < 0 {
		return newNegativeError("nflow", cfg.MaxAggregates)
	}
	if cfg.TotalDuration < 0 {
		return newNegativeError("duration", cfg.TotalDuration)
	}
	if cfg.Concurrency <= 0 {
		return newNotPositiveError("concurrency", cfg.Concurrency)
	}

	return nil
}

func loadFile(path string) (ov fileOverlay, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ov, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err = yaml.Unmarshal(data, &ov); err != nil {
		return ov, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return ov, nil
}

func resolveString(flagVal, fileVal, envVal string) (s string) {
	if flagVal != "" {
		return flagVal
	}
	if fileVal != "" {
		return fileVal
	}

	return envVal
}

func resolveFloat(flagVal float64, fileVal *float64, envVal float64) (f float64) {
	if flagVal != 0 {
		return flagVal
	}
	if fileVal != nil {
		return *fileVal
	}

	return envVal
}

func resolveInt(flagVal int, fileVal *int, envVal int) (n int) {
	if flagVal != 0 {
		return flagVal
	}
	if fileVal != nil {
		return *fileVal
	}

	return envVal
}

func resolveDuration(flagSeconds int64, fileSeconds *int64, envSeconds int64, fallback time.Duration) (d time.Duration) {
	switch {
	case flagSeconds != 0:
		return time.Duration(flagSeconds) * time.Second
	case fileSeconds != nil:
		return time.Duration(*fileSeconds) * time.Second
	case envSeconds != 0:
		return time.Duration(envSeconds) * time.Second
	default:
		return fallback
	}
}

// newNotPositiveError returns an error about a value that must be positive
// but isn't, grounded on the same generic-constructor idiom the teacher's
// configuration validators used.
func newNotPositiveError[T ~int | time.Duration](prop string, v T) (err error) {
	return fmt.Errorf("%s: %w: got %v", prop, errors.ErrNotPositive, v)
}

// newNegativeError returns an error about a value that must be non-negative
// but isn't.
func newNegativeError[T ~int | time.Duration](prop string, v T) (err error) {
	return fmt.Errorf("%s: %w: got %v", prop, errors.ErrNegative, v)
}

func newOutOfRangeError(prop string, v float64) (err error) {
	return fmt.Errorf("%s: must be within [0, 100]: got %s", prop, strconv.FormatFloat(v, 'f', 2, 64))
}
