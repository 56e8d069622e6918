package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/BurntSushi/toml"
	"github.com/ilyakaznacheev/cleanenv"

	"github.com/firefly/ngram-counter/internal/matcher"
)

// Config holds all configuration for the n-gram counter
type Config struct {
	Counter CounterConfig `toml:"counter"`
	Fetch   FetchConfig   `toml:"fetch"`
	Output  OutputConfig  `toml:"output"`
	Log     LogConfig     `toml:"log"`

	// Inputs of a single run, set from flags only
	ConfigFile   string `toml:"-"`
	WriteConfig  string `toml:"-"`
	PatternsFile string `toml:"-"`
	WordsFile    string `toml:"-"`
	Text         string `toml:"-"`
	File         string `toml:"-"`
	URL          string `toml:"-"`
}

// CounterConfig controls the dispatcher
type CounterConfig struct {
	Workers int `toml:"workers" env:"NGRAM_WORKERS" env-default:"0"`
	// Sequential counts patterns one at a time instead of on the pool.
	// Booleans default to false: cleanenv fills defaults into zero values only.
	Sequential      bool   `toml:"sequential"       env:"NGRAM_SEQUENTIAL"       env-default:"false"`
	InnerSequential bool   `toml:"inner_sequential" env:"NGRAM_INNER_SEQUENTIAL" env-default:"false"`
	Mode            string `toml:"mode"             env:"NGRAM_MODE"             env-default:"syntax"`
	Partial         bool   `toml:"partial"          env:"NGRAM_PARTIAL"          env-default:"false"`
}

// FetchConfig controls URL corpora
type FetchConfig struct {
	RateLimit  float64  `toml:"rate_limit"  env:"NGRAM_FETCH_RATE_LIMIT"  env-default:"0"`
	Selectors  []string `toml:"selectors"   env:"NGRAM_FETCH_SELECTORS"   env-separator:","`
	SkipRobots bool     `toml:"skip_robots" env:"NGRAM_FETCH_SKIP_ROBOTS" env-default:"false"`
}

// OutputConfig controls how results are written
type OutputConfig struct {
	Format string `toml:"format" env:"NGRAM_OUTPUT_FORMAT" env-default:"json"`
	Path   string `toml:"path"   env:"NGRAM_OUTPUT_PATH"`
	Top    int    `toml:"top"    env:"NGRAM_OUTPUT_TOP"    env-default:"0"`
}

// LogConfig controls logging
type LogConfig struct {
	Verbose bool `toml:"verbose" env:"NGRAM_VERBOSE" env-default:"false"`
}

// DefaultConfig returns a Config with default values, matching the env-default tags
func DefaultConfig() *Config {
	return &Config{
		Counter: CounterConfig{
			Mode: matcher.Syntax.String(),
		},
		Output: OutputConfig{
			Format: "json",
		},
	}
}

// Load reads path (TOML) when given, otherwise environment variables and defaults.
// Environment variables override the file.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		cfg.ConfigFile = path
		return &cfg, nil
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	return &cfg, nil
}

// SaveConfig writes cfg as TOML to path
func SaveConfig(cfg *Config, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}

// ParseFlags parses command line flags and returns configuration
func ParseFlags() (*Config, error) {
	return ParseArgs(os.Args[1:], os.Stderr)
}

// ParseArgs parses args on top of the config file or environment. Only flags
// given explicitly override loaded values.
func ParseArgs(args []string, output io.Writer) (*Config, error) {
	fs := flag.NewFlagSet("ngramcount", flag.ContinueOnError)
	fs.SetOutput(output)

	var (
		run           Config
		workers       int
		parallel      bool
		innerParallel bool
		literal       bool
		partial       bool
		rateLimit     float64
		skipRobots    bool
		format        string
		outputPath    string
		top           int
		verbose       bool
	)

	fs.StringVar(&run.ConfigFile, "config", "", "Path to a TOML config file")
	fs.StringVar(&run.WriteConfig, "write-config", "", "Write the default config to this path and exit")
	fs.StringVar(&run.PatternsFile, "patterns-file", "", "File with one pattern or template per line (required)")
	fs.StringVar(&run.WordsFile, "words-file", "", "File with candidate words; enables template expansion")
	fs.StringVar(&run.Text, "text", "", "Corpus text, counted as given")
	fs.StringVar(&run.File, "file", "", "Corpus file, spaces normalized")
	fs.StringVar(&run.URL, "url", "", "Corpus URL, spaces normalized")
	fs.IntVar(&workers, "workers", 0, "Worker pool size (0 = one per CPU)")
	fs.BoolVar(&parallel, "parallel", true, "Count patterns on the worker pool")
	fs.BoolVar(&innerParallel, "inner-parallel", true, "Count the templates of each candidate word on the pool")
	fs.BoolVar(&literal, "literal", false, "Match patterns as literal text instead of regexp syntax")
	fs.BoolVar(&partial, "partial", false, "Report failing patterns and keep the other counts")
	fs.Float64Var(&rateLimit, "rate-limit", 0, "Requests per second for URL corpora (0 = no limit unless robots.txt specifies)")
	fs.BoolVar(&skipRobots, "skip-robots", false, "Do not load robots.txt for URL corpora")
	fs.StringVar(&format, "format", "json", "Output format: json or msgpack")
	fs.StringVar(&outputPath, "output", "", "Write results to this file instead of stdout")
	fs.IntVar(&top, "top", 0, "Also print the N most frequent patterns")
	fs.BoolVar(&verbose, "verbose", false, "Enable verbose logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if run.WriteConfig != "" {
		cfg := DefaultConfig()
		cfg.WriteConfig = run.WriteConfig
		return cfg, nil
	}

	cfg, err := Load(run.ConfigFile)
	if err != nil {
		return nil, err
	}

	cfg.ConfigFile = run.ConfigFile
	cfg.PatternsFile = run.PatternsFile
	cfg.WordsFile = run.WordsFile
	cfg.Text = run.Text
	cfg.File = run.File
	cfg.URL = run.URL

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workers":
			cfg.Counter.Workers = workers
		case "parallel":
			cfg.Counter.Sequential = !parallel
		case "inner-parallel":
			cfg.Counter.InnerSequential = !innerParallel
		case "literal":
			if literal {
				cfg.Counter.Mode = matcher.Literal.String()
			} else {
				cfg.Counter.Mode = matcher.Syntax.String()
			}
		case "partial":
			cfg.Counter.Partial = partial
		case "rate-limit":
			cfg.Fetch.RateLimit = rateLimit
		case "skip-robots":
			cfg.Fetch.SkipRobots = skipRobots
		case "format":
			cfg.Output.Format = format
		case "output":
			cfg.Output.Path = outputPath
		case "top":
			cfg.Output.Top = top
		case "verbose":
			cfg.Log.Verbose = verbose
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that a run has everything it needs
func (c *Config) Validate() error {
	if c.PatternsFile == "" {
		return errors.New("--patterns-file is required")
	}

	sources := 0
	for _, s := range []string{c.Text, c.File, c.URL} {
		if s != "" {
			sources++
		}
	}
	if sources != 1 {
		return errors.New("exactly one of --text, --file or --url is required")
	}

	if c.Counter.Workers < 0 {
		return errors.New("--workers must not be negative (0 = one per CPU)")
	}

	if _, err := matcher.ParseMode(c.Counter.Mode); err != nil {
		return err
	}

	if c.Fetch.RateLimit < 0 {
		return errors.New("--rate-limit must be non-negative (0 = no limit)")
	}

	switch c.Output.Format {
	case "json", "msgpack":
	default:
		return fmt.Errorf("--format must be json or msgpack, got %q", c.Output.Format)
	}

	if c.Output.Top < 0 {
		return errors.New("--top must be non-negative")
	}

	return nil
}

// ValidateFiles checks if required files exist
func (c *Config) ValidateFiles() error {
	if _, err := os.Stat(c.PatternsFile); os.IsNotExist(err) {
		return fmt.Errorf("patterns file does not exist: %s", c.PatternsFile)
	}

	if c.WordsFile != "" {
		if _, err := os.Stat(c.WordsFile); os.IsNotExist(err) {
			return fmt.Errorf("words file does not exist: %s", c.WordsFile)
		}
	}

	return nil
}

// Workers resolves the worker pool size, 0 meaning one per CPU
func (c *Config) Workers() int {
	if c.Counter.Workers > 0 {
		return c.Counter.Workers
	}
	return runtime.NumCPU()
}

// Mode returns the configured pattern mode
func (c *Config) Mode() matcher.Mode {
	mode, _ := matcher.ParseMode(c.Counter.Mode)
	return mode
}
