package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultForcing   = "TA_ERA,SW_IN_ERA,P_ERA"
	defaultBenchmark = "NEE_VUT_REF,GPP_NT_VUT_REF,LE_F_MDS"
	defaultColumnMap = "TA_ERA=Temp,SW_IN_ERA=Rad,P_ERA=Prec,NEE_VUT_REF=NEE,GPP_NT_VUT_REF=GPP,LE_F_MDS=LE,DOY=Day"
)

// Config holds all preprocessor settings, populated from environment variables.
type Config struct {
	BaseDir      string
	InputDir     string
	OutputDir    string
	SiteListFile string

	DailyMarker   string
	MonthlyMarker string

	ForcingColumns   []string
	BenchmarkColumns []string
	ColumnMap        map[string]string

	DailyOutput   string
	MonthlyOutput string

	ContinueOnError bool

	LogLevel    string
	LogFormat   string
	MetricsFile string
}

// InputPath is the directory of site archives.
func (c *Config) InputPath() string { return c.resolve(c.InputDir) }

// OutputPath is the directory receiving forcing files and aggregates.
func (c *Config) OutputPath() string { return c.resolve(c.OutputDir) }

// SiteListPath is the site metadata table.
func (c *Config) SiteListPath() string { return c.resolve(c.SiteListFile) }

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.BaseDir, p)
}

// columnsFile is the YAML layout accepted by COLUMNS_FILE.
type columnsFile struct {
	Forcing   []string          `yaml:"forcing"`
	Benchmark []string          `yaml:"benchmark"`
	Rename    map[string]string `yaml:"rename"`
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	continueOnError, err := parseBool("CONTINUE_ON_ERROR", false)
	if err != nil {
		return nil, err
	}

	columnMap, err := parseColumnMap(sharedcfg.EnvOrDefault("COLUMN_MAP", defaultColumnMap))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		BaseDir:      sharedcfg.EnvOrDefault("BASE_DIR", "."),
		InputDir:     sharedcfg.EnvOrDefault("INPUT_DIR", "raw"),
		OutputDir:    sharedcfg.EnvOrDefault("OUTPUT_DIR", "vut_ref"),
		SiteListFile: sharedcfg.EnvOrDefault("SITELIST_FILE", "fluxnet2015_sitelist.csv"),

		DailyMarker:   sharedcfg.EnvOrDefault("DAILY_MARKER", "_FULLSET_DD_"),
		MonthlyMarker: sharedcfg.EnvOrDefault("MONTHLY_MARKER", "_FULLSET_MM_"),

		ForcingColumns:   parseList(sharedcfg.EnvOrDefault("FORCING_COLUMNS", defaultForcing)),
		BenchmarkColumns: parseList(sharedcfg.EnvOrDefault("BENCHMARK_COLUMNS", defaultBenchmark)),
		ColumnMap:        columnMap,

		DailyOutput:   sharedcfg.EnvOrDefault("DAILY_OUTPUT", "daily.csv"),
		MonthlyOutput: sharedcfg.EnvOrDefault("MONTHLY_OUTPUT", "monthly.csv"),

		ContinueOnError: continueOnError,

		LogLevel:    sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:   sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
		MetricsFile: os.Getenv("METRICS_FILE"),
	}

	if path := os.Getenv("COLUMNS_FILE"); path != "" {
		if err := cfg.applyColumnsFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyColumnsFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read COLUMNS_FILE: %w", err)
	}
	var cf columnsFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return fmt.Errorf("parse COLUMNS_FILE %s: %w", path, err)
	}
	if len(cf.Forcing) > 0 {
		c.ForcingColumns = cf.Forcing
	}
	if len(cf.Benchmark) > 0 {
		c.BenchmarkColumns = cf.Benchmark
	}
	if cf.Rename != nil {
		c.ColumnMap = cf.Rename
	}
	return nil
}

func (c *Config) validate() error {
	if c.InputDir == "" {
		return errors.New("INPUT_DIR is required")
	}
	if c.OutputDir == "" {
		return errors.New("OUTPUT_DIR is required")
	}
	if c.SiteListFile == "" {
		return errors.New("SITELIST_FILE is required")
	}
	if c.DailyMarker == "" || c.MonthlyMarker == "" {
		return errors.New("DAILY_MARKER and MONTHLY_MARKER are required")
	}
	if c.DailyMarker == c.MonthlyMarker {
		return errors.New("DAILY_MARKER and MONTHLY_MARKER must differ")
	}
	if len(c.ForcingColumns) == 0 {
		return errors.New("FORCING_COLUMNS is required")
	}
	if len(c.BenchmarkColumns) == 0 {
		return errors.New("BENCHMARK_COLUMNS is required")
	}
	if c.DailyOutput == "" || c.MonthlyOutput == "" || c.DailyOutput == c.MonthlyOutput {
		return errors.New("DAILY_OUTPUT and MONTHLY_OUTPUT must be set and distinct")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseColumnMap parses "FROM=TO,FROM=TO".
func parseColumnMap(s string) (map[string]string, error) {
	m := make(map[string]string)
	for _, pair := range parseList(s) {
		from, to, ok := strings.Cut(pair, "=")
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if !ok || from == "" || to == "" {
			return nil, fmt.Errorf("invalid COLUMN_MAP entry %q", pair)
		}
		m[from] = to
	}
	return m, nil
}

func parseBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
