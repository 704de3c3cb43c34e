package contract

import (
	"context"
	"fmt"
	"maps"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/huangsam/codepulse/schema"
)

// Default values for configuration.
const (
	DefaultWindow            = "90 days"
	DefaultHistoryTimeout    = 30 * time.Second
	DefaultSignificanceFloor = 0.10
	DefaultResultLimit       = 25
	MaxResultLimit           = 1000
	DefaultPrecision         = 1
)

// CacheGranularity defines the time granularity of the history window start.
// This ensures consistent cache key generation across runs within the same hour.
const CacheGranularity = time.Hour

// DefaultWorkers is the default number of concurrent workers to use.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// Thresholds holds the lower bounds of the medium, high and critical hotspot tiers.
type Thresholds struct {
	Medium   float64
	High     float64
	Critical float64
}

// DefaultThresholds returns the built-in tier thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Medium:   schema.DefaultMediumThreshold,
		High:     schema.DefaultHighThreshold,
		Critical: schema.DefaultCriticalThreshold,
	}
}

// ThresholdsRawInput holds tier threshold definitions from the YAML config file.
type ThresholdsRawInput struct {
	Medium   *float64 `mapstructure:"medium"`
	High     *float64 `mapstructure:"high"`
	Critical *float64 `mapstructure:"critical"`
}

// Config holds the runtime configuration for the analysis.
// This struct is the "final, validated" config.
type Config struct {
	RepoPath    string // Absolute path of the analyzed root
	GitRepo     bool   // False when RepoPath is not inside a Git work tree
	PathFilter  string
	ResultLimit int
	Workers     int

	Window         time.Duration
	WindowDays     int
	Since          time.Time // Start of the history window, truncated to CacheGranularity
	HistoryTimeout time.Duration
	NoHistory      bool

	SignificanceFloor float64
	Thresholds        Thresholds
	Aggregations      map[string]schema.AggregationFunc
	StructuralWeights map[schema.StructuralConstruct]float64

	Excludes   []string
	Precision  int
	Output     schema.OutputMode
	OutputFile string
	Width      int // Terminal width override (0 = auto-detect)
	UseColors  bool

	CacheBackend   schema.DatabaseBackend
	CacheDBConnect string // Please use env var as this is plaintext

	RunBackend   schema.DatabaseBackend
	RunDBConnect string // Please use env var as this is plaintext
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// This is set manually from positional args, so no tag
	RepoPathStr string

	// --- Fields from rootCmd.PersistentFlags() ---
	Filter         string `mapstructure:"filter"`
	OutputFile     string `mapstructure:"output-file"`
	Limit          int    `mapstructure:"limit"`
	Workers        int    `mapstructure:"workers"`
	Exclude        string `mapstructure:"exclude"`
	Precision      int    `mapstructure:"precision"`
	Output         string `mapstructure:"output"`
	Width          int    `mapstructure:"width"`
	Color          string `mapstructure:"color"`
	CacheBackend   string `mapstructure:"cache-backend"`
	CacheDBConnect string `mapstructure:"cache-db-connect"`
	RunBackend     string `mapstructure:"run-backend"`
	RunDBConnect   string `mapstructure:"run-db-connect"`

	// --- Fields from analyzeCmd.Flags() ---
	Window            string  `mapstructure:"window"`
	HistoryTimeout    string  `mapstructure:"history-timeout"`
	SignificanceFloor float64 `mapstructure:"significance-floor"`
	NoHistory         bool    `mapstructure:"no-history"`

	// --- Tables from the config file ---
	Thresholds  ThresholdsRawInput `mapstructure:"thresholds"`
	Aggregation map[string]string  `mapstructure:"aggregation"`
	Weights     map[string]float64 `mapstructure:"weights"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Excludes != nil {
		clone.Excludes = make([]string, len(c.Excludes))
		copy(clone.Excludes, c.Excludes)
	}
	if c.Aggregations != nil {
		clone.Aggregations = maps.Clone(c.Aggregations)
	}
	if c.StructuralWeights != nil {
		clone.StructuralWeights = maps.Clone(c.StructuralWeights)
	}
	return &clone
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(ctx context.Context, cfg *Config, client GitClient, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processHistoryWindow(cfg, input, time.Now()); err != nil {
		return err
	}
	if err := processThresholds(cfg, input); err != nil {
		return err
	}
	if err := processAggregations(cfg, input); err != nil {
		return err
	}
	if err := processStructuralWeights(cfg, input); err != nil {
		return err
	}
	return resolveRepoPathAndFilter(ctx, cfg, client, input)
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateBackendConfigs validates the history cache and run store backends.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	cfg.CacheBackend = schema.DatabaseBackend(strings.ToLower(input.CacheBackend))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = schema.SQLiteBackend
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.CacheBackend]; !ok {
		return fmt.Errorf("invalid cache backend '%s'. must be sqlite, mysql, postgresql, none", input.CacheBackend)
	}
	cfg.CacheDBConnect = input.CacheDBConnect
	if err := ValidateDatabaseConnectionString(cfg.CacheBackend, cfg.CacheDBConnect); err != nil {
		return err
	}

	cfg.RunBackend = schema.DatabaseBackend(strings.ToLower(input.RunBackend))
	if cfg.RunBackend == "" {
		return nil
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.RunBackend]; !ok {
		return fmt.Errorf("invalid run backend '%s'. must be sqlite, mysql, postgresql, none", input.RunBackend)
	}
	cfg.RunDBConnect = input.RunDBConnect
	if err := ValidateDatabaseConnectionString(cfg.RunBackend, cfg.RunDBConnect); err != nil {
		return err
	}

	// Cache and run tables must not share one SQLite file
	if cfg.CacheBackend == schema.SQLiteBackend && cfg.RunBackend == schema.SQLiteBackend {
		cacheDBPath := cfg.CacheDBConnect
		if cacheDBPath == "" {
			cacheDBPath = GetCacheDBFilePath()
		}
		runDBPath := cfg.RunDBConnect
		if runDBPath == "" {
			runDBPath = GetRunDBFilePath()
		}
		if cacheDBPath == runDBPath {
			return fmt.Errorf("cache and run storage must use different SQLite database files. Both resolve to %q", cacheDBPath)
		}
	}
	return nil
}

// validateSimpleInputs processes and validates all non-path related fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.PathFilter = input.Filter
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	cfg.NoHistory = input.NoHistory

	cfg.UseColors = true
	if input.Color != "" {
		colors, err := ParseBoolString(input.Color)
		if err != nil {
			return fmt.Errorf("invalid --color value: %w", err)
		}
		cfg.UseColors = colors
	}

	if input.Limit <= 0 || input.Limit > MaxResultLimit {
		return fmt.Errorf("limit must be greater than 0 and cannot exceed %d (received %d)", MaxResultLimit, input.Limit)
	}
	cfg.ResultLimit = input.Limit

	if input.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0 (received %d)", input.Workers)
	}
	cfg.Workers = input.Workers

	if input.Precision < 1 || input.Precision > 2 {
		return fmt.Errorf("precision must be 1 or 2 (received %d)", input.Precision)
	}
	cfg.Precision = input.Precision

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", cfg.Output)
	}
	if cfg.Output == schema.ParquetOut && cfg.OutputFile == "" {
		return fmt.Errorf("parquet output requires --output-file")
	}

	if input.SignificanceFloor < 0 || input.SignificanceFloor >= 1 {
		return fmt.Errorf("significance-floor must be in [0, 1) (received %.3f)", input.SignificanceFloor)
	}
	cfg.SignificanceFloor = input.SignificanceFloor

	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}

	// Generated and vendored content carries no meaningful authorship or complexity.
	cfg.Excludes = []string{
		"Cargo.lock", "go.sum", "package-lock.json", "yarn.lock", "pnpm-lock.yaml", "composer.lock", "uv.lock",
		".min.js", ".min.css",
		".jpg", ".jpeg", ".png", ".gif", ".svg", ".ico", ".mp4", ".mov", ".webm", ".mp3", ".ogg", ".pdf", ".webp",
		".DS_Store",
		"node_modules/", "vendor/", "dist/", "build/", "target/",
	}
	if input.Exclude != "" {
		for p := range strings.SplitSeq(input.Exclude, ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				cfg.Excludes = append(cfg.Excludes, trimmed)
			}
		}
	}
	return nil
}

// processHistoryWindow parses the history window and the per-query timeout.
func processHistoryWindow(cfg *Config, input *ConfigRawInput, now time.Time) error {
	window := input.Window
	if strings.TrimSpace(window) == "" {
		window = DefaultWindow
	}
	d, err := ParseLookbackDuration(window)
	if err != nil {
		return fmt.Errorf("invalid window: %w", err)
	}
	cfg.Window = d
	cfg.WindowDays = WindowDays(d)
	cfg.Since = now.Add(-d).Truncate(CacheGranularity)

	cfg.HistoryTimeout = DefaultHistoryTimeout
	if input.HistoryTimeout != "" {
		t, err := time.ParseDuration(input.HistoryTimeout)
		if err != nil || t <= 0 {
			return fmt.Errorf("invalid history-timeout '%s': must be a positive duration like 30s", input.HistoryTimeout)
		}
		cfg.HistoryTimeout = t
	}
	return nil
}

// WindowDays converts a window duration to whole days, rounding partial days up.
func WindowDays(d time.Duration) int {
	return int(math.Ceil(d.Hours() / 24))
}

// processThresholds applies tier threshold overrides and checks their ordering.
func processThresholds(cfg *Config, input *ConfigRawInput) error {
	t := DefaultThresholds()
	if input.Thresholds.Medium != nil {
		t.Medium = *input.Thresholds.Medium
	}
	if input.Thresholds.High != nil {
		t.High = *input.Thresholds.High
	}
	if input.Thresholds.Critical != nil {
		t.Critical = *input.Thresholds.Critical
	}
	if t.Medium < 0 || t.Medium > t.High || t.High > t.Critical {
		return fmt.Errorf("thresholds must satisfy 0 <= medium <= high <= critical (received %.1f, %.1f, %.1f)", t.Medium, t.High, t.Critical)
	}
	cfg.Thresholds = t
	return nil
}

// processAggregations merges per-metric aggregation overrides into the defaults.
func processAggregations(cfg *Config, input *ConfigRawInput) error {
	aggs := maps.Clone(schema.DefaultAggregations)
	for metric, name := range input.Aggregation {
		fn := schema.AggregationFunc(strings.ToLower(strings.TrimSpace(name)))
		if _, ok := schema.ValidAggregationFuncs[fn]; !ok {
			return fmt.Errorf("invalid aggregation '%s' for metric %s. must be sum, mean, max, min", name, metric)
		}
		aggs[metric] = fn
	}
	cfg.Aggregations = aggs
	return nil
}

// processStructuralWeights merges construct weight overrides into the defaults.
func processStructuralWeights(cfg *Config, input *ConfigRawInput) error {
	weights := maps.Clone(schema.DefaultStructuralWeights)
	for name, w := range input.Weights {
		construct := schema.StructuralConstruct(strings.ToLower(name))
		if _, ok := schema.DefaultStructuralWeights[construct]; !ok {
			return fmt.Errorf("unknown structural construct '%s' in weights", name)
		}
		if w < 0 {
			return fmt.Errorf("weight for %s must be non-negative (received %.2f)", name, w)
		}
		weights[construct] = w
	}
	cfg.StructuralWeights = weights
	return nil
}

// RevalidateRepoPath re-resolves the analyzed root of a cloned config for a new
// path, as used by the MCP tools.
func RevalidateRepoPath(ctx context.Context, cfg *Config, client GitClient, repoPath string) error {
	return resolveRepoPathAndFilter(ctx, cfg, client, &ConfigRawInput{RepoPathStr: repoPath})
}

// resolveRepoPathAndFilter resolves the analyzed root and sets the implicit path filter.
// Paths outside a Git work tree are analyzed as plain directories without history.
func resolveRepoPathAndFilter(ctx context.Context, cfg *Config, client GitClient, input *ConfigRawInput) error {
	searchPath := input.RepoPathStr
	if searchPath == "" {
		searchPath = "."
	}
	absSearchPath, err := filepath.Abs(searchPath)
	if err != nil {
		return err
	}
	absSearchPath = filepath.Clean(absSearchPath)

	info, statErr := os.Stat(absSearchPath)
	if statErr != nil {
		return fmt.Errorf("cannot analyze %q: %w", searchPath, statErr)
	}
	contextPath := absSearchPath
	if !info.IsDir() {
		contextPath = filepath.Dir(absSearchPath)
	}

	gitRoot, err := client.GetRepoRoot(ctx, contextPath)
	if err != nil {
		LogDebug("not a git work tree, history disabled", err)
		cfg.RepoPath = contextPath
		cfg.GitRepo = false
		cfg.NoHistory = true
		return nil
	}
	cfg.RepoPath = gitRoot
	cfg.GitRepo = true

	if cfg.PathFilter != "" || absSearchPath == gitRoot {
		return nil
	}
	relativePath, err := filepath.Rel(gitRoot, absSearchPath)
	if err != nil {
		return err
	}
	if relativePath != "." {
		filter := relativePath
		if info.IsDir() {
			filter += "/"
		}
		cfg.PathFilter = filepath.ToSlash(filter)
	}
	return nil
}
