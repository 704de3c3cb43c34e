package contract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/codepulse/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validInput returns a raw input that passes validation for the given path.
func validInput(repoPath string) *ConfigRawInput {
	return &ConfigRawInput{
		RepoPathStr:       repoPath,
		Limit:             10,
		Workers:           4,
		Precision:         1,
		Output:            "text",
		Color:             "no",
		CacheBackend:      "none",
		Window:            "90 days",
		SignificanceFloor: DefaultSignificanceFloor,
	}
}

func TestProcessAndValidate(t *testing.T) {
	ctx := context.Background()
	repoDir := t.TempDir()

	t.Run("valid minimal config", func(t *testing.T) {
		client := NewMockGitClient()
		client.On("GetRepoRoot", ctx, repoDir).Return(repoDir, nil).Once()

		cfg := &Config{}
		require.NoError(t, ProcessAndValidate(ctx, cfg, client, validInput(repoDir)))

		assert.Equal(t, repoDir, cfg.RepoPath)
		assert.True(t, cfg.GitRepo)
		assert.Equal(t, 90, cfg.WindowDays)
		assert.Equal(t, DefaultHistoryTimeout, cfg.HistoryTimeout)
		assert.Equal(t, DefaultThresholds(), cfg.Thresholds)
		assert.Equal(t, schema.AggMax, cfg.Aggregations[schema.MetricHotspot])
		assert.Equal(t, schema.DefaultStructuralWeights, cfg.StructuralWeights)
		assert.True(t, cfg.Since.Equal(cfg.Since.Truncate(CacheGranularity)))
		assert.False(t, cfg.UseColors)
		client.AssertExpectations(t)
	})

	t.Run("not a git work tree disables history", func(t *testing.T) {
		client := NewMockGitClient()
		client.On("GetRepoRoot", ctx, repoDir).Return("", errors.New("not a git repository")).Once()

		cfg := &Config{}
		require.NoError(t, ProcessAndValidate(ctx, cfg, client, validInput(repoDir)))
		assert.False(t, cfg.GitRepo)
		assert.True(t, cfg.NoHistory)
		assert.Equal(t, repoDir, cfg.RepoPath)
	})

	t.Run("subdirectory sets implicit filter", func(t *testing.T) {
		sub := filepath.Join(repoDir, "pkg")
		require.NoError(t, os.MkdirAll(sub, 0o755))
		client := NewMockGitClient()
		client.On("GetRepoRoot", ctx, sub).Return(repoDir, nil).Once()

		cfg := &Config{}
		require.NoError(t, ProcessAndValidate(ctx, cfg, client, validInput(sub)))
		assert.Equal(t, "pkg/", cfg.PathFilter)
	})

	t.Run("overrides from config tables", func(t *testing.T) {
		client := NewMockGitClient()
		client.On("GetRepoRoot", ctx, repoDir).Return(repoDir, nil).Once()

		medium, high, critical := 10.0, 20.0, 30.0
		input := validInput(repoDir)
		input.Thresholds = ThresholdsRawInput{Medium: &medium, High: &high, Critical: &critical}
		input.Aggregation = map[string]string{"churn": "MAX"}
		input.Weights = map[string]float64{"key": 0.5}
		input.HistoryTimeout = "5s"

		cfg := &Config{}
		require.NoError(t, ProcessAndValidate(ctx, cfg, client, input))
		assert.Equal(t, Thresholds{Medium: 10, High: 20, Critical: 30}, cfg.Thresholds)
		assert.Equal(t, schema.AggMax, cfg.Aggregations[schema.MetricChurn])
		assert.Equal(t, 0.5, cfg.StructuralWeights[schema.ConstructKey])
		assert.Equal(t, 5*time.Second, cfg.HistoryTimeout)

		// Defaults must not be mutated by overrides.
		assert.Equal(t, schema.AggSum, schema.DefaultAggregations[schema.MetricChurn])
		assert.Equal(t, 0.1, schema.DefaultStructuralWeights[schema.ConstructKey])
	})
}

func TestProcessAndValidateErrors(t *testing.T) {
	ctx := context.Background()
	repoDir := t.TempDir()

	tests := []struct {
		name   string
		mutate func(*ConfigRawInput)
	}{
		{"zero workers", func(in *ConfigRawInput) { in.Workers = 0 }},
		{"limit too large", func(in *ConfigRawInput) { in.Limit = MaxResultLimit + 1 }},
		{"bad precision", func(in *ConfigRawInput) { in.Precision = 3 }},
		{"bad output", func(in *ConfigRawInput) { in.Output = "xml" }},
		{"parquet without file", func(in *ConfigRawInput) { in.Output = "parquet" }},
		{"bad color", func(in *ConfigRawInput) { in.Color = "maybe" }},
		{"bad backend", func(in *ConfigRawInput) { in.CacheBackend = "redis" }},
		{"mysql without dsn", func(in *ConfigRawInput) { in.CacheBackend = "mysql" }},
		{"bad window", func(in *ConfigRawInput) { in.Window = "forever" }},
		{"bad timeout", func(in *ConfigRawInput) { in.HistoryTimeout = "-1s" }},
		{"floor out of range", func(in *ConfigRawInput) { in.SignificanceFloor = 1.5 }},
		{"unordered thresholds", func(in *ConfigRawInput) {
			high := 1.0
			in.Thresholds.High = &high
		}},
		{"unknown aggregation", func(in *ConfigRawInput) { in.Aggregation = map[string]string{"churn": "median"} }},
		{"unknown construct", func(in *ConfigRawInput) { in.Weights = map[string]float64{"widget": 1} }},
		{"negative weight", func(in *ConfigRawInput) { in.Weights = map[string]float64{"key": -1} }},
		{"same sqlite file", func(in *ConfigRawInput) {
			in.CacheBackend, in.RunBackend = "sqlite", "sqlite"
			in.CacheDBConnect, in.RunDBConnect = "/tmp/x.db", "/tmp/x.db"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput(repoDir)
			tt.mutate(input)
			err := ProcessAndValidate(ctx, &Config{}, NewMockGitClient(), input)
			assert.Error(t, err)
		})
	}
}

func TestValidateDatabaseConnectionString(t *testing.T) {
	assert.NoError(t, ValidateDatabaseConnectionString(schema.SQLiteBackend, ""))
	assert.NoError(t, ValidateDatabaseConnectionString(schema.MySQLBackend, "user:pass@tcp(localhost:3306)/codepulse"))
	assert.Error(t, ValidateDatabaseConnectionString(schema.MySQLBackend, "localhost"))
	assert.NoError(t, ValidateDatabaseConnectionString(schema.PostgreSQLBackend, "host=localhost dbname=codepulse"))
	assert.Error(t, ValidateDatabaseConnectionString(schema.PostgreSQLBackend, "host=localhost"))
}

func TestConfigClone(t *testing.T) {
	cfg := &Config{
		Excludes:     []string{"vendor/"},
		Aggregations: map[string]schema.AggregationFunc{"churn": schema.AggSum},
	}
	clone := cfg.Clone()
	clone.Excludes[0] = "dist/"
	clone.Aggregations["churn"] = schema.AggMax
	assert.Equal(t, "vendor/", cfg.Excludes[0])
	assert.Equal(t, schema.AggSum, cfg.Aggregations["churn"])
}

func TestWindowDays(t *testing.T) {
	assert.Equal(t, 90, WindowDays(90*24*time.Hour))
	assert.Equal(t, 1, WindowDays(time.Hour))
	assert.Equal(t, 0, WindowDays(0))
}
