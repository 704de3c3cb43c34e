package cmd

import (
	"testing"

	"github.com/huangsam/codepulse/schema"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setViper(t *testing.T, key string, value any) {
	t.Helper()
	old := viper.Get(key)
	viper.Set(key, value)
	t.Cleanup(func() { viper.Set(key, old) })
}

func TestStoreSettings(t *testing.T) {
	t.Run("empty backend uses fallback", func(t *testing.T) {
		setViper(t, "run-backend", "")
		setViper(t, "run-db-connect", "")
		backend, connStr, err := storeSettings("run-backend", "run-db-connect", schema.SQLiteBackend)
		require.NoError(t, err)
		assert.Equal(t, schema.SQLiteBackend, backend)
		assert.Empty(t, connStr)
	})

	t.Run("backend is case insensitive", func(t *testing.T) {
		setViper(t, "cache-backend", "NONE")
		backend, _, err := storeSettings("cache-backend", "cache-db-connect", schema.SQLiteBackend)
		require.NoError(t, err)
		assert.Equal(t, schema.NoneBackend, backend)
	})

	t.Run("invalid backend", func(t *testing.T) {
		setViper(t, "cache-backend", "redis")
		_, _, err := storeSettings("cache-backend", "cache-db-connect", schema.SQLiteBackend)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid cache-backend 'redis'")
	})

	t.Run("mysql requires connection string", func(t *testing.T) {
		setViper(t, "run-backend", "mysql")
		setViper(t, "run-db-connect", "")
		_, _, err := storeSettings("run-backend", "run-db-connect", schema.SQLiteBackend)
		assert.Error(t, err)
	})
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"analyze"},
		{"cache", "status"},
		{"cache", "clear"},
		{"runs", "status"},
		{"runs", "clear"},
		{"runs", "export"},
		{"runs", "migrate"},
		{"mcp"},
		{"version"},
	} {
		found, _, err := rootCmd.Find(path)
		require.NoError(t, err, "%v", path)
		assert.Equal(t, path[len(path)-1], found.Name())
	}

	assert.NotNil(t, analyzeCmd.Flags().Lookup("significance-floor"))
	assert.NotNil(t, runsMigrateCmd.Flags().Lookup("target-version"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("run-backend"))
}
