package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SOURCE_MODE", "")
	t.Setenv("APP_LOCALE", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, SourceAPI, cfg.SourceMode)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, language.Und, cfg.Locale())
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigPostgresMode(t *testing.T) {
	t.Setenv("SOURCE_MODE", "Postgres")
	t.Setenv("APP_LOCALE", "id-ID")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, SourcePostgres, cfg.SourceMode)
	assert.Equal(t, language.MustParse("id-ID"), cfg.Locale())
}

func TestLoadConfigRejectsUnknownMode(t *testing.T) {
	t.Setenv("SOURCE_MODE", "csv")
	_, err := LoadConfig()
	assert.ErrorContains(t, err, "unknown source mode")
}

func TestLoadConfigRejectsNegativeRetries(t *testing.T) {
	t.Setenv("SOURCE_RETRIES", "-1")
	_, err := LoadConfig()
	assert.Error(t, err)
}
