package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ANALYSIS_BATCH_CONCURRENCY", "3")
	t.Setenv("RECEIPTS_ALLOWED_MIME_TYPES", "image/png, image/jpeg ,")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/api/v1", cfg.APIPrefix)
	require.Equal(t, 3, cfg.Analysis.BatchConcurrency)
	require.Equal(t, []string{"image/png", "image/jpeg"}, cfg.Receipts.AllowedMIMEs)
	require.Equal(t, 5*time.Minute, cfg.Reconciliation.CacheTTL)
	require.True(t, cfg.Reconciliation.RejectedCountsAsAddressed)
}

func TestParseDurationFallback(t *testing.T) {
	require.Equal(t, time.Minute, parseDuration("", time.Minute))
	require.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	require.Equal(t, 2*time.Second, parseDuration("2s", time.Minute))
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := &Config{Timezone: "Mars/Olympus"}
	require.Equal(t, time.UTC, cfg.Location())
	require.Equal(t, time.UTC, (*Config)(nil).Location())
}
