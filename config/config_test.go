package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearTrackingEnv(t *testing.T) {
	for _, key := range []string{
		"TRACKING_BACKEND", "SUPABASE_URL", "SUPABASE_SERVICE_ROLE_KEY", "DB_DSN", "REDIS_ADDR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearTrackingEnv(t)
	t.Setenv("SLC_API_ENDPOINT", "")
	t.Setenv("SLC_DEMO_ADMIN_TOKEN", "")
	t.Setenv("SLC_DEMO_PROJECT_PREFIX", "")
	t.Setenv("DEMO_EXPIRY_MINUTES", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.slc.run", cfg.ControlPlane.BaseURL)
	assert.Empty(t, cfg.ControlPlane.AdminToken)
	assert.Equal(t, "demo", cfg.Demo.ProjectPrefix)
	assert.Equal(t, 30*time.Minute, cfg.Demo.TTL)
	assert.Equal(t, 5*time.Minute, cfg.Demo.WarningLead)
	assert.Equal(t, 65536, cfg.Demo.MaxCodeBytes)
	assert.Equal(t, TrackingBackendNone, cfg.Tracking.Backend)
}

func TestLoad_DetectsTrackingBackend(t *testing.T) {
	t.Run("rest when supabase is configured", func(t *testing.T) {
		clearTrackingEnv(t)
		t.Setenv("SUPABASE_URL", "https://x.supabase.co")
		t.Setenv("SUPABASE_SERVICE_ROLE_KEY", "service")
		t.Setenv("REDIS_ADDR", "localhost:6379")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, TrackingBackendREST, cfg.Tracking.Backend)
	})

	t.Run("redis when only redis is configured", func(t *testing.T) {
		clearTrackingEnv(t)
		t.Setenv("REDIS_ADDR", "localhost:6379")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, TrackingBackendRedis, cfg.Tracking.Backend)
	})
}

func TestLoad_ExplicitBackendRequiresSettings(t *testing.T) {
	clearTrackingEnv(t)
	t.Setenv("TRACKING_BACKEND", "postgres")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DSN")
}

func TestLoad_InvalidIntegerFallsBack(t *testing.T) {
	clearTrackingEnv(t)
	t.Setenv("DEMO_MAX_CODE_BYTES", "lots")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 65536, cfg.Demo.MaxCodeBytes)
}

func TestGetEnvAsList(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://slc.run, https://www.slc.run,,")
	assert.Equal(t, []string{"https://slc.run", "https://www.slc.run"}, getEnvAsList("CORS_ALLOWED_ORIGINS"))
}

func TestSweeperConfig_Enabled(t *testing.T) {
	assert.True(t, SweeperConfig{Schedule: "0 * * * * *"}.Enabled())
	assert.True(t, SweeperConfig{Schedule: "@every 5m"}.Enabled())
	assert.False(t, SweeperConfig{Schedule: "off"}.Enabled())
	assert.False(t, SweeperConfig{Schedule: " Disabled "}.Enabled())
	assert.False(t, SweeperConfig{}.Enabled())
}

func TestValidate_BodyLimitCoversCodeLimit(t *testing.T) {
	clearTrackingEnv(t)
	t.Setenv("DEMO_MAX_CODE_BYTES", "4096")
	t.Setenv("DEMO_MAX_BODY_BYTES", "1024")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEMO_MAX_BODY_BYTES")
}
