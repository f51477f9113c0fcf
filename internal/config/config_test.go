package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Store.Driver)
	assert.Equal(t, ".", cfg.Store.Dir)
	assert.Equal(t, "museums", cfg.Store.RecordsKey)
	assert.Equal(t, "geocode_cache", cfg.Store.CacheKey)
	assert.Equal(t, "backup", cfg.Store.OnCorrupt)
	assert.Equal(t, "https://www.museum.nl/nl/zien-en-doen/musea?mv-PageIndex=0", cfg.Harvest.ListingURL)
	assert.Equal(t, "browser", cfg.Harvest.Backend)
	assert.True(t, cfg.Harvest.Headless)
	assert.Equal(t, 3*time.Second, cfg.Harvest.RevealDelay())
	assert.Equal(t, 2*time.Second, cfg.Harvest.RetryDelay())
	assert.Equal(t, "append", cfg.Harvest.Merge)
	assert.Equal(t, ".see-and-do-card", cfg.Harvest.Selectors.Card)
	assert.Equal(t, "section.practical-info address", cfg.Harvest.Selectors.AddressBlock)
	assert.Equal(t, []string{"a", "svg", "strong", "span"}, cfg.Harvest.Selectors.AddressStrip)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.Geocode.BaseURL)
	assert.Equal(t, ", Netherlands", cfg.Geocode.CountrySuffix)
	assert.Equal(t, 1200*time.Millisecond, cfg.Geocode.Delay())
	assert.Equal(t, 5*time.Second, cfg.Geocode.ThrottleBackoff())
	assert.Equal(t, 20*time.Second, cfg.Geocode.Timeout())
	assert.Equal(t, "museums.geojson", cfg.Render.Output)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.NoError(t, cfg.Validate("run"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
harvest:
  backend: http
  merge: skip_existing
  selectors:
    card: .venue-card
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "http", cfg.Harvest.Backend)
	assert.Equal(t, "skip_existing", cfg.Harvest.Merge)
	assert.Equal(t, ".venue-card", cfg.Harvest.Selectors.Card)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, "a", cfg.Harvest.Selectors.CardLink)
	assert.Equal(t, 1200, cfg.Geocode.DelayMs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store:\n  driver: sqlite\n"), 0o644))
	t.Setenv("VENUE_STORE_DRIVER", "postgres")
	t.Setenv("VENUE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("VENUE_GEOCODE_DELAY_MS", "0")
	t.Setenv("VENUE_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Geocode.DelayMs)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "file"
	cfg.Store.Dir = "."
	cfg.Store.OnCorrupt = "backup"
	cfg.Harvest.ListingURL = "https://www.museum.nl/nl/zien-en-doen/musea"
	cfg.Harvest.Backend = "browser"
	cfg.Harvest.Merge = "append"
	cfg.Geocode.BaseURL = "https://nominatim.openstreetmap.org"
	cfg.Geocode.UserAgent = "venue-cli/1.0"
	cfg.Geocode.TimeoutSecs = 20
	cfg.Render.Output = "museums.geojson"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_AllModes(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"harvest", "enrich", "render", "export", "status", "run", "serve"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidatePostgres_RequiresURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("enrich")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/venues"
	assert.NoError(t, cfg.Validate("enrich"))
}

func TestValidateStore_UnknownDriverAndPolicy(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mongo"
	cfg.Store.OnCorrupt = "ignore"

	err := cfg.Validate("status")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be one of")
	assert.Contains(t, err.Error(), "store.on_corrupt must be backup or fail")
}

func TestValidateHarvest_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Harvest.ListingURL = "museum.nl/musea"
	cfg.Harvest.Backend = "curl"
	cfg.Harvest.Merge = "dedupe"
	cfg.Harvest.MaxRevealRetries = -1

	err := cfg.Validate("harvest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "harvest.listing_url must be an http(s) URL")
	assert.Contains(t, err.Error(), "harvest.backend must be browser or http")
	assert.Contains(t, err.Error(), "harvest.merge must be append or skip_existing")
	assert.Contains(t, err.Error(), "harvest.max_reveal_retries must be >= 0")
}

func TestValidateEnrich_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Geocode.BaseURL = ""
	cfg.Geocode.UserAgent = ""
	cfg.Geocode.TimeoutSecs = 0

	err := cfg.Validate("enrich")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geocode.base_url must be an http(s) URL")
	assert.Contains(t, err.Error(), "geocode.user_agent is required")
	assert.Contains(t, err.Error(), "geocode.timeout_secs must be > 0")

	// Harvest settings are irrelevant to enrich.
	cfg = validDefaults()
	cfg.Harvest.Backend = ""
	assert.NoError(t, cfg.Validate("enrich"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateRender_RequiresOutput(t *testing.T) {
	cfg := validDefaults()
	cfg.Render.Output = ""
	err := cfg.Validate("render")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render.output is required")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
