package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Harvest HarvestConfig `yaml:"harvest" mapstructure:"harvest"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Render  RenderConfig  `yaml:"render" mapstructure:"render"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures where records and the geocode cache persist.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Dir         string `yaml:"dir" mapstructure:"dir"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	RecordsKey  string `yaml:"records_key" mapstructure:"records_key"`
	CacheKey    string `yaml:"cache_key" mapstructure:"cache_key"`
	// OnCorrupt is "backup" or "fail" for the record list. The cache always
	// recovers unless CacheOnCorrupt says otherwise.
	OnCorrupt      string `yaml:"on_corrupt" mapstructure:"on_corrupt"`
	CacheOnCorrupt string `yaml:"cache_on_corrupt" mapstructure:"cache_on_corrupt"`
}

// SelectorConfig holds CSS selectors for listing and detail pages.
type SelectorConfig struct {
	Card         string   `yaml:"card" mapstructure:"card"`
	CardLink     string   `yaml:"card_link" mapstructure:"card_link"`
	CardImage    string   `yaml:"card_image" mapstructure:"card_image"`
	RevealMore   string   `yaml:"reveal_more" mapstructure:"reveal_more"`
	Title        string   `yaml:"title" mapstructure:"title"`
	AddressBlock string   `yaml:"address_block" mapstructure:"address_block"`
	AddressStrip []string `yaml:"address_strip" mapstructure:"address_strip"`
}

// HarvestConfig configures listing traversal and detail fetching.
type HarvestConfig struct {
	ListingURL       string         `yaml:"listing_url" mapstructure:"listing_url"`
	BaseURL          string         `yaml:"base_url" mapstructure:"base_url"`
	Backend          string         `yaml:"backend" mapstructure:"backend"`
	PageParam        string         `yaml:"page_param" mapstructure:"page_param"`
	Headless         bool           `yaml:"headless" mapstructure:"headless"`
	ChromePath       string         `yaml:"chrome_path" mapstructure:"chrome_path"`
	RevealDelayMs    int            `yaml:"reveal_delay_ms" mapstructure:"reveal_delay_ms"`
	RetryDelayMs     int            `yaml:"retry_delay_ms" mapstructure:"retry_delay_ms"`
	MaxRevealRetries int            `yaml:"max_reveal_retries" mapstructure:"max_reveal_retries"`
	MaxReveals       int            `yaml:"max_reveals" mapstructure:"max_reveals"`
	Merge            string         `yaml:"merge" mapstructure:"merge"`
	DetailRPS        float64        `yaml:"detail_rps" mapstructure:"detail_rps"`
	TimeoutSecs      int            `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent        string         `yaml:"user_agent" mapstructure:"user_agent"`
	Selectors        SelectorConfig `yaml:"selectors" mapstructure:"selectors"`
}

// RevealDelay returns the pause after a successful reveal.
func (h HarvestConfig) RevealDelay() time.Duration {
	return time.Duration(h.RevealDelayMs) * time.Millisecond
}

// RetryDelay returns the pause before retrying a failed reveal.
func (h HarvestConfig) RetryDelay() time.Duration {
	return time.Duration(h.RetryDelayMs) * time.Millisecond
}

// GeocodeConfig configures the Nominatim client.
type GeocodeConfig struct {
	BaseURL           string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent         string `yaml:"user_agent" mapstructure:"user_agent"`
	CountrySuffix     string `yaml:"country_suffix" mapstructure:"country_suffix"`
	DelayMs           int    `yaml:"delay_ms" mapstructure:"delay_ms"`
	ThrottleBackoffMs int    `yaml:"throttle_backoff_ms" mapstructure:"throttle_backoff_ms"`
	TimeoutSecs       int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CircuitThreshold  int    `yaml:"circuit_threshold" mapstructure:"circuit_threshold"`
	CircuitResetSecs  int    `yaml:"circuit_reset_secs" mapstructure:"circuit_reset_secs"`
}

// Delay returns the pause after each geocoder call.
func (g GeocodeConfig) Delay() time.Duration {
	return time.Duration(g.DelayMs) * time.Millisecond
}

// ThrottleBackoff returns the wait before retrying a 429.
func (g GeocodeConfig) ThrottleBackoff() time.Duration {
	return time.Duration(g.ThrottleBackoffMs) * time.Millisecond
}

// Timeout returns the per-call timeout.
func (g GeocodeConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSecs) * time.Second
}

// RenderConfig configures the map artifact.
type RenderConfig struct {
	Output string `yaml:"output" mapstructure:"output"`
	Name   string `yaml:"name" mapstructure:"name"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("VENUE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "file")
	v.SetDefault("store.dir", ".")
	v.SetDefault("store.records_key", "museums")
	v.SetDefault("store.cache_key", "geocode_cache")
	v.SetDefault("store.on_corrupt", "backup")
	v.SetDefault("store.cache_on_corrupt", "backup")
	v.SetDefault("harvest.listing_url", "https://www.museum.nl/nl/zien-en-doen/musea?mv-PageIndex=0")
	v.SetDefault("harvest.base_url", "https://www.museum.nl")
	v.SetDefault("harvest.backend", "browser")
	v.SetDefault("harvest.page_param", "mv-PageIndex")
	v.SetDefault("harvest.headless", true)
	v.SetDefault("harvest.reveal_delay_ms", 3000)
	v.SetDefault("harvest.retry_delay_ms", 2000)
	v.SetDefault("harvest.max_reveal_retries", 5)
	v.SetDefault("harvest.max_reveals", 0)
	v.SetDefault("harvest.merge", "append")
	v.SetDefault("harvest.detail_rps", 2.0)
	v.SetDefault("harvest.timeout_secs", 30)
	v.SetDefault("harvest.user_agent", "Mozilla/5.0 (compatible; venue-cli/1.0)")
	v.SetDefault("harvest.selectors.card", ".see-and-do-card")
	v.SetDefault("harvest.selectors.card_link", "a")
	v.SetDefault("harvest.selectors.card_image", "img")
	v.SetDefault("harvest.selectors.reveal_more", ".tiles-block_load-more button.btn-default")
	v.SetDefault("harvest.selectors.title", "h1")
	v.SetDefault("harvest.selectors.address_block", "section.practical-info address")
	v.SetDefault("harvest.selectors.address_strip", []string{"a", "svg", "strong", "span"})
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "venue-cli/1.0 (museum map)")
	v.SetDefault("geocode.country_suffix", ", Netherlands")
	v.SetDefault("geocode.delay_ms", 1200)
	v.SetDefault("geocode.throttle_backoff_ms", 5000)
	v.SetDefault("geocode.timeout_secs", 20)
	v.SetDefault("geocode.circuit_threshold", 5)
	v.SetDefault("geocode.circuit_reset_secs", 60)
	v.SetDefault("render.output", "museums.geojson")
	v.SetDefault("render.name", "Musea in Nederland")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields the given command needs.
func (c *Config) Validate(mode string) error {
	var errs []string

	needStore := func() {
		switch c.Store.Driver {
		case "file", "":
			if c.Store.Dir == "" {
				errs = append(errs, "store.dir is required for the file driver")
			}
		case "sqlite", "memory":
		case "postgres":
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required for the postgres driver")
			}
		default:
			errs = append(errs, "store.driver must be one of file, sqlite, postgres")
		}
		for key, p := range map[string]string{"store.on_corrupt": c.Store.OnCorrupt, "store.cache_on_corrupt": c.Store.CacheOnCorrupt} {
			if p != "" && p != "backup" && p != "fail" {
				errs = append(errs, key+" must be backup or fail")
			}
		}
	}
	needHarvest := func() {
		if !isHTTPURL(c.Harvest.ListingURL) {
			errs = append(errs, "harvest.listing_url must be an http(s) URL")
		}
		if c.Harvest.Backend != "browser" && c.Harvest.Backend != "http" {
			errs = append(errs, "harvest.backend must be browser or http")
		}
		if c.Harvest.Merge != "" && c.Harvest.Merge != "append" && c.Harvest.Merge != "skip_existing" {
			errs = append(errs, "harvest.merge must be append or skip_existing")
		}
		if c.Harvest.MaxRevealRetries < 0 {
			errs = append(errs, "harvest.max_reveal_retries must be >= 0")
		}
		if c.Harvest.MaxReveals < 0 {
			errs = append(errs, "harvest.max_reveals must be >= 0")
		}
		if c.Harvest.DetailRPS < 0 {
			errs = append(errs, "harvest.detail_rps must be >= 0")
		}
	}
	needGeocode := func() {
		if !isHTTPURL(c.Geocode.BaseURL) {
			errs = append(errs, "geocode.base_url must be an http(s) URL")
		}
		if c.Geocode.UserAgent == "" {
			errs = append(errs, "geocode.user_agent is required")
		}
		if c.Geocode.DelayMs < 0 || c.Geocode.ThrottleBackoffMs < 0 {
			errs = append(errs, "geocode delays must be >= 0")
		}
		if c.Geocode.TimeoutSecs <= 0 {
			errs = append(errs, "geocode.timeout_secs must be > 0")
		}
	}
	needRender := func() {
		if c.Render.Output == "" {
			errs = append(errs, "render.output is required")
		}
	}

	switch mode {
	case "harvest":
		needStore()
		needHarvest()
	case "enrich":
		needStore()
		needGeocode()
	case "render", "export", "status":
		needStore()
		if mode == "render" {
			needRender()
		}
	case "run":
		needStore()
		needHarvest()
		needGeocode()
		needRender()
	case "serve":
		needStore()
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
