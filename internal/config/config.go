package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Crawl    CrawlConfig    `yaml:"crawl"`
	Browser  BrowserConfig  `yaml:"browser"`
	Assets   AssetsConfig   `yaml:"assets"`
	Output   OutputConfig   `yaml:"output"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type CrawlConfig struct {
	BaseURL        string        `yaml:"base_url"`
	ListingMarker  string        `yaml:"listing_marker"`
	AdsPerCategory int           `yaml:"ads_per_category"`
	Categories     []string      `yaml:"categories"`
	PageTimeout    time.Duration `yaml:"page_timeout"`
	SettleDelay    time.Duration `yaml:"settle_delay"`
	PageDelayMin   time.Duration `yaml:"page_delay_min"`
	PageDelayMax   time.Duration `yaml:"page_delay_max"`
	MaxPages       int           `yaml:"max_pages"`
}

type BrowserConfig struct {
	Headless       bool          `yaml:"headless"`
	Timeout        time.Duration `yaml:"timeout"`
	UserAgent      string        `yaml:"user_agent"`
	ViewportWidth  int           `yaml:"viewport_width"`
	ViewportHeight int           `yaml:"viewport_height"`
	AcceptLanguage string        `yaml:"accept_language"`
	Locale         string        `yaml:"locale"`
}

type AssetsConfig struct {
	Download        bool          `yaml:"download"`
	Quality         string        `yaml:"quality"` // high, medium, thumbnail
	Dir             string        `yaml:"dir"`
	Timeout         time.Duration `yaml:"timeout"`
	Workers         int           `yaml:"workers"`
	DefaultCurrency string        `yaml:"default_currency"`
}

type OutputConfig struct {
	DataDir string `yaml:"data_dir"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from the environment. If path is non-empty the
// YAML file is read first and environment variables override it.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Crawl: CrawlConfig{
			BaseURL:        "https://www.voursa.com/EN",
			ListingMarker:  "/ads/",
			AdsPerCategory: 20,
			PageTimeout:    30 * time.Second,
			SettleDelay:    2 * time.Second,
			PageDelayMin:   2 * time.Second,
			PageDelayMax:   5 * time.Second,
			MaxPages:       50,
		},
		Browser: BrowserConfig{
			Headless:       true,
			Timeout:        30 * time.Second,
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			ViewportWidth:  1920,
			ViewportHeight: 1080,
			AcceptLanguage: "fr-FR,fr;q=0.9,en;q=0.8",
			Locale:         "fr-FR",
		},
		Assets: AssetsConfig{
			Download:        true,
			Quality:         "high",
			Dir:             "images",
			Timeout:         10 * time.Second,
			Workers:         4,
			DefaultCurrency: "MRU",
		},
		Output: OutputConfig{
			DataDir: "data",
		},
		Database: DatabaseConfig{
			MaxConns: 4,
		},
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.Crawl.BaseURL = getEnvOrDefault("CRAWL_BASE_URL", cfg.Crawl.BaseURL)
	cfg.Crawl.ListingMarker = getEnvOrDefault("CRAWL_LISTING_MARKER", cfg.Crawl.ListingMarker)
	cfg.Crawl.AdsPerCategory = getIntOrDefault("CRAWL_ADS_PER_CATEGORY", cfg.Crawl.AdsPerCategory)
	cfg.Crawl.Categories = getStringSliceOrDefault("CRAWL_CATEGORIES", cfg.Crawl.Categories)
	cfg.Crawl.PageTimeout = getDurationOrDefault("CRAWL_PAGE_TIMEOUT", cfg.Crawl.PageTimeout)
	cfg.Crawl.SettleDelay = getDurationOrDefault("CRAWL_SETTLE_DELAY", cfg.Crawl.SettleDelay)
	cfg.Crawl.PageDelayMin = getDurationOrDefault("CRAWL_PAGE_DELAY_MIN", cfg.Crawl.PageDelayMin)
	cfg.Crawl.PageDelayMax = getDurationOrDefault("CRAWL_PAGE_DELAY_MAX", cfg.Crawl.PageDelayMax)
	cfg.Crawl.MaxPages = getIntOrDefault("CRAWL_MAX_PAGES", cfg.Crawl.MaxPages)

	cfg.Browser.Headless = getBoolOrDefault("BROWSER_HEADLESS", cfg.Browser.Headless)
	cfg.Browser.Timeout = getDurationOrDefault("BROWSER_TIMEOUT", cfg.Browser.Timeout)
	cfg.Browser.UserAgent = getEnvOrDefault("BROWSER_USER_AGENT", cfg.Browser.UserAgent)
	cfg.Browser.ViewportWidth = getIntOrDefault("BROWSER_VIEWPORT_WIDTH", cfg.Browser.ViewportWidth)
	cfg.Browser.ViewportHeight = getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", cfg.Browser.ViewportHeight)
	cfg.Browser.AcceptLanguage = getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", cfg.Browser.AcceptLanguage)
	cfg.Browser.Locale = getEnvOrDefault("BROWSER_LOCALE", cfg.Browser.Locale)

	cfg.Assets.Download = getBoolOrDefault("ASSETS_DOWNLOAD", cfg.Assets.Download)
	cfg.Assets.Quality = getEnvOrDefault("ASSETS_QUALITY", cfg.Assets.Quality)
	cfg.Assets.Dir = getEnvOrDefault("ASSETS_DIR", cfg.Assets.Dir)
	cfg.Assets.Timeout = getDurationOrDefault("ASSETS_TIMEOUT", cfg.Assets.Timeout)
	cfg.Assets.Workers = getIntOrDefault("ASSETS_WORKERS", cfg.Assets.Workers)
	cfg.Assets.DefaultCurrency = getEnvOrDefault("DEFAULT_CURRENCY", cfg.Assets.DefaultCurrency)

	cfg.Output.DataDir = getEnvOrDefault("OUTPUT_DATA_DIR", cfg.Output.DataDir)

	cfg.Redis.Addr = getEnvOrDefault("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getIntOrDefault("REDIS_DB", cfg.Redis.DB)

	cfg.Database.DSN = getEnvOrDefault("DATABASE_DSN", cfg.Database.DSN)
	cfg.Database.MaxConns = int32(getIntOrDefault("DATABASE_MAX_CONNS", int(cfg.Database.MaxConns)))

	cfg.Server.Port = getIntOrDefault("SERVER_PORT", cfg.Server.Port)
	cfg.Server.ShutdownTimeout = getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnvOrDefault("LOG_FORMAT", cfg.Logging.Format)
}

func (c *Config) Validate() error {
	if c.Crawl.AdsPerCategory < 1 {
		return fmt.Errorf("CRAWL_ADS_PER_CATEGORY must be at least 1")
	}
	if c.Crawl.PageDelayMin > c.Crawl.PageDelayMax {
		return fmt.Errorf("CRAWL_PAGE_DELAY_MIN cannot be greater than CRAWL_PAGE_DELAY_MAX")
	}
	if c.Assets.Workers < 1 {
		return fmt.Errorf("ASSETS_WORKERS must be at least 1")
	}
	switch c.Assets.Quality {
	case "high", "medium", "thumbnail":
	default:
		return fmt.Errorf("ASSETS_QUALITY must be one of high, medium, thumbnail")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
