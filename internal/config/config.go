package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from YAML, .env, and env vars.
type Config struct {
	ServerPort string

	WeatherAPIKey     string
	WeatherAPIURL     string
	WeatherAPILang    string
	WeatherAPITimeout time.Duration

	PlacesAPIKey     string
	PlacesAPIURL     string
	PlacesAPITimeout time.Duration

	RequestTimeout time.Duration

	StoreBackend string // "memory", "memcached", or "sqlite"

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	SQLitePath string

	CacheTTL        time.Duration
	RefreshInterval time.Duration

	ShutdownTimeout    time.Duration
	DrainCheckInterval time.Duration

	DefaultLocationName string
	DefaultLocationLat  float64
	DefaultLocationLon  float64
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	WeatherAPI struct {
		URL     string `yaml:"url"`
		Lang    string `yaml:"lang"`
		Timeout string `yaml:"timeout"`
	} `yaml:"weather_api"`

	PlacesAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"places_api"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Store struct {
		Backend   string `yaml:"backend"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		SQLite struct {
			Path string `yaml:"path"`
		} `yaml:"sqlite"`
	} `yaml:"store"`

	Cache struct {
		TTL             string `yaml:"ttl"`
		RefreshInterval string `yaml:"refresh_interval"`
	} `yaml:"cache"`

	Shutdown struct {
		Timeout            string `yaml:"timeout"`
		DrainCheckInterval string `yaml:"drain_check_interval"`
	} `yaml:"shutdown"`

	DefaultLocation struct {
		Name string  `yaml:"name"`
		Lat  float64 `yaml:"lat"`
		Lon  float64 `yaml:"lon"`
	} `yaml:"default_location"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
	PlacesAPIKey  string `yaml:"places_api_key"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev), a .env
// file when present, and environment variables. The weather API key comes
// from WEATHER_API_KEY env or config/secrets.yaml; the places key from
// PLACES_API_KEY (or GOOGLE_API_KEY) and is optional. Call from project root.
func Load() (*Config, error) {
	// .env values become env vars without overriding ones already set.
	_ = godotenv.Load()

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	secrets, err := loadSecrets(filepath.Join(cwd, "config", "secrets.yaml"))
	if err != nil {
		return nil, err
	}

	cfg.WeatherAPIKey = os.Getenv("WEATHER_API_KEY")
	if cfg.WeatherAPIKey == "" {
		cfg.WeatherAPIKey = secrets.WeatherAPIKey
	}
	if cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("WEATHER_API_KEY required (set env or config/secrets.yaml weather_api_key)")
	}

	cfg.PlacesAPIKey = os.Getenv("PLACES_API_KEY")
	if cfg.PlacesAPIKey == "" {
		cfg.PlacesAPIKey = os.Getenv("GOOGLE_API_KEY")
	}
	if cfg.PlacesAPIKey == "" {
		cfg.PlacesAPIKey = secrets.PlacesAPIKey
	}

	cfg.WeatherAPIURL = fc.WeatherAPI.URL
	if cfg.WeatherAPIURL == "" {
		cfg.WeatherAPIURL = "https://api.openweathermap.org"
	}
	cfg.WeatherAPILang = fc.WeatherAPI.Lang
	cfg.WeatherAPITimeout = parseDuration(fc.WeatherAPI.Timeout, 5*time.Second)

	cfg.PlacesAPIURL = fc.PlacesAPI.URL
	if cfg.PlacesAPIURL == "" {
		cfg.PlacesAPIURL = "https://places.googleapis.com"
	}
	cfg.PlacesAPITimeout = parseDuration(fc.PlacesAPI.Timeout, 5*time.Second)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 10*time.Second)

	cfg.StoreBackend = strings.TrimSpace(strings.ToLower(os.Getenv("STORE_BACKEND")))
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = strings.TrimSpace(strings.ToLower(fc.Store.Backend))
	}
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = "memory"
	}

	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Store.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Store.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Store.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.SQLitePath = strings.TrimSpace(os.Getenv("SQLITE_PATH"))
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = strings.TrimSpace(fc.Store.SQLite.Path)
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = "data/weatherdash.db"
	}

	cfg.CacheTTL = parseDuration(fc.Cache.TTL, time.Hour)
	cfg.RefreshInterval = parseDuration(fc.Cache.RefreshInterval, time.Hour)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.DrainCheckInterval = parseDuration(fc.Shutdown.DrainCheckInterval, 100*time.Millisecond)

	cfg.DefaultLocationName = fc.DefaultLocation.Name
	cfg.DefaultLocationLat = fc.DefaultLocation.Lat
	cfg.DefaultLocationLon = fc.DefaultLocation.Lon
	if cfg.DefaultLocationName == "" {
		cfg.DefaultLocationName = "New York"
		cfg.DefaultLocationLat = 40.7128
		cfg.DefaultLocationLon = -74.0060
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadSecrets(path string) (secretsFile, error) {
	var sec secretsFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sec, nil
		}
		return sec, fmt.Errorf("read secrets file: %w", err)
	}
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return sec, fmt.Errorf("parse secrets file: %w", err)
	}
	return sec, nil
}

// parseDuration parses a duration string and returns defaultVal on empty
// string, parse error, or a non-positive result.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. RequestTimeout must leave room for
// the slower upstream call plus overhead; it is raised when it does not.
func validate(cfg *Config) error {
	upstream := cfg.WeatherAPITimeout
	if cfg.PlacesAPITimeout > upstream {
		upstream = cfg.PlacesAPITimeout
	}
	if cfg.RequestTimeout <= upstream {
		cfg.RequestTimeout = upstream + time.Second
	}
	switch cfg.StoreBackend {
	case "memory", "memcached", "sqlite":
	default:
		return fmt.Errorf("store.backend must be memory, memcached, or sqlite, got %q", cfg.StoreBackend)
	}
	if cfg.DefaultLocationLat < -90 || cfg.DefaultLocationLat > 90 {
		return fmt.Errorf("default_location.lat out of range: %v", cfg.DefaultLocationLat)
	}
	if cfg.DefaultLocationLon < -180 || cfg.DefaultLocationLon > 180 {
		return fmt.Errorf("default_location.lon out of range: %v", cfg.DefaultLocationLon)
	}
	return nil
}
