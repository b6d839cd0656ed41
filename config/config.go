package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DatabaseURL string
	DBPath      string
	LogLevel    string
	APIAddr     string
	Scheduler   SchedulerConfig
	Scraper     ScraperConfig
	Extraction  ExtractionConfig
	Validation  ValidationConfig
	Geo         GeoConfig
	Telegram    TelegramConfig
	S3          S3Config
	Proxy       ProxyConfig
	Criteria    CriteriaConfig
	Sites       map[string]*SiteConfig
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type ScraperConfig struct {
	Workers         int
	DelayMS         int
	RetryAttempts   int
	RetryBaseDelay  time.Duration
	MaxResolveDepth int
}

type ExtractionConfig struct {
	// Two-digit years below the cutoff expand to 20xx, the rest to 19xx.
	TwoDigitYearCutoff int
}

type ValidationConfig struct {
	MaxMonthlyPayment float64
	MinPricePerM2     float64
	MaxPricePerM2     float64
	MinPriceTotal     float64
	MinAreaM2         float64
	HighPriceLimit    float64
	HighPriceMinScore float64
}

type GeoConfig struct {
	OverpassURL  string
	NominatimURL string
	Timeout      time.Duration
	UserAgent    string
}

type TelegramConfig struct {
	BotToken string
	ChatID   string
	MinScore float64
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKeyID != ""
}

type ProxyConfig struct {
	URL string
}

// CriteriaConfig holds the optional acceptance bounds. A nil bound is
// unconstrained.
type CriteriaConfig struct {
	PriceMin      *float64 `yaml:"price_min"`
	PriceMax      *float64 `yaml:"price_max"`
	AreaM2Min     *float64 `yaml:"area_m2_min"`
	AreaM2Max     *float64 `yaml:"area_m2_max"`
	RoomsMin      *float64 `yaml:"rooms_min"`
	RoomsMax      *float64 `yaml:"rooms_max"`
	YearBuiltMin  *int     `yaml:"year_built_min"`
	PricePerM2Max *float64 `yaml:"price_per_m2_max"`
	Districts     []string `yaml:"districts"`
	// StrictFields lists criteria keys where a missing listing value fails
	// the bound instead of passing it.
	StrictFields []string `yaml:"strict_fields"`
}

type SiteConfig struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Source      string   `yaml:"source"`
	Fetcher     string   `yaml:"fetcher"`
	BaseURL     string   `yaml:"base_url"`
	SearchURLs  []string `yaml:"search_urls"`
	PageParam   string   `yaml:"page_param"`
	MaxPages    int      `yaml:"max_pages"`
	RateLimitMS int      `yaml:"rate_limit_ms"`
	TimeoutS    int      `yaml:"timeout_s"`
	Disabled    bool     `yaml:"disabled"`
}

func (s *SiteConfig) Timeout() time.Duration {
	if s.TimeoutS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.TimeoutS) * time.Second
}

func (s *SiteConfig) RateLimit(fallbackMS int) time.Duration {
	if s.RateLimitMS > 0 {
		return time.Duration(s.RateLimitMS) * time.Millisecond
	}
	return time.Duration(fallbackMS) * time.Millisecond
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBPath:      getEnv("DB_PATH", "scraper.db"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		APIAddr:     os.Getenv("API_ADDR"),
		Scheduler: SchedulerConfig{
			Cron:     os.Getenv("SCRAPE_CRON"),
			Interval: getEnvDuration("SCRAPE_INTERVAL", 0),
		},
		Scraper: ScraperConfig{
			Workers:         getEnvInt("SCRAPE_WORKERS", 3),
			DelayMS:         getEnvInt("SCRAPE_DELAY_MS", 1500),
			RetryAttempts:   getEnvInt("RETRY_ATTEMPTS", 3),
			RetryBaseDelay:  getEnvDuration("RETRY_BASE_DELAY", 2*time.Second),
			MaxResolveDepth: getEnvInt("MAX_RESOLVE_DEPTH", 3),
		},
		Extraction: ExtractionConfig{
			TwoDigitYearCutoff: getEnvInt("TWO_DIGIT_YEAR_CUTOFF", 30),
		},
		Validation: DefaultValidation(),
		Geo: GeoConfig{
			OverpassURL:  getEnv("OVERPASS_URL", "https://overpass-api.de/api/interpreter"),
			NominatimURL: getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org/search"),
			Timeout:      getEnvDuration("GEO_TIMEOUT", 10*time.Second),
			UserAgent:    getEnv("GEO_USER_AGENT", "immo_scrooper/1.0"),
		},
		Telegram: TelegramConfig{
			BotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
			ChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
			MinScore: getEnvFloat("TELEGRAM_MIN_SCORE", 40),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "eu-central-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		Proxy: ProxyConfig{
			URL: os.Getenv("HTTP_PROXY_URL"),
		},
		Criteria: DefaultCriteria(),
		Sites:    make(map[string]*SiteConfig),
	}
	cfg.Validation.MaxMonthlyPayment = getEnvFloat("MAX_MONTHLY_PAYMENT", cfg.Validation.MaxMonthlyPayment)

	if err := cfg.loadSiteConfigs("config/sites"); err != nil {
		return nil, err
	}
	if err := cfg.loadCriteria("config/criteria.yaml"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultValidation returns the plausibility bounds for the Vienna market.
func DefaultValidation() ValidationConfig {
	return ValidationConfig{
		MaxMonthlyPayment: 2000,
		MinPricePerM2:     1000,
		MaxPricePerM2:     25000,
		MinPriceTotal:     50000,
		MinAreaM2:         20,
		HighPriceLimit:    400000,
		HighPriceMinScore: 40,
	}
}

func DefaultCriteria() CriteriaConfig {
	return CriteriaConfig{
		PriceMax:      Float(1000000),
		PricePerM2Max: Float(20000),
		AreaM2Min:     Float(20),
		RoomsMin:      Float(3),
		YearBuiltMin:  Int(1970),
		Districts: []string{
			"1010", "1020", "1030", "1040", "1050", "1060", "1070", "1080",
			"1090", "1100", "1110", "1120", "1130", "1140", "1150", "1160",
			"1170", "1180", "1190", "1200", "1210", "1220", "1230",
		},
	}
}

func (c *Config) loadSiteConfigs(configDir string) error {
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		site, err := ParseSiteConfig(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if site.Disabled {
			continue
		}

		c.Sites[site.ID] = site
	}

	return nil
}

// ParseSiteConfig decodes one site YAML document and fills defaults.
func ParseSiteConfig(data []byte) (*SiteConfig, error) {
	var site SiteConfig
	if err := yaml.Unmarshal(data, &site); err != nil {
		return nil, err
	}
	if site.ID == "" {
		return nil, fmt.Errorf("site config missing id")
	}
	if site.Source == "" {
		site.Source = site.ID
	}
	if site.Fetcher == "" {
		site.Fetcher = "http"
	}
	if site.MaxPages <= 0 {
		site.MaxPages = 3
	}
	if site.PageParam == "" {
		site.PageParam = "page"
	}
	return &site, nil
}

func (c *Config) loadCriteria(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	criteria, err := ParseCriteria(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	c.Criteria = *criteria
	return nil
}

// ParseCriteria decodes a criteria YAML document. Keys that are absent stay
// unconstrained; it does not merge with DefaultCriteria.
func ParseCriteria(data []byte) (*CriteriaConfig, error) {
	var criteria CriteriaConfig
	if err := yaml.Unmarshal(data, &criteria); err != nil {
		return nil, err
	}
	return &criteria, nil
}

func Float(v float64) *float64 { return &v }
func Int(v int) *int           { return &v }

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
