package config

import (
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"gopkg.in/yaml.v2"

	"reviewhub_backend/internal/logger"
)

type Config struct {
	Server struct {
		Host            string `yaml:"host"`
		Port            int    `yaml:"port"`
		Env             string `yaml:"env"`
		ShutdownTimeout int    `yaml:"shutdown_timeout"` // секунды
	} `yaml:"server"`

	Database struct {
		Driver          string `yaml:"driver"` // postgres | mysql
		DSN             string `yaml:"url"`
		MaxOpenConns    int    `yaml:"max_open_conns"`
		MaxIdleConns    int    `yaml:"max_idle_conns"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // минуты
		SlowQueryMs     int    `yaml:"slow_query_ms"`
		AutoMigrate     bool   `yaml:"auto_migrate"`
	} `yaml:"database"`

	Redis struct {
		URL      string `yaml:"url"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Email struct {
		SMTPHost     string `yaml:"smtp_host"`
		SMTPPort     int    `yaml:"smtp_port"`
		SMTPUsername string `yaml:"smtp_user"`
		SMTPPassword string `yaml:"smtp_password"`
		FromEmail    string `yaml:"from_email"`
		FromName     string `yaml:"from_name"`
		UseTLS       bool   `yaml:"use_tls"`
		TemplatesDir string `yaml:"templates_dir"` // *.html поверх встроенных шаблонов
	} `yaml:"email"`

	JWT struct {
		Secret         string `yaml:"secret"`
		TTL            int    `yaml:"ttl"` // минуты
		Issuer         string `yaml:"issuer"`
		JWKSURL        string `yaml:"jwks_url"` // внешний IdP, пусто - выключено
		ExternalIssuer string `yaml:"external_issuer"`
		Audience       string `yaml:"audience"`
	} `yaml:"jwt"`

	Storage struct {
		Type       string `yaml:"type"`      // local, s3, cloudflare_r2
		BasePath   string `yaml:"base_path"` // For local storage
		BaseURL    string `yaml:"base_url"`  // Public URL base
		Bucket     string `yaml:"bucket"`
		Region     string `yaml:"region"`
		AccessKey  string `yaml:"access_key"`
		SecretKey  string `yaml:"secret_key"`
		Endpoint   string `yaml:"endpoint"`
		AccountID  string `yaml:"account_id"` // For R2
		UseSSL     bool   `yaml:"use_ssl"`
		PublicRead bool   `yaml:"public_read"`
	} `yaml:"storage"`

	Upload struct {
		MaxSize         int64    `yaml:"max_size"`
		AllowedTypes    []string `yaml:"allowed_types"`
		ImageQuality    int      `yaml:"image_quality"`
		MaxFilesPerLink int      `yaml:"max_files_per_link"`
		VideoEnabled    bool     `yaml:"video_enabled"`
	} `yaml:"upload"`

	WayForPay struct {
		MerchantAccount    string             `yaml:"merchant_account"`
		MerchantDomainName string             `yaml:"merchant_domain"`
		SecretKey          string             `yaml:"secret_key"`
		ServiceURL         string             `yaml:"service_url"`
		ReturnURL          string             `yaml:"return_url"`
		PayURL             string             `yaml:"pay_url"`
		Currency           string             `yaml:"currency"`
		Prices             map[string]float64 `yaml:"prices"` // "PRO_monthly": 299
	} `yaml:"wayforpay"`

	Quota struct {
		Strict bool `yaml:"strict"`
	} `yaml:"quota"`

	Feed struct {
		BatchSize int `yaml:"batch_size"`
		PageSize  int `yaml:"page_size"`
		CacheTTL  int `yaml:"cache_ttl"` // секунды
	} `yaml:"feed"`

	Workers struct {
		Enabled           bool `yaml:"enabled"`
		SweepInterval     int  `yaml:"sweep_interval"`     // минуты
		ReconcileInterval int  `yaml:"reconcile_interval"` // минуты
	} `yaml:"workers"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`

	RateLimit struct {
		Enabled      bool `yaml:"enabled"`
		Requests     int  `yaml:"requests"`
		FeedRequests int  `yaml:"feed_requests"` // лимит для чтения ленты
		Window       int  `yaml:"window"`        // секунды
	} `yaml:"rate_limit"`

	Admin struct {
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
	} `yaml:"admin"`
}

var AppConfig *Config

func LoadConfig() {
	var cfg Config

	dbURL := os.Getenv("DATABASE_URL")
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	f, err := os.Open(configPath)
	switch {
	case err == nil:
		defer f.Close()
		logger.Info("loading configuration from file", "path", configPath)
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			logger.Fatal("failed to parse config file", "path", configPath, "error", err)
		}
	case dbURL != "":
		// Режим теста/контейнера: только переменные окружения
		logger.Info("config file not found, using environment profile")
		cfg.Server.Env = "test"
		cfg.Storage.Type = "local"
		cfg.Storage.BasePath = "./uploads"
		cfg.Storage.BaseURL = "/uploads"
	default:
		logger.Fatal("failed to open config file", "path", configPath, "error", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	AppConfig = &cfg
}

// applyEnv - переменные окружения перекрывают файл
func applyEnv(cfg *Config) {
	setString(&cfg.Database.DSN, "DATABASE_URL")
	setString(&cfg.Database.Driver, "DATABASE_DRIVER")
	setString(&cfg.Server.Env, "SERVER_ENV")
	setInt(&cfg.Server.Port, "SERVER_PORT")
	setString(&cfg.JWT.Secret, "JWT_SECRET")
	setString(&cfg.JWT.JWKSURL, "JWT_JWKS_URL")
	setString(&cfg.Redis.URL, "REDIS_URL")
	setString(&cfg.WayForPay.MerchantAccount, "WAYFORPAY_MERCHANT_ACCOUNT")
	setString(&cfg.WayForPay.SecretKey, "WAYFORPAY_SECRET_KEY")
	setString(&cfg.WayForPay.MerchantDomainName, "WAYFORPAY_MERCHANT_DOMAIN")
	setString(&cfg.WayForPay.ServiceURL, "WAYFORPAY_SERVICE_URL")
	setString(&cfg.Storage.AccessKey, "STORAGE_ACCESS_KEY")
	setString(&cfg.Storage.SecretKey, "STORAGE_SECRET_KEY")
	setString(&cfg.Email.SMTPPassword, "SMTP_PASSWORD")
	setString(&cfg.Email.TemplatesDir, "EMAIL_TEMPLATES_DIR")
	setString(&cfg.Admin.Email, "ADMIN_EMAIL")
	setString(&cfg.Admin.Password, "ADMIN_PASSWORD")
	if v := os.Getenv("QUOTA_STRICT"); v != "" {
		cfg.Quota.Strict, _ = strconv.ParseBool(v)
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Env == "" {
		cfg.Server.Env = "development"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30
	}
	if cfg.Database.SlowQueryMs == 0 {
		cfg.Database.SlowQueryMs = 200
	}
	if cfg.JWT.TTL == 0 {
		cfg.JWT.TTL = 60
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "reviewhub"
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "local"
	}
	if cfg.Storage.BasePath == "" {
		cfg.Storage.BasePath = "./uploads"
	}
	if cfg.Upload.MaxSize == 0 {
		cfg.Upload.MaxSize = 30 * 1024 * 1024 // 30MB
	}
	if len(cfg.Upload.AllowedTypes) == 0 {
		cfg.Upload.AllowedTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}
	}
	if cfg.Upload.ImageQuality == 0 {
		cfg.Upload.ImageQuality = 85
	}
	if cfg.Upload.MaxFilesPerLink == 0 {
		cfg.Upload.MaxFilesPerLink = 5
	}
	if cfg.WayForPay.Currency == "" {
		cfg.WayForPay.Currency = "UAH"
	}
	if cfg.WayForPay.PayURL == "" {
		cfg.WayForPay.PayURL = "https://secure.wayforpay.com/pay"
	}
	if cfg.Feed.BatchSize == 0 {
		cfg.Feed.BatchSize = 50
	}
	if cfg.Feed.PageSize == 0 {
		cfg.Feed.PageSize = 5
	}
	if cfg.Feed.CacheTTL == 0 {
		cfg.Feed.CacheTTL = 60
	}
	if cfg.Workers.SweepInterval == 0 {
		cfg.Workers.SweepInterval = 24 * 60
	}
	if cfg.Workers.ReconcileInterval == 0 {
		cfg.Workers.ReconcileInterval = 60
	}
	if cfg.RateLimit.Requests == 0 {
		cfg.RateLimit.Requests = 30
	}
	if cfg.RateLimit.FeedRequests == 0 {
		cfg.RateLimit.FeedRequests = 120
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = 60
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		cfg.CORS.AllowedOrigins = []string{"*"}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func GetConfig() *Config {
	if AppConfig == nil {
		LoadConfig()
	}
	return AppConfig
}

// Defaults возвращает конфиг только со значениями по умолчанию (тесты, cmd/sweep без файла)
func Defaults() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// Durations

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWT.TTL) * time.Minute
}

func (c *Config) FeedCacheTTL() time.Duration {
	return time.Duration(c.Feed.CacheTTL) * time.Second
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Workers.SweepInterval) * time.Minute
}

func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.Workers.ReconcileInterval) * time.Minute
}

func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimit.Window) * time.Second
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}
