package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	_ "github.com/joho/godotenv/autoload"
)

const (
	EnvLocal  = "local"
	EnvDocker = "docker"

	ExecutorMemory = "memory"
	ExecutorKafka  = "kafka"
)

// DefaultAllowedIPs are the addresses Przelewy24 sends notifications from.
var DefaultAllowedIPs = []string{
	"91.216.191.181",
	"91.216.191.182",
	"91.216.191.183",
	"91.216.191.184",
	"91.216.191.185",
}

// AcceptedLanguages are the locales the hosted payment page understands.
var AcceptedLanguages = []string{"pl", "en", "es", "de", "it"}

const (
	productionBaseURL = "https://secure.przelewy24.pl/"
	sandboxBaseURL    = "https://sandbox.przelewy24.pl/"
)

type Config struct {
	AppEnv          string        `env:"APP_ENV" envDefault:"local"`
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	TrustedProxies  []string      `env:"TRUSTED_PROXIES" envSeparator:","` // may set X-Forwarded-For; empty trusts every peer

	Log      Log
	Database Database
	Gateway  Gateway
	Executor Executor
	Redis    Redis
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT"`
}

// Database keeps the BLUEPRINT_DB_* names the deployment already uses.
type Database struct {
	Host     string `env:"BLUEPRINT_DB_HOST" envDefault:"localhost"`
	Port     string `env:"BLUEPRINT_DB_PORT" envDefault:"5432"`
	Database string `env:"BLUEPRINT_DB_DATABASE" envDefault:"getpaid"`
	Username string `env:"BLUEPRINT_DB_USERNAME" envDefault:"getpaid"`
	Password string `env:"BLUEPRINT_DB_PASSWORD"`
	Schema   string `env:"BLUEPRINT_DB_SCHEMA" envDefault:"public"`
}

func (d Database) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		d.Username, d.Password, d.Host, d.Port, d.Database, d.Schema,
	)
}

// Gateway holds the merchant settings for Przelewy24.
type Gateway struct {
	MerchantID   string        `env:"P24_MERCHANT_ID"`
	PosID        string        `env:"P24_POS_ID"`
	CRC          string        `env:"P24_CRC"`
	Sandbox      bool          `env:"P24_SANDBOX" envDefault:"false"`
	APIVersion   string        `env:"P24_API_VERSION" envDefault:"3.2"`
	SSLReturn    bool          `env:"P24_SSL_RETURN" envDefault:"false"`
	Lang         string        `env:"P24_LANG"`
	AllowedIPs   []string      `env:"P24_ALLOWED_IPS" envSeparator:","`
	SiteDomain   string        `env:"P24_SITE_DOMAIN"`
	DefaultEmail string        `env:"P24_DEFAULT_EMAIL"`
	Backend      string        `env:"P24_BACKEND" envDefault:"przelewy24"`
	HTTPTimeout  time.Duration `env:"P24_HTTP_TIMEOUT" envDefault:"10s"`
	// BaseURL overrides the sandbox/production switch, e.g. to point at a local fake.
	BaseURL string `env:"P24_BASE_URL"`
}

func (g Gateway) baseURL() string {
	switch {
	case g.BaseURL != "":
		return g.BaseURL
	case g.Sandbox:
		return sandboxBaseURL
	default:
		return productionBaseURL
	}
}

func (g Gateway) RegisterURL() string { return g.baseURL() + "trnRegister" }
func (g Gateway) RequestURL() string  { return g.baseURL() + "trnRequest/" }
func (g Gateway) VerifyURL() string   { return g.baseURL() + "trnVerify" }

// Scheme is used for the callback URLs handed to the gateway.
func (g Gateway) Scheme() string {
	if g.SSLReturn {
		return "https"
	}
	return "http"
}

func (g Gateway) SiteURL(path string) string {
	return g.Scheme() + "://" + g.SiteDomain + path
}

func (g Gateway) AllowList() []string {
	if len(g.AllowedIPs) > 0 {
		return g.AllowedIPs
	}
	return DefaultAllowedIPs
}

type Executor struct {
	Kind         string   `env:"EXECUTOR" envDefault:"memory"`
	Workers      int      `env:"WORKER_COUNT" envDefault:"4"`
	QueueSize    int      `env:"WORKER_QUEUE_SIZE" envDefault:"64"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:19092"`
	KafkaTopic   string   `env:"KAFKA_RECONCILE_TOPIC" envDefault:"p24.reconcile"`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"getpaid-reconciler"`
}

// Redis is optional; without an address processed notifications are tracked in memory.
type Redis struct {
	Addr         string        `env:"REDIS_ADDR"`
	Password     string        `env:"REDIS_PASSWORD"`
	DB           int           `env:"REDIS_DB" envDefault:"0"`
	ProcessedTTL time.Duration `env:"PROCESSED_TTL" envDefault:"72h"`
}

// Load reads the configuration from the environment (and .env, if present).
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Gateway.PosID == "" {
		cfg.Gateway.PosID = cfg.Gateway.MerchantID
	}
	cfg.Gateway.AllowedIPs = trimList(cfg.Gateway.AllowedIPs)
	cfg.CORSOrigins = trimList(cfg.CORSOrigins)
	cfg.TrustedProxies = trimList(cfg.TrustedProxies)
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
		if cfg.AppEnv == EnvDocker {
			cfg.Log.Format = "json"
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.AppEnv != EnvLocal && c.AppEnv != EnvDocker {
		errs = append(errs, fmt.Errorf("invalid APP_ENV: %s (must be 'local' or 'docker')", c.AppEnv))
	}
	if c.Gateway.MerchantID == "" {
		errs = append(errs, errors.New("P24_MERCHANT_ID is required"))
	}
	if c.Gateway.CRC == "" {
		errs = append(errs, errors.New("P24_CRC is required"))
	}
	if c.Gateway.SiteDomain == "" {
		errs = append(errs, errors.New("P24_SITE_DOMAIN is required"))
	}
	if c.Gateway.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("P24_HTTP_TIMEOUT must be positive"))
	}
	for _, proxy := range c.TrustedProxies {
		if _, err := netip.ParsePrefix(proxy); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(proxy); err != nil {
			errs = append(errs, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: must be an IP or CIDR", proxy))
		}
	}
	for _, ip := range c.Gateway.AllowedIPs {
		if _, err := netip.ParseAddr(ip); err != nil {
			errs = append(errs, fmt.Errorf("invalid P24_ALLOWED_IPS entry %q: %w", ip, err))
		}
	}
	switch c.Executor.Kind {
	case ExecutorMemory:
		if c.Executor.Workers <= 0 {
			errs = append(errs, errors.New("WORKER_COUNT must be positive"))
		}
	case ExecutorKafka:
		if len(c.Executor.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required for the kafka executor"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid EXECUTOR: %s (must be 'memory' or 'kafka')", c.Executor.Kind))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// LoadDatabase reads only the database settings, for commands that do not
// talk to the gateway.
func LoadDatabase() (Database, error) {
	var db Database
	if err := env.Parse(&db); err != nil {
		return Database{}, fmt.Errorf("parse env: %w", err)
	}
	return db, nil
}

// trimList drops blanks and surrounding spaces from a comma-separated setting.
func trimList(items []string) []string {
	out := items[:0]
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
