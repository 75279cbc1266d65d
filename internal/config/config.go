package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type Argon2Config struct {
	Time       uint32
	MemoryKiB  uint32
	Threads    uint8
	KeyLength  uint32
	SaltLength uint32
}

type SecurityConfig struct {
	SessionSecret    string
	SessionTTL       time.Duration
	TwoFactorTTL     time.Duration
	TwoFactorDigits  int
	ResetTTL         time.Duration
	MaxPasswordBytes int
	Argon2           Argon2Config
}

type AccessConfig struct {
	AdminFiles []string
	RolesFile  string
}

type MailConfig struct {
	Host           string
	Port           int
	Username       string
	Password       string
	FromName       string
	FromAddress    string
	Timeout        time.Duration
	Async          bool
	LogUndelivered bool
}

type URLConfig struct {
	APIBase string
}

type RateLimitRule struct {
	MaxAttempts int
	Window      time.Duration
}

type RateLimitConfig struct {
	Login         RateLimitRule
	TwoFactor     RateLimitRule
	PasswordReset RateLimitRule
}

type QueueConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
}

type JobsConfig struct {
	Enabled       bool
	PurgeSchedule string
}

type LoggingConfig struct {
	Level string
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Security         SecurityConfig
	Access           AccessConfig
	Mail             MailConfig
	URLs             URLConfig
	RateLimit        RateLimitConfig
	Queue            QueueConfig
	Jobs             JobsConfig
	Logging          LoggingConfig
	AllowCORSOrigins []string
}

func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

// Validate rejects configurations that must not reach production.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.IsProduction() {
		if c.Security.SessionSecret == "" {
			errs = append(errs, errors.New("security.sessionsecret is required in production"))
		}
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres.dsn is required in production"))
		}
	}
	if c.Security.SessionTTL <= 0 {
		errs = append(errs, errors.New("security.sessionttl must be positive"))
	}
	if c.Security.TwoFactorTTL <= 0 {
		errs = append(errs, errors.New("security.twofactorttl must be positive"))
	}
	if c.Security.ResetTTL <= 0 {
		errs = append(errs, errors.New("security.resetttl must be positive"))
	}
	if c.Security.TwoFactorDigits < 4 || c.Security.TwoFactorDigits > 10 {
		errs = append(errs, fmt.Errorf("security.twofactordigits out of range: %d", c.Security.TwoFactorDigits))
	}
	if c.Security.MaxPasswordBytes <= 0 {
		errs = append(errs, errors.New("security.maxpasswordbytes must be positive"))
	}
	return errors.Join(errs...)
}

// Load reads config.yaml from the usual search paths, then .env, then
// DREAMBOX_* environment variables. Nested keys map to env names with
// underscores, e.g. DREAMBOX_SECURITY_SESSIONSECRET.
func Load() (*AppConfig, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("DREAMBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("security.sessionsecret", "")
	v.SetDefault("security.sessionttl", "24h")
	v.SetDefault("security.twofactorttl", "10m")
	v.SetDefault("security.twofactordigits", 6)
	v.SetDefault("security.resetttl", "60m")
	v.SetDefault("security.maxpasswordbytes", 4096)
	v.SetDefault("security.argon2.time", 3)
	v.SetDefault("security.argon2.memorykib", 64*1024)
	v.SetDefault("security.argon2.threads", 2)
	v.SetDefault("security.argon2.keylength", 32)
	v.SetDefault("security.argon2.saltlength", 16)

	v.SetDefault("access.adminfiles", []string{"config/admins.json", "admins.json"})
	v.SetDefault("access.rolesfile", "config/roles.json")

	v.SetDefault("mail.host", "smtp.ionos.co.uk")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.fromname", "Dreambox Interactive")
	v.SetDefault("mail.fromaddress", "no-reply@dreamboxinteractive.com")
	v.SetDefault("mail.timeout", "20s")
	v.SetDefault("mail.async", false)
	v.SetDefault("mail.logundelivered", false)

	v.SetDefault("urls.apibase", "http://localhost:8080")

	v.SetDefault("ratelimit.login.maxattempts", 10)
	v.SetDefault("ratelimit.login.window", "15m")
	v.SetDefault("ratelimit.twofactor.maxattempts", 5)
	v.SetDefault("ratelimit.twofactor.window", "10m")
	v.SetDefault("ratelimit.passwordreset.maxattempts", 5)
	v.SetDefault("ratelimit.passwordreset.window", "1h")

	v.SetDefault("queue.stream", "dreambox:tasks")
	v.SetDefault("queue.group", "dreambox-workers")
	v.SetDefault("queue.consumer", "worker-1")
	v.SetDefault("queue.claiminterval", "30s")

	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.purgeschedule", "0 */15 * * * *")

	v.SetDefault("logging.level", "")

	v.SetDefault("allowcorsorigins", []string{})
}
