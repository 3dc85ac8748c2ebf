package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath          = "config.toml"
	DefaultHTTPAddr            = ":8080"
	DefaultPGHost              = "127.0.0.1"
	DefaultPGPort              = 5432
	DefaultPGUser              = "postgres"
	DefaultPGDatabase          = "diskrelay"
	DefaultPGSSLMode           = "disable"
	DefaultRedisAddr           = "127.0.0.1:6379"
	DefaultUploadFolder        = "Telegram Bot"
	DefaultPollInterval        = "5s"
	DefaultPollMaxAttempts     = 10
	DefaultInsertTokenBytes    = 8
	DefaultInsertTokenLifetime = "10m"
	DefaultDisposableTTL       = "10m"
	DefaultSameDateTTL         = "30s"
	DefaultOAuthAuthURL        = "https://oauth.yandex.ru/authorize"
	DefaultOAuthTokenURL       = "https://oauth.yandex.ru/token"
	DefaultDiskBaseURL         = "https://cloud-api.yandex.net/v1/disk"
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Telegram TelegramConfig `toml:"telegram"`
	OAuth    OAuthConfig    `toml:"oauth"`
	Disk     DiskConfig     `toml:"disk"`
	Secrets  SecretsConfig  `toml:"secrets"`
	Upload   UploadConfig   `toml:"upload"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
	// PublicURL is the externally reachable base URL used to build
	// the OAuth redirect target (no trailing slash).
	PublicURL string `toml:"public_url" validate:"required,url"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// RedisConfig configures the ephemeral conversation store. An empty
// Addr disables stateful chat entirely; handlers then fall back to
// single-turn behavior.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type TelegramConfig struct {
	BotToken string `toml:"bot_token" validate:"required"`
	// WebhookSecret is the path suffix Telegram must use when
	// delivering updates, so random POSTs are rejected.
	WebhookSecret string `toml:"webhook_secret" validate:"required"`
}

type OAuthConfig struct {
	ClientID     string `toml:"client_id" validate:"required"`
	ClientSecret string `toml:"client_secret" validate:"required"`
	AuthURL      string `toml:"auth_url"`
	TokenURL     string `toml:"token_url"`

	InsertTokenBytes    int      `toml:"insert_token_bytes"`
	InsertTokenLifetime Duration `toml:"insert_token_lifetime"`
}

type DiskConfig struct {
	BaseURL string `toml:"base_url"`
}

type SecretsConfig struct {
	// FernetKey is a urlsafe base64 256-bit key used to encrypt
	// tokens at rest. StateKey signs the OAuth handshake state.
	FernetKey string `toml:"fernet_key" validate:"required"`
	StateKey  string `toml:"state_key" validate:"required"`
}

type UploadConfig struct {
	DefaultFolder   string   `toml:"default_folder"`
	PollInterval    Duration `toml:"poll_interval"`
	PollMaxAttempts int      `toml:"poll_max_attempts"`
	DisposableTTL   Duration `toml:"disposable_ttl"`
	SameDateTTL     Duration `toml:"same_date_ttl"`
	Workers         int      `toml:"workers"`
	QueueSize       int      `toml:"queue_size"`
}

// Duration decodes TOML strings like "5s" into a time.Duration.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

func mustDuration(raw string) Duration {
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		panic(err)
	}
	return Duration(parsed)
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Redis: RedisConfig{
			Addr: DefaultRedisAddr,
		},
		OAuth: OAuthConfig{
			AuthURL:             DefaultOAuthAuthURL,
			TokenURL:            DefaultOAuthTokenURL,
			InsertTokenBytes:    DefaultInsertTokenBytes,
			InsertTokenLifetime: mustDuration(DefaultInsertTokenLifetime),
		},
		Disk: DiskConfig{
			BaseURL: DefaultDiskBaseURL,
		},
		Upload: UploadConfig{
			DefaultFolder:   DefaultUploadFolder,
			PollInterval:    mustDuration(DefaultPollInterval),
			PollMaxAttempts: DefaultPollMaxAttempts,
			DisposableTTL:   mustDuration(DefaultDisposableTTL),
			SameDateTTL:     mustDuration(DefaultSameDateTTL),
			Workers:         2,
			QueueSize:       16,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks that every field required to run the bot is present.
// Load alone succeeds on a missing file so tooling (migrations, help)
// still works without credentials.
func Validate(cfg Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
