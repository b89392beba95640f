// Package config loads the host application's configuration file and maps
// it onto the engine and infrastructure settings.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/veldtec/accountauth"
	"github.com/veldtec/accountauth/mail"
)

// Config is the full deployable configuration: engine behavior plus the
// backing-service endpoints the engine itself stays agnostic of.
type Config struct {
	App struct {
		Name    string `mapstructure:"name"`
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"app"`

	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	SMTP struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		From     string `mapstructure:"from"`
	} `mapstructure:"smtp"`

	Password struct {
		MemoryKB       uint32 `mapstructure:"memory_kb"`
		Time           uint32 `mapstructure:"time"`
		Parallelism    uint8  `mapstructure:"parallelism"`
		SaltLength     uint32 `mapstructure:"salt_length"`
		KeyLength      uint32 `mapstructure:"key_length"`
		UpgradeOnLogin bool   `mapstructure:"upgrade_on_login"`
	} `mapstructure:"password"`

	Session struct {
		RedisPrefix string        `mapstructure:"redis_prefix"`
		Lifetime    time.Duration `mapstructure:"lifetime"`
	} `mapstructure:"session"`

	PersistentLogin struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"persistent_login"`

	Google struct {
		Enabled  bool   `mapstructure:"enabled"`
		ClientID string `mapstructure:"client_id"`
	} `mapstructure:"google"`

	Mail struct {
		ActivationSubject string `mapstructure:"activation_subject"`
		ResetSubject      string `mapstructure:"reset_subject"`
	} `mapstructure:"mail"`

	Audit struct {
		Enabled    bool `mapstructure:"enabled"`
		BufferSize int  `mapstructure:"buffer_size"`
		DropIfFull bool `mapstructure:"drop_if_full"`
	} `mapstructure:"audit"`

	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`
}

// Load reads the configuration file at path. Environment variables prefixed
// with ACCOUNTAUTH_ override file values (ACCOUNTAUTH_DATABASE_DSN and so
// on), which keeps credentials out of the file in production.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("accountauth")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "App")
	v.SetDefault("app.base_url", "http://localhost")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("password.memory_kb", 64*1024)
	v.SetDefault("password.time", 3)
	v.SetDefault("password.parallelism", 2)
	v.SetDefault("password.salt_length", 16)
	v.SetDefault("password.key_length", 32)
	v.SetDefault("session.redis_prefix", "sess")
	v.SetDefault("session.lifetime", "24h")
	v.SetDefault("persistent_login.enabled", true)
	v.SetDefault("mail.activation_subject", "Activate your account")
	v.SetDefault("mail.reset_subject", "Reset your password")
	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.buffer_size", 256)
	v.SetDefault("audit.drop_if_full", true)
	v.SetDefault("metrics.enabled", true)
}

// Engine maps the file onto the engine's own Config.
func (c *Config) Engine() accountauth.Config {
	return accountauth.Config{
		App: accountauth.AppConfig{
			Name:    c.App.Name,
			BaseURL: c.App.BaseURL,
		},
		Password: accountauth.PasswordConfig{
			Memory:         c.Password.MemoryKB,
			Time:           c.Password.Time,
			Parallelism:    c.Password.Parallelism,
			SaltLength:     c.Password.SaltLength,
			KeyLength:      c.Password.KeyLength,
			UpgradeOnLogin: c.Password.UpgradeOnLogin,
		},
		Session: accountauth.SessionConfig{
			RedisPrefix: c.Session.RedisPrefix,
			Lifetime:    c.Session.Lifetime,
		},
		PersistentLogin: accountauth.PersistentLoginConfig{
			Enabled: c.PersistentLogin.Enabled,
		},
		Google: accountauth.GoogleConfig{
			Enabled:  c.Google.Enabled,
			ClientID: c.Google.ClientID,
		},
		Mail: accountauth.MailConfig{
			ActivationSubject: c.Mail.ActivationSubject,
			ResetSubject:      c.Mail.ResetSubject,
		},
		Audit: accountauth.AuditConfig{
			Enabled:    c.Audit.Enabled,
			BufferSize: c.Audit.BufferSize,
			DropIfFull: c.Audit.DropIfFull,
		},
		Metrics: accountauth.MetricsConfig{
			Enabled: c.Metrics.Enabled,
		},
	}
}

// SMTPSender builds the mail sender configured by the file.
func (c *Config) SMTPSender() *mail.SMTP {
	return mail.NewSMTP(mail.SMTPConfig{
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
	})
}
