package accountauth

import (
	"errors"
	"strings"
	"time"
)

// Config defines a public type used by accountauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	App             AppConfig
	Password        PasswordConfig
	Session         SessionConfig
	PersistentLogin PersistentLoginConfig
	Google          GoogleConfig
	Mail            MailConfig
	Audit           AuditConfig
	Metrics         MetricsConfig
}

/*
====================================
APP CONFIG
====================================
*/

// AppConfig names the application and anchors the links sent by email.
// Name also seeds the cookie-name prefix, so two apps sharing a domain do
// not clobber each other's cookies.
type AppConfig struct {
	Name    string
	BaseURL string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by accountauth APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by accountauth APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	RedisPrefix string
	Lifetime    time.Duration
}

/*
====================================
PERSISTENT LOGIN CONFIG
====================================
*/

// PersistentLoginConfig defines a public type used by accountauth APIs.
//
// PersistentLoginConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PersistentLoginConfig struct {
	Enabled bool
}

/*
====================================
GOOGLE CONFIG
====================================
*/

// GoogleConfig defines a public type used by accountauth APIs.
//
// GoogleConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type GoogleConfig struct {
	Enabled  bool
	ClientID string
}

/*
====================================
MAIL CONFIG
====================================
*/

// MailConfig defines a public type used by accountauth APIs.
//
// MailConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MailConfig struct {
	ActivationSubject string
	ResetSubject      string
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig defines a public type used by accountauth APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by accountauth APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		App: AppConfig{
			Name:    "App",
			BaseURL: "http://localhost",
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Session: SessionConfig{
			RedisPrefix: "sess",
			Lifetime:    24 * time.Hour,
		},
		PersistentLogin: PersistentLoginConfig{
			Enabled: true,
		},
		Mail: MailConfig{
			ActivationSubject: "Activate your account",
			ResetSubject:      "Reset your password",
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	// All fields are value types today; the clone guards against callers
	// mutating the struct they passed to the builder.
	return cfg
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
func (c Config) Validate() error {
	if strings.TrimSpace(c.App.Name) == "" {
		return errors.New("App.Name must not be empty")
	}
	if strings.TrimSpace(c.App.BaseURL) == "" {
		return errors.New("App.BaseURL must not be empty")
	}
	if c.Session.Lifetime <= 0 {
		return errors.New("Session.Lifetime must be positive")
	}
	if c.Audit.Enabled && c.Audit.BufferSize < 0 {
		return errors.New("Audit.BufferSize must not be negative")
	}
	return nil
}

// cookiePrefix reduces the app name to a lowercase [a-z0-9_] prefix so
// cookie names stay stable across renames that only change casing or
// punctuation.
func cookiePrefix(appName string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(appName) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "app"
	}
	return b.String()
}

// SessionCookieName returns the cookie carrying the session id. Hosts pass
// it to the session store they build per request; the engine never reads
// this cookie itself.
func (c Config) SessionCookieName() string {
	return cookiePrefix(c.App.Name) + "_session"
}

func (c Config) bindingCookieName() string {
	return cookiePrefix(c.App.Name) + "_binding"
}

func (c Config) persistentCookieName() string {
	return cookiePrefix(c.App.Name) + "_persistent"
}

func (c Config) activationURL(code string) string {
	return strings.TrimRight(c.App.BaseURL, "/") + "/activate/" + code
}

func (c Config) resetURL(code string) string {
	return strings.TrimRight(c.App.BaseURL, "/") + "/reset-password/" + code
}
