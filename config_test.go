package accountauth

import (
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults valid",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name: "blank app name invalid",
			mutate: func(c *Config) {
				c.App.Name = "   "
			},
			wantValid: false,
		},
		{
			name: "blank base url invalid",
			mutate: func(c *Config) {
				c.App.BaseURL = ""
			},
			wantValid: false,
		},
		{
			name: "zero session lifetime invalid",
			mutate: func(c *Config) {
				c.Session.Lifetime = 0
			},
			wantValid: false,
		},
		{
			name: "negative audit buffer invalid",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = -1
			},
			wantValid: false,
		},
		{
			name: "short session lifetime valid",
			mutate: func(c *Config) {
				c.Session.Lifetime = time.Minute
			},
			wantValid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("Validate accepted an invalid config")
			}
		})
	}
}

func TestCookiePrefix(t *testing.T) {
	tests := []struct {
		appName string
		want    string
	}{
		{"Example App", "example_app"},
		{"MyShop", "myshop"},
		{"shop-2", "shop_2"},
		{"Ünïcode!", "ncode"},
		{"!!!", "app"},
		{"", "app"},
	}
	for _, tt := range tests {
		if got := cookiePrefix(tt.appName); got != tt.want {
			t.Errorf("cookiePrefix(%q) = %q, want %q", tt.appName, got, tt.want)
		}
	}
}

func TestCookieNamesFollowAppName(t *testing.T) {
	cfg := defaultConfig()
	cfg.App.Name = "Example App"

	if got := cfg.SessionCookieName(); got != "example_app_session" {
		t.Errorf("session cookie = %q", got)
	}
	if got := cfg.bindingCookieName(); got != "example_app_binding" {
		t.Errorf("binding cookie = %q", got)
	}
	if got := cfg.persistentCookieName(); got != "example_app_persistent" {
		t.Errorf("persistent cookie = %q", got)
	}
}

func TestLinkURLs(t *testing.T) {
	cfg := defaultConfig()
	cfg.App.BaseURL = "https://app.example.com/"

	if got := cfg.activationURL("abc123"); got != "https://app.example.com/activate/abc123" {
		t.Errorf("activationURL = %q", got)
	}
	if got := cfg.resetURL("abc123"); got != "https://app.example.com/reset-password/abc123" {
		t.Errorf("resetURL = %q", got)
	}
}
