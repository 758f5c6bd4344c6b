package config

import "testing"

func validConfig() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "callpilot"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
		Telephony: TelephonyConfig{
			AccountSID:     "AC123",
			AuthToken:      "tok",
			PublicHTTPBase: "https://calls.example.com",
			PublicWSBase:   "wss://calls.example.com",
			CallerID:       "+15550001111",
		},
		Engine: EngineConfig{APIKey: "sk-test"},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validConfig()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "callpilot"
	c.Auth.JWTAudience = "api"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_RequiresTelephonyCredentials(t *testing.T) {
	c := validConfig()
	c.Telephony.AuthToken = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing telephony auth token")
	}
}

func TestValidate_GlobalCapTTLDefaulted(t *testing.T) {
	c := validConfig()
	c.Campaign.GlobalCap = 25
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Campaign.GlobalCapTTL <= 0 {
		t.Fatalf("expected default cap ttl")
	}
}
