package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Telephony TelephonyConfig
	Engine    EngineConfig
	Speech    SpeechConfig
	Campaign  CampaignConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for managed-Postgres posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// TelephonyConfig holds the provider REST credentials plus the public
// bases the provider calls back into (status webhooks, media streams).
type TelephonyConfig struct {
	AccountSID       string
	AuthToken        string
	APIBase          string
	PublicHTTPBase   string
	PublicWSBase     string
	CallerID         string
	MachineDetection bool
}

// EngineConfig holds the realtime conversation engine connection.
type EngineConfig struct {
	URL          string
	APIKey       string
	Model        string
	Voice        string
	Instructions string
}

// SpeechConfig holds the sentence-level speech synthesis client.
// When Enabled is false the relay falls back to the engine's own
// audio deltas.
type SpeechConfig struct {
	Enabled bool
	URL     string
	APIKey  string
	Model   string
	Voice   string
	Format  string
}

// CampaignConfig bounds dispatch across the whole process fleet.
// GlobalCap of zero disables the Redis-backed fleet-wide cap; the
// per-campaign semaphore still applies. MaxCallDuration of zero keeps
// the dispatcher's built-in watchdog default.
type CampaignConfig struct {
	GlobalCap       int
	GlobalCapTTL    time.Duration
	MaxCallDuration time.Duration
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate() based on env.
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")

	c.Telephony.AccountSID = strings.TrimSpace(os.Getenv("TELEPHONY_ACCOUNT_SID"))
	c.Telephony.AuthToken = os.Getenv("TELEPHONY_AUTH_TOKEN")
	c.Telephony.APIBase = strings.TrimSpace(os.Getenv("TELEPHONY_API_BASE"))
	c.Telephony.PublicHTTPBase = strings.TrimSpace(os.Getenv("PUBLIC_HTTP_BASE"))
	c.Telephony.PublicWSBase = strings.TrimSpace(os.Getenv("PUBLIC_WS_BASE"))
	c.Telephony.CallerID = strings.TrimSpace(os.Getenv("TELEPHONY_CALLER_ID"))
	c.Telephony.MachineDetection = boolEnv("TELEPHONY_MACHINE_DETECTION", true)

	c.Engine.URL = strings.TrimSpace(os.Getenv("ENGINE_URL"))
	c.Engine.APIKey = os.Getenv("ENGINE_API_KEY")
	c.Engine.Model = strings.TrimSpace(os.Getenv("ENGINE_MODEL"))
	c.Engine.Voice = strings.TrimSpace(os.Getenv("ENGINE_VOICE"))
	c.Engine.Instructions = os.Getenv("ENGINE_INSTRUCTIONS")

	c.Speech.Enabled = boolEnv("SPEECH_ENABLED", true)
	c.Speech.URL = strings.TrimSpace(os.Getenv("SPEECH_URL"))
	c.Speech.APIKey = os.Getenv("SPEECH_API_KEY")
	if c.Speech.APIKey == "" {
		c.Speech.APIKey = c.Engine.APIKey
	}
	c.Speech.Model = strings.TrimSpace(os.Getenv("SPEECH_MODEL"))
	c.Speech.Voice = strings.TrimSpace(os.Getenv("SPEECH_VOICE"))
	c.Speech.Format = strings.TrimSpace(os.Getenv("SPEECH_FORMAT"))

	c.Campaign.GlobalCap = optionalInt("CAMPAIGN_GLOBAL_CAP")
	c.Campaign.GlobalCapTTL = mustDuration("CAMPAIGN_GLOBAL_CAP_TTL")
	c.Campaign.MaxCallDuration = mustDuration("CAMPAIGN_MAX_CALL_DURATION")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}

	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Telephony.AccountSID == "" {
		errs = append(errs, errors.New("TELEPHONY_ACCOUNT_SID is required"))
	}
	if c.Telephony.AuthToken == "" {
		errs = append(errs, errors.New("TELEPHONY_AUTH_TOKEN is required"))
	}
	if c.Telephony.PublicHTTPBase == "" {
		errs = append(errs, errors.New("PUBLIC_HTTP_BASE is required"))
	}
	if c.Telephony.PublicWSBase == "" {
		errs = append(errs, errors.New("PUBLIC_WS_BASE is required"))
	}
	if c.Telephony.CallerID == "" {
		errs = append(errs, errors.New("TELEPHONY_CALLER_ID is required"))
	}

	if c.Engine.APIKey == "" {
		errs = append(errs, errors.New("ENGINE_API_KEY is required"))
	}

	if c.Campaign.GlobalCap < 0 {
		errs = append(errs, fmt.Errorf("CAMPAIGN_GLOBAL_CAP must not be negative, got %d", c.Campaign.GlobalCap))
	}
	if c.Campaign.GlobalCap > 0 && c.Campaign.GlobalCapTTL <= 0 {
		c.Campaign.GlobalCapTTL = time.Minute
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func boolEnv(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
