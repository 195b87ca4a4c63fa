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
// All values must come from env (or env-file loaded in main).
// No business logic should depend on raw environment variables.
type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Twilio   TwilioConfig
	OpenAI   OpenAIConfig
	TTS      TTSConfig
	STT      STTConfig
	SMTP     SMTPConfig
	Session  SessionConfig
	Business BusinessConfig
}

type AppConfig struct {
	Env  string
	Port int

	// PublicBaseURL is the externally reachable base URL used to build
	// webhook callback URLs handed to the telephony provider.
	PublicBaseURL string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode accepts: disable, require, verify-ca, verify-full
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

type TwilioConfig struct {
	AccountSID    string
	AuthToken     string
	WebhookSecret string
}

type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

type TTSConfig struct {
	// BaseURL of the synthesis service; empty disables synthesis and the
	// markup layer falls back to the provider's native voice.
	BaseURL string
	APIKey  string
	Voice   string
	Timeout time.Duration
}

type STTConfig struct {
	// BaseURL of the transcription service; empty disables recording
	// transcription (live turns arrive pre-transcribed on the webhook).
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type SMTPConfig struct {
	// All optional; notifications are skipped when Host is empty.
	Host     string
	Port     int
	Username string
	Password string
	From     string
	NotifyTo string
}

// SessionConfig tunes the per-call state machine.
type SessionConfig struct {
	// ActiveTTL is how long an active call record lives in the ephemeral
	// store between webhook events.
	ActiveTTL time.Duration

	// EndedTTL is the short retention window for ended calls so the record
	// stays inspectable before it expires.
	EndedTTL time.Duration

	// StalenessCeiling is the maximum age of a call record before it is
	// treated as expired regardless of store TTL.
	StalenessCeiling time.Duration

	// MaxRetries is the per-call consecutive error budget.
	MaxRetries int

	// ConfidenceThreshold is the minimum speech-recognition confidence
	// accepted before a turn counts as a soft error.
	ConfidenceThreshold float64

	// MaxConcurrentCalls caps active calls per tenant (0 disables the cap).
	MaxConcurrentCalls int
}

// BusinessConfig is the answering profile for the deployment's tenant.
type BusinessConfig struct {
	TenantID string
	Name     string
	Type     string
	Services string
	Hours    string
	Location string
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
	c.App.PublicBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("APP_PUBLIC_BASE_URL")), "/")

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
	c.Auth.AccessTokenTTL = optDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = optDuration("JWT_REFRESH_TTL")

	c.Twilio.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Twilio.WebhookSecret = os.Getenv("TWILIO_WEBHOOK_SECRET")

	c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	c.OpenAI.Model = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	c.OpenAI.MaxTokens = optInt("OPENAI_MAX_TOKENS")
	c.OpenAI.Temperature = optFloat("OPENAI_TEMPERATURE")
	c.OpenAI.Timeout = optDuration("OPENAI_TIMEOUT")

	c.TTS.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("TTS_BASE_URL")), "/")
	c.TTS.APIKey = os.Getenv("TTS_API_KEY")
	c.TTS.Voice = strings.TrimSpace(os.Getenv("TTS_VOICE"))
	c.TTS.Timeout = optDuration("TTS_TIMEOUT")

	c.STT.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("STT_BASE_URL")), "/")
	c.STT.APIKey = os.Getenv("STT_API_KEY")
	c.STT.Timeout = optDuration("STT_TIMEOUT")

	c.SMTP.Host = strings.TrimSpace(os.Getenv("SMTP_HOST"))
	c.SMTP.Port = optInt("SMTP_PORT")
	c.SMTP.Username = strings.TrimSpace(os.Getenv("SMTP_USERNAME"))
	c.SMTP.Password = os.Getenv("SMTP_PASSWORD")
	c.SMTP.From = strings.TrimSpace(os.Getenv("SMTP_FROM"))
	c.SMTP.NotifyTo = strings.TrimSpace(os.Getenv("SMTP_NOTIFY_TO"))

	c.Session.ActiveTTL = optDuration("SESSION_ACTIVE_TTL")
	c.Session.EndedTTL = optDuration("SESSION_ENDED_TTL")
	c.Session.StalenessCeiling = optDuration("SESSION_STALENESS_CEILING")
	c.Session.MaxRetries = optInt("SESSION_MAX_RETRIES")
	c.Session.ConfidenceThreshold = optFloat("SESSION_CONFIDENCE_THRESHOLD")
	c.Session.MaxConcurrentCalls = optInt("SESSION_MAX_CONCURRENT_CALLS")

	c.Business.TenantID = strings.TrimSpace(os.Getenv("BUSINESS_TENANT_ID"))
	c.Business.Name = strings.TrimSpace(os.Getenv("BUSINESS_NAME"))
	c.Business.Type = strings.TrimSpace(os.Getenv("BUSINESS_TYPE"))
	c.Business.Services = strings.TrimSpace(os.Getenv("BUSINESS_SERVICES"))
	c.Business.Hours = strings.TrimSpace(os.Getenv("BUSINESS_HOURS"))
	c.Business.Location = strings.TrimSpace(os.Getenv("BUSINESS_LOCATION"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	c.applyDefaults()
	return c, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.PublicBaseURL == "" {
		errs = append(errs, errors.New("APP_PUBLIC_BASE_URL is required (webhook callbacks are built from it)"))
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
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}
	if c.DB.SSLMode == "" && c.IsProduction() {
		errs = append(errs, errors.New("DB_SSLMODE is required in production"))
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
		if c.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required in production"))
		}
	}

	if c.Session.ConfidenceThreshold < 0 || c.Session.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("SESSION_CONFIDENCE_THRESHOLD must be in [0,1], got %v", c.Session.ConfidenceThreshold))
	}

	if c.Business.TenantID == "" {
		errs = append(errs, errors.New("BUSINESS_TENANT_ID is required"))
	}
	if c.Business.Name == "" {
		errs = append(errs, errors.New("BUSINESS_NAME is required"))
	}

	return joinErrors(errs)
}

// applyDefaults fills tuning knobs that were left unset.
// Validate() runs first so defaults never mask a misconfiguration.
func (c *Config) applyDefaults() {
	if c.DB.SSLMode == "" {
		c.DB.SSLMode = "disable"
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.OpenAI.MaxTokens <= 0 {
		// Turns are spoken aloud; keep completions short.
		c.OpenAI.MaxTokens = 120
	}
	if c.OpenAI.Temperature <= 0 {
		c.OpenAI.Temperature = 0.7
	}
	if c.OpenAI.Timeout <= 0 {
		c.OpenAI.Timeout = 10 * time.Second
	}
	if c.TTS.Timeout <= 0 {
		c.TTS.Timeout = 5 * time.Second
	}
	if c.Session.ActiveTTL <= 0 {
		c.Session.ActiveTTL = time.Hour
	}
	if c.Session.EndedTTL <= 0 {
		c.Session.EndedTTL = time.Minute
	}
	if c.Session.StalenessCeiling <= 0 {
		c.Session.StalenessCeiling = time.Hour
	}
	if c.Session.MaxRetries <= 0 {
		c.Session.MaxRetries = 3
	}
	if c.Session.ConfidenceThreshold == 0 {
		c.Session.ConfidenceThreshold = 0.5
	}
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

// SpeechCallbackURL is the speech-result callback handed to the provider
// inside every gather directive.
func (c Config) SpeechCallbackURL() string {
	return c.App.PublicBaseURL + "/webhooks/twilio/voice/speech"
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

func optInt(key string) int {
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

func optFloat(key string) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

func optDuration(key string) time.Duration {
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
