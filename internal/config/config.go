package config

import (
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Keys understood by LoadConfig. Each one is read from the environment and may be
// overridden by a command-line flag bound to the same key.
const (
	KeyPort                = "PORT"
	KeyHost                = "HOST"
	KeyFrontendURL         = "FRONTEND_URL"
	KeyGatewayBaseURL      = "GATEWAY_BASE_URL"
	KeyGatewayAPIKey       = "GATEWAY_API_KEY"
	KeyGatewayTimeout      = "GATEWAY_TIMEOUT"
	KeyRedisURL            = "REDIS_URL"
	KeyLogLevel            = "LOG_LEVEL"
	KeyServerReadTimeout   = "SERVER_READ_TIMEOUT"
	KeyServerWriteTimeout  = "SERVER_WRITE_TIMEOUT"
	KeyServerIdleTimeout   = "SERVER_IDLE_TIMEOUT"
	KeyShutdownTimeout     = "SHUTDOWN_TIMEOUT"
	KeyRateLimitWS         = "RATE_LIMIT_WS"
	KeyRateLimitWebhook    = "RATE_LIMIT_WEBHOOK"
	KeyGatewayMessageEvent = "GATEWAY_MESSAGE_EVENT"
)

type Config struct {
	Server  ServerConfig
	Gateway GatewayConfig
	Redis   RedisConfig
	Log     LogConfig
}

type ServerConfig struct {
	Host            string
	Port            string
	FrontendURL     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// GatewayConfig describes the provider. MessageEvent is the one webhook message
// event relayed to rooms, "message" or "message.any".
type GatewayConfig struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	MessageEvent string
}

// RedisConfig enables the cross-instance relay and rate limiting when URL is set.
// Limits are requests per minute per client IP; zero disables a limit.
type RedisConfig struct {
	URL              string
	WSRateLimit      int
	WebhookRateLimit int
}

type LogConfig struct {
	Level string
}

// Addr is the listen address of the HTTP server.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyPort, "3000")
	v.SetDefault(KeyHost, "")
	v.SetDefault(KeyFrontendURL, "*")
	v.SetDefault(KeyGatewayBaseURL, "http://localhost:3001")
	v.SetDefault(KeyGatewayAPIKey, "")
	v.SetDefault(KeyGatewayTimeout, 15*time.Second)
	v.SetDefault(KeyRedisURL, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyServerReadTimeout, 30*time.Second)
	v.SetDefault(KeyServerWriteTimeout, 30*time.Second)
	v.SetDefault(KeyServerIdleTimeout, 120*time.Second)
	v.SetDefault(KeyShutdownTimeout, 30*time.Second)
	v.SetDefault(KeyRateLimitWS, 60)
	v.SetDefault(KeyRateLimitWebhook, 0)
	v.SetDefault(KeyGatewayMessageEvent, "message.any")
}

// LoadEnvFile loads variables from the given .env files into the process
// environment. A missing file is not an error.
func LoadEnvFile(paths ...string) {
	if err := godotenv.Load(paths...); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}
}

// LoadConfig builds a Config from v, which should already carry any bound flags.
func LoadConfig(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host:            v.GetString(KeyHost),
			Port:            v.GetString(KeyPort),
			FrontendURL:     v.GetString(KeyFrontendURL),
			ReadTimeout:     v.GetDuration(KeyServerReadTimeout),
			WriteTimeout:    v.GetDuration(KeyServerWriteTimeout),
			IdleTimeout:     v.GetDuration(KeyServerIdleTimeout),
			ShutdownTimeout: v.GetDuration(KeyShutdownTimeout),
		},
		Gateway: GatewayConfig{
			BaseURL:      v.GetString(KeyGatewayBaseURL),
			APIKey:       v.GetString(KeyGatewayAPIKey),
			Timeout:      v.GetDuration(KeyGatewayTimeout),
			MessageEvent: v.GetString(KeyGatewayMessageEvent),
		},
		Redis: RedisConfig{
			URL:              v.GetString(KeyRedisURL),
			WSRateLimit:      v.GetInt(KeyRateLimitWS),
			WebhookRateLimit: v.GetInt(KeyRateLimitWebhook),
		},
		Log: LogConfig{
			Level: v.GetString(KeyLogLevel),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port == "" {
		return errors.Errorf("%s must not be empty", KeyPort)
	}
	if c.Gateway.BaseURL == "" {
		return errors.Errorf("%s must not be empty", KeyGatewayBaseURL)
	}
	if c.Redis.WSRateLimit < 0 || c.Redis.WebhookRateLimit < 0 {
		return errors.Errorf("rate limits must not be negative")
	}
	if c.Gateway.MessageEvent != "message" && c.Gateway.MessageEvent != "message.any" {
		return errors.Errorf("%s must be message or message.any, got %q", KeyGatewayMessageEvent, c.Gateway.MessageEvent)
	}
	if c.Gateway.Timeout <= 0 {
		return errors.Errorf("%s must be positive, got %s", KeyGatewayTimeout, c.Gateway.Timeout)
	}
	return nil
}
