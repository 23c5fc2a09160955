package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.Addr())
	assert.Equal(t, "*", cfg.Server.FrontendURL)
	assert.Equal(t, 15*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.False(t, cfg.Redis.Enabled())
	assert.Equal(t, 60, cfg.Redis.WSRateLimit)
	assert.Zero(t, cfg.Redis.WebhookRateLimit)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "message.any", cfg.Gateway.MessageEvent)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv(KeyPort, "8081")
	t.Setenv(KeyHost, "127.0.0.1")
	t.Setenv(KeyGatewayBaseURL, "http://waha:3000")
	t.Setenv(KeyGatewayAPIKey, "secret")
	t.Setenv(KeyGatewayTimeout, "5s")
	t.Setenv(KeyRedisURL, "redis://localhost:6379/0")
	t.Setenv(KeyGatewayMessageEvent, "message")

	cfg, err := LoadConfig(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8081", cfg.Server.Addr())
	assert.Equal(t, GatewayConfig{BaseURL: "http://waha:3000", APIKey: "secret", Timeout: 5 * time.Second, MessageEvent: "message"}, cfg.Gateway)
	assert.True(t, cfg.Redis.Enabled())
}

func TestLoadConfig_ExplicitValuesWin(t *testing.T) {
	t.Setenv(KeyPort, "8081")

	v := viper.New()
	v.Set(KeyPort, "9000")

	cfg, err := LoadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   any
		wantErr string
	}{
		{name: "empty gateway url", key: KeyGatewayBaseURL, value: "", wantErr: "GATEWAY_BASE_URL must not be empty"},
		{name: "zero timeout", key: KeyGatewayTimeout, value: "0s", wantErr: "GATEWAY_TIMEOUT must be positive"},
		{name: "empty port", key: KeyPort, value: "", wantErr: "PORT must not be empty"},
		{name: "negative rate limit", key: KeyRateLimitWS, value: -1, wantErr: "rate limits must not be negative"},
		{name: "unknown message event", key: KeyGatewayMessageEvent, value: "message.ack", wantErr: "GATEWAY_MESSAGE_EVENT must be message or message.any"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.value)

			_, err := LoadConfig(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("GATEWAY_API_KEY=from-file\n"), 0o600))
	t.Setenv(KeyGatewayAPIKey, "")
	os.Unsetenv(KeyGatewayAPIKey)

	LoadEnvFile(path)
	LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))

	cfg, err := LoadConfig(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Gateway.APIKey)
}
