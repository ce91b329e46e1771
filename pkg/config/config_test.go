package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty", in: "", want: nil},
		{name: "single", in: "kafka:9092", want: []string{"kafka:9092"}},
		{name: "trims and skips blanks", in: " a:1 , ,b:2,", want: []string{"a:1", "b:2"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CSV(tt.in))
		})
	}
}

func TestLoad_DefaultsAndOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("GATEWAY_TIMEOUT", "250ms")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("GATEWAY_KEY_SECRET", "secret")
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("CURRENCY", "")

	cfg := Load("testdata/does-not-exist.env")

	require.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, 250*time.Millisecond, cfg.Gateway.Timeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []byte("secret"), cfg.Gateway.KeySecret)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, "INR", cfg.Gateway.Currency)
	assert.Equal(t, "order-audit", cfg.AuditIndex)
	assert.Equal(t, 72*time.Hour, cfg.WebhookDedupTTL)
}

func TestEnvDurationDefault_RejectsNonPositive(t *testing.T) {
	t.Setenv("SOME_TIMEOUT", "-5s")
	assert.Equal(t, time.Second, EnvDurationDefault("SOME_TIMEOUT", time.Second))
}

func TestEnvBoolDefault(t *testing.T) {
	t.Setenv("COOKIE_SECURE", "true")
	assert.True(t, EnvBoolDefault("COOKIE_SECURE", false))

	t.Setenv("COOKIE_SECURE", "maybe")
	assert.False(t, EnvBoolDefault("COOKIE_SECURE", false))
}
