package config

import "log"

func MustNonEmpty(value, envName string) {
	if value == "" {
		log.Fatalf("missing required env %s", envName)
	}
}

func MustNonEmptyBytes(value []byte, envName string) {
	if len(value) == 0 {
		log.Fatalf("missing required env %s", envName)
	}
}

// MustLoad is Load plus the checks for everything the shop cannot start without.
func MustLoad(envFiles ...string) Config {
	cfg := Load(envFiles...)

	MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	MustNonEmptyBytes(cfg.JWTAccessSecret, "JWT_SECRET")
	MustNonEmpty(cfg.Gateway.KeyID, "GATEWAY_KEY_ID")
	MustNonEmptyBytes(cfg.Gateway.KeySecret, "GATEWAY_KEY_SECRET")
	MustNonEmptyBytes(cfg.Gateway.WebhookSecret, "GATEWAY_WEBHOOK_SECRET")

	return cfg
}
