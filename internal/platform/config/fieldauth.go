package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// FieldAuthConfig configures QR-token signing and the submission guardrails.
//
// The HMAC secret is deployment-provided and shared with the back office that
// prints the QR codes; nothing works without it.
type FieldAuthConfig struct {
	QRSecret string

	QRTokenTTL    time.Duration
	FieldTokenTTL time.Duration

	SubmitRateLimit  int
	SubmitRateWindow time.Duration
}

func LoadFieldAuthConfigFromEnv() (FieldAuthConfig, error) {
	secret := os.Getenv("QR_HMAC_SECRET")
	if secret == "" {
		return FieldAuthConfig{}, fmt.Errorf("missing required env var: QR_HMAC_SECRET")
	}

	// Defaults match what field devices are provisioned to expect.
	cfg := FieldAuthConfig{
		QRSecret:         secret,
		QRTokenTTL:       24 * time.Hour,
		FieldTokenTTL:    30 * time.Minute,
		SubmitRateLimit:  10,
		SubmitRateWindow: time.Minute,
	}

	if v := os.Getenv("QR_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return FieldAuthConfig{}, fmt.Errorf("QR_TOKEN_TTL must be a duration (e.g. 24h): %w", err)
		}
		cfg.QRTokenTTL = d
	}
	if v := os.Getenv("FIELD_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return FieldAuthConfig{}, fmt.Errorf("FIELD_TOKEN_TTL must be a duration (e.g. 30m): %w", err)
		}
		cfg.FieldTokenTTL = d
	}
	if v := os.Getenv("SUBMIT_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return FieldAuthConfig{}, fmt.Errorf("SUBMIT_RATE_LIMIT must be a positive integer")
		}
		cfg.SubmitRateLimit = n
	}
	if v := os.Getenv("SUBMIT_RATE_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return FieldAuthConfig{}, fmt.Errorf("SUBMIT_RATE_WINDOW must be a duration (e.g. 60s): %w", err)
		}
		cfg.SubmitRateWindow = d
	}

	return cfg, nil
}
