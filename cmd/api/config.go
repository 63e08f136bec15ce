package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tessera.dev/internal/auth"
)

type config struct {
	HTTPAddr      string
	PostgresDSN   string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	RotationScope auth.RotationScope
	PasswordMin   int
	RateBurst     int
	RatePerSec    int
}

func loadConfig() (config, error) {
	cfg := config{
		HTTPAddr:    envString("TESSERA_HTTP_ADDR", ":8080"),
		PostgresDSN: strings.TrimSpace(os.Getenv("TESSERA_PG_DSN")),
	}

	var err error
	if cfg.AccessTTL, err = envSeconds("TESSERA_ACCESS_TTL_SECONDS", 15*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.RefreshTTL, err = envSeconds("TESSERA_REFRESH_TTL_SECONDS", 30*24*time.Hour); err != nil {
		return cfg, err
	}
	if cfg.AccessTTL >= cfg.RefreshTTL {
		return cfg, fmt.Errorf("TESSERA_ACCESS_TTL_SECONDS (%s) must be shorter than TESSERA_REFRESH_TTL_SECONDS (%s)", cfg.AccessTTL, cfg.RefreshTTL)
	}

	scope := envString("TESSERA_ROTATION_SCOPE", string(auth.RotationScopeAccount))
	if cfg.RotationScope, err = auth.ParseRotationScope(scope); err != nil {
		return cfg, fmt.Errorf("TESSERA_ROTATION_SCOPE: %w", err)
	}

	if cfg.PasswordMin, err = envPositiveInt("TESSERA_MIN_PASSWORD_LENGTH", 8); err != nil {
		return cfg, err
	}
	if cfg.RateBurst, err = envPositiveInt("TESSERA_RATE_BURST", 60); err != nil {
		return cfg, err
	}
	if cfg.RatePerSec, err = envPositiveInt("TESSERA_RATE_PER_SEC", 1); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func envString(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

func envPositiveInt(name string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, raw)
	}
	return v, nil
}

func envSeconds(name string, def time.Duration) (time.Duration, error) {
	v, err := envPositiveInt(name, int(def/time.Second))
	if err != nil {
		return 0, err
	}
	return time.Duration(v) * time.Second, nil
}
