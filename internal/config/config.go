package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	NATSURL     string
	HTTPAddr    string
	MetricsAddr string // empty disables the metrics server

	DisplayThrottle time.Duration // min interval between accepted UI/push updates
	PersistThrottle time.Duration // min interval between durable position writes
	FirstFixTimeout time.Duration // acquisition timeout for the first sample

	ShareTokenTTL time.Duration // 0 means tokens live until their trip is gone

	DirectionsBaseURL string
	DirectionsKey     string // empty key forces the straight-line fallback
	DirectionsTimeout time.Duration

	JWTSecret string

	Location        *time.Location
	LogLiveSubjects bool
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	// Database URL: prefer DATABASE_URL / PG_DSN, else build from PG* vars
	dsn := firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if dsn == "" {
		host := getenvDefault("PGHOST", "127.0.0.1")
		port := getenvDefault("PGPORT", "5432")
		user := getenvDefault("PGUSER", "postgres")
		pass := os.Getenv("PGPASSWORD")
		db := os.Getenv("PGDATABASE")
		if db == "" {
			return nil, errors.New("PGDATABASE or DATABASE_URL must be set")
		}
		sslmode := getenvDefault("PGSSLMODE", "disable")
		if pass != "" {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
		} else {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
		}
	} else {
		cfg.DatabaseURL = dsn
	}

	cfg.NATSURL = getenvDefault("NATS_URL", "nats://127.0.0.1:4222")
	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", ":8080")
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	var err error
	cfg.DisplayThrottle, err = secondsEnv("LIVE_DISPLAY_THROTTLE_SEC", 120)
	if err != nil {
		return nil, err
	}
	cfg.PersistThrottle, err = secondsEnv("LIVE_PERSIST_THROTTLE_SEC", 120)
	if err != nil {
		return nil, err
	}
	cfg.FirstFixTimeout, err = secondsEnv("LIVE_FIRST_FIX_TIMEOUT_SEC", 20)
	if err != nil {
		return nil, err
	}

	// Share token TTL in hours; 0 keeps tokens valid for the trip's lifetime.
	if v := os.Getenv("SHARE_TOKEN_TTL_HOURS"); v != "" {
		h, err := strconv.Atoi(v)
		if err != nil || h < 0 {
			return nil, fmt.Errorf("invalid SHARE_TOKEN_TTL_HOURS: %q", v)
		}
		cfg.ShareTokenTTL = time.Duration(h) * time.Hour
	}

	cfg.DirectionsBaseURL = getenvDefault("DIRECTIONS_BASE_URL", "https://maps.googleapis.com/maps/api")
	cfg.DirectionsKey = os.Getenv("DIRECTIONS_API_KEY")
	cfg.DirectionsTimeout, err = secondsEnv("DIRECTIONS_TIMEOUT_SEC", 10)
	if err != nil {
		return nil, err
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set")
	}

	if v := os.Getenv("LOG_LIVE_SUBJECTS"); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "t", "yes", "y", "on":
			cfg.LogLiveSubjects = true
		}
	}

	tzName := os.Getenv("TZ")
	if tzName == "" {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(tzName)
		if err != nil {
			return nil, fmt.Errorf("invalid TZ: %v", err)
		}
		cfg.Location = loc
	}

	return cfg, nil
}

func secondsEnv(key string, def int) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(def) * time.Second, nil
	}
	sec, err := strconv.Atoi(v)
	if err != nil || sec < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return time.Duration(sec) * time.Second, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
