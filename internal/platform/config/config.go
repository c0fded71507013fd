// Package config loads process configuration from the environment so main
// stays lean. A .env file is honored via the godotenv autoload import in
// cmd/server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"detour/internal/region"
)

// RegistryBackend selects where client records are persisted.
type RegistryBackend string

const (
	BackendMemory RegistryBackend = "memory"
	BackendSqlite RegistryBackend = "sqlite"
	BackendRedis  RegistryBackend = "redis"
)

// Config is everything the server needs at startup.
type Config struct {
	Addr string

	// ArtifactDir is where synthesized documents are written; PublicBaseURL
	// is the URL prefix clients fetch them from.
	ArtifactDir   string
	PublicBaseURL string

	Registry   RegistryBackend
	SqlitePath string
	Redis      RedisConfig

	// AdminUsername and AdminPasswordHash gate the login endpoint. The hash
	// is a bcrypt hash; plain passwords are never configured.
	AdminUsername     string
	AdminPasswordHash string
	JWTSigningKey     string
	TokenTTL          time.Duration

	Primary   region.Descriptor
	Secondary region.Descriptor
}

// RedisConfig holds connection settings for the redis registry backend.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds the Config from environment variables with development
// defaults. Region descriptors are required; everything else falls back.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:              envOr("DETOUR_ADDR", ":8080"),
		ArtifactDir:       envOr("ARTIFACT_DIR", "./configs"),
		PublicBaseURL:     envOr("PUBLIC_BASE_URL", "http://localhost:8080/api/configs"),
		Registry:          RegistryBackend(envOr("REGISTRY_BACKEND", string(BackendMemory))),
		SqlitePath:        envOr("SQLITE_PATH", "./detour.db"),
		AdminUsername:     envOr("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		JWTSigningKey:     envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		TokenTTL:          envDurationOr("TOKEN_TTL", 24*time.Hour),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envIntOr("REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDurationOr("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}

	switch cfg.Registry {
	case BackendMemory, BackendSqlite, BackendRedis:
	default:
		return Config{}, fmt.Errorf("unknown REGISTRY_BACKEND %q", cfg.Registry)
	}
	if cfg.Registry == BackendRedis && cfg.Redis.URL == "" {
		return Config{}, fmt.Errorf("REGISTRY_BACKEND=redis requires REDIS_URL")
	}

	primary, err := regionFromEnv("PRIMARY", region.RolePrimary)
	if err != nil {
		return Config{}, err
	}
	secondary, err := regionFromEnv("SECONDARY", region.RoleSecondary)
	if err != nil {
		return Config{}, err
	}
	cfg.Primary = primary
	cfg.Secondary = secondary
	return cfg, nil
}

// regionFromEnv loads one region descriptor from <prefix>_* variables.
func regionFromEnv(prefix string, role region.Role) (region.Descriptor, error) {
	desc := region.Descriptor{
		ID:                 envOr(prefix+"_REGION_ID", defaultRegionID(role)),
		Role:               role,
		BaseURL:            os.Getenv(prefix + "_PANEL_URL"),
		Username:           os.Getenv(prefix + "_PANEL_USERNAME"),
		Password:           os.Getenv(prefix + "_PANEL_PASSWORD"),
		InboundID:          envIntOr(prefix+"_INBOUND_ID", 1),
		InsecureSkipVerify: envOr(prefix+"_TLS_SKIP_VERIFY", "true") == "true",
		Timeout:            envDurationOr(prefix+"_TIMEOUT", region.DefaultTimeout),
		Egress: region.Egress{
			Server:      os.Getenv(prefix + "_SERVER"),
			Port:        envIntOr(prefix+"_PORT", 443),
			PublicKey:   os.Getenv(prefix + "_PUBLIC_KEY"),
			ShortID:     os.Getenv(prefix + "_SHORT_ID"),
			ServerName:  os.Getenv(prefix + "_SERVER_NAME"),
			Fingerprint: envOr(prefix+"_FINGERPRINT", "chrome"),
			OutboundTag: envOr(prefix+"_OUTBOUND_TAG", defaultOutboundTag(role)),
		},
	}
	if desc.BaseURL == "" {
		return region.Descriptor{}, fmt.Errorf("%s_PANEL_URL is required", prefix)
	}
	if desc.Egress.Server == "" {
		return region.Descriptor{}, fmt.Errorf("%s_SERVER is required", prefix)
	}
	return desc, nil
}

func defaultRegionID(role region.Role) string {
	if role == region.RolePrimary {
		return "primary"
	}
	return "secondary"
}

func defaultOutboundTag(role region.Role) string {
	if role == region.RolePrimary {
		return "proxy-primary"
	}
	return "proxy-secondary"
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
