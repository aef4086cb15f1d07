// Package config reads process settings from the environment and .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"ecoforum/pkg/award"
	"ecoforum/pkg/community"
	"ecoforum/pkg/karma"
	"ecoforum/pkg/verification"
)

const (
	StoreMemory   = "memory"
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
)

type Config struct {
	HTTPAddr    string
	LogLevel    string
	SecretKey   string
	RedisAddr   string
	PostgresDSN string
	Store       string
	MongoURI    string
	MongoDB     string
	Community   community.Config
}

// FromEnvironment merges the given .env files (or ./.env when none are given)
// under the process environment and loads the result. A missing default .env
// is not an error.
func FromEnvironment(paths ...string) (*Config, error) {
	fileEnv, err := godotenv.Read(paths...)
	if err != nil {
		if len(paths) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: read env files: %w", err)
		}
		fileEnv = map[string]string{}
	}
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			fileEnv[kv[:i]] = kv[i+1:]
		}
	}
	return Load(fileEnv)
}

func Load(env map[string]string) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := env[key]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := &Config{
		HTTPAddr:    get("HTTP_ADDR", ":8080"),
		LogLevel:    get("LOG_LEVEL", "info"),
		SecretKey:   get("SECRET_KEY", ""),
		RedisAddr:   get("REDIS_ADDR", "redis://localhost:6379"),
		PostgresDSN: get("POSTGRES_DSN", "postgresql://localhost/ecoforum?sslmode=disable"),
		Store:       strings.ToLower(get("FORUM_STORE", StoreMemory)),
		MongoURI:    get("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDB:     get("MONGODB_DB", "ecoforum"),
	}
	switch cfg.Store {
	case StoreMemory, StoreMongo, StorePostgres:
	default:
		return nil, fmt.Errorf("config: FORUM_STORE: unknown store %q", cfg.Store)
	}

	var err error
	c := &cfg.Community
	if c.PageSize, err = intVar(get("PAGE_SIZE", "20"), "PAGE_SIZE"); err != nil {
		return nil, err
	}
	if c.PageSize <= 0 {
		return nil, fmt.Errorf("config: PAGE_SIZE: must be positive, got %d", c.PageSize)
	}
	if c.RequireVerifiedEmail, err = strconv.ParseBool(get("REQUIRE_VERIFIED_EMAIL", "false")); err != nil {
		return nil, fmt.Errorf("config: REQUIRE_VERIFIED_EMAIL: %w", err)
	}

	c.AwardBonuses = award.DefaultBonuses()
	if v := get("AWARD_BONUS", ""); v != "" {
		if c.AwardBonuses, err = award.ParseBonuses(v); err != nil {
			return nil, fmt.Errorf("config: AWARD_BONUS: %w", err)
		}
	}
	c.BadgeTiers = karma.DefaultTiers()
	if v := get("BADGE_TIERS", ""); v != "" {
		if c.BadgeTiers, err = karma.ParseTiers(v); err != nil {
			return nil, fmt.Errorf("config: BADGE_TIERS: %w", err)
		}
	}

	vc := verification.DefaultConfig()
	if vc.Reviews, err = intVar(get("VERIFICATION_REVIEWS", strconv.Itoa(vc.Reviews)), "VERIFICATION_REVIEWS"); err != nil {
		return nil, err
	}
	if vc.Reviews <= 0 {
		return nil, fmt.Errorf("config: VERIFICATION_REVIEWS: must be positive, got %d", vc.Reviews)
	}
	if v := get("VERIFICATION_PASS_MARK", ""); v != "" {
		if vc.PassMark, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("config: VERIFICATION_PASS_MARK: %w", err)
		}
		if vc.PassMark <= 0 || vc.PassMark > 100 {
			return nil, fmt.Errorf("config: VERIFICATION_PASS_MARK: must be in (0, 100], got %v", vc.PassMark)
		}
	}
	if v := get("VERIFICATION_BONUS", ""); v != "" {
		if vc.Bonus, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("config: VERIFICATION_BONUS: %w", err)
		}
	}
	c.Verification = vc

	return cfg, nil
}

func intVar(v, key string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}
