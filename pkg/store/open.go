package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/agentstation/tally/pkg/errors"
)

// Config selects and configures a backend.
type Config struct {
	Driver Driver
	Dir    string
	Redis  RedisConfig
}

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Open creates the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config, logger *zerolog.Logger) (Backend, error) {
	switch cfg.Driver {
	case DriverFile, "":
		return NewFileBackend(cfg.Dir, WithFileLogger(logger))
	case DriverRedis:
		if cfg.Redis.Addr == "" {
			return nil, errors.NewConfigError("store", "redis.addr is required for the redis driver", nil)
		}
		opts := []RedisOption{WithRedisLogger(logger)}
		if cfg.Redis.Prefix != "" {
			opts = append(opts, WithPrefix(cfg.Redis.Prefix))
		}
		return DialRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, opts...)
	case DriverMemory:
		return NewMemoryBackend(), nil
	default:
		return nil, errors.NewConfigError("store", fmt.Sprintf("unknown driver %q", cfg.Driver), nil)
	}
}
