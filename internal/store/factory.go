package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/gsarma/botkit/internal/crypto"
)

// Type names a store backend.
type Type string

const (
	TypeFile     Type = "file"
	TypeMemory   Type = "memory"
	TypeRedis    Type = "redis"
	TypePostgres Type = "postgres"
)

// ParseType maps a settings string to a Type. Unknown names are returned as is
// and rejected by New.
func ParseType(s string) Type {
	return Type(strings.ToLower(strings.TrimSpace(s)))
}

func (t Type) String() string { return string(t) }

// Config selects and configures a backend.
type Config struct {
	Type        Type
	Redis       RedisOptions
	DatabaseURL string
	// FilePath is the file store's location; empty means DefaultFilePath.
	FilePath string
	// Sealer encrypts token values at rest; nil stores them in the clear.
	// The memory store ignores it.
	Sealer *crypto.Sealer
}

// New creates the store described by cfg. An empty Type selects the file
// store.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case TypeFile, "":
		path := cfg.FilePath
		if path == "" {
			var err error
			if path, err = DefaultFilePath(); err != nil {
				return nil, err
			}
		}
		s, err := NewFileStore(path, cfg.Sealer)
		if err != nil {
			return nil, err
		}
		return s, nil
	case TypeMemory:
		return NewMemoryStore(), nil
	case TypeRedis:
		s, err := NewRedisStore(ctx, cfg.Redis, cfg.Sealer)
		if err != nil {
			return nil, err
		}
		return s, nil
	case TypePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
		s, err := NewPostgresStore(ctx, cfg.DatabaseURL, cfg.Sealer)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}
