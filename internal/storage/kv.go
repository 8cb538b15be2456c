// Package storage keeps small client-side values (session token, role) in a
// key-value store backed by memory, SQLite, PostgreSQL or Redis.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("key not found")

type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open picks a store implementation from the DSN scheme:
//
//	memory                      in-process map
//	sqlite:///path/to/state.db  on-disk SQLite file
//	postgres://...              PostgreSQL
//	redis://...                 Redis
func Open(ctx context.Context, dsn string) (KV, error) {
	switch {
	case dsn == "" || dsn == "memory":
		return NewMemory(), nil
	case strings.HasPrefix(dsn, "sqlite://"):
		s, err := OpenSQL(ctx, SQLite, strings.TrimPrefix(dsn, "sqlite://"))
		if err != nil {
			return nil, err
		}
		return s, nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		s, err := OpenSQL(ctx, Postgres, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		r, err := OpenRedis(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unsupported store %q", dsn)
	}
}
