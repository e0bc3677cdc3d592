// Package store holds per-identity records as opaque byte blobs.
//
// Handlers never see the backend: history and notes serialize themselves into
// a blob and address it by namespace and sanitized identity.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/accessally/accessally/internal/identity"
)

// Namespace separates record kinds that share an identity.
type Namespace string

const (
	NamespaceHistory Namespace = "history"
	NamespaceNotes   Namespace = "notes"
)

// ErrNotFound is returned by Get when no record exists.
var ErrNotFound = errors.New("record not found")

// Store persists one blob per (namespace, identity).
type Store interface {
	Get(ctx context.Context, ns Namespace, key identity.Token) ([]byte, error)
	// Put overwrites the record in full.
	Put(ctx context.Context, ns Namespace, key identity.Token, data []byte) error
	// Delete reports whether a record existed. Absence is not an error.
	Delete(ctx context.Context, ns Namespace, key identity.Token) (bool, error)
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Driver string

	HistoryDir string
	NotesDir   string

	SQLitePath  string
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// New creates the backend named by cfg.Driver.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "file":
		return NewFileStore(map[Namespace]FileLayout{
			NamespaceHistory: {Dir: cfg.HistoryDir, Prefix: "history", Ext: ".csv"},
			NamespaceNotes:   {Dir: cfg.NotesDir, Prefix: "notes", Ext: ".txt"},
		})
	case "memory":
		return NewInMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.SQLitePath)
	case "postgres":
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	case "redis":
		return NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

func checkKey(key identity.Token) error {
	if !key.Valid() {
		return identity.ErrInvalid
	}
	return nil
}
