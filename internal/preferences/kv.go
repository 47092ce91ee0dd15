package preferences

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// KV is the durable key/value storage behind the preferences repository.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Open creates the named backend under dir.
func Open(ctx context.Context, backend, dir string) (KV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create preferences dir: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendFile:
		return NewFileKV(filepath.Join(dir, "preferences.json")), nil
	case BackendSQLite:
		return OpenSQLiteKV(ctx, filepath.Join(dir, "preferences.sqlite"))
	case BackendBadger:
		return OpenBadgerKV(filepath.Join(dir, "preferences.badger"))
	}
	return nil, fmt.Errorf("unknown preferences backend %q (want file, sqlite or badger)", backend)
}
