package seen

import (
	"errors"
	"fmt"
)

// Backend names a Store implementation.
type Backend string

const (
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
	BackendRedis  Backend = "redis"
	BackendMemory Backend = "memory"
)

// ErrUnknownBackend is returned by Open for an unrecognized backend.
var ErrUnknownBackend = errors.New("unknown seen backend")

// Valid reports whether b names a known backend.
func (b Backend) Valid() bool {
	switch b {
	case BackendFile, BackendSQLite, BackendRedis, BackendMemory:
		return true
	}
	return false
}

// Open creates the store for backend. dsn is the file path for file, the
// database path for sqlite and the address for redis; memory ignores it.
func Open(backend Backend, dsn string) (Store, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(dsn), nil
	case BackendSQLite:
		if dsn == "" {
			dsn = "data/seen.db"
		}
		return NewSQLiteStore(dsn)
	case BackendRedis:
		return NewRedisStore(dsn, "")
	case BackendMemory:
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
}
