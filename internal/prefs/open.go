package prefs

import (
	"fmt"

	"github.com/banshee-data/lighthouse/internal/fsutil"
)

// Backend names a Store implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
	BackendRedis  Backend = "redis"
)

// Backends lists every supported backend.
var Backends = []Backend{BackendMemory, BackendFile, BackendSQLite, BackendRedis}

// ParseBackend validates a backend name.
func ParseBackend(s string) (Backend, error) {
	for _, b := range Backends {
		if string(b) == s {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown store backend %q (want one of %v)", s, Backends)
}

// Options selects and configures a backend.
type Options struct {
	Backend Backend
	// Path is the preference file (file) or database (sqlite).
	Path  string
	Redis RedisOptions
	// FS overrides the filesystem for the file backend.
	FS fsutil.FileSystem
}

// Open returns the Store described by opts.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendFile:
		if opts.Path == "" {
			return nil, fmt.Errorf("file backend requires a path")
		}
		return OpenFileStore(opts.FS, opts.Path)
	case BackendSQLite:
		if opts.Path == "" {
			return nil, fmt.Errorf("sqlite backend requires a path")
		}
		return OpenSQLiteStore(opts.Path)
	case BackendRedis:
		if opts.Redis.Addr == "" {
			return nil, fmt.Errorf("redis backend requires an address")
		}
		return NewRedisStore(opts.Redis)
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
