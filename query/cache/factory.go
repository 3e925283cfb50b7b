package cache

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
)

// DefaultPrefix namespaces shared backends.
const DefaultPrefix = "sqlsrv"

// Backend kinds accepted by NewBackend.
const (
	BackendMemory = "memory"
	BackendStub   = "stub"
	BackendRedis  = "redis"
	BackendFile   = "file"
)

// Config selects and configures a backend.
type Config struct {
	Backend string
	Prefix  string
	// Size bounds the memory backend.
	Size  int
	Redis RedisConfig
	// Dir is the root of the file backend.
	Dir string
	// Fs is the filesystem of the file backend. Nil means the OS filesystem.
	Fs afero.Fs
}

// NewBackend builds the backend named by cfg.Backend. An empty name selects
// the memory backend.
func NewBackend(cfg Config) (Backend, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendMemory:
		return NewMemoryBackend(cfg.Size), nil
	case BackendStub:
		return NewStubBackend(), nil
	case BackendRedis:
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("redis cache backend: address is required")
		}
		rc := cfg.Redis
		if rc.Prefix == "" {
			rc.Prefix = cfg.Prefix
		}
		return NewRedisBackend(rc), nil
	case BackendFile:
		if cfg.Dir == "" {
			return nil, fmt.Errorf("file cache backend: directory is required")
		}
		dir := cfg.Dir
		if cfg.Prefix != "" {
			dir = dir + "/" + safeBin(cfg.Prefix)
		}
		return NewFileBackend(cfg.Fs, dir)
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Backend)
	}
}
