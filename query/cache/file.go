package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/spf13/afero"
)

// FileBackend stores one file per entry under <dir>/<bin>/. Every process
// pointing at the same directory shares the cache. Writes go to a temporary
// file first and are renamed into place, so readers never see a partial entry.
type FileBackend struct {
	fs  afero.Fs
	dir string
	seq atomic.Uint64
}

// NewFileBackend creates a backend rooted at dir on fs.
func NewFileBackend(fs afero.Fs, dir string) (*FileBackend, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
	}
	return &FileBackend{fs: fs, dir: dir}, nil
}

func (f *FileBackend) path(bin, key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(f.dir, safeBin(bin), hex.EncodeToString(sum[:]))
}

func safeBin(bin string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(bin)
}

func (f *FileBackend) Get(_ context.Context, bin, key string) (Payload, error) {
	raw, err := afero.ReadFile(f.fs, f.path(bin, key))
	if os.IsNotExist(err) {
		return Payload{}, ErrMiss
	}
	if err != nil {
		return Payload{}, fmt.Errorf("read cache entry: %w", err)
	}
	var p Payload
	if err := p.UnmarshalBinary(raw); err != nil {
		return Payload{}, err
	}
	return p, nil
}

func (f *FileBackend) Set(_ context.Context, bin, key string, p Payload) error {
	raw, err := p.MarshalBinary()
	if err != nil {
		return err
	}
	target := f.path(bin, key)
	if err := f.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create bin dir: %w", err)
	}
	tmp := fmt.Sprintf("%s.%d.%d.tmp", target, os.Getpid(), f.seq.Add(1))
	if err := afero.WriteFile(f.fs, tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := f.fs.Rename(tmp, target); err != nil {
		_ = f.fs.Remove(tmp)
		return fmt.Errorf("commit cache entry: %w", err)
	}
	return nil
}

func (f *FileBackend) Delete(_ context.Context, bin, key string) error {
	err := f.fs.Remove(f.path(bin, key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}
