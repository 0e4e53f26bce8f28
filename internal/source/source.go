// Package source abstracts opening the files an evaluation reads, so that
// imports can come from disk, from memory or through a cache.
package source

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru"
)

// Opener opens source files by path.
type Opener interface {
	Open(path string) (io.ReadCloser, error)
}

// CanRead reports whether path can be opened through o.
func CanRead(o Opener, path string) bool {
	rc, err := o.Open(path)
	if err != nil {
		return false
	}
	rc.Close()
	return true
}

// FileOpener opens files on disk.
type FileOpener struct{}

func (FileOpener) Open(path string) (io.ReadCloser, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return os.Open(path)
}

// MapOpener serves sources from memory, keyed by cleaned path.
type MapOpener map[string]string

func (m MapOpener) Open(path string) (io.ReadCloser, error) {
	src, ok := m[filepath.Clean(path)]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}
	return io.NopCloser(strings.NewReader(src)), nil
}

// CachedOpener keeps the contents of recently opened files in memory, so a
// file imported from several places is read from its Opener once.
type CachedOpener struct {
	base  Opener
	cache *lru.Cache
}

func NewCachedOpener(base Opener, size int) (*CachedOpener, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &CachedOpener{base: base, cache: cache}, nil
}

func (o *CachedOpener) Open(path string) (io.ReadCloser, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		key = filepath.Clean(path)
	}
	if data, ok := o.cache.Get(key); ok {
		return io.NopCloser(bytes.NewReader(data.([]byte))), nil
	}
	rc, err := o.base.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	o.cache.Add(key, data)
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Len is the number of cached files.
func (o *CachedOpener) Len() int { return o.cache.Len() }
