package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/l3aro/earscope/pkg/types"
)

// formatVersion is bumped whenever the persisted Result layout changes;
// files written with another version are treated as misses.
const formatVersion = 2

const fileSuffix = ".msgpack"

// KeyOptions are the analysis options that change a Result for the same archive.
type KeyOptions struct {
	Strategy         string
	IncludeLibraries bool
	Excludes         []string
}

// Digest returns the hex SHA-256 of the file at path.
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash archive: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Key derives the cache key of an archive digest analyzed with opts.
func Key(digest string, opts KeyOptions) string {
	excludes := append([]string(nil), opts.Excludes...)
	sort.Strings(excludes)

	h := sha256.New()
	fmt.Fprintf(h, "v%d\x00%s\x00%s\x00%t\x00%s",
		formatVersion, digest, strings.ToLower(opts.Strategy), opts.IncludeLibraries, strings.Join(excludes, "\x00"))
	return hex.EncodeToString(h.Sum(nil))
}

// StoreOptions configures a ResultStore.
type StoreOptions struct {
	// Dir is where results are persisted; empty keeps them in memory only.
	Dir string
	// MaxEntries and MaxBytes bound the in-memory layer; 0 means unlimited.
	MaxEntries int
	MaxBytes   int
}

// storeData is the on-disk layout of one cached result.
type storeData struct {
	Version int           `msgpack:"version"`
	Key     string        `msgpack:"key"`
	Result  *types.Result `msgpack:"result"`
}

// ResultStore is a two-level result cache: an LRU of encoded results in
// front of one msgpack file per key. It is safe for concurrent use.
type ResultStore struct {
	mem *LRUCache
	dir string

	mu     sync.Mutex
	hits   int64
	misses int64
}

// NewResultStore creates a store, creating its directory when needed.
func NewResultStore(opts StoreOptions) (*ResultStore, error) {
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	return &ResultStore{
		mem: New(Options{MaxSize: opts.MaxEntries, MaxBytes: opts.MaxBytes}),
		dir: opts.Dir,
	}, nil
}

// Dir returns the persistence directory.
func (s *ResultStore) Dir() string {
	return s.dir
}

// Get returns the result cached under key. Every call decodes a fresh
// value, so callers may modify what they get.
func (s *ResultStore) Get(key string) (*types.Result, bool) {
	if data, ok := s.mem.Get(key); ok {
		if r, err := decodeResult(key, data); err == nil {
			s.record(true)
			return r, true
		}
	}

	data, err := s.load(key)
	if err != nil {
		s.record(false)
		return nil, false
	}
	r, err := decodeResult(key, data)
	if err != nil {
		s.record(false)
		return nil, false
	}
	s.mem.Set(key, data)
	s.record(true)
	return r, true
}

// Put caches the encoded form of r under key in memory and, when a directory
// is set, on disk. Later changes to r do not reach the cache.
func (s *ResultStore) Put(key string, r *types.Result) error {
	data, err := encodeResult(key, r)
	if err != nil {
		return err
	}
	s.mem.Set(key, data)
	if s.dir == "" {
		return nil
	}
	return s.save(key, data)
}

// Delete drops key from both layers.
func (s *ResultStore) Delete(key string) error {
	s.mem.Delete(key)
	if s.dir == "" {
		return nil
	}
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Clear drops every cached result and returns how many files were removed.
func (s *ResultStore) Clear() (int, error) {
	s.mem.Clear()
	if s.dir == "" {
		return 0, nil
	}

	files, err := filepath.Glob(filepath.Join(s.dir, "*"+fileSuffix))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			return removed, fmt.Errorf("failed to delete cache entry: %w", err)
		}
		removed++
	}
	return removed, nil
}

// Stats returns cache statistics.
func (s *ResultStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Length:    s.mem.Len(),
		Bytes:     s.mem.Size(),
		Evicted:   s.mem.evictedCount(),
		HitCount:  s.hits,
		MissCount: s.misses,
	}
}

func (s *ResultStore) record(hit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hit {
		s.hits++
	} else {
		s.misses++
	}
}

func (s *ResultStore) path(key string) string {
	return filepath.Join(s.dir, key+fileSuffix)
}

func encodeResult(key string, r *types.Result) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(storeData{Version: formatVersion, Key: key, Result: r}); err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeResult(key string, data []byte) (*types.Result, error) {
	var sd storeData
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&sd); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	if sd.Version != formatVersion || sd.Key != key || sd.Result == nil {
		return nil, ErrKeyNotFound
	}
	return sd.Result, nil
}

func (s *ResultStore) save(key string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return nil
}

func (s *ResultStore) load(key string) ([]byte, error) {
	if s.dir == "" {
		return nil, ErrKeyNotFound
	}

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	return data, nil
}
