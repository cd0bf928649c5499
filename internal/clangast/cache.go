package clangast

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"clifmatch/internal/headerdb"
)

// Current schema version - increment when the payload format changes.
const cacheSchemaVersion uint16 = 1

// Cache keeps decoded AST dumps on disk keyed by the clang invocation.
// Safe for concurrent use.
type Cache struct {
	mu  sync.RWMutex
	dir string
}

// payload is one cached dump together with the digests of every header
// it was built from.
type payload struct {
	Schema uint16
	Args   []string
	Files  []string
	Sums   []string
	Root   *headerdb.Node
}

// OpenCache returns a cache rooted at dir. An empty dir selects
// $XDG_CACHE_HOME/clifmatch, falling back to ~/.cache/clifmatch.
func OpenCache(dir string) (*Cache, error) {
	if dir == "" {
		base := os.Getenv("XDG_CACHE_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			base = filepath.Join(home, ".cache")
		}
		dir = filepath.Join(base, "clifmatch")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

func (c *Cache) pathFor(key string) string {
	return filepath.Join(c.dir, "ast", key+".mp")
}

// cacheKey digests everything that changes clang's output besides the
// headers themselves.
func cacheKey(args []string, main string) string {
	h := sha256.New()
	for _, a := range args {
		h.Write([]byte(a))
		h.Write([]byte{0})
	}
	h.Write([]byte(main))
	return hex.EncodeToString(h.Sum(nil))
}

func fileSum(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// put stores root along with digests of files.
func (c *Cache) put(key string, args []string, files []string, root *headerdb.Node) error {
	if c == nil {
		return nil
	}
	p := &payload{Schema: cacheSchemaVersion, Args: args, Root: root}
	sort.Strings(files)
	for _, f := range files {
		sum, err := fileSum(f)
		if err != nil {
			// a file clang reported but we cannot read is not worth caching
			return nil
		}
		p.Files = append(p.Files, f)
		p.Sums = append(p.Sums, sum)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	path := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	enc := msgpack.NewEncoder(f)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(p); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), path)
}

// get returns the cached dump when every header it was built from is
// unchanged.
func (c *Cache) get(key string) (*headerdb.Node, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()
	dec := msgpack.NewDecoder(f)
	dec.SetCustomStructTag("json")
	var p payload
	if err := dec.Decode(&p); err != nil {
		// stale format; the next put overwrites it
		return nil, false, nil
	}
	if p.Schema != cacheSchemaVersion || len(p.Files) != len(p.Sums) || p.Root == nil {
		return nil, false, nil
	}
	for i, file := range p.Files {
		sum, err := fileSum(file)
		if err != nil || sum != p.Sums[i] {
			return nil, false, nil
		}
	}
	return p.Root, true, nil
}

// Clear removes every cached dump.
func (c *Cache) Clear() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return os.RemoveAll(filepath.Join(c.dir, "ast"))
}
