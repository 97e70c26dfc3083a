package cache

import (
	"strings"
	"sync"
	"time"

	"go.trai.ch/zerr"

	"github.com/leonardcser/campaign-mcp/internal/logger"
)

var _ KV = (*Store)(nil)

// ErrDirectoryRequired is returned by Open when persistence is requested without a directory.
var ErrDirectoryRequired = zerr.New("cache: directory required for persistent store")

// Store is an in-memory TTL cache with optional on-disk persistence.
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*entry
	disk    *disk
}

type entry struct {
	value     []byte
	createdAt time.Time
	// loaded is false for entries restored from the index whose value is still on disk.
	loaded bool
}

type Options struct {
	// TTL is how long an entry stays readable after Set. TTL <= 0 never expires.
	TTL time.Duration
	// Persistent mirrors every entry to Directory so a new Store can reload it.
	Persistent bool
	Directory  string
	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
}

// Open creates a Store. With Persistent set it reloads the index found in
// Directory; values are read lazily and expiry is checked on access, so
// entries that went stale while the process was down are evicted by the
// first Get that touches them.
func Open(opts Options) (*Store, error) {
	s := &Store{
		ttl:     opts.TTL,
		now:     opts.Now,
		entries: make(map[string]*entry),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if !opts.Persistent {
		return s, nil
	}
	if opts.Directory == "" {
		return nil, ErrDirectoryRequired
	}
	d, err := openDisk(opts.Directory)
	if err != nil {
		return nil, err
	}
	index, err := d.load()
	if err != nil {
		_ = d.close()
		return nil, err
	}
	for k, createdAt := range index {
		s.entries[k] = &entry{createdAt: createdAt}
	}
	if n := d.sweep(index); n > 0 {
		logger.Infof("cache: removed %d orphaned entry files from %s", n, opts.Directory)
	}
	s.disk = d
	logger.Infof("cache: loaded %d entries from %s", len(index), opts.Directory)
	return s, nil
}

// Close releases the on-disk index. It is a no-op for in-memory stores.
func (s *Store) Close() error {
	if s == nil || s.disk == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disk.close()
}

// Get returns the cached value if present and not expired.
func (s *Store) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	if s.expired(e) {
		s.evict(key)
		return nil, ErrExpired
	}
	if !e.loaded {
		v, err := s.disk.read(key, e.createdAt)
		if err != nil {
			logger.Warnf("cache: treating %q as a miss: %v", key, err)
			s.evict(key)
			return nil, ErrNotFound
		}
		e.value = v
		e.loaded = true
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores value under key with a fresh timestamp, replacing any previous entry.
func (s *Store) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	createdAt := s.now()
	if s.disk != nil {
		if err := s.disk.write(key, value, createdAt); err != nil {
			// Keep memory and index in step: the old value is gone either way.
			s.evict(key)
			return zerr.With(err, "key", key)
		}
	}
	s.entries[key] = &entry{
		value:     append([]byte(nil), value...),
		createdAt: createdAt,
		loaded:    true,
	}
	return nil
}

// ClearPrefix removes every key that starts with prefix.
func (s *Store) ClearPrefix(prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	for _, k := range keys {
		delete(s.entries, k)
	}
	if s.disk != nil {
		if err := s.disk.remove(keys...); err != nil {
			return len(keys), zerr.With(err, "prefix", prefix)
		}
	}
	return len(keys), nil
}

// Clear removes every entry.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*entry)
	if s.disk != nil {
		return s.disk.removeAll()
	}
	return nil
}

// Size returns the number of tracked entries, expired or not.
func (s *Store) Size() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

func (s *Store) expired(e *entry) bool {
	if s.ttl <= 0 {
		return false
	}
	return !s.now().Before(e.createdAt.Add(s.ttl))
}

// evict drops key from memory and disk. Callers hold s.mu.
func (s *Store) evict(key string) {
	delete(s.entries, key)
	if s.disk == nil {
		return
	}
	if err := s.disk.remove(key); err != nil {
		logger.Warnf("cache: evict %q: %v", key, err)
	}
}
