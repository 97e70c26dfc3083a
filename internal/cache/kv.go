package cache

import "errors"

var (
	ErrNotFound = errors.New("cache: not found")
	ErrExpired  = errors.New("cache: expired")
)

// KV defines the key-value cache contract with TTL and prefix eviction.
// Implementations must be safe for concurrent use by multiple goroutines.
type KV interface {
	// Get returns ErrNotFound for unknown keys and ErrExpired for keys whose
	// TTL has elapsed; both mean "miss".
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	// ClearPrefix removes every key starting with prefix and reports how many went.
	ClearPrefix(prefix string) (int, error)
	Clear() error
	// Size may include expired entries that have not been touched since expiry.
	Size() (int, error)
}

// IsMiss reports whether err is a cache miss rather than a failure.
func IsMiss(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrExpired)
}
