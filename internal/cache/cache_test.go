package cache

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/leonardcser/campaign-mcp/internal/logger"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func openMemory(t *testing.T, clk *fakeClock) *Store {
	t.Helper()
	s, err := Open(Options{TTL: time.Hour, Now: clk.Now})
	require.NoError(t, err)
	return s
}

func openPersistent(t *testing.T, dir string, clk *fakeClock) *Store {
	t.Helper()
	s, err := Open(Options{TTL: time.Hour, Persistent: true, Directory: dir, Now: clk.Now})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_GetSet(t *testing.T) {
	s := openMemory(t, newFakeClock())

	require.NoError(t, s.Set("test_key", []byte(`{"value":123}`)))

	v, err := s.Get("test_key")
	require.NoError(t, err)
	assert.Equal(t, `{"value":123}`, string(v))

	_, err = s.Get("nonexistent_key")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsMiss(err))
}

func TestStore_TTLBoundary(t *testing.T) {
	clk := newFakeClock()
	s := openMemory(t, clk)
	require.NoError(t, s.Set("k", []byte("v")))

	clk.Advance(time.Hour - time.Nanosecond)
	v, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(v))

	clk.Advance(time.Nanosecond)
	_, err = s.Get("k")
	assert.ErrorIs(t, err, ErrExpired)

	// Expired entries are evicted by the read that noticed them.
	n, _ := s.Size()
	assert.Equal(t, 0, n)
	_, err = s.Get("k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ZeroTTLNeverExpires(t *testing.T) {
	clk := newFakeClock()
	s, err := Open(Options{Now: clk.Now})
	require.NoError(t, err)
	require.NoError(t, s.Set("k", []byte("v")))

	clk.Advance(24 * 365 * time.Hour)
	_, err = s.Get("k")
	assert.NoError(t, err)
}

func TestStore_OverwriteRefreshesTimestamp(t *testing.T) {
	clk := newFakeClock()
	s := openMemory(t, clk)
	require.NoError(t, s.Set("k", []byte("v1")))
	clk.Advance(30 * time.Minute)
	require.NoError(t, s.Set("k", []byte("v2")))
	clk.Advance(45 * time.Minute)

	v, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(v))
	n, _ := s.Size()
	assert.Equal(t, 1, n)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := openMemory(t, newFakeClock())
	in := []byte("abc")
	require.NoError(t, s.Set("k", in))
	in[0] = 'x'

	v, err := s.Get("k")
	require.NoError(t, err)
	v[1] = 'y'

	again, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestStore_ClearPrefix(t *testing.T) {
	s := openMemory(t, newFakeClock())
	require.NoError(t, s.Set("campaign|v_characters|abc123", []byte("Nico")))
	require.NoError(t, s.Set("campaign|v_characters|def456", []byte("Olaf")))
	require.NoError(t, s.Set("campaign|v_inventory|abc123", []byte("Sword")))
	require.NoError(t, s.Set("dnd5e|monsters|dragon", []byte("Dragon")))

	n, err := s.ClearPrefix("campaign|v_characters|")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	size, _ := s.Size()
	assert.Equal(t, 2, size)
	for _, k := range []string{"campaign|v_characters|abc123", "campaign|v_characters|def456"} {
		_, err := s.Get(k)
		assert.ErrorIs(t, err, ErrNotFound, k)
	}
	for _, k := range []string{"campaign|v_inventory|abc123", "dnd5e|monsters|dragon"} {
		_, err := s.Get(k)
		assert.NoError(t, err, k)
	}

	n, err = s.ClearPrefix("campaign|v_characters|")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStore_ClearPrefixNoMatches(t *testing.T) {
	s := openMemory(t, newFakeClock())
	require.NoError(t, s.Set("campaign|v_characters|abc123", []byte("Nico")))

	n, err := s.ClearPrefix("nonexistent|")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	size, _ := s.Size()
	assert.Equal(t, 1, size)
}

func TestStore_ClearPrefixPersistent(t *testing.T) {
	dir := t.TempDir()
	s := openPersistent(t, dir, newFakeClock())
	require.NoError(t, s.Set("campaign|v_characters|abc123", []byte("Nico")))
	require.NoError(t, s.Set("campaign|v_characters|def456", []byte("Olaf")))
	require.NoError(t, s.Set("campaign|v_inventory|abc123", []byte("Sword")))

	index, err := s.disk.load()
	require.NoError(t, err)
	assert.Len(t, index, 3)

	n, err := s.ClearPrefix("campaign|v_characters|")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	index, err = s.disk.load()
	require.NoError(t, err)
	assert.Len(t, index, 1)
	assert.Contains(t, index, "campaign|v_inventory|abc123")

	assert.NoFileExists(t, s.disk.path("campaign|v_characters|abc123"))
	assert.NoFileExists(t, s.disk.path("campaign|v_characters|def456"))
	assert.FileExists(t, s.disk.path("campaign|v_inventory|abc123"))
}

func TestStore_PersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	clk := newFakeClock()

	s1, err := Open(Options{TTL: time.Hour, Persistent: true, Directory: dir, Now: clk.Now})
	require.NoError(t, err)
	require.NoError(t, s1.Set("old", []byte("stale soon")))
	clk.Advance(40 * time.Minute)
	require.NoError(t, s1.Set("campaign|v_characters|abc123", []byte("Nico")))
	require.NoError(t, s1.Set("campaign|v_inventory|abc123", []byte(`{"item":"Sword"}`)))
	_, err = s1.ClearPrefix("campaign|v_characters|")
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	clk.Advance(30 * time.Minute)
	s2 := openPersistent(t, dir, clk)

	// Reload is lazy: the stale entry is still tracked until something reads it.
	size, _ := s2.Size()
	assert.Equal(t, 2, size)

	_, err = s2.Get("campaign|v_characters|abc123")
	assert.ErrorIs(t, err, ErrNotFound)

	v, err := s2.Get("campaign|v_inventory|abc123")
	require.NoError(t, err)
	assert.Equal(t, `{"item":"Sword"}`, string(v))

	_, err = s2.Get("old")
	assert.ErrorIs(t, err, ErrExpired)
	assert.NoFileExists(t, s2.disk.path("old"))
	index, err := s2.disk.load()
	require.NoError(t, err)
	assert.NotContains(t, index, "old")
}

func TestStore_DegradedEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	clk := newFakeClock()

	s1, err := Open(Options{TTL: time.Hour, Persistent: true, Directory: dir, Now: clk.Now})
	require.NoError(t, err)
	require.NoError(t, s1.Set("missing", []byte("a")))
	require.NoError(t, s1.Set("corrupt", []byte("b")))
	require.NoError(t, s1.Set("healthy", []byte("c")))
	require.NoError(t, s1.Close())

	s2 := openPersistent(t, dir, clk)
	require.NoError(t, os.Remove(s2.disk.path("missing")))
	require.NoError(t, os.WriteFile(s2.disk.path("corrupt"), []byte("garbage"), 0o600))

	_, err = s2.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s2.Get("corrupt")
	assert.ErrorIs(t, err, ErrNotFound)

	v, err := s2.Get("healthy")
	require.NoError(t, err)
	assert.Equal(t, "c", string(v))

	index, err := s2.disk.load()
	require.NoError(t, err)
	assert.Equal(t, []string{"healthy"}, keysOf(index))
}

func TestStore_ChecksumMismatchIsMiss(t *testing.T) {
	dir := t.TempDir()
	clk := newFakeClock()

	s1, err := Open(Options{TTL: time.Hour, Persistent: true, Directory: dir, Now: clk.Now})
	require.NoError(t, err)
	require.NoError(t, s1.Set("k", []byte("payload")))
	require.NoError(t, s1.Close())

	s2 := openPersistent(t, dir, clk)
	raw, err := os.ReadFile(s2.disk.path("k"))
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	require.NoError(t, os.WriteFile(s2.disk.path("k"), raw, 0o600))

	_, err = s2.Get("k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CorruptIndexRecordSkipped(t *testing.T) {
	dir := t.TempDir()
	clk := newFakeClock()

	s1, err := Open(Options{TTL: time.Hour, Persistent: true, Directory: dir, Now: clk.Now})
	require.NoError(t, err)
	require.NoError(t, s1.Set("good", []byte("ok")))
	require.NoError(t, s1.Close())

	db, err := bolt.Open(filepath.Join(dir, indexFile), 0o600, nil)
	require.NoError(t, err)
	require.NoError(t, db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(indexBucket).Put([]byte("bad"), []byte("not-a-timestamp"))
	}))
	require.NoError(t, db.Close())

	s2 := openPersistent(t, dir, clk)
	size, _ := s2.Size()
	assert.Equal(t, 1, size)
	_, err = s2.Get("bad")
	assert.ErrorIs(t, err, ErrNotFound)
	v, err := s2.Get("good")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(v))
}

func TestStore_OpenSweepsOrphanFiles(t *testing.T) {
	dir := t.TempDir()
	clk := newFakeClock()
	orphan := filepath.Join(dir, "deadbeef"+entrySuffix)
	require.NoError(t, os.WriteFile(orphan, []byte("left over"), 0o600))

	s := openPersistent(t, dir, clk)
	require.NoError(t, s.Set("k", []byte("v")))

	assert.NoFileExists(t, orphan)
	assert.FileExists(t, s.disk.path("k"))
}

func TestStore_ClearPersistent(t *testing.T) {
	dir := t.TempDir()
	clk := newFakeClock()
	s := openPersistent(t, dir, clk)
	require.NoError(t, s.Set("a", []byte("1")))
	require.NoError(t, s.Set("b", []byte("2")))

	require.NoError(t, s.Clear())

	size, _ := s.Size()
	assert.Equal(t, 0, size)
	index, err := s.disk.load()
	require.NoError(t, err)
	assert.Empty(t, index)
	assert.NoFileExists(t, s.disk.path("a"))

	require.NoError(t, s.Set("c", []byte("3")))
	v, err := s.Get("c")
	require.NoError(t, err)
	assert.Equal(t, "3", string(v))
}

func TestOpen_PersistentRequiresDirectory(t *testing.T) {
	_, err := Open(Options{Persistent: true})
	assert.ErrorIs(t, err, ErrDirectoryRequired)
}

func TestStore_ConcurrentAccessKeepsIndexConsistent(t *testing.T) {
	dir := t.TempDir()
	clk := newFakeClock()
	s, err := Open(Options{TTL: time.Hour, Persistent: true, Directory: dir, Now: clk.Now})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 25 {
				key := fmt.Sprintf("campaign|t%d|%d", w%3, i)
				_ = s.Set(key, []byte(key))
				_, _ = s.Get(key)
				if i%7 == 0 {
					_, _ = s.ClearPrefix(fmt.Sprintf("campaign|t%d|", (w+1)%3))
				}
			}
		}()
	}
	wg.Wait()

	live, _ := s.Size()
	require.NoError(t, s.Close())

	s2 := openPersistent(t, dir, clk)
	size, _ := s2.Size()
	assert.Equal(t, live, size)
	index, err := s2.disk.load()
	require.NoError(t, err)
	for k := range index {
		v, err := s2.Get(k)
		require.NoError(t, err, k)
		assert.Equal(t, k, string(v))
	}
}

func keysOf(m map[string]time.Time) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
