package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	bolt "go.etcd.io/bbolt"
	"go.trai.ch/zerr"

	"github.com/leonardcser/campaign-mcp/internal/logger"
)

const (
	indexFile   = "index.db"
	entrySuffix = ".entry"
	// Entry file layout: 8 bytes createdAt (UnixNano) || 8 bytes xxhash64(value) || value.
	entryHeader = 16
)

var (
	indexBucket = []byte("index")

	// ErrDegraded marks an indexed entry whose value file is missing or corrupt.
	ErrDegraded = zerr.New("cache: persisted entry degraded")
)

// disk mirrors the in-memory map: one file per entry plus a bbolt index of
// key -> createdAt. Index records are written after their value file and
// deleted before it, so a crash can leave an orphan file but never an index
// record pointing at a value that was meant to be gone.
type disk struct {
	dir string
	db  *bolt.DB
}

func openDisk(dir string) (*disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "create cache directory"), "dir", dir)
	}
	db, err := bolt.Open(filepath.Join(dir, indexFile), 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "open cache index"), "dir", dir)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(indexBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, zerr.Wrap(err, "init cache index")
	}
	return &disk{dir: dir, db: db}, nil
}

func (d *disk) close() error { return d.db.Close() }

func (d *disk) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(d.dir, hex.EncodeToString(sum[:])+entrySuffix)
}

// load reads the index. Records that do not decode are dropped from the
// index and skipped.
func (d *disk) load() (map[string]time.Time, error) {
	out := make(map[string]time.Time)
	var corrupt [][]byte
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(indexBucket).ForEach(func(k, v []byte) error {
			if len(v) != 8 {
				corrupt = append(corrupt, append([]byte(nil), k...))
				return nil
			}
			out[string(k)] = time.Unix(0, int64(binary.BigEndian.Uint64(v)))
			return nil
		})
	})
	if err != nil {
		return nil, zerr.Wrap(err, "read cache index")
	}
	if len(corrupt) > 0 {
		logger.Warnf("cache: dropping %d corrupt index records", len(corrupt))
		if err := d.db.Update(func(tx *bolt.Tx) error {
			b := tx.Bucket(indexBucket)
			for _, k := range corrupt {
				if err := b.Delete(k); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return nil, zerr.Wrap(err, "drop corrupt index records")
		}
	}
	return out, nil
}

// sweep removes entry files and temp files that no index record points at.
func (d *disk) sweep(live map[string]time.Time) int {
	keep := make(map[string]struct{}, len(live))
	for k := range live {
		keep[filepath.Base(d.path(k))] = struct{}{}
	}
	des, err := os.ReadDir(d.dir)
	if err != nil {
		logger.Warnf("cache: sweep %s: %v", d.dir, err)
		return 0
	}
	removed := 0
	for _, de := range des {
		name := de.Name()
		orphan := strings.HasPrefix(name, ".tmp-")
		if strings.HasSuffix(name, entrySuffix) {
			_, ok := keep[name]
			orphan = !ok
		}
		if !orphan {
			continue
		}
		if err := os.Remove(filepath.Join(d.dir, name)); err == nil {
			removed++
		}
	}
	return removed
}

func (d *disk) write(key string, value []byte, createdAt time.Time) error {
	buf := make([]byte, entryHeader+len(value))
	binary.BigEndian.PutUint64(buf[:8], uint64(createdAt.UnixNano()))
	binary.BigEndian.PutUint64(buf[8:16], xxhash.Sum64(value))
	copy(buf[entryHeader:], value)

	f, err := os.CreateTemp(d.dir, ".tmp-*")
	if err != nil {
		return zerr.Wrap(err, "create cache entry")
	}
	tmp := f.Name()
	if _, err := f.Write(buf); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return zerr.Wrap(err, "write cache entry")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return zerr.Wrap(err, "close cache entry")
	}
	if err := os.Rename(tmp, d.path(key)); err != nil {
		_ = os.Remove(tmp)
		return zerr.Wrap(err, "commit cache entry")
	}

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(createdAt.UnixNano()))
	if err := d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(indexBucket).Put([]byte(key), ts[:])
	}); err != nil {
		return zerr.Wrap(err, "index cache entry")
	}
	return nil
}

// read returns the stored value, or an error wrapping ErrDegraded when the
// file is missing, truncated, fails its checksum or belongs to another write.
func (d *disk) read(key string, createdAt time.Time) ([]byte, error) {
	buf, err := os.ReadFile(d.path(key))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDegraded, err)
	}
	if len(buf) < entryHeader {
		return nil, fmt.Errorf("%w: short file (%d bytes)", ErrDegraded, len(buf))
	}
	if int64(binary.BigEndian.Uint64(buf[:8])) != createdAt.UnixNano() {
		return nil, fmt.Errorf("%w: timestamp does not match index", ErrDegraded)
	}
	value := buf[entryHeader:]
	if binary.BigEndian.Uint64(buf[8:16]) != xxhash.Sum64(value) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrDegraded)
	}
	return value, nil
}

func (d *disk) remove(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(indexBucket)
		for _, k := range keys {
			if err := b.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return zerr.Wrap(err, "unindex cache entries")
	}
	var errs []error
	for _, k := range keys {
		if err := os.Remove(d.path(k)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		// The index no longer references these files; sweep removes them on next open.
		logger.Warnf("cache: %d entry files left behind: %v", len(errs), errors.Join(errs...))
	}
	return nil
}

func (d *disk) removeAll() error {
	if err := d.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(indexBucket); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(indexBucket)
		return err
	}); err != nil {
		return zerr.Wrap(err, "reset cache index")
	}
	d.sweep(nil)
	return nil
}
