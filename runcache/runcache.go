// Package runcache keeps the values extracted from run files in a
// bolt database, so that repeated invocations over a large result
// directory do not parse unchanged files again.
package runcache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/op/go-logging"

	bolt "go.etcd.io/bbolt"
)

var log = logging.MustGetLogger("runcache")

var (
	// LIKELIHOOD is the bucket storing log file likelihoods.
	LIKELIHOOD = []byte("likelihood")
	// BESTK is the bucket storing meanQ best K estimates.
	BESTK = []byte("bestk")
)

// Entry is a cached value together with the file stamp it was
// computed for.
type Entry struct {
	Size       int64
	ModTime    int64
	Likelihood float64 `json:",omitempty"`
	BestK      int     `json:",omitempty"`
}

// matches returns true if the entry was computed for a file with
// the given stamp.
func (e *Entry) matches(fi os.FileInfo) bool {
	return e.Size == fi.Size() && e.ModTime == fi.ModTime().UnixNano()
}

// Cache is a file value cache. A nil *Cache is valid and caches
// nothing.
type Cache struct {
	db *bolt.DB
}

// Open opens (or creates) a cache database.
func Open(fn string) (*Cache, error) {
	db, err := bolt.Open(fn, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	log.Infof("Using run cache %s", fn)
	return &Cache{db: db}, nil
}

// Close closes the database.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.db.Close()
}

// Likelihood returns the cached likelihood for the file or computes
// and stores it.
func (c *Cache) Likelihood(fn string, compute func(string) (float64, error)) (float64, error) {
	if c == nil {
		return compute(fn)
	}
	e, fi := c.lookup(LIKELIHOOD, fn)
	if e != nil {
		log.Debugf("%s: cached likelihood %v", fn, e.Likelihood)
		return e.Likelihood, nil
	}
	v, err := compute(fn)
	if err != nil {
		return v, err
	}
	if fi != nil {
		c.store(LIKELIHOOD, fn, &Entry{Size: fi.Size(), ModTime: fi.ModTime().UnixNano(), Likelihood: v})
	}
	return v, nil
}

// BestK returns the cached best K estimate for the file or computes
// and stores it.
func (c *Cache) BestK(fn string, compute func(string) (int, error)) (int, error) {
	if c == nil {
		return compute(fn)
	}
	e, fi := c.lookup(BESTK, fn)
	if e != nil {
		log.Debugf("%s: cached best K %v", fn, e.BestK)
		return e.BestK, nil
	}
	v, err := compute(fn)
	if err != nil {
		return v, err
	}
	if fi != nil {
		c.store(BESTK, fn, &Entry{Size: fi.Size(), ModTime: fi.ModTime().UnixNano(), BestK: v})
	}
	return v, nil
}

// key returns the database key for a file name.
func key(fn string) []byte {
	if abs, err := filepath.Abs(fn); err == nil {
		fn = abs
	}
	return []byte(fn)
}

// lookup returns a valid entry for the file, if any, and the file
// info (nil if the file cannot be stat'ed).
func (c *Cache) lookup(bucket []byte, fn string) (*Entry, os.FileInfo) {
	fi, err := os.Stat(fn)
	if err != nil {
		return nil, nil
	}
	b, err := LoadData(c.db, bucket, key(fn))
	if err != nil {
		log.Warningf("Error reading cache for %s: %v", fn, err)
		return nil, fi
	}
	if b == nil {
		return nil, fi
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		log.Warningf("Corrupted cache entry for %s: %v", fn, err)
		return nil, fi
	}
	if !e.matches(fi) {
		log.Debugf("%s changed since it was cached", fn)
		return nil, fi
	}
	return &e, fi
}

// store saves an entry; errors are logged only.
func (c *Cache) store(bucket []byte, fn string, e *Entry) {
	b, err := json.Marshal(e)
	if err != nil {
		log.Error("Error serializing cache entry", err)
		return
	}
	if err := SaveData(c.db, bucket, key(fn), b); err != nil {
		log.Error("Error saving cache entry", err)
	}
}

// SaveData saves values in bolt database.
func SaveData(db *bolt.DB, bucket, key []byte, data []byte) error {
	if db == nil {
		return nil
	}
	return db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// LoadData loads data from bolt database.
func LoadData(db *bolt.DB, bucket, key []byte) ([]byte, error) {
	var data []byte
	if db == nil {
		return nil, nil
	}
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		// v is only valid during the transaction
		if v := b.Get(key); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
