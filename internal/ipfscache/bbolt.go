package ipfscache

import (
	"context"
	"encoding/json"
	"time"

	"go.etcd.io/bbolt"

	"github.com/hermesgraph/ingestd/internal/errors"
	"github.com/hermesgraph/ingestd/internal/model"
)

var (
	bucketEdits   = []byte("edits")
	bucketCursors = []byte("cursors")
)

// BboltCache is a durable, embedded-KV Cache implementation for the
// single-process dev/test deployment mode, grounded on the teacher's
// disk-backed cache manager idiom (internal/cache/manager.go) replacing
// its flat-file sketch store with a bbolt-backed CID → PreprocessedEdit
// store plus a cursor bucket.
type BboltCache struct {
	db *bbolt.DB
}

// OpenBboltCache opens (creating if absent) a bbolt file at path with the
// two buckets this cache needs.
func OpenBboltCache(path string) (*BboltCache, error) {
	db, err := bbolt.Open(path, 0644, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.FileSystemError(err, "open bbolt cache")
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketEdits); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketCursors)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.FileSystemError(err, "initialize bbolt cache buckets")
	}
	return &BboltCache{db: db}, nil
}

// Close closes the underlying bbolt file.
func (c *BboltCache) Close() error {
	return c.db.Close()
}

func (c *BboltCache) Has(_ context.Context, cid string) (bool, error) {
	found := false
	err := c.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketEdits).Get([]byte(cid))
		found = v != nil
		return nil
	})
	return found, err
}

func (c *BboltCache) Get(_ context.Context, cid string) (*model.PreprocessedEdit, bool, error) {
	var item *model.PreprocessedEdit
	err := c.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketEdits).Get([]byte(cid))
		if v == nil {
			return nil
		}
		item = &model.PreprocessedEdit{}
		return json.Unmarshal(v, item)
	})
	if err != nil {
		return nil, false, errors.DatabaseError(err, "get cached edit")
	}
	return item, item != nil, nil
}

func (c *BboltCache) Put(_ context.Context, item *model.PreprocessedEdit) error {
	data, err := json.Marshal(item)
	if err != nil {
		return errors.InternalErrorf("marshal cached edit: %v", err)
	}
	err = c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEdits).Put([]byte(item.CID), data)
	})
	if err != nil {
		return errors.DatabaseError(err, "put cached edit")
	}
	return nil
}

func (c *BboltCache) LoadCursor(_ context.Context, consumerID string) (string, error) {
	var cursor string
	err := c.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketCursors).Get([]byte(consumerID))
		cursor = string(v)
		return nil
	})
	if err != nil {
		return "", errors.DatabaseError(err, "load cursor")
	}
	return cursor, nil
}

func (c *BboltCache) PersistCursor(_ context.Context, consumerID string, cursor string, _ uint64) error {
	err := c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCursors).Put([]byte(consumerID), []byte(cursor))
	})
	if err != nil {
		return errors.DatabaseError(err, "persist cursor")
	}
	return nil
}
