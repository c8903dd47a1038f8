package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"chatkit/pkg/logger"
	"chatkit/pkg/models"

	"github.com/cockroachdb/pebble"
)

// Cache is a pebble-backed snapshot cache so a chat renders its last known
// message list before the first poll round-trips. One cache serves all
// activities; each snapshot write replaces the activity's prior rows.
type Cache struct {
	db *pebble.DB
	// seq reduces key collisions when messages share a nanosecond timestamp.
	seq uint64
}

// OpenCache opens (or creates) a pebble database at the given path.
func OpenCache(path string) (*Cache, error) {
	logger.Log.Info("opening_cache_db", zap.String("path", path))
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Log.Error("cache_open_failed", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	logger.Log.Info("cache_opened", zap.String("path", path))
	return &Cache{db: db}, nil
}

// Close closes the underlying pebble DB.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	if err := c.db.Close(); err != nil {
		return err
	}
	c.db = nil
	logger.Log.Info("cache_closed")
	return nil
}

// Ready reports whether the cache is opened and usable.
func (c *Cache) Ready() bool {
	return c != nil && c.db != nil
}

// SaveSnapshot replaces the cached rows for an activity with the given
// list. Key format: activity:<id>:msg:<unix_nano_padded>-<seq>, so a prefix
// iteration replays insertion order.
func (c *Cache) SaveSnapshot(activityID string, msgs []models.Message) error {
	if c.db == nil {
		return fmt.Errorf("cache not opened; call OpenCache first")
	}
	prefix := []byte("activity:" + activityID + ":msg:")
	b := c.db.NewBatch()
	defer b.Close()
	if err := b.DeleteRange(prefix, append(append([]byte(nil), prefix...), 0xff), nil); err != nil {
		return err
	}
	for i := range msgs {
		ts := time.Now().UTC().UnixNano()
		s := atomic.AddUint64(&c.seq, 1)
		key := fmt.Sprintf("activity:%s:msg:%020d-%06d", activityID, ts, s)
		data, err := json.Marshal(&msgs[i])
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		if err := b.Set([]byte(key), data, nil); err != nil {
			return err
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		logger.Log.Error("snapshot_save_failed", zap.String("activity", activityID), zap.Error(err))
		return err
	}
	logger.Log.Debug("snapshot_saved", zap.String("activity", activityID), zap.Int("count", len(msgs)))
	return nil
}

// LoadSnapshot returns the cached rows for an activity in insertion order.
// A missing snapshot returns an empty list, not an error.
func (c *Cache) LoadSnapshot(activityID string) ([]models.Message, error) {
	if c.db == nil {
		return nil, fmt.Errorf("cache not opened; call OpenCache first")
	}
	prefix := []byte("activity:" + activityID + ":msg:")
	iter, err := c.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Message
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Log.Warn("snapshot_row_invalid", zap.String("activity", activityID), zap.Error(err))
			continue
		}
		out = append(out, m)
	}
	logger.Log.Debug("snapshot_loaded", zap.String("activity", activityID), zap.Int("count", len(out)))
	return out, nil
}
