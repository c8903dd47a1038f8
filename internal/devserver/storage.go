package devserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"chatkit/pkg/logger"
	"chatkit/pkg/models"
)

// storage is the devserver's pebble layer. Messages are stored per
// activity under sortable keys so a prefix scan replays insertion order;
// a small id index supports in-place mutation (pin, edit, react, delete).
type storage struct {
	db  *pebble.DB
	seq uint64
}

func openStorage(path string) (*storage, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	logger.Info("devserver_db_opened", "path", path)
	return &storage{db: db}, nil
}

func (s *storage) close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func msgIndexKey(id string) []byte { return []byte("msgidx:" + id) }

// saveMessage appends a message to an activity and indexes it by id.
func (s *storage) saveMessage(activityID string, m models.Message) error {
	ts := time.Now().UTC().UnixNano()
	n := atomic.AddUint64(&s.seq, 1)
	key := fmt.Sprintf("activity:%s:msg:%020d-%06d", activityID, ts, n)
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set([]byte(key), data, nil); err != nil {
		return err
	}
	if err := b.Set(msgIndexKey(m.ID), []byte(key), nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

// getMessage returns a message by id along with its row key.
func (s *storage) getMessage(id string) (models.Message, string, error) {
	kb, closer, err := s.db.Get(msgIndexKey(id))
	if err != nil {
		return models.Message{}, "", fmt.Errorf("message %s: %w", id, err)
	}
	key := string(kb)
	_ = closer.Close()
	vb, closer2, err := s.db.Get([]byte(key))
	if err != nil {
		return models.Message{}, "", fmt.Errorf("message row %s: %w", key, err)
	}
	defer closer2.Close()
	var m models.Message
	if err := json.Unmarshal(vb, &m); err != nil {
		return models.Message{}, "", fmt.Errorf("decode message %s: %w", id, err)
	}
	return m, key, nil
}

// updateMessage rewrites a message row in place.
func (s *storage) updateMessage(key string, m models.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return s.db.Set([]byte(key), data, pebble.Sync)
}

// listMessages returns an activity's messages in insertion order.
func (s *storage) listMessages(activityID string) ([]models.Message, error) {
	prefix := []byte("activity:" + activityID + ":msg:")
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	out := make([]models.Message, 0)
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// purgeDeleted removes soft-deleted rows older than cutoff. Returns the
// number purged. Retention keeps a dev database from growing unbounded.
func (s *storage) purgeDeleted(cutoff time.Time) (int, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}
	prefix := []byte("activity:")
	var victims []struct {
		key string
		id  string
	}
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		if !bytes.Contains(iter.Key(), []byte(":msg:")) {
			continue
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		if m.DeletedAt != nil && m.DeletedAt.Before(cutoff) {
			victims = append(victims, struct {
				key string
				id  string
			}{string(iter.Key()), m.ID})
		}
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}
	for _, v := range victims {
		if err := s.db.Delete([]byte(v.key), pebble.Sync); err != nil {
			return 0, err
		}
		_ = s.db.Delete(msgIndexKey(v.id), pebble.Sync)
	}
	return len(victims), nil
}

// moderators

func (s *storage) saveModerators(activityID string, mods []models.Moderator) error {
	data, err := json.Marshal(mods)
	if err != nil {
		return err
	}
	return s.db.Set([]byte("activity:"+activityID+":moderators"), data, pebble.Sync)
}

func (s *storage) listModerators(activityID string) ([]models.Moderator, error) {
	vb, closer, err := s.db.Get([]byte("activity:" + activityID + ":moderators"))
	if err == pebble.ErrNotFound {
		return []models.Moderator{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	var mods []models.Moderator
	if err := json.Unmarshal(vb, &mods); err != nil {
		return nil, err
	}
	return mods, nil
}

// sessions

func sessionKey(id string) []byte { return []byte("session:" + id) }

type storedSession struct {
	UserID string `json:"userId"`
	models.ChatSession
}

func (s *storage) saveSession(userID string, sess models.ChatSession) error {
	data, err := json.Marshal(storedSession{UserID: userID, ChatSession: sess})
	if err != nil {
		return err
	}
	return s.db.Set(sessionKey(sess.ID), data, pebble.Sync)
}

func (s *storage) getSession(id string) (storedSession, error) {
	vb, closer, err := s.db.Get(sessionKey(id))
	if err != nil {
		return storedSession{}, err
	}
	defer closer.Close()
	var ss storedSession
	if err := json.Unmarshal(vb, &ss); err != nil {
		return storedSession{}, err
	}
	return ss, nil
}

func (s *storage) deleteSession(id string) error {
	return s.db.Delete(sessionKey(id), pebble.Sync)
}

func (s *storage) listSessions(userID string) ([]models.ChatSession, error) {
	prefix := []byte("session:")
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	out := make([]models.ChatSession, 0)
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var ss storedSession
		if err := json.Unmarshal(iter.Value(), &ss); err != nil {
			continue
		}
		if ss.UserID == userID {
			out = append(out, ss.ChatSession)
		}
	}
	return out, nil
}

// uploads

func (s *storage) saveUpload(id string, data []byte) error {
	return s.db.Set([]byte("upload:"+id), data, pebble.Sync)
}

func (s *storage) getUpload(id string) ([]byte, error) {
	vb, closer, err := s.db.Get([]byte("upload:" + id))
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), vb...), nil
}
