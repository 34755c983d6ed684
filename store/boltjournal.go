package store

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var (
	bucketEvents   = []byte("events")
	bucketEventIDs = []byte("event_ids")
)

// BoltJournal persists events in a bbolt database.
type BoltJournal struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ Journal = (*BoltJournal)(nil)

// OpenBoltJournal opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltJournal(dbPath string) (*BoltJournal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketEvents, bucketEventIDs} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("store: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltJournal{db: db}, nil
}

// Close closes the underlying database.
func (j *BoltJournal) Close() error { return j.db.Close() }

// seqKey encodes a sequence number as an 8-byte big-endian key for sorted storage.
func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// Append stores ev under the next sequence number.
func (j *BoltJournal) Append(ev *Event) error {
	if err := prepare(ev); err != nil {
		return err
	}
	return j.db.Update(func(tx *bbolt.Tx) error {
		ids := tx.Bucket(bucketEventIDs)
		if ids.Get(ev.ID[:]) != nil {
			return fmt.Errorf("%w: %s", ErrDuplicateEvent, ev.ID)
		}
		events := tx.Bucket(bucketEvents)
		seq, err := events.NextSequence()
		if err != nil {
			return fmt.Errorf("store: next sequence: %w", err)
		}
		ev.Seq = seq

		data, err := encodeGob(ev)
		if err != nil {
			return fmt.Errorf("store: encode event: %w", err)
		}
		if err := events.Put(seqKey(seq), data); err != nil {
			return fmt.Errorf("store: put event: %w", err)
		}
		if err := ids.Put(ev.ID[:], seqKey(seq)); err != nil {
			return fmt.Errorf("store: put event id: %w", err)
		}
		return nil
	})
}

// Get retrieves an event by id.
func (j *BoltJournal) Get(id uuid.UUID) (*Event, error) {
	var ev Event
	err := j.db.View(func(tx *bbolt.Tx) error {
		key := tx.Bucket(bucketEventIDs).Get(id[:])
		if key == nil {
			return fmt.Errorf("%w: %s", ErrEventNotFound, id)
		}
		data := tx.Bucket(bucketEvents).Get(key)
		if data == nil {
			return fmt.Errorf("%w: %s", ErrEventNotFound, id)
		}
		if err := decodeGob(data, &ev); err != nil {
			return fmt.Errorf("store: decode event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// List returns matching events in sequence order.
func (j *BoltJournal) List(f Filter) ([]*Event, error) {
	var out []*Event
	err := j.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var ev Event
			if err := decodeGob(v, &ev); err != nil {
				return fmt.Errorf("store: decode event %d: %w", binary.BigEndian.Uint64(k), err)
			}
			if !f.match(&ev) {
				continue
			}
			out = append(out, &ev)
			if f.Limit > 0 && len(out) == f.Limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of stored events.
func (j *BoltJournal) Count() (uint64, error) {
	var count uint64
	err := j.db.View(func(tx *bbolt.Tx) error {
		count = uint64(tx.Bucket(bucketEvents).Stats().KeyN)
		return nil
	})
	return count, err
}
