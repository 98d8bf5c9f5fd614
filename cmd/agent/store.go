package main

import (
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"

	"collabtext/internal/wire"
)

var (
	bucketFrames  = []byte("frames")
	bucketCounter = []byte("counter")
	keyNextOp     = []byte("next_op")
)

// store is the agent's local durability layer: every frame the
// engine executes is appended here, and the local sequencer's
// counter is persisted alongside it so a restart resumes strictly
// above the last op_number this peer ever issued, per spec.md §6.
// The teacher's go.mod pulled in go.etcd.io/bbolt without ever
// opening a database; this is that gap closed.
type store struct {
	db *bbolt.DB
}

func openStore(path string) (*store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketFrames); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketCounter)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init buckets: %w", err)
	}
	return &store{db: db}, nil
}

func (s *store) Close() error { return s.db.Close() }

// SaveFrame appends f under a monotonically increasing bucket key, so
// LoadFrames replays in the order frames were originally persisted.
func (s *store) SaveFrame(f wire.Frame) error {
	data, err := wire.Marshal(f)
	if err != nil {
		return fmt.Errorf("store: marshal frame: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketFrames)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), data)
	})
}

// LoadFrames returns every persisted frame in the order it was saved.
func (s *store) LoadFrames() ([]wire.Frame, error) {
	var out []wire.Frame
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketFrames)
		return b.ForEach(func(_, v []byte) error {
			f, err := wire.Unmarshal(v)
			if err != nil {
				return fmt.Errorf("store: unmarshal frame: %w", err)
			}
			out = append(out, f)
			return nil
		})
	})
	return out, err
}

// SaveCounter persists the local sequencer's next op_number so a
// restarted agent never reissues an identifier it has already used.
func (s *store) SaveCounter(next uint64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCounter).Put(keyNextOp, seqKey(next))
	})
}

// LoadCounter returns the persisted next op_number, or 0 if none was
// ever saved (a brand new peer).
func (s *store) LoadCounter() (uint64, error) {
	var next uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketCounter).Get(keyNextOp)
		if v == nil {
			return nil
		}
		next = binary.BigEndian.Uint64(v)
		return nil
	})
	return next, err
}

func seqKey(n uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, n)
	return k
}
