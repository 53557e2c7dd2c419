package server

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"paircrypt/internal/domain"
)

const (
	bundlesBucket = "bundles"
	queuesBucket  = "queues"

	// DefaultRetention is how long an unacknowledged envelope is kept.
	DefaultRetention = 24 * time.Hour
	// DefaultMaxQueue bounds the envelopes queued for one device.
	DefaultMaxQueue = 1000
)

// ErrQueueFull is returned when a device queue is at its bound.
var ErrQueueFull = errors.New("spool: queue full")

// spooled is the stored form of an envelope.
type spooled struct {
	Received int64
	Envelope domain.Envelope
}

// Spool persists bundles and per-device envelope queues in bbolt.
type Spool struct {
	db        *bolt.DB
	retention time.Duration
	maxQueue  int
	now       func() time.Time
}

// OpenSpool opens (creating as needed) the spool database at path.
func OpenSpool(path string, retention time.Duration, maxQueue int) (*Spool, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if maxQueue <= 0 {
		maxQueue = DefaultMaxQueue
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("spool: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range []string{bundlesBucket, queuesBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(b)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Spool{db: db, retention: retention, maxQueue: maxQueue, now: time.Now}, nil
}

// Close syncs and closes the database.
func (s *Spool) Close() error {
	if err := s.db.Sync(); err != nil {
		s.db.Close()
		return err
	}
	return s.db.Close()
}

// PutBundle stores b under b.DeviceID.
func (s *Spool) PutBundle(b domain.PreKeyBundle) error {
	if b.DeviceID == "" {
		return errors.New("spool: bundle without device id")
	}
	raw, err := cbor.Marshal(&b)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bundlesBucket)).Put([]byte(b.DeviceID), raw)
	})
}

// TakeBundle returns device's bundle carrying at most its first one-time
// pre-key, and removes that key from the stored bundle.
func (s *Spool) TakeBundle(device domain.DeviceID) (out domain.PreKeyBundle, ok bool, err error) {
	err = s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(bundlesBucket))
		raw := bkt.Get([]byte(device))
		if raw == nil {
			return nil
		}
		ok = true
		var stored domain.PreKeyBundle
		if err := cbor.Unmarshal(raw, &stored); err != nil {
			return err
		}
		out = stored
		if len(stored.OneTimePreKeys) == 0 {
			out.OneTimePreKeys = nil
			return nil
		}
		out.OneTimePreKeys = stored.OneTimePreKeys[:1:1]
		stored.OneTimePreKeys = stored.OneTimePreKeys[1:]
		b, err := cbor.Marshal(&stored)
		if err != nil {
			return err
		}
		return bkt.Put([]byte(device), b)
	})
	return out, ok, err
}

// Enqueue appends env to env.To's queue and returns it with the assigned ID
// and timestamp.
func (s *Spool) Enqueue(env domain.Envelope) (domain.Envelope, error) {
	if env.To == "" {
		return env, errors.New("spool: envelope without recipient")
	}
	now := s.now()
	env.ID = domain.EnvelopeID(uuid.NewString())
	if env.Timestamp == 0 {
		env.Timestamp = now.Unix()
	}
	raw, err := cbor.Marshal(&spooled{Received: now.UnixNano(), Envelope: env})
	if err != nil {
		return env, err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		q, err := tx.Bucket([]byte(queuesBucket)).CreateBucketIfNotExists([]byte(env.To))
		if err != nil {
			return err
		}
		if q.Stats().KeyN >= s.maxQueue {
			return ErrQueueFull
		}
		seq, err := q.NextSequence()
		if err != nil {
			return err
		}
		var key [8]byte
		binary.BigEndian.PutUint64(key[:], seq)
		return q.Put(key[:], raw)
	})
	return env, err
}

// Fetch drops expired envelopes from device's queue and returns up to limit
// of the rest, oldest first. A limit <= 0 returns all.
func (s *Spool) Fetch(device domain.DeviceID, limit int) ([]domain.Envelope, int, error) {
	var (
		out     []domain.Envelope
		expired int
	)
	err := s.db.Update(func(tx *bolt.Tx) error {
		q := tx.Bucket([]byte(queuesBucket)).Bucket([]byte(device))
		if q == nil {
			return nil
		}
		var err error
		if expired, err = s.purgeQueue(q); err != nil {
			return err
		}
		c := q.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var sp spooled
			if err := cbor.Unmarshal(v, &sp); err != nil {
				return err
			}
			out = append(out, sp.Envelope)
		}
		return nil
	})
	return out, expired, err
}

// Ack drops device's envelopes up to and including the one with ID through
// and returns how many were removed. Everything ahead of through was handed
// out by the same Fetch. An unknown ID removes nothing: either it was never
// queued or it has expired, in which case so has everything ahead of it.
func (s *Spool) Ack(device domain.DeviceID, through domain.EnvelopeID) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		q := tx.Bucket([]byte(queuesBucket)).Bucket([]byte(device))
		if q == nil {
			return nil
		}
		var last []byte
		c := q.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var sp spooled
			if err := cbor.Unmarshal(v, &sp); err != nil {
				return err
			}
			if sp.Envelope.ID == through {
				last = append([]byte(nil), k...)
				break
			}
		}
		if last == nil {
			return nil
		}
		for {
			k, _ := c.First()
			if k == nil {
				return nil
			}
			done := bytes.Equal(k, last)
			if err := q.Delete(k); err != nil {
				return err
			}
			removed++
			if done {
				return nil
			}
		}
	})
	return removed, err
}

// Purge drops every envelope older than the retention window.
func (s *Spool) Purge() (int, error) {
	total := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(queuesBucket)).ForEachBucket(func(k []byte) error {
			n, err := s.purgeQueue(tx.Bucket([]byte(queuesBucket)).Bucket(k))
			total += n
			return err
		})
	})
	return total, err
}

// Depth returns the number of envelopes queued across all devices.
func (s *Spool) Depth() (int, error) {
	total := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		qs := tx.Bucket([]byte(queuesBucket))
		return qs.ForEachBucket(func(k []byte) error {
			total += qs.Bucket(k).Stats().KeyN
			return nil
		})
	})
	return total, err
}

// purgeQueue removes expired envelopes from the front of q. Envelopes are
// stored in arrival order, so it stops at the first live one.
func (s *Spool) purgeQueue(q *bolt.Bucket) (int, error) {
	cutoff := s.now().Add(-s.retention).UnixNano()
	n := 0
	c := q.Cursor()
	for k, v := c.First(); k != nil; k, v = c.First() {
		var sp spooled
		if err := cbor.Unmarshal(v, &sp); err != nil {
			return n, err
		}
		if sp.Received >= cutoff {
			break
		}
		if err := q.Delete(k); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
