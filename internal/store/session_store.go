package store

import (
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"paircrypt/internal/domain"
)

const sessionsBucket = "sessions"

// BoltSessionStore keeps one CBOR-encoded SessionRecord per peer in a bbolt
// database.
type BoltSessionStore struct {
	db *bolt.DB
}

// OpenBoltSessionStore opens (creating as needed) the database at path.
func OpenBoltSessionStore(path string) (*BoltSessionStore, error) {
	db, err := bolt.Open(path, fileMode, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open sessions: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(sessionsBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &BoltSessionStore{db: db}, nil
}

// Close flushes and closes the database.
func (s *BoltSessionStore) Close() error {
	return s.db.Close()
}

// SaveSession replaces the record stored for record.Peer.
func (s *BoltSessionStore) SaveSession(record domain.SessionRecord) error {
	if record.Peer == "" {
		return fmt.Errorf("store: session record without peer")
	}
	b, err := cbor.Marshal(&record)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(sessionsBucket)).Put([]byte(record.Peer), b)
	})
}

// LoadSession returns the record for peer, if any.
func (s *BoltSessionStore) LoadSession(peer domain.DeviceID) (rec domain.SessionRecord, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(sessionsBucket)).Get([]byte(peer))
		if b == nil {
			return nil
		}
		ok = true
		// b is only valid inside the transaction; cbor copies byte strings.
		return cbor.Unmarshal(b, &rec)
	})
	if err != nil {
		return domain.SessionRecord{}, false, fmt.Errorf("store: load session %s: %w", peer, err)
	}
	return rec, ok, nil
}

// DeleteSession removes the record for peer. Deleting a missing record is
// not an error.
func (s *BoltSessionStore) DeleteSession(peer domain.DeviceID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(sessionsBucket)).Delete([]byte(peer))
	})
}

// ListSessions returns the peers with stored sessions, sorted.
func (s *BoltSessionStore) ListSessions() ([]domain.DeviceID, error) {
	var out []domain.DeviceID
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(sessionsBucket)).ForEach(func(k, _ []byte) error {
			out = append(out, domain.DeviceID(k))
			return nil
		})
	})
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, err
}

var _ domain.SessionStore = (*BoltSessionStore)(nil)
