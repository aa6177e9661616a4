package store

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/nemanja-m/diskmr/pkg/core"
)

const (
	boltFileName = "store.db"
	unitMarker   = byte(0x01)
)

// BoltStore keeps units in a single bbolt database, one bucket per stage.
// Writers buffer a unit in memory and commit it in one transaction on close.
type BoltStore struct {
	root string
	db   *bolt.DB
}

func NewBoltStore(root string) (*BoltStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(filepath.Join(root, boltFileName), 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt database: %w", err)
	}
	return &BoltStore{root: root, db: db}, nil
}

func (s *BoltStore) Root() string {
	return s.root
}

func boltKey(addr Address) []byte {
	return fmt.Appendf(nil, "%s/%04d", addr.Owner, addr.Index)
}

func (s *BoltStore) exists(addr Address) (bool, error) {
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(addr.Stage))
		found = bkt != nil && bkt.Get(boltKey(addr)) != nil
		return nil
	})
	return found, err
}

func (s *BoltStore) Create(addr Address) (io.WriteCloser, error) {
	found, err := s.exists(addr)
	if err != nil {
		return nil, storeError("create", addr, err)
	}
	if found {
		return nil, storeError("create", addr, core.ErrArtifactExists)
	}
	return &boltWriter{store: s, addr: addr}, nil
}

func (s *BoltStore) Open(addr Address) (io.ReadCloser, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(addr.Stage))
		if bkt == nil {
			return core.ErrArtifactMissing
		}
		v := bkt.Get(boltKey(addr))
		if len(v) == 0 {
			return core.ErrArtifactMissing
		}
		// Copy the value since it's only valid during the transaction
		value = make([]byte, len(v)-1)
		copy(value, v[1:])
		return nil
	})
	if err != nil {
		return nil, storeError("open", addr, err)
	}
	return io.NopCloser(bytes.NewReader(value)), nil
}

func (s *BoltStore) Remove(addr Address) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(addr.Stage))
		if bkt == nil || bkt.Get(boltKey(addr)) == nil {
			return core.ErrArtifactMissing
		}
		return bkt.Delete(boltKey(addr))
	})
	if err != nil {
		return storeError("remove", addr, err)
	}
	return nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

type boltWriter struct {
	bytes.Buffer
	store *BoltStore
	addr  Address
}

func (w *boltWriter) Close() error {
	err := w.store.db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists([]byte(w.addr.Stage))
		if err != nil {
			return err
		}
		key := boltKey(w.addr)
		if bkt.Get(key) != nil {
			return core.ErrArtifactExists
		}
		// Values carry a marker byte so empty units are never confused
		// with absent keys.
		value := make([]byte, 0, w.Len()+1)
		value = append(value, unitMarker)
		value = append(value, w.Bytes()...)
		return bkt.Put(key, value)
	})
	if err != nil {
		return storeError("commit", w.addr, err)
	}
	return nil
}
