package stores

import (
	"context"
	"encoding/json"
	"errors"

	"bridge/agent/internal/models"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketSession = []byte("session")
	keySnapshot   = []byte("snapshot")

	ErrSnapshotNotFound = errors.New("snapshot not found")
)

type SnapshotStore interface {
	Save(ctx context.Context, snap models.Snapshot) error
	Load(ctx context.Context) (*models.Snapshot, error)
	Clear(ctx context.Context) error
	Close() error
}

type LocalSnapshotStore struct {
	db *bolt.DB
}

func NewLocalSnapshotStore(path string) (*LocalSnapshotStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(bucketSession)
		return e
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &LocalSnapshotStore{db: db}, nil
}

func (s *LocalSnapshotStore) Save(ctx context.Context, snap models.Snapshot) error {
	blob, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSession).Put(keySnapshot, blob)
	})
}

func (s *LocalSnapshotStore) Load(ctx context.Context) (*models.Snapshot, error) {
	var out models.Snapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketSession).Get(keySnapshot)
		if v == nil {
			return ErrSnapshotNotFound
		}
		return json.Unmarshal(v, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Clear is a no-op when nothing is stored.
func (s *LocalSnapshotStore) Clear(ctx context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSession).Delete(keySnapshot)
	})
}

func (s *LocalSnapshotStore) Close() error {
	return s.db.Close()
}
