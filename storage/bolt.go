package storage

import (
	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("bazaar")

// BoltDB is a persistent key-value store backed by bbolt. It trades LevelDB's
// write throughput for a single-file layout that is easier to back up.
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB creates or opens a Bolt database file at the specified path.
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltDB{db: db}, nil
}

func (b *BoltDB) Put(key []byte, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put(key, value)
	})
}

func (b *BoltDB) Get(key []byte) ([]byte, error) {
	var value []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		stored := tx.Bucket(boltBucket).Get(key)
		if stored == nil {
			return ErrKeyNotFound
		}
		value = append([]byte(nil), stored...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (b *BoltDB) Has(key []byte) (bool, error) {
	var ok bool
	err := b.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(boltBucket).Get(key) != nil
		return nil
	})
	return ok, err
}

func (b *BoltDB) Close() error {
	return b.db.Close()
}
