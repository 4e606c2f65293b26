package session

import (
	"go.etcd.io/bbolt"

	"github.com/zombor/bill-scanner/internal/database"
)

const userKey = "user_email"

// Store persists the signed-in user identifier
type Store interface {
	// Load returns the persisted identifier, if any
	Load() (string, bool, error)
	// Save persists the identifier
	Save(id string) error
	// Clear removes the identifier
	Clear() error
}

// BoltStore implements Store in the session bucket of the bbolt database
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore creates a BoltStore on a database opened with database.Open
func NewBoltStore(db *bbolt.DB) *BoltStore {
	return &BoltStore{db: db}
}

// Load reads the persisted identifier
func (b *BoltStore) Load() (string, bool, error) {
	var id string
	err := b.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket([]byte(database.SessionBucket)).Get([]byte(userKey)); v != nil {
			id = string(v)
		}
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return id, id != "", nil
}

// Save persists the identifier
func (b *BoltStore) Save(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(database.SessionBucket)).Put([]byte(userKey), []byte(id))
	})
}

// Clear removes the identifier
func (b *BoltStore) Clear() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(database.SessionBucket)).Delete([]byte(userKey))
	})
}
