package database

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// Bucket names shared by the stores built on the database file
const (
	SessionBucket = "session"
	ScansBucket   = "scans"
)

// Open opens (or creates) the bbolt file and ensures every bucket exists
func Open(path string) (*bbolt.DB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{SessionBucket, ScansBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return db, nil
}
