// Package database records which magnets this process uploaded, using BoltDB.
package database

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// Default database file permissions
	dbFileMode = 0600
	dbDirMode  = 0755

	// Default database filename
	defaultDBFile = "miaou.db"

	openTimeout = time.Second
)

var magnetsBucket = []byte("magnets")

// Magnet is one upload recorded for retention cleanup. The API key itself is
// never stored, only its fingerprint.
type Magnet struct {
	ID             string    `json:"id"`
	Hash           string    `json:"hash"`
	Name           string    `json:"name"`
	Source         string    `json:"source,omitempty"`
	DebridID       int64     `json:"debrid_id"`
	KeyFingerprint string    `json:"key_fingerprint"`
	AddedAt        time.Time `json:"added_at"`
}

// MagnetID is the ledger key of hash uploaded with the given key fingerprint.
func MagnetID(fingerprint, hash string) string {
	return fingerprint + ":" + hash
}

// Database defines the interface for the magnet ledger.
type Database interface {
	// StoreMagnet inserts or replaces a magnet
	StoreMagnet(magnet *Magnet) error
	// GetMagnets retrieves all stored magnets, oldest first
	GetMagnets() ([]Magnet, error)
	// GetOldMagnets retrieves magnets older than specified duration
	GetOldMagnets(olderThan time.Duration) ([]Magnet, error)
	// DeleteMagnet removes a magnet by ID
	DeleteMagnet(id string) error
	// Close closes the database connection
	Close() error
}

// BoltDB implements the Database interface using BoltDB.
type BoltDB struct {
	db  *bolt.DB
	now func() time.Time
}

// NewBolt creates a new BoltDB database instance.
// If dbPath is empty, uses the default database file in current directory.
func NewBolt(dbPath string) (*BoltDB, error) {
	if dbPath == "" {
		dbPath = filepath.Join(".", defaultDBFile)
	}

	// Ensure database directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, dbDirMode); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bolt.Open(dbPath, dbFileMode, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(magnetsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create magnets bucket: %w", err)
	}

	return &BoltDB{db: db, now: time.Now}, nil
}

// DefaultPath is the ledger file inside dir.
func DefaultPath(dir string) string {
	return filepath.Join(dir, defaultDBFile)
}

// Close closes the database connection.
func (db *BoltDB) Close() error {
	return db.db.Close()
}

// StoreMagnet stores a magnet in the database.
// Updates existing entries or creates new ones. A zero AddedAt is set to now.
func (db *BoltDB) StoreMagnet(magnet *Magnet) error {
	if magnet.ID == "" {
		return fmt.Errorf("failed to store magnet: empty id")
	}
	record := *magnet
	if record.AddedAt.IsZero() {
		record.AddedAt = db.now()
	}

	data, err := json.Marshal(&record)
	if err != nil {
		return fmt.Errorf("failed to encode magnet: %w", err)
	}

	err = db.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(magnetsBucket).Put([]byte(record.ID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store magnet: %w", err)
	}

	return nil
}

// GetMagnets retrieves all stored magnets from the database.
func (db *BoltDB) GetMagnets() ([]Magnet, error) {
	magnets, err := db.scan(func(Magnet) bool { return true })
	if err != nil {
		return nil, fmt.Errorf("failed to get magnets: %w", err)
	}
	return magnets, nil
}

// GetOldMagnets returns magnets older than the specified duration.
// Used primarily for cleanup operations.
func (db *BoltDB) GetOldMagnets(olderThan time.Duration) ([]Magnet, error) {
	cutoffTime := db.now().Add(-olderThan)

	magnets, err := db.scan(func(m Magnet) bool { return m.AddedAt.Before(cutoffTime) })
	if err != nil {
		return nil, fmt.Errorf("failed to get old magnets: %w", err)
	}
	return magnets, nil
}

// DeleteMagnet removes a magnet by ID from the database.
// Returns nil if the magnet doesn't exist.
func (db *BoltDB) DeleteMagnet(id string) error {
	err := db.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(magnetsBucket).Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("failed to delete magnet: %w", err)
	}
	return nil
}

func (db *BoltDB) scan(keep func(Magnet) bool) ([]Magnet, error) {
	var magnets []Magnet
	err := db.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(magnetsBucket).ForEach(func(k, v []byte) error {
			var m Magnet
			if err := json.Unmarshal(v, &m); err != nil {
				return fmt.Errorf("corrupt magnet %q: %w", k, err)
			}
			if keep(m) {
				magnets = append(magnets, m)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(magnets, func(i, j int) bool {
		return magnets[i].AddedAt.Before(magnets[j].AddedAt)
	})
	return magnets, nil
}
