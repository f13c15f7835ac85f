package bill

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	billsBucketName = "bills"
	filesBucketName = "files"
)

// FileRecord describes a receipt file kept in Storage
type FileRecord struct {
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	ContentType string    `json:"content_type"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"created_at"`
}

// DB defines the interface for database operations
type DB interface {
	// SaveBill inserts or replaces a bill
	SaveBill(bill *Bill) error

	// GetBill retrieves a bill by ID
	GetBill(id string) (*Bill, error)

	// ListBills returns the bills owned by email, or every bill when email is empty
	ListBills(email string) ([]*Bill, error)

	// SaveFile records a stored receipt file
	SaveFile(file *FileRecord) error

	// GetFile retrieves a receipt file record by key
	GetFile(key string) (*FileRecord, error)

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens the bolt file at path and makes sure the buckets exist
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}
	b, err := NewBoltDBFrom(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// NewBoltDBFrom wraps an already open bolt database so other packages can share the file
func NewBoltDBFrom(db *bbolt.DB) (*BoltDB, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{billsBucketName, filesBucketName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating buckets: %w", err)
	}
	return &BoltDB{db: db}, nil
}

// Bolt exposes the underlying handle
func (b *BoltDB) Bolt() *bbolt.DB {
	return b.db
}

// SaveBill saves a bill to the database
func (b *BoltDB) SaveBill(bill *Bill) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(billsBucketName))
		data, err := json.Marshal(bill)
		if err != nil {
			return fmt.Errorf("marshaling bill: %w", err)
		}
		return bucket.Put([]byte(bill.ID), data)
	})
}

// GetBill retrieves a bill by ID
func (b *BoltDB) GetBill(id string) (*Bill, error) {
	var bill *Bill
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(billsBucketName)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("bill %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &bill)
	})
	if err != nil {
		return nil, err
	}
	return bill, nil
}

// ListBills returns the bills of one employee in key order
func (b *BoltDB) ListBills(email string) ([]*Bill, error) {
	bills := make([]*Bill, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(billsBucketName)).ForEach(func(k, v []byte) error {
			var bill Bill
			if err := json.Unmarshal(v, &bill); err != nil {
				return fmt.Errorf("unmarshaling bill: %w", err)
			}
			if email == "" || bill.Email == email {
				bills = append(bills, &bill)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return bills, nil
}

// SaveFile records a receipt file
func (b *BoltDB) SaveFile(file *FileRecord) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(file)
		if err != nil {
			return fmt.Errorf("marshaling file record: %w", err)
		}
		return tx.Bucket([]byte(filesBucketName)).Put([]byte(file.Key), data)
	})
}

// GetFile retrieves a receipt file record
func (b *BoltDB) GetFile(key string) (*FileRecord, error) {
	var file *FileRecord
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(filesBucketName)).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("file %s: %w", key, ErrNotFound)
		}
		return json.Unmarshal(data, &file)
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
