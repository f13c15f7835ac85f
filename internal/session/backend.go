package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/google/uuid"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/billed-app/billed/internal/logger"
)

const sessionsBucketName = "sessions"

// Backend persists the values of many browser sessions, each addressed by an id
type Backend interface {
	Load(id string) (map[string]string, error)
	Save(id string, values map[string]string) error
	Destroy(id string) error
}

// NewID returns a fresh random session id
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id looks like something NewID produced
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// BackendStore is the Store of one session id, written through to a Backend
type BackendStore struct {
	id      string
	backend Backend
	values  map[string]string
}

// Open loads the values of session id. Unknown ids start empty.
func Open(backend Backend, id string) (*BackendStore, error) {
	values, err := backend.Load(id)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if values == nil {
		values = make(map[string]string)
	}
	return &BackendStore{id: id, backend: backend, values: values}, nil
}

// ID returns the session id
func (s *BackendStore) ID() string {
	return s.id
}

func (s *BackendStore) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *BackendStore) Set(key, value string) error {
	s.values[key] = value
	return s.backend.Save(s.id, s.values)
}

func (s *BackendStore) Delete(key string) error {
	delete(s.values, key)
	return s.backend.Save(s.id, s.values)
}

// BoltBackend keeps sessions in a bolt bucket
type BoltBackend struct {
	db *bbolt.DB
}

// NewBoltBackend creates the sessions bucket in db
func NewBoltBackend(db *bbolt.DB) (*BoltBackend, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(sessionsBucketName))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating sessions bucket: %w", err)
	}
	return &BoltBackend{db: db}, nil
}

func (b *BoltBackend) Load(id string) (map[string]string, error) {
	var values map[string]string
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(sessionsBucketName)).Get([]byte(id))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &values)
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

func (b *BoltBackend) Save(id string, values map[string]string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(values)
		if err != nil {
			return fmt.Errorf("marshaling session: %w", err)
		}
		return tx.Bucket([]byte(sessionsBucketName)).Put([]byte(id), data)
	})
}

func (b *BoltBackend) Destroy(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(sessionsBucketName)).Delete([]byte(id))
	})
}

// MemcacheBackend keeps sessions in memcached with a sliding expiry
type MemcacheBackend struct {
	client *memcache.Client
	ttl    time.Duration
}

// NewMemcacheBackend connects to the given memcached hosts
func NewMemcacheBackend(ttl time.Duration, hosts ...string) (*MemcacheBackend, error) {
	logger.Info("memcached hosts", zap.Strings("hosts", hosts))
	client := memcache.New(hosts...)
	if err := client.Ping(); err != nil {
		return nil, fmt.Errorf("pinging memcached: %w", err)
	}
	return &MemcacheBackend{client: client, ttl: ttl}, nil
}

func memcacheKey(id string) string {
	return "billed:session:" + id
}

func (m *MemcacheBackend) Load(id string) (map[string]string, error) {
	item, err := m.client.Get(memcacheKey(id))
	if err == memcache.ErrCacheMiss {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session from memcached: %w", err)
	}
	var values map[string]string
	if err := json.Unmarshal(item.Value, &values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSession, err)
	}
	return values, nil
}

func (m *MemcacheBackend) Save(id string, values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	return m.client.Set(&memcache.Item{
		Key:        memcacheKey(id),
		Value:      data,
		Expiration: int32(m.ttl.Seconds()),
	})
}

func (m *MemcacheBackend) Destroy(id string) error {
	err := m.client.Delete(memcacheKey(id))
	if err != nil && err != memcache.ErrCacheMiss {
		return err
	}
	return nil
}
