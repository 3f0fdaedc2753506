// Package store persists tokens and remembered-device identities between
// hivectl invocations in a bbolt database.
//
// Records are kept in one bucket per user pool and keyed by record type and
// username ("tokens:user@example.com"). The file is created with 0600
// permissions; the device password it holds is a long-lived secret.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/fzdarsky/hiveauth/internal/auth"
	"github.com/fzdarsky/hiveauth/internal/config"
)

const (
	fileMode    = 0o600
	openTimeout = time.Second

	recordTokens = "tokens"
	recordDevice = "device"
)

// ErrNotFound is returned when no record exists for the pool and username.
var ErrNotFound = errors.New("record not found")

// Store is a bbolt-backed credential store.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the database at path. The parent directory is
// created with owner-only permissions.
func Open(path string) (*Store, error) {
	if err := config.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, fileMode, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening credential store %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.db.Path()
}

// SaveTokens stores the token bundle of username in poolID, replacing any previous one.
func (s *Store) SaveTokens(poolID, username string, b auth.TokenBundle) error {
	return s.put(poolID, recordTokens, username, b)
}

// LoadTokens returns the stored token bundle, or ErrNotFound.
func (s *Store) LoadTokens(poolID, username string) (auth.TokenBundle, error) {
	var b auth.TokenBundle
	err := s.get(poolID, recordTokens, username, &b)
	return b, err
}

// DeleteTokens removes the stored tokens. Removing a missing record is not an error.
func (s *Store) DeleteTokens(poolID, username string) error {
	return s.delete(poolID, recordTokens, username)
}

// SaveDevice stores the remembered device of username in poolID.
func (s *Store) SaveDevice(poolID, username string, d auth.DeviceIdentity) error {
	return s.put(poolID, recordDevice, username, d)
}

// LoadDevice returns the stored device identity, or ErrNotFound.
func (s *Store) LoadDevice(poolID, username string) (auth.DeviceIdentity, error) {
	var d auth.DeviceIdentity
	err := s.get(poolID, recordDevice, username, &d)
	return d, err
}

// DeleteDevice removes the stored device. Removing a missing record is not an error.
func (s *Store) DeleteDevice(poolID, username string) error {
	return s.delete(poolID, recordDevice, username)
}

// Usernames lists the users of poolID that have stored tokens.
func (s *Store) Usernames(poolID string) ([]string, error) {
	var names []string
	prefix := []byte(recordTokens + ":")
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(poolID))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			names = append(names, string(k[len(prefix):]))
		}
		return nil
	})
	return names, err
}

func key(recordType, username string) []byte {
	return []byte(recordType + ":" + username)
}

func (s *Store) put(poolID, recordType, username string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s record: %w", recordType, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(poolID))
		if err != nil {
			return err
		}
		return b.Put(key(recordType, username), data)
	})
}

func (s *Store) get(poolID, recordType, username string, v any) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(poolID))
		if b == nil {
			return fmt.Errorf("%s/%s: %w", recordType, username, ErrNotFound)
		}
		data := b.Get(key(recordType, username))
		if data == nil {
			return fmt.Errorf("%s/%s: %w", recordType, username, ErrNotFound)
		}
		// data is only valid inside the transaction; Unmarshal copies it.
		return json.Unmarshal(data, v)
	})
}

func (s *Store) delete(poolID, recordType, username string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(poolID))
		if b == nil {
			return nil
		}
		return b.Delete(key(recordType, username))
	})
}
