// Package store keeps settings and firmware image records in a bbolt file,
// playing the part of the microcontroller's NVS partition.
package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	settingsBucket = []byte("storage")
	otaBucket      = []byte("ota")
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("store closed")

// Store is a bbolt-backed key/value store.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database file.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open store %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{settingsBucket, otaBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// SetInt32 stores v under key.
func (s *Store) SetInt32(key string, v int32) error {
	if s.db == nil {
		return ErrClosed
	}
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(settingsBucket).Put([]byte(key), buf[:])
	})
}

// GetInt32 returns the value under key; ok is false when it was never set.
func (s *Store) GetInt32(key string) (v int32, ok bool, err error) {
	if s.db == nil {
		return 0, false, ErrClosed
	}
	err = s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(settingsBucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		if len(raw) != 4 {
			return fmt.Errorf("corrupt value for %s: %d bytes", key, len(raw))
		}
		v = int32(binary.BigEndian.Uint32(raw))
		ok = true
		return nil
	})
	return v, ok, err
}

// Ints returns every stored integer.
func (s *Store) Ints() (map[string]int32, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	out := map[string]int32{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(settingsBucket).ForEach(func(k, v []byte) error {
			if len(v) == 4 {
				out[string(k)] = int32(binary.BigEndian.Uint32(v))
			}
			return nil
		})
	})
	return out, err
}

// Image describes an uploaded firmware image.
type Image struct {
	ID       string    `json:"id"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Uploaded time.Time `json:"uploaded"`
}

// PutImage records an uploaded image.
func (s *Store) PutImage(img Image) error {
	if s.db == nil {
		return ErrClosed
	}
	data, err := json.Marshal(img)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(otaBucket).Put([]byte(img.ID), data)
	})
}

// Images returns every recorded image.
func (s *Store) Images() ([]Image, error) {
	if s.db == nil {
		return nil, ErrClosed
	}
	var images []Image
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(otaBucket).ForEach(func(_, v []byte) error {
			var img Image
			if err := json.Unmarshal(v, &img); err != nil {
				return err
			}
			images = append(images, img)
			return nil
		})
	})
	return images, err
}
