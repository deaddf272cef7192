/*
Package blobstore provides a content-addressed-ish get/set/delete surface
for two key namespaces, "step/{id}" (step definitions) and "step-data/{id}"
(step output payloads). The coordinator never interprets blob contents; it
only stores and returns them opaquely on behalf of workers.
*/
package blobstore

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/daniel-olson-code/pipeline/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketStepDefs = []byte("step")
	bucketStepData = []byte("step-data")
)

// Store is the Blob Store Interface: get, set, and delete keyed byte blobs.
// Callers address definitions under "step/{id}" and payloads under
// "step-data/{id}"; this package exposes typed helpers over that raw
// interface so callers never hand-build keys.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// BoltStore is a bbolt-backed Store, kept in its own file separate from the
// Step Record Store's bolt file so blob growth (large payloads) never
// contends with the hot step-status-transition path.
type BoltStore struct {
	db *bolt.DB
}

// Open creates or opens a blob store database under dataDir.
func Open(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "blobs.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketStepDefs, bucketStepData} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Get returns the raw bytes stored under key's namespace/id, or
// types.ErrStepNotFound / types.ErrStepDataNotFound if absent.
func (s *BoltStore) Get(key string) ([]byte, error) {
	bucket, id, err := splitKey(key)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get([]byte(id))
		if v == nil {
			return notFoundErr(bucket)
		}
		data = make([]byte, len(v))
		copy(data, v)
		return nil
	})
	return data, err
}

func (s *BoltStore) Set(key string, value []byte) error {
	bucket, id, err := splitKey(key)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(id), value)
	})
}

func (s *BoltStore) Delete(key string) error {
	bucket, id, err := splitKey(key)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(id))
	})
}

// GetStepDef fetches and decodes the definition blob for id.
func GetStepDef(s Store, id string) (*types.StepDef, error) {
	raw, err := s.Get(stepDefKey(id))
	if err != nil {
		return nil, err
	}
	var def types.StepDef
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("decode step def %s: %w", id, err)
	}
	return &def, nil
}

// SetStepDef encodes and writes a definition blob.
func SetStepDef(s Store, def *types.StepDef) error {
	raw, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("encode step def %s: %w", def.ID, err)
	}
	return s.Set(stepDefKey(def.ID), raw)
}

// DeleteStepDef removes a definition blob. Definitions are not swept by
// blob GC, which only ever deletes "step-data/{id}" payloads, but admitters
// and tests may still want to remove one directly.
func DeleteStepDef(s Store, id string) error {
	return s.Delete(stepDefKey(id))
}

// GetStepData fetches a step's output payload, decoded from JSON.
func GetStepData(s Store, id string) (any, error) {
	raw, err := s.Get(stepDataKey(id))
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode step data %s: %w", id, err)
	}
	return v, nil
}

// SetStepData writes a step's output payload.
func SetStepData(s Store, id string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode step data %s: %w", id, err)
	}
	return s.Set(stepDataKey(id), raw)
}

// DeleteStepData removes a step's output payload. This is what blob-GC
// calls once every step in a weakly-connected component reaches a terminal
// status (pkg/dag's sweep).
func DeleteStepData(s Store, id string) error {
	return s.Delete(stepDataKey(id))
}

func stepDefKey(id string) string  { return "step/" + id }
func stepDataKey(id string) string { return "step-data/" + id }

func splitKey(key string) (bucket []byte, id string, err error) {
	const stepPrefix = "step/"
	const stepDataPrefix = "step-data/"

	switch {
	case len(key) > len(stepDataPrefix) && key[:len(stepDataPrefix)] == stepDataPrefix:
		return bucketStepData, key[len(stepDataPrefix):], nil
	case len(key) > len(stepPrefix) && key[:len(stepPrefix)] == stepPrefix:
		return bucketStepDefs, key[len(stepPrefix):], nil
	default:
		return nil, "", fmt.Errorf("blobstore: key %q has no recognized namespace", key)
	}
}

func notFoundErr(bucket []byte) error {
	if string(bucket) == string(bucketStepData) {
		return types.ErrStepDataNotFound
	}
	return types.ErrStepNotFound
}
