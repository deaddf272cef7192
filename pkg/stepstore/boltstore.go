package stepstore

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/daniel-olson-code/pipeline/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketSteps = []byte("steps")
	bucketTags  = []byte("tags")
)

// BoltStore is the bbolt-backed Step Record Store. It lives in its own bolt
// file, separate from pkg/blobstore's, so the hot status-transition path
// never blocks on blob I/O.
type BoltStore struct {
	db *bolt.DB
}

// Open creates or opens a step store database under dataDir.
func Open(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "steps.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open step store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketSteps, bucketTags} {
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

func (s *BoltStore) Put(step *types.Step) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(step)
		if err != nil {
			return fmt.Errorf("encode step %s: %w", step.ID, err)
		}
		return tx.Bucket(bucketSteps).Put([]byte(step.ID), data)
	})
}

// PutMany mirrors BulkSetStatus's one-transaction shape: every record is
// written to the bucket inside a single bolt.Update, so a bundle's Step
// Records either all commit or none do.
func (s *BoltStore) PutMany(steps []*types.Step) error {
	if len(steps) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSteps)
		for _, step := range steps {
			data, err := json.Marshal(step)
			if err != nil {
				return fmt.Errorf("encode step %s: %w", step.ID, err)
			}
			if err := b.Put([]byte(step.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) Get(id string) (*types.Step, error) {
	var step types.Step
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketSteps).Get([]byte(id))
		if data == nil {
			return types.ErrStepNotFound
		}
		return json.Unmarshal(data, &step)
	})
	if err != nil {
		return nil, err
	}
	return &step, nil
}

func (s *BoltStore) GetMany(ids []string) ([]*types.Step, error) {
	steps := make([]*types.Step, 0, len(ids))
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSteps)
		for _, id := range ids {
			data := b.Get([]byte(id))
			if data == nil {
				continue
			}
			var step types.Step
			if err := json.Unmarshal(data, &step); err != nil {
				return fmt.Errorf("decode step %s: %w", id, err)
			}
			steps = append(steps, &step)
		}
		return nil
	})
	return steps, err
}

func (s *BoltStore) UpdateStatus(id string, status types.StepStatus, epoch int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSteps)
		data := b.Get([]byte(id))
		if data == nil {
			return types.ErrStepNotFound
		}
		var step types.Step
		if err := json.Unmarshal(data, &step); err != nil {
			return err
		}
		step.Status = status
		step.Epoch = epoch
		out, err := json.Marshal(&step)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), out)
	})
}

func (s *BoltStore) SetError(id string, msg, trace string, epoch int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSteps)
		data := b.Get([]byte(id))
		if data == nil {
			return types.ErrStepNotFound
		}
		var step types.Step
		if err := json.Unmarshal(data, &step); err != nil {
			return err
		}
		step.Status = types.StatusError
		step.Epoch = epoch
		step.Msg = msg
		step.Trace = trace
		out, err := json.Marshal(&step)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), out)
	})
}

func (s *BoltStore) BulkSetStatus(ids []string, status types.StepStatus, epoch int64) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSteps)
		for _, id := range ids {
			data := b.Get([]byte(id))
			if data == nil {
				continue
			}
			var step types.Step
			if err := json.Unmarshal(data, &step); err != nil {
				return fmt.Errorf("decode step %s: %w", id, err)
			}
			step.Status = status
			step.Epoch = epoch
			out, err := json.Marshal(&step)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(id), out); err != nil {
				return err
			}
		}
		return nil
	})
}

// ScanCandidates pages through the steps bucket chunkSize keys at a time,
// decoding each and invoking visit when it matches scope membership and is
// either pending or an expired working lease. This is the bbolt equivalent
// of the reference implementation's chunked "OFFSET/LIMIT" SQL scan: bbolt
// has no secondary index on (scope, status, epoch), so every candidate must
// be examined, but paging bounds how many records are held decoded at once.
func (s *BoltStore) ScanCandidates(scopes []string, leaseExpiry int64, chunkSize int, visit func(*types.Step) bool) error {
	if chunkSize <= 0 {
		chunkSize = 100
	}
	scopeSet := make(map[string]bool, len(scopes))
	for _, sc := range scopes {
		scopeSet[sc] = true
	}

	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSteps).Cursor()
		k, v := c.First()
		for k != nil {
			page := make([][]byte, 0, chunkSize)
			for i := 0; i < chunkSize && k != nil; i++ {
				page = append(page, v)
				k, v = c.Next()
			}
			for _, raw := range page {
				var step types.Step
				if err := json.Unmarshal(raw, &step); err != nil {
					return fmt.Errorf("decode step: %w", err)
				}
				if !scopeSet[step.Scope] {
					continue
				}
				eligible := step.Status == types.StatusPending ||
					(step.Status == types.StatusWorking && step.Epoch < leaseExpiry)
				if !eligible {
					continue
				}
				if !visit(&step) {
					return nil
				}
			}
		}
		return nil
	})
}

// CountByStatus scans every Step Record and tallies status counts.
func (s *BoltStore) CountByStatus() (map[types.StepStatus]int, error) {
	counts := make(map[types.StepStatus]int)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSteps).ForEach(func(k, v []byte) error {
			var step types.Step
			if err := json.Unmarshal(v, &step); err != nil {
				return err
			}
			counts[step.Status]++
			return nil
		})
	})
	return counts, err
}

func (s *BoltStore) GetTag(tag string) (*types.TagRow, error) {
	var row types.TagRow
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTags).Get([]byte(tag))
		if data == nil {
			return types.ErrStepNotFound
		}
		return json.Unmarshal(data, &row)
	})
	if err != nil {
		return nil, nil // unconfigured tag: unlimited, not an error
	}
	return &row, nil
}

func (s *BoltStore) PutTag(row *types.TagRow) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(row)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketTags).Put([]byte(row.Tag), data)
	})
}

func (s *BoltStore) ListTags() ([]*types.TagRow, error) {
	var rows []*types.TagRow
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTags).ForEach(func(k, v []byte) error {
			var row types.TagRow
			if err := json.Unmarshal(v, &row); err != nil {
				return err
			}
			rows = append(rows, &row)
			return nil
		})
	})
	return rows, err
}
