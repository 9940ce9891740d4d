// Package storage keeps a revisioned on-disk inventory of everything
// the scanner has seen and every terminal outcome the executor reached,
// so re-runs can skip work that is already done.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/btree"
	"go.etcd.io/bbolt"

	"github.com/yairfalse/sweeper/types"
)

// Bucket names in bbolt
var (
	bucketObservations = []byte("observations")
	bucketOutcomes     = []byte("outcomes")
	bucketMeta         = []byte("meta")
)

// ResourceState tracks a resource's latest known state in the index
type ResourceState struct {
	ResourceID   string
	Service      string
	Account      string
	FirstSeenRev int64
	LastSeenRev  int64
	Exists       bool
}

// Inventory is a multi-revision store over bbolt with an in-memory
// btree index for fast lookups.
type Inventory struct {
	mu sync.RWMutex

	index *btree.BTreeG[*ResourceState]
	db    *bbolt.DB

	currentRev int64
	dir        string
}

// Open opens (or creates) the inventory database in dir.
func Open(dir string) (*Inventory, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dir, "inventory.db")

	db, err := bbolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketObservations, bucketOutcomes, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	inv := &Inventory{
		index: btree.NewG[*ResourceState](32, func(a, b *ResourceState) bool {
			return a.ResourceID < b.ResourceID
		}),
		db:  db,
		dir: dir,
	}

	if err := inv.loadRevision(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := inv.rebuildIndex(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return inv, nil
}

// Close closes the database.
func (s *Inventory) Close() error {
	return s.db.Close()
}

// RecordScan stores a whole scan's resources atomically under one
// revision and refreshes the index.
func (s *Inventory) RecordScan(resources []types.Resource) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentRev++
	rev := s.currentRev

	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketObservations)

		for i := range resources {
			key := observationKey(rev, resources[i].ID)
			value, err := json.Marshal(&resources[i])
			if err != nil {
				return err
			}
			if err := bucket.Put(key, value); err != nil {
				return err
			}
		}

		return tx.Bucket(bucketMeta).Put([]byte("current_revision"), int64ToBytes(rev))
	})
	if err != nil {
		s.currentRev--
		return 0, err
	}

	for i := range resources {
		s.updateIndex(&resources[i], rev)
	}

	return rev, nil
}

// RecordOutcome persists a terminal operation outcome. A successful
// delete also marks the resource gone in the index.
func (s *Inventory) RecordOutcome(runID string, result types.OperationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := storedOutcome{RunID: runID, Result: result}
	value, err := json.Marshal(stored)
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketOutcomes).Put([]byte(result.ResourceID), value)
	})
	if err != nil {
		return err
	}

	if result.Op == types.OpDelete && result.Mode == types.ModeLive && deleteSatisfied(result.Outcome) {
		probe := &ResourceState{ResourceID: result.ResourceID}
		if state, found := s.index.Get(probe); found {
			state.Exists = false
			s.index.ReplaceOrInsert(state)
		}
	}

	return nil
}

type storedOutcome struct {
	RunID  string                `json:"run_id"`
	Result types.OperationResult `json:"result"`
}

// AlreadyDeleted reports whether a previous live run already removed
// the resource. Re-runs use this to short-circuit straight to an
// already-satisfied result.
func (s *Inventory) AlreadyDeleted(resourceID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var satisfied bool
	_ = s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketOutcomes).Get([]byte(resourceID))
		if value == nil {
			return nil
		}
		var stored storedOutcome
		if err := json.Unmarshal(value, &stored); err != nil {
			return nil
		}
		satisfied = stored.Result.Op == types.OpDelete &&
			stored.Result.Mode == types.ModeLive &&
			deleteSatisfied(stored.Result.Outcome)
		return nil
	})
	return satisfied
}

// LastOutcome returns the stored terminal outcome for a resource.
func (s *Inventory) LastOutcome(resourceID string) (*types.OperationResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result *types.OperationResult
	_ = s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketOutcomes).Get([]byte(resourceID))
		if value == nil {
			return nil
		}
		var stored storedOutcome
		if err := json.Unmarshal(value, &stored); err != nil {
			return nil
		}
		result = &stored.Result
		return nil
	})
	return result, result != nil
}

// GetState returns the indexed state of a resource.
func (s *Inventory) GetState(resourceID string) (*ResourceState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, found := s.index.Get(&ResourceState{ResourceID: resourceID})
	return state, found
}

// AscendStates walks the index in ID order. Return false to stop.
func (s *Inventory) AscendStates(fn func(*ResourceState) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.index.Ascend(fn)
}

// GetResource loads the most recent observation of a resource.
func (s *Inventory) GetResource(resourceID string) (*types.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketObservations).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if _, id := parseObservationKey(k); id == resourceID {
				latest = append([]byte(nil), v...)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, fmt.Errorf("resource %s not found", resourceID)
	}

	var res types.Resource
	if err := json.Unmarshal(latest, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CurrentRevision returns the current revision number.
func (s *Inventory) CurrentRevision() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRev
}

func (s *Inventory) updateIndex(res *types.Resource, rev int64) {
	probe := &ResourceState{ResourceID: res.ID}
	if existing, found := s.index.Get(probe); found {
		existing.LastSeenRev = rev
		existing.Exists = true
		s.index.ReplaceOrInsert(existing)
		return
	}
	s.index.ReplaceOrInsert(&ResourceState{
		ResourceID:   res.ID,
		Service:      res.Service,
		Account:      res.Account,
		FirstSeenRev: rev,
		LastSeenRev:  rev,
		Exists:       true,
	})
}

func (s *Inventory) loadRevision() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketMeta).Get([]byte("current_revision"))
		if value != nil {
			s.currentRev = bytesToInt64(value)
		}
		return nil
	})
}

// rebuildIndex replays observations so the index survives restarts.
func (s *Inventory) rebuildIndex() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketObservations).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			rev, _ := parseObservationKey(k)
			var res types.Resource
			if err := json.Unmarshal(v, &res); err != nil {
				continue
			}
			s.updateIndex(&res, rev)
		}
		return nil
	})
}

func deleteSatisfied(outcome types.Outcome) bool {
	return outcome == types.OutcomeSuccess || outcome == types.OutcomeAlreadySatisfied
}

// observationKey is rev (big-endian, so cursor order is revision order)
// followed by the resource ID.
func observationKey(rev int64, resourceID string) []byte {
	key := make([]byte, 8, 8+1+len(resourceID))
	binary.BigEndian.PutUint64(key, uint64(rev))
	key = append(key, ':')
	key = append(key, resourceID...)
	return key
}

func parseObservationKey(key []byte) (int64, string) {
	if len(key) < 10 {
		return 0, ""
	}
	rev := int64(binary.BigEndian.Uint64(key[:8]))
	id := strings.TrimPrefix(string(key[8:]), ":")
	return rev, id
}

func int64ToBytes(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func bytesToInt64(b []byte) int64 {
	if len(b) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}
