// Package results is the Badger-backed task result store. Each executed
// task leaves one record keyed by its task ID so operators can inspect
// outcomes after the fact; records expire after a retention window.
package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const keyPrefix = "result:"

// ErrNotFound marks a missing or expired result record.
var ErrNotFound = errors.New("results: not found")

// Status classifies the outcome of a task execution.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
	StatusDead  Status = "dead"
)

// Result is one recorded task execution.
type Result struct {
	TaskID     string    `json:"task_id"`
	Name       string    `json:"name"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMS int64     `json:"duration_ms"`
}

// Store persists task results in a local Badger database.
type Store struct {
	db  *badger.DB
	ttl time.Duration
}

// Open opens or creates the result database at path. Records are kept for
// the given retention; zero retention keeps them forever.
func Open(path string, retention time.Duration) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open result store: %w", err)
	}
	return &Store{db: db, ttl: retention}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Put records one task execution.
func (s *Store) Put(ctx context.Context, r Result) error {
	if r.TaskID == "" {
		return fmt.Errorf("result task id must be set")
	}
	buf, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	key := []byte(keyPrefix + r.TaskID)
	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, buf)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Get returns the result for a task ID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, taskID string) (Result, error) {
	var out Result
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + taskID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Result{}, ErrNotFound
	}
	if err != nil {
		return Result{}, err
	}
	return out, nil
}

// Recent returns up to limit results, most recently finished first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Result, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var all []Result
	prefix := []byte(keyPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			var r Result
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			}); err != nil {
				continue
			}
			all = append(all, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].FinishedAt.After(all[j].FinishedAt)
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
