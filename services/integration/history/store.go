// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history records past predictions in BadgerDB and diffs them.
//
// Keys are "run/<unix-nanos, zero padded>/<run id>", so lexical order is
// chronological order.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/foresight/services/integration/model"
)

// ErrNotFound is returned by Latest when nothing has been recorded.
var ErrNotFound = errors.New("no prediction recorded")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("history store closed")

const runPrefix = "run/"

// Entry is one recorded prediction.
type Entry struct {
	RunID      string                       `json:"run_id"`
	RecordedAt time.Time                    `json:"recorded_at"`
	Prediction *model.IntegrationPrediction `json:"prediction"`
}

// Store is the badger-backed prediction history.
//
// # Thread Safety
//
// Safe for concurrent use.
type Store struct {
	db     *badger.DB
	gc     *gcRunner
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// Open opens or creates a history store.
//
// # Outputs
//
//   - *Store: Call Close when done.
//   - error: Non-nil if the database cannot be opened.
func Open(cfg Config) (*Store, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, logger: logger.With(slog.String("component", "history"))}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gc = startGC(db, cfg.GCInterval, cfg.GCDiscardRatio, s.logger)
	}
	return s, nil
}

// OpenInMemory opens a store that is discarded on Close.
func OpenInMemory() (*Store, error) {
	return Open(InMemoryConfig())
}

// Close stops GC and closes the database. Safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.gc != nil {
		s.gc.stop()
	}
	return s.db.Close()
}

// Record stores a prediction under a time-ordered key.
//
// # Inputs
//
//   - ctx: Checked for cancellation before writing.
//   - runID: Identifier of the run that produced pred.
//   - pred: The prediction. Must not be nil.
//   - at: Recording time; zero uses time.Now.
func (s *Store) Record(ctx context.Context, runID string, pred *model.IntegrationPrediction, at time.Time) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	if pred == nil {
		return Entry{}, errors.New("nil prediction")
	}
	if at.IsZero() {
		at = time.Now()
	}
	entry := Entry{RunID: runID, RecordedAt: at.UTC(), Prediction: pred}

	data, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("encode history entry: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Entry{}, ErrClosed
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(at, runID), data)
	})
	if err != nil {
		return Entry{}, fmt.Errorf("record prediction %s: %w", runID, err)
	}

	s.logger.Debug("prediction recorded",
		slog.String("run_id", runID),
		slog.Int("failures", len(pred.PredictedFailures)))
	return entry, nil
}

// Latest returns the most recent entry, or ErrNotFound.
func (s *Store) Latest(ctx context.Context) (Entry, error) {
	entries, err := s.List(ctx, 1)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, ErrNotFound
	}
	return entries[0], nil
}

// List returns up to limit entries, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	var out []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(runPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(append([]byte(runPrefix), 0xFF)); it.ValidForPrefix([]byte(runPrefix)); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var e Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				return fmt.Errorf("decode history entry %s: %w", it.Item().Key(), err)
			}
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func entryKey(at time.Time, runID string) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", runPrefix, at.UnixNano(), runID))
}

// Delta is the difference between two predictions.
type Delta struct {
	Introduced []model.PredictedFailure `json:"introduced"`
	Resolved   []model.PredictedFailure `json:"resolved"`
}

// Empty reports whether nothing changed.
func (d Delta) Empty() bool {
	return len(d.Introduced) == 0 && len(d.Resolved) == 0
}

// Compare returns failures present only in current (introduced) and only in
// previous (resolved), keyed by (type, component A, component B). A nil
// previous treats every current failure as introduced.
func Compare(previous, current *model.IntegrationPrediction) Delta {
	prev := keyed(previous)
	cur := keyed(current)

	d := Delta{Introduced: []model.PredictedFailure{}, Resolved: []model.PredictedFailure{}}
	for k, f := range cur {
		if _, ok := prev[k]; !ok {
			d.Introduced = append(d.Introduced, f)
		}
	}
	for k, f := range prev {
		if _, ok := cur[k]; !ok {
			d.Resolved = append(d.Resolved, f)
		}
	}
	sortFailures(d.Introduced)
	sortFailures(d.Resolved)
	return d
}

func keyed(p *model.IntegrationPrediction) map[string]model.PredictedFailure {
	out := make(map[string]model.PredictedFailure)
	if p == nil {
		return out
	}
	for _, f := range p.PredictedFailures {
		if _, dup := out[f.Key()]; !dup {
			out[f.Key()] = f
		}
	}
	return out
}

func sortFailures(fs []model.PredictedFailure) {
	sort.Slice(fs, func(i, j int) bool { return fs[i].Key() < fs[j].Key() })
}
