// Package snapshot persists daily options dollar-flow observations so the
// flow-trend scoring has trailing history to compare against.
package snapshot

import (
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"
	"github.com/timshannon/badgerhold/v4"

	"github.com/arkad-labs/eventpulse/pkg/models"
	"github.com/arkad-labs/eventpulse/pkg/utils"
)

// Store is the embedded flow-snapshot database.
type Store struct {
	store *badgerhold.Store
	log   zerolog.Logger
}

// Open opens (or creates) the snapshot database at dir.
func Open(dir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil // badger's own logger is too chatty for a CLI

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	log = log.With().Str("component", "snapshot").Logger()
	log.Debug().Str("dir", dir).Msg("snapshot store opened")

	return &Store{store: store, log: log}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// Record upserts one day's snapshots. Re-recording the same
// symbol/date/expiration replaces the earlier observation, so re-running an
// analysis on the same day does not inflate history.
func (s *Store) Record(snaps []models.FlowSnapshot) error {
	for _, snap := range snaps {
		if snap.Symbol == "" || snap.SnapshotDate.IsZero() {
			return fmt.Errorf("snapshot missing symbol or date: %+v", snap)
		}
		if err := s.store.Upsert(snap.Key(), snap); err != nil {
			return fmt.Errorf("record snapshot %s: %w", snap.Key(), err)
		}
	}
	s.log.Debug().Int("count", len(snaps)).Msg("snapshots recorded")
	return nil
}

// History returns the symbol's snapshots from the trailing window of
// calendar days (anchored at today), oldest first.
func (s *Store) History(symbol string, days int) ([]models.FlowSnapshot, error) {
	cutoff := utils.DateKeyUTC(utils.NowEastern()).AddDays(-days)

	var all []models.FlowSnapshot
	err := s.store.Find(&all, badgerhold.Where("Symbol").Eq(symbol).Index("Symbol"))
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", symbol, err)
	}

	// Window filtering happens here: badgerhold cannot order-compare the
	// DateKey string type.
	snaps := all[:0]
	for _, snap := range all {
		if !snap.SnapshotDate.Before(cutoff) {
			snaps = append(snaps, snap)
		}
	}

	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].SnapshotDate != snaps[j].SnapshotDate {
			return snaps[i].SnapshotDate.Before(snaps[j].SnapshotDate)
		}
		return snaps[i].ExpirationDate.Before(snaps[j].ExpirationDate)
	})
	return snaps, nil
}

// Prune deletes snapshots older than the retention window.
func (s *Store) Prune(retentionDays int) error {
	cutoff := utils.DateKeyUTC(utils.NowEastern()).AddDays(-retentionDays)

	err := s.store.DeleteMatching(&models.FlowSnapshot{},
		badgerhold.Where("SnapshotDate").MatchFunc(func(ra *badgerhold.RecordAccess) (bool, error) {
			snap, ok := ra.Record().(*models.FlowSnapshot)
			if !ok {
				return false, fmt.Errorf("unexpected record type %T", ra.Record())
			}
			return snap.SnapshotDate.Before(cutoff), nil
		}))
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	s.log.Debug().Str("cutoff", cutoff.String()).Msg("old snapshots pruned")
	return nil
}
