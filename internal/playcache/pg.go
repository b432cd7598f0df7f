package playcache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"

	"github.com/reelgrid/reelgrid/internal/database"
)

// PGStore persists entries in the playback_cache table as JSONB.
// Writes are plain read-modify-write upserts; last write wins, per the
// cache contract.
type PGStore struct {
	db    database.DBTX
	clock clockwork.Clock
}

func NewPGStore(db database.DBTX, clock clockwork.Clock) *PGStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &PGStore{db: db, clock: clock}
}

func (s *PGStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	var raw []byte
	err := s.db.QueryRow(ctx,
		`SELECT entry FROM playback_cache WHERE key = $1`,
		key,
	).Scan(&raw)
	if err == pgx.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("read cache entry: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		// Corrupt row: treat as a miss, it will be overwritten.
		return Entry{}, false, nil
	}
	return e, true, nil
}

func (s *PGStore) Put(ctx context.Context, key string, u Update) error {
	e, _, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	e = merge(e, u, s.clock.Now())

	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO playback_cache (key, entry, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET entry = $2, updated_at = now()`,
		key, raw,
	)
	if err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}
