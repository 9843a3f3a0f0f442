package events

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store persists webhook events. The table carries a unique constraint on
// (provider_email_id, event_type) so a replayed delivery of the same event
// records nothing and reports not-inserted.
type Store struct {
	db querier
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

func newStoreWithQuerier(q querier) *Store {
	return &Store{db: q}
}

// Record appends one event. It returns true when the event was new and
// false when an event with the same (provider_email_id, event_type) pair
// was already recorded.
func (s *Store) Record(ctx context.Context, providerEmailID string, eventType Type, payload []byte) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO webhook_events (provider_email_id, event_type, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider_email_id, event_type) DO NOTHING`,
		providerEmailID, string(eventType), payload)
	if err != nil {
		return false, fmt.Errorf("events: record %s/%s: %w", providerEmailID, eventType, err)
	}
	return tag.RowsAffected() > 0, nil
}
