package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository reads the lead columns the aggregator needs.
type Repository struct {
	db querier
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

func newRepositoryWithQuerier(q querier) *Repository {
	return &Repository{db: q}
}

// FetchLeads returns facts for leads created inside [from, to), oldest
// first so time-series buckets come out in order.
func (r *Repository) FetchLeads(ctx context.Context, from, to time.Time) ([]LeadFacts, error) {
	rows, err := r.db.Query(ctx, `
		SELECT created_at, source, lead_status, lead_score,
			email_sent, email_opened, download_link_clicked
		FROM leads
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("analytics: query leads: %w", err)
	}
	defer rows.Close()

	var facts []LeadFacts
	for rows.Next() {
		var f LeadFacts
		if err := rows.Scan(&f.CreatedAt, &f.Source, &f.Status, &f.Score,
			&f.EmailSent, &f.EmailOpened, &f.LinkClicked); err != nil {
			return nil, fmt.Errorf("analytics: scan lead: %w", err)
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
