package downloads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrItemNotFound means the library item does not exist or is unpublished.
var ErrItemNotFound = errors.New("library item not found")

// ErrTokenConsumed means a single-use token was already redeemed.
var ErrTokenConsumed = errors.New("download token already used")

// DownloadType controls token reuse. EMAIL links may be clicked again
// inside the validity window; DIRECT links are single-use.
type DownloadType string

const (
	DownloadEmail  DownloadType = "EMAIL"
	DownloadDirect DownloadType = "DIRECT"
)

// LibraryItem is one downloadable resource (whitepaper, framework doc).
type LibraryItem struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	FileKey      string       `json:"file_key"`
	DownloadType DownloadType `json:"download_type"`
	Published    bool         `json:"published"`
	CreatedAt    time.Time    `json:"created_at"`
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists library items and the issued download tokens.
type Store struct {
	db querier
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

func newStoreWithQuerier(q querier) *Store {
	return &Store{db: q}
}

// GetItem fetches a published library item.
func (s *Store) GetItem(ctx context.Context, id string) (*LibraryItem, error) {
	var item LibraryItem
	err := s.db.QueryRow(ctx, `
		SELECT id, title, file_key, download_type, published, created_at
		FROM library_items
		WHERE id = $1 AND published = TRUE`, id).
		Scan(&item.ID, &item.Title, &item.FileKey, &item.DownloadType, &item.Published, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("downloads: select item: %w", err)
	}
	return &item, nil
}

// SaveToken records an issued token so single-use redemption can be
// enforced server side.
func (s *Store) SaveToken(ctx context.Context, jti, leadID, itemID string, expiresAt time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO download_tokens (jti, lead_id, library_item_id, expires_at)
		VALUES ($1, $2, $3, $4)`, jti, leadID, itemID, expiresAt)
	if err != nil {
		return fmt.Errorf("downloads: save token: %w", err)
	}
	return nil
}

// Redeem marks the token consumed. For single-use tokens a second redeem
// returns ErrTokenConsumed; reusable tokens only stamp first use.
func (s *Store) Redeem(ctx context.Context, jti string, singleUse bool) error {
	if singleUse {
		tag, err := s.db.Exec(ctx, `
			UPDATE download_tokens SET consumed_at = now()
			WHERE jti = $1 AND consumed_at IS NULL`, jti)
		if err != nil {
			return fmt.Errorf("downloads: redeem token: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrTokenConsumed
		}
		return nil
	}

	_, err := s.db.Exec(ctx, `
		UPDATE download_tokens SET consumed_at = COALESCE(consumed_at, now())
		WHERE jti = $1`, jti)
	if err != nil {
		return fmt.Errorf("downloads: stamp token: %w", err)
	}
	return nil
}

// IncrementDownloads bumps the item's download counter.
func (s *Store) IncrementDownloads(ctx context.Context, itemID string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE library_items SET download_count = download_count + 1
		WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("downloads: increment count: %w", err)
	}
	return nil
}
