package downloads

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/glec-io/lead-pipeline/internal/leads"
	"github.com/glec-io/lead-pipeline/pkg/logging"
)

type tokenStore interface {
	GetItem(ctx context.Context, id string) (*LibraryItem, error)
	SaveToken(ctx context.Context, jti, leadID, itemID string, expiresAt time.Time) error
	Redeem(ctx context.Context, jti string, singleUse bool) error
	IncrementDownloads(ctx context.Context, itemID string) error
}

// Service issues download links for library leads and resolves incoming
// tokens into file URLs.
type Service struct {
	issuer  *TokenIssuer
	store   tokenStore
	signer  FileURLSigner
	baseURL string
	logger  *logging.Logger
}

// NewService wires the download pipeline. baseURL is the public API origin
// the email links point at.
func NewService(issuer *TokenIssuer, store tokenStore, signer FileURLSigner, baseURL string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		issuer:  issuer,
		store:   store,
		signer:  signer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// DownloadLink mints a token for the lead's requested item and returns the
// public URL to embed in the confirmation email.
func (s *Service) DownloadLink(ctx context.Context, lead *leads.Lead) (string, error) {
	item, err := s.store.GetItem(ctx, lead.LibraryItemID)
	if err != nil {
		return "", err
	}

	token, jti, expiresAt, err := s.issuer.Issue(lead.ID, item.ID, lead.Email)
	if err != nil {
		return "", err
	}
	if err := s.store.SaveToken(ctx, jti, lead.ID, item.ID, expiresAt); err != nil {
		return "", err
	}

	s.logger.Info("download token issued", "lead_id", lead.ID, "library_item_id", item.ID, "jti", jti)
	return fmt.Sprintf("%s/api/v1/library/download/%s", s.baseURL, token), nil
}

// Resolve verifies the token and returns the signed file URL to redirect
// to. DIRECT items consume the token; a second redeem fails with
// ErrTokenConsumed.
func (s *Service) Resolve(ctx context.Context, rawToken string) (string, error) {
	claims, err := s.issuer.Parse(rawToken)
	if err != nil {
		return "", err
	}

	item, err := s.store.GetItem(ctx, claims.LibraryItemID)
	if err != nil {
		return "", err
	}

	if err := s.store.Redeem(ctx, claims.ID, item.DownloadType == DownloadDirect); err != nil {
		return "", err
	}

	url, err := s.signer.SignedURL(ctx, item.FileKey)
	if err != nil {
		return "", err
	}

	// Counting is best effort; a failed bump never blocks the download.
	if err := s.store.IncrementDownloads(ctx, item.ID); err != nil {
		s.logger.Warn("failed to bump download count", "error", err, "library_item_id", item.ID)
	}

	s.logger.Info("download resolved", "lead_id", claims.LeadID, "library_item_id", item.ID, "jti", claims.ID)
	return url, nil
}
