package leads

import (
	"context"
	"time"

	"github.com/glec-io/lead-pipeline/pkg/logging"
)

// EmailDispatcher enqueues the confirmation/notification email for a newly
// created lead. Dispatch is asynchronous; a failure here must never fail
// the intake itself.
type EmailDispatcher interface {
	EnqueueLeadEmail(ctx context.Context, lead *Lead) error
}

// IntakeService validates and persists form submissions.
type IntakeService struct {
	repo       Repository
	cooldown   *CooldownCache
	dispatcher EmailDispatcher
	window     time.Duration
	logger     *logging.Logger
}

// NewIntakeService wires the intake pipeline. dispatcher and cooldown may
// be nil (no email, no cache).
func NewIntakeService(repo Repository, cooldown *CooldownCache, dispatcher EmailDispatcher, window time.Duration, logger *logging.Logger) *IntakeService {
	if logger == nil {
		logger = logging.Default()
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &IntakeService{
		repo:       repo,
		cooldown:   cooldown,
		dispatcher: dispatcher,
		window:     window,
		logger:     logger,
	}
}

// Submit processes one form submission: sanitize, validate, suppress
// duplicates inside the cooldown window, persist, then enqueue the
// confirmation email. The lead row lands with score 0, status NEW and all
// engagement flags false; email dispatch failures are logged and recorded,
// never surfaced to the submitter.
func (s *IntakeService) Submit(ctx context.Context, req *CreateLeadRequest) (*Lead, error) {
	req.Sanitize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if !s.cooldown.Acquire(ctx, req.Email, req.Source) {
		return nil, ErrDuplicateRequest
	}

	// Authoritative duplicate check; the cache above only saves a query.
	recent, err := s.repo.RecentExists(ctx, req.Email, req.Source, s.window)
	if err != nil {
		s.cooldown.Release(ctx, req.Email, req.Source)
		return nil, err
	}
	if recent {
		return nil, ErrDuplicateRequest
	}

	lead, err := s.repo.Create(ctx, req)
	if err != nil {
		s.cooldown.Release(ctx, req.Email, req.Source)
		return nil, err
	}

	if s.dispatcher != nil {
		if err := s.dispatcher.EnqueueLeadEmail(ctx, lead); err != nil {
			// The lead persists with email_sent=false; the provider's
			// sent webhook never arrives for it, which is the recorded
			// signal that dispatch failed.
			s.logger.Error("failed to enqueue lead email", "error", err, "lead_id", lead.ID)
		}
	}

	s.logger.Info("lead created",
		"lead_id", lead.ID,
		"source", lead.Source,
		"company", lead.CompanyName,
	)
	return lead, nil
}
