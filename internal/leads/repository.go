package leads

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EngagementEvent names a monotone flag update applied by webhook
// processing.
type EngagementEvent string

const (
	EngagementSent    EngagementEvent = "sent"
	EngagementOpened  EngagementEvent = "opened"
	EngagementClicked EngagementEvent = "clicked"
)

// ListFilter narrows and pages admin lead listings.
type ListFilter struct {
	Source   Source
	Status   Status
	Search   string
	Page     int
	PageSize int
}

// Repository defines the interface for lead storage
type Repository interface {
	Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error)
	GetByID(ctx context.Context, id string) (*Lead, error)
	GetByDispatchID(ctx context.Context, dispatchID string) (*Lead, error)
	SetDispatchID(ctx context.Context, id, dispatchID string) error
	// RecentExists reports whether a lead with the same email and source
	// was created inside the cooldown window.
	RecentExists(ctx context.Context, email string, source Source, window time.Duration) (bool, error)
	// ApplyEngagement sets the flag for the event if not already set,
	// returning the lead's current state afterwards. The update is atomic
	// and never unsets a flag.
	ApplyEngagement(ctx context.Context, id string, event EngagementEvent, at time.Time) (*Lead, error)
	// UpdateDerived refreshes the cached score/status columns.
	UpdateDerived(ctx context.Context, id string, score int, status Status) error
	MarkSuppressed(ctx context.Context, email, reason string) error
	List(ctx context.Context, filter ListFilter) ([]*Lead, int, error)
	Delete(ctx context.Context, id string) error
}

// InMemoryRepository is a Repository backed by a map, used in tests and
// local development without Postgres.
type InMemoryRepository struct {
	mu         sync.RWMutex
	leads      map[string]*Lead
	suppressed map[string]string
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		leads:      make(map[string]*Lead),
		suppressed: make(map[string]string),
	}
}

// Create validates and stores a new lead with zeroed derived fields.
func (r *InMemoryRepository) Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	lead := &Lead{
		ID:               uuid.New().String(),
		Source:           req.Source,
		CompanyName:      req.CompanyName,
		ContactName:      req.ContactName,
		Email:            req.Email,
		Phone:            req.Phone,
		Message:          req.Message,
		CompanySize:      req.CompanySize,
		ProductInterests: req.ProductInterests,
		UseCase:          req.UseCase,
		MonthlyShipments: req.MonthlyShipments,
		PrivacyConsent:   req.PrivacyConsent,
		MarketingConsent: req.MarketingConsent,
		LibraryItemID:    req.LibraryItemID,
		LeadScore:        0,
		LeadStatus:       StatusNew,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	r.mu.Lock()
	r.leads[lead.ID] = lead
	r.mu.Unlock()

	return lead, nil
}

// GetByID retrieves a lead by ID
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lead, ok := r.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	cp := *lead
	return &cp, nil
}

// GetByDispatchID finds the lead whose confirmation email carries the
// provider dispatch id.
func (r *InMemoryRepository) GetByDispatchID(ctx context.Context, dispatchID string) (*Lead, error) {
	if dispatchID == "" {
		return nil, ErrLeadNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, lead := range r.leads {
		if lead.EmailDispatchID == dispatchID {
			cp := *lead
			return &cp, nil
		}
	}
	return nil, ErrLeadNotFound
}

// SetDispatchID records the provider email id on the lead.
func (r *InMemoryRepository) SetDispatchID(ctx context.Context, id, dispatchID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lead, ok := r.leads[id]
	if !ok {
		return ErrLeadNotFound
	}
	lead.EmailDispatchID = dispatchID
	lead.UpdatedAt = time.Now().UTC()
	return nil
}

// RecentExists reports whether a same email+source lead exists inside window.
func (r *InMemoryRepository) RecentExists(ctx context.Context, email string, source Source, window time.Duration) (bool, error) {
	cutoff := time.Now().UTC().Add(-window)
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, lead := range r.leads {
		if strings.EqualFold(lead.Email, email) && lead.Source == source && lead.CreatedAt.After(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

// ApplyEngagement sets the monotone flag for event and returns the lead.
func (r *InMemoryRepository) ApplyEngagement(ctx context.Context, id string, event EngagementEvent, at time.Time) (*Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lead, ok := r.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}

	switch event {
	case EngagementSent:
		if !lead.Engagement.EmailSent {
			lead.Engagement.EmailSent = true
			lead.Engagement.EmailSentAt = &at
		}
	case EngagementOpened:
		if !lead.Engagement.EmailOpened {
			lead.Engagement.EmailOpened = true
			lead.Engagement.EmailOpenedAt = &at
		}
	case EngagementClicked:
		if !lead.Engagement.DownloadLinkClicked {
			lead.Engagement.DownloadLinkClicked = true
			lead.Engagement.DownloadLinkClickedAt = &at
		}
	}
	lead.UpdatedAt = time.Now().UTC()
	cp := *lead
	return &cp, nil
}

// UpdateDerived refreshes the cached score and status.
func (r *InMemoryRepository) UpdateDerived(ctx context.Context, id string, score int, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lead, ok := r.leads[id]
	if !ok {
		return ErrLeadNotFound
	}
	lead.LeadScore = score
	lead.LeadStatus = status
	lead.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkSuppressed blocks future sends to the email address.
func (r *InMemoryRepository) MarkSuppressed(ctx context.Context, email, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.suppressed[strings.ToLower(email)] = reason
	for _, lead := range r.leads {
		if strings.EqualFold(lead.Email, email) {
			lead.Suppressed = true
			lead.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

// IsSuppressed reports whether the address is on the suppression list.
func (r *InMemoryRepository) IsSuppressed(email string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.suppressed[strings.ToLower(email)]
	return ok
}

// List returns leads matching filter, newest first, with the total count.
func (r *InMemoryRepository) List(ctx context.Context, filter ListFilter) ([]*Lead, int, error) {
	r.mu.RLock()
	var matched []*Lead
	for _, lead := range r.leads {
		if filter.Source != "" && lead.Source != filter.Source {
			continue
		}
		if filter.Status != "" && lead.LeadStatus != filter.Status {
			continue
		}
		if s := strings.ToLower(filter.Search); s != "" {
			if !strings.Contains(strings.ToLower(lead.Email), s) &&
				!strings.Contains(strings.ToLower(lead.CompanyName), s) &&
				!strings.Contains(strings.ToLower(lead.ContactName), s) {
				continue
			}
		}
		cp := *lead
		matched = append(matched, &cp)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	start := (page - 1) * size
	if start >= total {
		return []*Lead{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// Delete removes a lead.
func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.leads[id]; !ok {
		return ErrLeadNotFound
	}
	delete(r.leads, id)
	return nil
}
