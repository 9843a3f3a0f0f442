package leads

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores leads in the relational database.
type PostgresRepository struct {
	pool pgxQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepositoryWithQuerier(q pgxQuerier) *PostgresRepository {
	if q == nil {
		panic("leads: querier required")
	}
	return &PostgresRepository{pool: q}
}

const leadColumns = `id, source, company_name, contact_name, email, phone, message,
	company_size, product_interests, use_case, monthly_shipments,
	privacy_consent, marketing_consent, library_item_id, email_dispatch_id,
	email_sent, email_sent_at, email_opened, email_opened_at,
	download_link_clicked, download_link_clicked_at, suppressed,
	lead_score, lead_status, notes, assigned_to, created_at, updated_at`

func scanLead(row pgx.Row) (*Lead, error) {
	var l Lead
	var phone, message, companySize, useCase, monthlyShipments, libraryItemID, dispatchID, notes, assignedTo *string
	var interests []string
	if err := row.Scan(
		&l.ID, &l.Source, &l.CompanyName, &l.ContactName, &l.Email, &phone, &message,
		&companySize, &interests, &useCase, &monthlyShipments,
		&l.PrivacyConsent, &l.MarketingConsent, &libraryItemID, &dispatchID,
		&l.Engagement.EmailSent, &l.Engagement.EmailSentAt,
		&l.Engagement.EmailOpened, &l.Engagement.EmailOpenedAt,
		&l.Engagement.DownloadLinkClicked, &l.Engagement.DownloadLinkClickedAt,
		&l.Suppressed, &l.LeadScore, &l.LeadStatus, &notes, &assignedTo,
		&l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	l.Phone = deref(phone)
	l.Message = deref(message)
	l.CompanySize = deref(companySize)
	l.UseCase = deref(useCase)
	l.MonthlyShipments = deref(monthlyShipments)
	l.LibraryItemID = deref(libraryItemID)
	l.EmailDispatchID = deref(dispatchID)
	l.Notes = deref(notes)
	l.AssignedTo = deref(assignedTo)
	l.ProductInterests = interests
	return &l, nil
}

// Create inserts a new row with zeroed engagement flags and derived fields.
// The lead, its score and its status land in a single statement so a
// storage failure leaves no partial write.
func (r *PostgresRepository) Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New()
	query := `
		INSERT INTO leads (id, source, company_name, contact_name, email, phone, message,
			company_size, product_interests, use_case, monthly_shipments,
			privacy_consent, marketing_consent, library_item_id,
			lead_score, lead_status)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''),
			NULLIF($8, ''), $9, NULLIF($10, ''), NULLIF($11, ''),
			$12, $13, NULLIF($14, ''), 0, 'NEW')
		RETURNING created_at, updated_at
	`
	var createdAt, updatedAt time.Time
	if err := r.pool.QueryRow(ctx, query,
		id,
		req.Source,
		req.CompanyName,
		req.ContactName,
		req.Email,
		req.Phone,
		req.Message,
		req.CompanySize,
		req.ProductInterests,
		req.UseCase,
		req.MonthlyShipments,
		req.PrivacyConsent,
		req.MarketingConsent,
		req.LibraryItemID,
	).Scan(&createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("leads: insert failed: %w", err)
	}

	return &Lead{
		ID:               id.String(),
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
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}, nil
}

// GetByID fetches a single lead.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	return lead, nil
}

// GetByDispatchID fetches the lead whose confirmation email has the given
// provider id. Returns ErrLeadNotFound for ids belonging to non-lead mail.
func (r *PostgresRepository) GetByDispatchID(ctx context.Context, dispatchID string) (*Lead, error) {
	if dispatchID == "" {
		return nil, ErrLeadNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE email_dispatch_id = $1`, dispatchID)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: select by dispatch id failed: %w", err)
	}
	return lead, nil
}

// SetDispatchID records the provider's email id on the lead.
func (r *PostgresRepository) SetDispatchID(ctx context.Context, id, dispatchID string) error {
	ct, err := r.pool.Exec(ctx, `
		UPDATE leads SET email_dispatch_id = $2, updated_at = now()
		WHERE id = $1`, id, dispatchID)
	if err != nil {
		return fmt.Errorf("leads: set dispatch id: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

// RecentExists reports whether a same email+source lead was created inside
// the cooldown window.
func (r *PostgresRepository) RecentExists(ctx context.Context, email string, source Source, window time.Duration) (bool, error) {
	cutoff := time.Now().UTC().Add(-window)
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM leads
			WHERE lower(email) = lower($1) AND source = $2 AND created_at > $3
		)`, email, source, cutoff).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("leads: cooldown check: %w", err)
	}
	return exists, nil
}

var engagementUpdates = map[EngagementEvent]string{
	EngagementSent: `
		UPDATE leads SET email_sent = TRUE,
			email_sent_at = COALESCE(email_sent_at, $2),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + leadColumns,
	EngagementOpened: `
		UPDATE leads SET email_opened = TRUE,
			email_opened_at = COALESCE(email_opened_at, $2),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + leadColumns,
	EngagementClicked: `
		UPDATE leads SET download_link_clicked = TRUE,
			download_link_clicked_at = COALESCE(download_link_clicked_at, $2),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + leadColumns,
}

// ApplyEngagement flips the monotone flag for event in one atomic UPDATE
// and returns the row's state afterwards. Re-applying is a no-op beyond
// bumping updated_at, and the first-seen timestamp is preserved, so
// out-of-order or duplicate deliveries cannot regress the flags.
func (r *PostgresRepository) ApplyEngagement(ctx context.Context, id string, event EngagementEvent, at time.Time) (*Lead, error) {
	query, ok := engagementUpdates[event]
	if !ok {
		return nil, fmt.Errorf("leads: unknown engagement event %q", event)
	}
	row := r.pool.QueryRow(ctx, query, id, at)
	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: apply engagement %s: %w", event, err)
	}
	return lead, nil
}

// UpdateDerived refreshes the cached score/status columns.
func (r *PostgresRepository) UpdateDerived(ctx context.Context, id string, score int, status Status) error {
	ct, err := r.pool.Exec(ctx, `
		UPDATE leads SET lead_score = $2, lead_status = $3, updated_at = now()
		WHERE id = $1`, id, score, status)
	if err != nil {
		return fmt.Errorf("leads: update derived: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

// MarkSuppressed puts the address on the suppression list and flags every
// lead carrying it. Engagement flags and score are left untouched.
func (r *PostgresRepository) MarkSuppressed(ctx context.Context, email, reason string) error {
	if _, err := r.pool.Exec(ctx, `
		INSERT INTO email_suppressions (email, reason)
		VALUES (lower($1), $2)
		ON CONFLICT (email) DO NOTHING`, email, reason); err != nil {
		return fmt.Errorf("leads: insert suppression: %w", err)
	}
	if _, err := r.pool.Exec(ctx, `
		UPDATE leads SET suppressed = TRUE, updated_at = now()
		WHERE lower(email) = lower($1)`, email); err != nil {
		return fmt.Errorf("leads: mark suppressed: %w", err)
	}
	return nil
}

// IsSuppressed reports whether the address is on the suppression list.
func (r *PostgresRepository) IsSuppressed(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM email_suppressions WHERE email = lower($1))`,
		email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("leads: suppression check: %w", err)
	}
	return exists, nil
}

// List returns leads matching filter, newest first, plus the total count.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*Lead, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	argNum := 1

	if filter.Source != "" {
		where += " AND source = $" + strconv.Itoa(argNum)
		args = append(args, filter.Source)
		argNum++
	}
	if filter.Status != "" {
		where += " AND lead_status = $" + strconv.Itoa(argNum)
		args = append(args, filter.Status)
		argNum++
	}
	if filter.Search != "" {
		where += " AND (email ILIKE $" + strconv.Itoa(argNum) +
			" OR company_name ILIKE $" + strconv.Itoa(argNum) +
			" OR contact_name ILIKE $" + strconv.Itoa(argNum) + ")"
		args = append(args, "%"+filter.Search+"%")
		argNum++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("leads: count: %w", err)
	}

	page, size := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	query := `SELECT ` + leadColumns + ` FROM leads` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(argNum) +
		` OFFSET $` + strconv.Itoa(argNum+1)
	args = append(args, size, (page-1)*size)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("leads: list: %w", err)
	}
	defer rows.Close()

	out := []*Lead{}
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("leads: scan: %w", err)
		}
		out = append(out, lead)
	}
	return out, total, rows.Err()
}

// Delete removes a lead permanently.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("leads: delete: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}
