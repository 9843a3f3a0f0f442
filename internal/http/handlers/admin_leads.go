package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"

	"github.com/glec-io/lead-pipeline/internal/leads"
	"github.com/glec-io/lead-pipeline/pkg/logging"
)

// AdminLeadsHandler handles admin API endpoints for lead management.
type AdminLeadsHandler struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewAdminLeadsHandler creates a new admin leads handler.
func NewAdminLeadsHandler(db *sql.DB, logger *logging.Logger) *AdminLeadsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminLeadsHandler{
		db:     db,
		logger: logger,
	}
}

// LeadsListResponse represents a paginated list of leads.
type LeadsListResponse struct {
	Leads      []*leads.Lead `json:"leads"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalPages int           `json:"total_pages"`
}

// UpdateLeadRequest is the PATCH body. Nil fields are left untouched;
// lead_status, when present, may move the lead to any valid status, and
// lead_score overrides the derived score until the next webhook rescore.
type UpdateLeadRequest struct {
	LeadStatus *string `json:"lead_status"`
	LeadScore  *int    `json:"lead_score"`
	Notes      *string `json:"notes"`
	AssignedTo *string `json:"assigned_to"`
}

const adminLeadColumns = `id, source, company_name, contact_name, email, phone, message,
	company_size, product_interests, use_case, monthly_shipments,
	privacy_consent, marketing_consent, library_item_id, email_dispatch_id,
	email_sent, email_sent_at, email_opened, email_opened_at,
	download_link_clicked, download_link_clicked_at, suppressed,
	lead_score, lead_status, notes, assigned_to, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAdminLead(row rowScanner) (*leads.Lead, error) {
	var l leads.Lead
	var phone, message, companySize, useCase, monthlyShipments, libraryItemID, dispatchID, notes, assignedTo sql.NullString
	var interests pq.StringArray
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
	l.Phone = phone.String
	l.Message = message.String
	l.CompanySize = companySize.String
	l.UseCase = useCase.String
	l.MonthlyShipments = monthlyShipments.String
	l.LibraryItemID = libraryItemID.String
	l.EmailDispatchID = dispatchID.String
	l.Notes = notes.String
	l.AssignedTo = assignedTo.String
	l.ProductInterests = interests
	return &l, nil
}

// ListLeads returns a paginated, filterable list of leads.
// GET /api/v1/admin/leads
func (h *AdminLeadsHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	source := q.Get("source")
	if source != "" && !leads.ValidSource(leads.Source(source)) {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "unknown lead source")
		return
	}
	status := q.Get("status")
	if status != "" && !leads.ValidStatus(leads.Status(status)) {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "unknown lead status")
		return
	}
	search := q.Get("search")

	where := " WHERE 1=1"
	args := []any{}
	argNum := 1
	if source != "" {
		where += " AND source = $" + strconv.Itoa(argNum)
		args = append(args, source)
		argNum++
	}
	if status != "" {
		where += " AND lead_status = $" + strconv.Itoa(argNum)
		args = append(args, status)
		argNum++
	}
	if search != "" {
		where += " AND (email ILIKE $" + strconv.Itoa(argNum) +
			" OR company_name ILIKE $" + strconv.Itoa(argNum) +
			" OR contact_name ILIKE $" + strconv.Itoa(argNum) + ")"
		args = append(args, "%"+search+"%")
		argNum++
	}

	var total int
	if err := h.db.QueryRowContext(r.Context(), "SELECT COUNT(*) FROM leads"+where, args...).Scan(&total); err != nil {
		h.logger.Error("admin lead count failed", "error", err)
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list leads")
		return
	}

	query := "SELECT " + adminLeadColumns + " FROM leads" + where +
		" ORDER BY created_at DESC LIMIT $" + strconv.Itoa(argNum) +
		" OFFSET $" + strconv.Itoa(argNum+1)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := h.db.QueryContext(r.Context(), query, args...)
	if err != nil {
		h.logger.Error("admin lead list failed", "error", err)
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list leads")
		return
	}
	defer rows.Close()

	list := []*leads.Lead{}
	for rows.Next() {
		lead, err := scanAdminLead(rows)
		if err != nil {
			h.logger.Error("admin lead scan failed", "error", err)
			respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list leads")
			return
		}
		list = append(list, lead)
	}
	if err := rows.Err(); err != nil {
		h.logger.Error("admin lead rows failed", "error", err)
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list leads")
		return
	}

	totalPages := (total + pageSize - 1) / pageSize
	respondData(w, http.StatusOK, LeadsListResponse{
		Leads:      list,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

// GetLead returns one lead.
// GET /api/v1/admin/leads/{leadID}
func (h *AdminLeadsHandler) GetLead(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")

	row := h.db.QueryRowContext(r.Context(), "SELECT "+adminLeadColumns+" FROM leads WHERE id = $1", leadID)
	lead, err := scanAdminLead(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "lead not found")
			return
		}
		h.logger.Error("admin lead get failed", "error", err, "lead_id", leadID)
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load lead")
		return
	}
	respondData(w, http.StatusOK, lead)
}

// UpdateLead applies an admin edit: notes, assignment, or a manual status
// override. Unlike the automatic deriver, an override may move the lead to
// any valid status, including backwards.
// PATCH /api/v1/admin/leads/{leadID}
func (h *AdminLeadsHandler) UpdateLead(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")

	var req UpdateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid JSON body")
		return
	}
	if req.LeadStatus == nil && req.LeadScore == nil && req.Notes == nil && req.AssignedTo == nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "no fields to update")
		return
	}
	if req.LeadStatus != nil && !leads.ValidStatus(leads.Status(*req.LeadStatus)) {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "unknown lead status")
		return
	}
	if req.LeadScore != nil && (*req.LeadScore < 0 || *req.LeadScore > 100) {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "lead_score must be between 0 and 100")
		return
	}

	set := "updated_at = now()"
	args := []any{}
	argNum := 1
	if req.LeadStatus != nil {
		set += ", lead_status = $" + strconv.Itoa(argNum)
		args = append(args, *req.LeadStatus)
		argNum++
	}
	if req.LeadScore != nil {
		set += ", lead_score = $" + strconv.Itoa(argNum)
		args = append(args, *req.LeadScore)
		argNum++
	}
	if req.Notes != nil {
		set += ", notes = $" + strconv.Itoa(argNum)
		args = append(args, *req.Notes)
		argNum++
	}
	if req.AssignedTo != nil {
		set += ", assigned_to = $" + strconv.Itoa(argNum)
		args = append(args, *req.AssignedTo)
		argNum++
	}
	args = append(args, leadID)

	query := "UPDATE leads SET " + set + " WHERE id = $" + strconv.Itoa(argNum) + " RETURNING " + adminLeadColumns
	row := h.db.QueryRowContext(r.Context(), query, args...)
	lead, err := scanAdminLead(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "lead not found")
			return
		}
		h.logger.Error("admin lead update failed", "error", err, "lead_id", leadID)
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to update lead")
		return
	}

	h.logger.Info("lead updated by admin", "lead_id", leadID, "status", lead.LeadStatus)
	respondData(w, http.StatusOK, lead)
}

// DeleteLead removes a lead permanently.
// DELETE /api/v1/admin/leads/{leadID}
func (h *AdminLeadsHandler) DeleteLead(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")

	res, err := h.db.ExecContext(r.Context(), "DELETE FROM leads WHERE id = $1", leadID)
	if err != nil {
		h.logger.Error("admin lead delete failed", "error", err, "lead_id", leadID)
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to delete lead")
		return
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "lead not found")
		return
	}

	h.logger.Info("lead deleted by admin", "lead_id", leadID)
	respondData(w, http.StatusOK, map[string]string{"id": leadID})
}
