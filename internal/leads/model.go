package leads

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Source identifies the intake channel a lead arrived through. Immutable
// once the lead is created.
type Source string

const (
	SourceContactForm       Source = "CONTACT_FORM"
	SourceDemoRequest       Source = "DEMO_REQUEST"
	SourceEventRegistration Source = "EVENT_REGISTRATION"
	SourceLibraryLead       Source = "LIBRARY_LEAD"
)

// ValidSource reports whether s is a known intake channel.
func ValidSource(s Source) bool {
	switch s {
	case SourceContactForm, SourceDemoRequest, SourceEventRegistration, SourceLibraryLead:
		return true
	}
	return false
}

// EngagementFlags tracks email lifecycle milestones for a lead. Flags are
// monotone: once true they are never reverted by event processing.
type EngagementFlags struct {
	EmailSent             bool       `json:"email_sent"`
	EmailSentAt           *time.Time `json:"email_sent_at,omitempty"`
	EmailOpened           bool       `json:"email_opened"`
	EmailOpenedAt         *time.Time `json:"email_opened_at,omitempty"`
	DownloadLinkClicked   bool       `json:"download_link_clicked"`
	DownloadLinkClickedAt *time.Time `json:"download_link_clicked_at,omitempty"`
}

// Lead represents one prospect interaction from any intake channel.
type Lead struct {
	ID               string   `json:"id"`
	Source           Source   `json:"source"`
	CompanyName      string   `json:"company_name"`
	ContactName      string   `json:"contact_name"`
	Email            string   `json:"email"`
	Phone            string   `json:"phone,omitempty"`
	Message          string   `json:"message,omitempty"`
	CompanySize      string   `json:"company_size,omitempty"`
	ProductInterests []string `json:"product_interests,omitempty"`
	UseCase          string   `json:"use_case,omitempty"`
	MonthlyShipments string   `json:"monthly_shipments,omitempty"`
	PrivacyConsent   bool     `json:"privacy_consent"`
	MarketingConsent bool     `json:"marketing_consent"`
	LibraryItemID    string   `json:"library_item_id,omitempty"`

	// EmailDispatchID is the provider's opaque id for the confirmation
	// email, used to correlate inbound webhook events.
	EmailDispatchID string `json:"email_dispatch_id,omitempty"`

	Engagement EngagementFlags `json:"engagement"`
	Suppressed bool            `json:"suppressed"`

	LeadScore  int    `json:"lead_score"`
	LeadStatus Status `json:"lead_status"`
	Notes      string `json:"notes,omitempty"`
	AssignedTo string `json:"assigned_to,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateLeadRequest represents the request body for creating a lead
type CreateLeadRequest struct {
	Source           Source   `json:"source"`
	CompanyName      string   `json:"company_name"`
	ContactName      string   `json:"contact_name"`
	Email            string   `json:"email"`
	Phone            string   `json:"phone"`
	Message          string   `json:"message"`
	CompanySize      string   `json:"company_size"`
	ProductInterests []string `json:"product_interests"`
	UseCase          string   `json:"use_case"`
	MonthlyShipments string   `json:"monthly_shipments"`
	PrivacyConsent   bool     `json:"privacy_consent"`
	MarketingConsent bool     `json:"marketing_consent"`
	LibraryItemID    string   `json:"library_item_id"`
}

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe = regexp.MustCompile(`^01[0-9]-?[0-9]{3,4}-?[0-9]{4}$`)
	uuidRe  = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

var companySizes = map[string]bool{
	"1-10": true, "11-50": true, "51-200": true, "201-1000": true, "1000+": true,
}

var monthlyShipmentBands = map[string]bool{
	"<100": true, "100-1000": true, "1000-10000": true, "10000+": true,
}

// FieldError describes a single invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors aggregates per-field validation failures.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(v))
	for i, fe := range v {
		parts[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validate checks required fields, formats and enumerations for the
// submission's source type. Returns ValidationErrors on failure.
func (r *CreateLeadRequest) Validate() error {
	var errs ValidationErrors

	if !ValidSource(r.Source) {
		errs = append(errs, FieldError{"source", "unknown lead source"})
	}
	if strings.TrimSpace(r.CompanyName) == "" {
		errs = append(errs, FieldError{"company_name", "company name is required"})
	} else if len(r.CompanyName) > 200 {
		errs = append(errs, FieldError{"company_name", "company name too long"})
	}
	if strings.TrimSpace(r.ContactName) == "" {
		errs = append(errs, FieldError{"contact_name", "contact name is required"})
	} else if len(r.ContactName) > 100 {
		errs = append(errs, FieldError{"contact_name", "contact name too long"})
	}

	switch {
	case strings.TrimSpace(r.Email) == "":
		errs = append(errs, FieldError{"email", "email is required"})
	case len(r.Email) > 255:
		errs = append(errs, FieldError{"email", "email too long"})
	case !emailRe.MatchString(r.Email):
		errs = append(errs, FieldError{"email", "invalid email format"})
	}

	phoneRequired := r.Source == SourceContactForm || r.Source == SourceDemoRequest
	if phone := strings.TrimSpace(r.Phone); phone == "" {
		if phoneRequired {
			errs = append(errs, FieldError{"phone", "phone is required"})
		}
	} else if !phoneRe.MatchString(phone) {
		errs = append(errs, FieldError{"phone", "invalid phone format (e.g. 010-1234-5678)"})
	}

	switch r.Source {
	case SourceContactForm:
		if msg := strings.TrimSpace(r.Message); msg == "" {
			errs = append(errs, FieldError{"message", "message is required"})
		} else if len(msg) < 10 {
			errs = append(errs, FieldError{"message", "message must be at least 10 characters"})
		} else if len(msg) > 2000 {
			errs = append(errs, FieldError{"message", "message too long"})
		}
	case SourceDemoRequest:
		if !companySizes[r.CompanySize] {
			errs = append(errs, FieldError{"company_size", "invalid company size"})
		}
		if !monthlyShipmentBands[r.MonthlyShipments] {
			errs = append(errs, FieldError{"monthly_shipments", "invalid monthly shipment band"})
		}
		if len(r.ProductInterests) == 0 {
			errs = append(errs, FieldError{"product_interests", "select at least one product"})
		}
		if len(strings.TrimSpace(r.UseCase)) < 10 {
			errs = append(errs, FieldError{"use_case", "use case must be at least 10 characters"})
		}
	case SourceLibraryLead:
		if !uuidRe.MatchString(strings.ToLower(r.LibraryItemID)) {
			errs = append(errs, FieldError{"library_item_id", "invalid library item id"})
		}
		if !r.PrivacyConsent {
			errs = append(errs, FieldError{"privacy_consent", "privacy consent is required"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Sanitize trims whitespace and strips angle brackets from free-text fields.
func (r *CreateLeadRequest) Sanitize() {
	clean := func(s string) string {
		return strings.NewReplacer("<", "", ">", "").Replace(strings.TrimSpace(s))
	}
	r.CompanyName = clean(r.CompanyName)
	r.ContactName = clean(r.ContactName)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Message = clean(r.Message)
	r.UseCase = clean(r.UseCase)
}
