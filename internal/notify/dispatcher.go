package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/glec-io/lead-pipeline/internal/leads"
	"github.com/glec-io/lead-pipeline/pkg/logging"
)

// SuppressionChecker reports whether an address bounced or complained
// before; suppressed addresses never get another send.
type SuppressionChecker interface {
	IsSuppressed(ctx context.Context, email string) (bool, error)
}

// DownloadLinker mints the download URL embedded in library lead
// confirmation mail.
type DownloadLinker interface {
	DownloadLink(ctx context.Context, lead *leads.Lead) (string, error)
}

// Dispatcher builds the confirmation and sales-alert emails for a new lead
// and enqueues them for the worker. It satisfies leads.EmailDispatcher.
type Dispatcher struct {
	queue       Queue
	suppression SuppressionChecker
	linker      DownloadLinker
	salesEmail  string
	logger      *logging.Logger
}

// NewDispatcher wires the dispatcher. suppression and linker may be nil;
// salesEmail empty disables the internal alert mail.
func NewDispatcher(queue Queue, suppression SuppressionChecker, linker DownloadLinker, salesEmail string, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		queue:       queue,
		suppression: suppression,
		linker:      linker,
		salesEmail:  salesEmail,
		logger:      logger,
	}
}

var sourceLabels = map[leads.Source]string{
	leads.SourceContactForm:       "contact form",
	leads.SourceDemoRequest:       "demo request",
	leads.SourceEventRegistration: "event registration",
	leads.SourceLibraryLead:       "resource download",
}

// EnqueueLeadEmail queues the confirmation email for the lead and, when a
// sales address is configured, an internal alert. Suppressed addresses get
// no confirmation but the sales alert still goes out.
func (d *Dispatcher) EnqueueLeadEmail(ctx context.Context, lead *leads.Lead) error {
	if d.queue == nil {
		return fmt.Errorf("notify: no queue configured")
	}

	suppressed := false
	if d.suppression != nil {
		var err error
		suppressed, err = d.suppression.IsSuppressed(ctx, lead.Email)
		if err != nil {
			d.logger.Warn("suppression check failed, skipping confirmation", "error", err, "lead_id", lead.ID)
			suppressed = true
		}
	}

	if suppressed {
		d.logger.Info("confirmation suppressed", "lead_id", lead.ID, "email", lead.Email)
	} else {
		msg, err := d.buildConfirmation(ctx, lead)
		if err != nil {
			return err
		}
		if err := d.enqueue(ctx, queuePayload{Kind: jobKindLeadConfirmation, LeadID: lead.ID, Email: msg}); err != nil {
			return err
		}
	}

	if d.salesEmail != "" {
		if err := d.enqueue(ctx, queuePayload{Kind: jobKindSalesAlert, Email: d.buildSalesAlert(lead)}); err != nil {
			d.logger.Error("failed to enqueue sales alert", "error", err, "lead_id", lead.ID)
		}
	}
	return nil
}

func (d *Dispatcher) enqueue(ctx context.Context, payload queuePayload) error {
	_, body, err := encodePayload(payload)
	if err != nil {
		return err
	}
	if err := d.queue.Send(ctx, body); err != nil {
		return fmt.Errorf("notify: enqueue %s: %w", payload.Kind, err)
	}
	return nil
}

func (d *Dispatcher) buildConfirmation(ctx context.Context, lead *leads.Lead) (EmailMessage, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", lead.ContactName)

	subject := "Thank you for contacting GLEC"
	switch lead.Source {
	case leads.SourceContactForm:
		b.WriteString("We received your message and will get back to you within one business day.\n")
	case leads.SourceDemoRequest:
		subject = "Your GLEC demo request"
		b.WriteString("Thank you for requesting a demo. Our team will reach out shortly to schedule a session tailored to your logistics operations.\n")
	case leads.SourceEventRegistration:
		subject = "Your GLEC event registration"
		b.WriteString("Your registration is confirmed. We will send the event details to this address.\n")
	case leads.SourceLibraryLead:
		subject = "Your requested GLEC resource"
		if d.linker == nil {
			return EmailMessage{}, fmt.Errorf("notify: library lead %s has no download linker", lead.ID)
		}
		link, err := d.linker.DownloadLink(ctx, lead)
		if err != nil {
			return EmailMessage{}, fmt.Errorf("notify: build download link: %w", err)
		}
		fmt.Fprintf(&b, "Here is the resource you requested:\n\n%s\n\nThe link is valid for 24 hours.\n", link)
	}

	b.WriteString("\nBest regards,\nThe GLEC Team\n")
	return EmailMessage{
		To:      lead.Email,
		ToName:  lead.ContactName,
		Subject: subject,
		Body:    b.String(),
	}, nil
}

func (d *Dispatcher) buildSalesAlert(lead *leads.Lead) EmailMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "New %s lead\n\n", sourceLabels[lead.Source])
	fmt.Fprintf(&b, "Company: %s\n", lead.CompanyName)
	fmt.Fprintf(&b, "Contact: %s <%s>\n", lead.ContactName, lead.Email)
	if lead.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", lead.Phone)
	}
	if lead.CompanySize != "" {
		fmt.Fprintf(&b, "Company size: %s\n", lead.CompanySize)
	}
	if lead.MonthlyShipments != "" {
		fmt.Fprintf(&b, "Monthly shipments: %s\n", lead.MonthlyShipments)
	}
	if len(lead.ProductInterests) > 0 {
		fmt.Fprintf(&b, "Products: %s\n", strings.Join(lead.ProductInterests, ", "))
	}
	if lead.UseCase != "" {
		fmt.Fprintf(&b, "Use case: %s\n", lead.UseCase)
	}
	if lead.Message != "" {
		fmt.Fprintf(&b, "\nMessage:\n%s\n", lead.Message)
	}
	return EmailMessage{
		To:      d.salesEmail,
		Subject: fmt.Sprintf("[Lead] %s - %s", lead.CompanyName, sourceLabels[lead.Source]),
		Body:    b.String(),
	}
}

var _ leads.EmailDispatcher = (*Dispatcher)(nil)
