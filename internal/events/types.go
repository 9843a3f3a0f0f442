package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Type is a normalized email lifecycle event name.
type Type string

const (
	TypeSent       Type = "sent"
	TypeDelivered  Type = "delivered"
	TypeOpened     Type = "opened"
	TypeClicked    Type = "clicked"
	TypeBounced    Type = "bounced"
	TypeComplained Type = "complained"
)

// ProviderEvent is the decoded webhook payload from the email provider.
type ProviderEvent struct {
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Data      struct {
		EmailID string          `json:"email_id"`
		From    string          `json:"from"`
		Subject string          `json:"subject"`
		To      json.RawMessage `json:"to"`
		Click   *struct {
			Link      string `json:"link"`
			Timestamp string `json:"timestamp"`
		} `json:"click,omitempty"`
	} `json:"data"`
}

// Recipient returns the first destination address in the payload; providers
// send either a string or an array.
func (e *ProviderEvent) Recipient() string {
	if len(e.Data.To) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(e.Data.To, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(e.Data.To, &many); err == nil && len(many) > 0 {
		return many[0]
	}
	return ""
}

// Parse decodes a provider payload and normalizes its event type. The
// provider prefixes types with "email." (email.sent, email.opened, ...).
func Parse(body []byte) (*ProviderEvent, Type, error) {
	var evt ProviderEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, "", fmt.Errorf("events: decode payload: %w", err)
	}
	if evt.Data.EmailID == "" {
		return nil, "", fmt.Errorf("events: payload missing email id")
	}

	name := strings.TrimPrefix(evt.Type, "email.")
	switch Type(name) {
	case TypeSent, TypeDelivered, TypeOpened, TypeClicked, TypeBounced, TypeComplained:
		return &evt, Type(name), nil
	}
	return &evt, "", fmt.Errorf("events: unsupported event type %q", evt.Type)
}
