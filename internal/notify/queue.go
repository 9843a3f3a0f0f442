package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Queue is the transport for queued email jobs. SQSQueue backs it in
// production and MemoryQueue in local development and tests.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Message is a single received queue entry.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type jobKind string

const (
	jobKindLeadConfirmation jobKind = "lead_confirmation"
	jobKindSalesAlert       jobKind = "sales_alert"
)

// queuePayload is one email job. LeadID is set only for confirmation mail;
// the worker records the provider dispatch id back onto that lead so later
// webhook events can be correlated.
type queuePayload struct {
	ID     string       `json:"id"`
	Kind   jobKind      `json:"kind"`
	LeadID string       `json:"lead_id,omitempty"`
	Email  EmailMessage `json:"email"`
}

func encodePayload(payload queuePayload) (queuePayload, string, error) {
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return queuePayload{}, "", fmt.Errorf("notify: failed to encode payload: %w", err)
	}

	return payload, string(body), nil
}
