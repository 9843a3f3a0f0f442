package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glec-io/lead-pipeline/pkg/logging"
)

func newTestHandler() *Handler {
	svc := NewIntakeService(NewInMemoryRepository(), nil, nil, 5*time.Minute, logging.New("error"))
	return NewHandler(svc, nil, logging.New("error"))
}

func postLead(t *testing.T, h *Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/leads", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.Create(rr, req)
	return rr
}

func TestCreateHandlerSuccess(t *testing.T) {
	h := newTestHandler()
	rr := postLead(t, h, validDemoRequest())

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Success bool  `json:"success"`
		Data    *Lead `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Data == nil || resp.Data.ID == "" {
		t.Fatalf("unexpected envelope: %s", rr.Body.String())
	}
}

func TestCreateHandlerValidationError(t *testing.T) {
	h := newTestHandler()
	req := validDemoRequest()
	req.Email = "nope"
	rr := postLead(t, h, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	var resp struct {
		Success bool `json:"success"`
		Error   *struct {
			Code    string       `json:"code"`
			Details []FieldError `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Success || resp.Error == nil || resp.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("unexpected envelope: %s", rr.Body.String())
	}
	if len(resp.Error.Details) == 0 {
		t.Error("validation response missing field details")
	}
}

func TestCreateHandlerMalformedJSON(t *testing.T) {
	h := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/leads", strings.NewReader("{nope"))
	rr := httptest.NewRecorder()
	h.Create(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "VALIDATION_ERROR") {
		t.Fatalf("body: %s", rr.Body.String())
	}
}

func TestCreateHandlerDuplicate(t *testing.T) {
	h := newTestHandler()
	if rr := postLead(t, h, validDemoRequest()); rr.Code != http.StatusCreated {
		t.Fatalf("first submission status = %d", rr.Code)
	}
	rr := postLead(t, h, validDemoRequest())
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "DUPLICATE_REQUEST") {
		t.Fatalf("body: %s", rr.Body.String())
	}
}

type failingRepo struct{ *InMemoryRepository }

func (f *failingRepo) Create(ctx context.Context, req *CreateLeadRequest) (*Lead, error) {
	return nil, context.DeadlineExceeded
}

func TestCreateHandlerStorageError(t *testing.T) {
	repo := &failingRepo{NewInMemoryRepository()}
	svc := NewIntakeService(repo, nil, nil, 5*time.Minute, logging.New("error"))
	h := NewHandler(svc, nil, logging.New("error"))

	rr := postLead(t, h, validDemoRequest())
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "INTERNAL_ERROR") {
		t.Fatalf("body: %s", rr.Body.String())
	}
}
