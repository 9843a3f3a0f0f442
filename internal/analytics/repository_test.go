package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/glec-io/lead-pipeline/internal/leads"
)

func TestFetchLeads(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	cols := []string{"created_at", "source", "lead_status", "lead_score", "email_sent", "email_opened", "download_link_clicked"}

	mock.ExpectQuery("SELECT created_at, source, lead_status, lead_score").
		WithArgs(from, to).
		WillReturnRows(mock.NewRows(cols).
			AddRow(day(1), leads.SourceDemoRequest, leads.StatusOpened, 15, true, true, false).
			AddRow(day(2), leads.SourceLibraryLead, leads.StatusDownloaded, 30, true, true, true))

	repo := newRepositoryWithQuerier(mock)
	facts, err := repo.FetchLeads(context.Background(), from, to)
	if err != nil {
		t.Fatalf("FetchLeads: %v", err)
	}
	if len(facts) != 2 {
		t.Fatalf("got %d facts", len(facts))
	}
	if facts[0].Status != leads.StatusOpened || facts[0].Score != 15 {
		t.Errorf("first fact = %+v", facts[0])
	}
	if !facts[1].LinkClicked {
		t.Errorf("second fact = %+v", facts[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
