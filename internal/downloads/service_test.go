package downloads

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/glec-io/lead-pipeline/internal/leads"
	"github.com/glec-io/lead-pipeline/pkg/logging"
)

type fakeStore struct {
	items    map[string]*LibraryItem
	saved    map[string]string // jti -> itemID
	redeemed map[string]int
	counts   map[string]int
}

func newFakeStore(items ...*LibraryItem) *fakeStore {
	s := &fakeStore{
		items:    map[string]*LibraryItem{},
		saved:    map[string]string{},
		redeemed: map[string]int{},
		counts:   map[string]int{},
	}
	for _, item := range items {
		s.items[item.ID] = item
	}
	return s
}

func (s *fakeStore) GetItem(ctx context.Context, id string) (*LibraryItem, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	return item, nil
}

func (s *fakeStore) SaveToken(ctx context.Context, jti, leadID, itemID string, expiresAt time.Time) error {
	s.saved[jti] = itemID
	return nil
}

func (s *fakeStore) Redeem(ctx context.Context, jti string, singleUse bool) error {
	s.redeemed[jti]++
	if singleUse && s.redeemed[jti] > 1 {
		return ErrTokenConsumed
	}
	return nil
}

func (s *fakeStore) IncrementDownloads(ctx context.Context, itemID string) error {
	s.counts[itemID]++
	return nil
}

type fakeSigner struct{}

func (fakeSigner) SignedURL(ctx context.Context, fileKey string) (string, error) {
	return "https://files.glec.io/" + fileKey + "?sig=abc", nil
}

func newTestService(t *testing.T, items ...*LibraryItem) (*Service, *fakeStore) {
	t.Helper()
	issuer, err := NewTokenIssuer("test-secret", 24*time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	store := newFakeStore(items...)
	svc := NewService(issuer, store, fakeSigner{}, "https://api.glec.io/", logging.New("error"))
	return svc, store
}

func directItem() *LibraryItem {
	return &LibraryItem{
		ID:           "item-1",
		Title:        "GLEC Framework v3",
		FileKey:      "library/glec-framework-v3.pdf",
		DownloadType: DownloadDirect,
		Published:    true,
	}
}

func TestDownloadLinkAndResolve(t *testing.T) {
	svc, store := newTestService(t, directItem())
	lead := &leads.Lead{ID: "lead-1", Email: "a@corp.kr", LibraryItemID: "item-1"}

	link, err := svc.DownloadLink(context.Background(), lead)
	if err != nil {
		t.Fatalf("DownloadLink: %v", err)
	}
	const prefix = "https://api.glec.io/api/v1/library/download/"
	if !strings.HasPrefix(link, prefix) {
		t.Fatalf("link = %q", link)
	}
	if len(store.saved) != 1 {
		t.Fatalf("saved %d tokens, want 1", len(store.saved))
	}

	url, err := svc.Resolve(context.Background(), strings.TrimPrefix(link, prefix))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !strings.Contains(url, "glec-framework-v3.pdf") {
		t.Fatalf("url = %q", url)
	}
	if store.counts["item-1"] != 1 {
		t.Fatalf("download count = %d, want 1", store.counts["item-1"])
	}
}

func TestResolveDirectTokenSingleUse(t *testing.T) {
	svc, _ := newTestService(t, directItem())
	lead := &leads.Lead{ID: "lead-1", Email: "a@corp.kr", LibraryItemID: "item-1"}

	link, err := svc.DownloadLink(context.Background(), lead)
	if err != nil {
		t.Fatalf("DownloadLink: %v", err)
	}
	token := link[strings.LastIndex(link, "/")+1:]

	if _, err := svc.Resolve(context.Background(), token); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	if _, err := svc.Resolve(context.Background(), token); !errors.Is(err, ErrTokenConsumed) {
		t.Fatalf("second Resolve err = %v, want ErrTokenConsumed", err)
	}
}

func TestResolveEmailTokenReusable(t *testing.T) {
	item := directItem()
	item.DownloadType = DownloadEmail
	svc, _ := newTestService(t, item)
	lead := &leads.Lead{ID: "lead-1", Email: "a@corp.kr", LibraryItemID: "item-1"}

	link, _ := svc.DownloadLink(context.Background(), lead)
	token := link[strings.LastIndex(link, "/")+1:]

	for i := 0; i < 3; i++ {
		if _, err := svc.Resolve(context.Background(), token); err != nil {
			t.Fatalf("Resolve #%d: %v", i+1, err)
		}
	}
}

func TestResolveUnknownItem(t *testing.T) {
	svc, _ := newTestService(t, directItem())
	issuer, _ := NewTokenIssuer("test-secret", time.Hour)
	token, _, _, _ := issuer.Issue("lead-1", "gone-item", "a@corp.kr")

	if _, err := svc.Resolve(context.Background(), token); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("err = %v, want ErrItemNotFound", err)
	}
}

func TestDownloadLinkUnpublishedItem(t *testing.T) {
	svc, _ := newTestService(t)
	lead := &leads.Lead{ID: "lead-1", Email: "a@corp.kr", LibraryItemID: "missing"}

	if _, err := svc.DownloadLink(context.Background(), lead); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("err = %v, want ErrItemNotFound", err)
	}
}

func TestResolveForgedToken(t *testing.T) {
	svc, _ := newTestService(t, directItem())
	if _, err := svc.Resolve(context.Background(), "forged-token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}
