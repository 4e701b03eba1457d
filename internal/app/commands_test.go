package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"kaki_store/internal/app"
	"kaki_store/internal/domain"
)

type fakeClient struct {
	rows    []map[string]any
	store   map[string]any
	special []map[string]any
	err     error
}

func (c *fakeClient) ListStores(ctx context.Context) ([]map[string]any, error) {
	return c.rows, c.err
}
func (c *fakeClient) GetStore(ctx context.Context, id string) (map[string]any, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.store, nil
}
func (c *fakeClient) GetSpecialHours(ctx context.Context, id string) ([]map[string]any, error) {
	return c.special, nil
}

func TestAddSpecialHours_NotifiesAndEvicts(t *testing.T) {
	repo := &fakeRepo{store: sampleStore()}
	cache := &fakeCache{store: map[string]any{"store:kaki-central": sampleStore()}}
	adm := app.NewAdminService(repo, cache)

	err := adm.AddSpecialHours(context.Background(), "kaki-central", domain.DateOverride{
		Date: "2025-12-24", Label: "Christmas Eve", Open: "09:00", Close: "13:00",
	})
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(repo.overrides) != 1 {
		t.Fatalf("override not stored: %+v", repo.overrides)
	}
	if len(repo.notifications) != 1 || repo.notifications[0].Type != "hours_update" {
		t.Fatalf("notification missing: %+v", repo.notifications)
	}
	if !strings.Contains(repo.notifications[0].Message, "2025-12-24") {
		t.Fatalf("message should name the date: %q", repo.notifications[0].Message)
	}
	if _, ok := cache.store["store:kaki-central"]; ok {
		t.Fatal("store cache entry should be evicted")
	}
}

func TestAddSpecialHours_RejectsBadDate(t *testing.T) {
	adm := app.NewAdminService(&fakeRepo{}, &fakeCache{})
	err := adm.AddSpecialHours(context.Background(), "x", domain.DateOverride{Date: "24/12/2025"})
	if err == nil {
		t.Fatal("expected error for non-ISO date")
	}
}

func TestUpdateBaseHours_Notifies(t *testing.T) {
	repo := &fakeRepo{store: sampleStore()}
	adm := app.NewAdminService(repo, &fakeCache{})

	err := adm.UpdateBaseHours(context.Background(), "kaki-central", sampleStore().BaseHours)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !repo.baseReplaced {
		t.Fatal("base hours not replaced")
	}
	if len(repo.notifications) != 1 {
		t.Fatalf("notifications: %+v", repo.notifications)
	}
}

func TestStoreUpdateFlow(t *testing.T) {
	repo := &fakeRepo{store: sampleStore()}
	adm := app.NewAdminService(repo, &fakeCache{})
	ctx := context.Background()

	id, err := adm.RequestStoreUpdate(ctx, "kaki-central", map[string]any{"phone": "+65 6200 0000"})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if err := adm.ApproveStoreUpdate(ctx, "kaki-central", id); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if repo.patched == nil || !strings.Contains(string(repo.patched), "6200") {
		t.Fatalf("patch not applied: %s", repo.patched)
	}
	if !repo.updates[id].Approved {
		t.Fatal("update not marked approved")
	}

	// wrong store ID must not apply someone else's proposal
	id2, _ := adm.RequestStoreUpdate(ctx, "kaki-central", map[string]any{})
	if err := adm.ApproveStoreUpdate(ctx, "kaki-west", id2); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSyncStore_UpsertsAndInvalidates(t *testing.T) {
	repo := &fakeRepo{}
	cache := &fakeCache{store: map[string]any{"store:kaki-central": sampleStore()}}
	cl := &fakeClient{
		store: map[string]any{
			"id":   "kaki-central",
			"name": "Kaki Central",
			"base_hours": map[string]any{
				"monday": map[string]any{"open": "09:00", "close": "18:00"},
			},
		},
		special: []map[string]any{
			{"date": "2025-12-25", "label": "Christmas", "closed": true},
		},
	}
	ing := app.NewIngestionService(cl, repo, cache)

	if err := ing.SyncStore(context.Background(), "kaki-central"); err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(repo.overrides) != 1 || repo.overrides[0].Label != "Christmas" {
		t.Fatalf("overrides: %+v", repo.overrides)
	}
	if _, ok := cache.store["store:kaki-central"]; ok {
		t.Fatal("cache entry should be evicted after sync")
	}
}

func TestSyncStore_MissRecordedOn404(t *testing.T) {
	repo := &fakeRepo{}
	cl := &fakeClient{err: errors.New("storedata: not found")}
	ing := app.NewIngestionService(cl, repo, &fakeCache{})

	if err := ing.SyncStore(context.Background(), "ghost"); err != nil {
		t.Fatalf("404 should not fail the sync: %v", err)
	}
	if len(repo.misses) != 1 {
		t.Fatalf("miss not logged: %+v", repo.misses)
	}
}

func TestListStoreIDs(t *testing.T) {
	cl := &fakeClient{rows: []map[string]any{
		{"id": "kaki-central"},
		{"storeId": "kaki-east"},
		{}, // synthesized
	}}
	ing := app.NewIngestionService(cl, &fakeRepo{}, &fakeCache{})
	ids, err := ing.ListStoreIDs(context.Background())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	want := []string{"kaki-central", "kaki-east", "store-2"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
}
