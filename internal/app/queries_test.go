package app_test

import (
	"context"
	"testing"
	"time"

	"kaki_store/internal/app"
	"kaki_store/internal/domain"
)

// ---- fakes ----

type fakeRepo struct {
	store         domain.Location
	stores        []domain.Location
	overrides     []domain.DateOverride
	notifications []domain.Notification
	updates       map[int64]domain.StoreUpdate
	patched       []byte
	misses        []string
	baseReplaced  bool
}

func (f *fakeRepo) UpsertStore(ctx context.Context, loc domain.Location) error { return nil }
func (f *fakeRepo) UpsertOverrides(ctx context.Context, storeID string, ovs []domain.DateOverride) error {
	f.overrides = append(f.overrides, ovs...)
	return nil
}
func (f *fakeRepo) ReplaceBaseHours(ctx context.Context, storeID string, hours domain.WeekSchedule) error {
	f.baseReplaced = true
	return nil
}
func (f *fakeRepo) InsertNotification(ctx context.Context, n domain.Notification) error {
	f.notifications = append(f.notifications, n)
	return nil
}
func (f *fakeRepo) InsertStoreUpdate(ctx context.Context, u domain.StoreUpdate) (int64, error) {
	if f.updates == nil {
		f.updates = map[int64]domain.StoreUpdate{}
	}
	id := int64(len(f.updates) + 1)
	u.ID = id
	f.updates[id] = u
	return id, nil
}
func (f *fakeRepo) GetStoreUpdate(ctx context.Context, id int64) (domain.StoreUpdate, error) {
	u, ok := f.updates[id]
	if !ok {
		return domain.StoreUpdate{}, domain.ErrNotFound
	}
	return u, nil
}
func (f *fakeRepo) ApproveStoreUpdate(ctx context.Context, id int64) error {
	u := f.updates[id]
	u.Approved = true
	f.updates[id] = u
	return nil
}
func (f *fakeRepo) ApplyStorePatch(ctx context.Context, storeID string, patchJSON []byte) error {
	f.patched = patchJSON
	return nil
}
func (f *fakeRepo) LogMiss(ctx context.Context, storeID string, status int, reason string) error {
	f.misses = append(f.misses, reason)
	return nil
}
func (f *fakeRepo) GetStore(ctx context.Context, id string) (domain.Location, error) {
	if f.store.ID == "" {
		return domain.Location{}, domain.ErrNotFound
	}
	return f.store, nil
}
func (f *fakeRepo) ListStores(ctx context.Context, q domain.StoresQuery) ([]domain.Location, error) {
	return f.stores, nil
}
func (f *fakeRepo) ListOverrides(ctx context.Context, storeID string) ([]domain.DateOverride, error) {
	return f.overrides, nil
}
func (f *fakeRepo) ListDeliveryWindows(ctx context.Context, storeID string) ([]domain.DeliveryWindow, error) {
	return nil, nil
}
func (f *fakeRepo) ListNotifications(ctx context.Context, storeID string, limit int) ([]domain.Notification, error) {
	return f.notifications, nil
}

type fakeCache struct {
	store map[string]any
	sets  int
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	switch d := dst.(type) {
	case *domain.Location:
		*d = v.(domain.Location)
	case *[]domain.Location:
		*d = v.([]domain.Location)
	}
	return true, nil
}
func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.store == nil {
		c.store = map[string]any{}
	}
	c.store[key] = v
	c.sets++
	return nil
}
func (c *fakeCache) Del(ctx context.Context, key string) error {
	delete(c.store, key)
	return nil
}

func sampleStore() domain.Location {
	lat, lon := 1.3521, 103.8198
	return domain.Location{
		ID:   "kaki-central",
		Name: "Kaki Central",
		Lat:  &lat,
		Lon:  &lon,
		BaseHours: domain.WeekSchedule{
			time.Monday:    {Open: "09:00", Close: "18:00"},
			time.Tuesday:   {Open: "09:00", Close: "18:00"},
			time.Wednesday: {Open: "09:00", Close: "18:00"},
			time.Thursday:  {Open: "09:00", Close: "18:00"},
			time.Friday:    {Open: "09:00", Close: "18:00"},
			time.Saturday:  {Closed: true},
			time.Sunday:    {Closed: true},
		},
	}
}

// ---- tests ----

func TestGetStore_CacheMissThenHit(t *testing.T) {
	repo := &fakeRepo{store: sampleStore()}
	cache := &fakeCache{}
	q := app.NewQueryService(repo, cache, 10*time.Minute)

	loc, err := q.GetStore(context.Background(), "kaki-central")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if loc.Name != "Kaki Central" {
		t.Fatalf("unexpected store: %+v", loc)
	}

	// Mutate repo to prove the second read comes from cache
	repo.store.Name = "SHOULD NOT SEE THIS"

	loc2, err := q.GetStore(context.Background(), "kaki-central")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if loc2.Name != "Kaki Central" {
		t.Fatalf("expected cached name, got %s", loc2.Name)
	}
}

func TestStoreStatus_UsesInjectedClock(t *testing.T) {
	repo := &fakeRepo{store: sampleStore()}
	q := app.NewQueryService(repo, &fakeCache{}, time.Minute).
		WithClock(func() time.Time {
			return time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC) // Wednesday
		})

	st, err := q.StoreStatus(context.Background(), "kaki-central")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !st.IsOpen || st.Detail != "Closes at 6:00 PM" {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestWeekView(t *testing.T) {
	repo := &fakeRepo{store: sampleStore()}
	q := app.NewQueryService(repo, &fakeCache{}, time.Minute).
		WithClock(func() time.Time {
			return time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC)
		})

	days, err := q.WeekView(context.Background(), "kaki-central")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(days) != 7 {
		t.Fatalf("expected 7 days, got %d", len(days))
	}
	if days[0].Weekday != "Wednesday" || days[0].Range != "9:00 AM – 6:00 PM" {
		t.Fatalf("unexpected first day: %+v", days[0])
	}
	if days[3].Weekday != "Saturday" || days[3].Range != "Closed today" {
		t.Fatalf("unexpected saturday: %+v", days[3])
	}
}

func TestNearbyStores(t *testing.T) {
	near := sampleStore()
	farLat, farLon := 35.6762, 139.6503 // Tokyo
	far := sampleStore()
	far.ID = "kaki-tokyo"
	far.Lat, far.Lon = &farLat, &farLon
	noCoords := domain.Location{ID: "kaki-nowhere"}

	repo := &fakeRepo{stores: []domain.Location{far, near, noCoords}}
	q := app.NewQueryService(repo, &fakeCache{}, time.Minute)

	got, err := q.NearbyStores(context.Background(), 1.3000, 103.8000, 25)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(got) != 1 || got[0].Store.ID != "kaki-central" {
		t.Fatalf("unexpected nearby result: %+v", got)
	}
	if got[0].DistanceKm <= 0 || got[0].DistanceKm > 25 {
		t.Fatalf("distance out of range: %v", got[0].DistanceKm)
	}
}
