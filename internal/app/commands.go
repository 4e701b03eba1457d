package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"kaki_store/internal/domain"
)

// AdminService covers the write paths behind the admin and supplier centers:
// hours edits, special-hours overrides, and the propose/approve flow for
// store detail changes.
type AdminService struct {
	repo  domain.StoreRepository
	cache domain.Cache
}

func NewAdminService(r domain.StoreRepository, c domain.Cache) *AdminService {
	return &AdminService{repo: r, cache: c}
}

func (s *AdminService) UpdateBaseHours(ctx context.Context, storeID string, hours domain.WeekSchedule) error {
	if err := s.repo.ReplaceBaseHours(ctx, storeID, hours); err != nil {
		return err
	}
	_ = s.repo.InsertNotification(ctx, domain.Notification{
		StoreID: storeID,
		Type:    "hours_update",
		Message: "Store operating hours updated.",
	})
	s.invalidateStore(ctx, storeID)
	return nil
}

func (s *AdminService) AddSpecialHours(ctx context.Context, storeID string, ov domain.DateOverride) error {
	if _, err := time.Parse("2006-01-02", ov.Date); err != nil {
		return fmt.Errorf("invalid override date %q: %w", ov.Date, err)
	}
	if err := s.repo.UpsertOverrides(ctx, storeID, []domain.DateOverride{ov}); err != nil {
		return err
	}
	window := "Closed"
	if !ov.Closed {
		window = ov.Open + " – " + ov.Close
	}
	_ = s.repo.InsertNotification(ctx, domain.Notification{
		StoreID: storeID,
		Type:    "hours_update",
		Message: fmt.Sprintf("Special hours added for %s: %s", ov.Date, window),
	})
	s.invalidateStore(ctx, storeID)
	return nil
}

// RequestStoreUpdate records a pending change proposal without touching the
// live store row.
func (s *AdminService) RequestStoreUpdate(ctx context.Context, storeID string, patch map[string]any) (int64, error) {
	b, err := json.Marshal(patch)
	if err != nil {
		return 0, err
	}
	return s.repo.InsertStoreUpdate(ctx, domain.StoreUpdate{StoreID: storeID, ProposedJSON: b})
}

// ApproveStoreUpdate applies the proposed fields to the store, marks it
// verified, and flags the proposal as approved.
func (s *AdminService) ApproveStoreUpdate(ctx context.Context, storeID string, updateID int64) error {
	u, err := s.repo.GetStoreUpdate(ctx, updateID)
	if err != nil {
		return err
	}
	if u.StoreID != storeID {
		return domain.ErrNotFound
	}
	if err := s.repo.ApplyStorePatch(ctx, storeID, u.ProposedJSON); err != nil {
		return err
	}
	if err := s.repo.ApproveStoreUpdate(ctx, updateID); err != nil {
		return err
	}
	s.invalidateStore(ctx, storeID)
	return nil
}

func (s *AdminService) invalidateStore(ctx context.Context, storeID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, "store:"+storeID)
	// list cache variants the API serves by default
	for _, v := range []string{"stores::false:0", "stores::true:0"} {
		_ = s.cache.Del(ctx, v)
	}
}

// IngestionService syncs store rows from the hosted data service into MySQL.
type IngestionService struct {
	client domain.StoreDataClient
	repo   domain.StoreRepository
	cache  domain.Cache
}

func NewIngestionService(c domain.StoreDataClient, r domain.StoreRepository, cache domain.Cache) *IngestionService {
	return &IngestionService{client: c, repo: r, cache: cache}
}

// SyncStore fetches one store row plus its special hours and upserts both.
// Known 404/401/403 responses are recorded as misses and stop the sync
// gracefully; anything else bubbles up.
func (s *IngestionService) SyncStore(ctx context.Context, id string) error {
	row, err := s.client.GetStore(ctx, id)
	if err != nil {
		low := strings.ToLower(err.Error())

		if errors.Is(err, domain.ErrNotFound) || strings.Contains(low, "not found") {
			_ = s.repo.LogMiss(ctx, id, 404, "not found")
			s.invalidate(ctx, id)
			return nil
		}
		if strings.Contains(low, "forbidden") || strings.Contains(low, "unauthorized") {
			_ = s.repo.LogMiss(ctx, id, 403, "inactive")
			s.invalidate(ctx, id)
			return nil
		}
		return err
	}

	loc := MapStore(row, 0)
	if err := s.repo.UpsertStore(ctx, loc); err != nil {
		return fmt.Errorf("upsert store %s: %w", id, err)
	}
	// some deployments inline special hours on the store row itself
	if len(loc.SpecialHours) > 0 {
		if err := s.repo.UpsertOverrides(ctx, loc.ID, loc.SpecialHours); err != nil {
			return fmt.Errorf("upsert inline overrides for %s: %w", id, err)
		}
	}

	// Special hours live in their own table upstream; best-effort fetch, but
	// a successful empty result still replaces what we had.
	if rows, serr := s.client.GetSpecialHours(ctx, id); serr != nil {
		low := strings.ToLower(serr.Error())
		switch {
		case errors.Is(serr, domain.ErrNotFound) || strings.Contains(low, "not found"):
			_ = s.repo.LogMiss(ctx, id, 404, "special_hours")
		case strings.Contains(low, "forbidden") || strings.Contains(low, "unauthorized"):
			_ = s.repo.LogMiss(ctx, id, 403, "special_hours")
		default:
			return serr
		}
	} else if ovs := MapOverrides(rows); len(ovs) > 0 {
		if err := s.repo.UpsertOverrides(ctx, loc.ID, ovs); err != nil {
			return fmt.Errorf("upsert overrides for %s: %w", id, err)
		}
	}

	s.invalidate(ctx, loc.ID)
	return nil
}

// ListStoreIDs pulls the upstream store listing and returns normalized IDs,
// feeding the ingestor's fan-out.
func (s *IngestionService) ListStoreIDs(ctx context.Context) ([]string, error) {
	rows, err := s.client.ListStores(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for i, row := range rows {
		ids = append(ids, MapStore(row, i).ID)
	}
	return ids, nil
}

func (s *IngestionService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, "store:"+id)
	for _, v := range []string{"stores::false:0", "stores::true:0"} {
		_ = s.cache.Del(ctx, v)
	}
}
