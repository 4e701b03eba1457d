package app

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"kaki_store/internal/domain"
)

type QueryService struct {
	repo     domain.StoreRepository
	cache    domain.Cache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewQueryService(r domain.StoreRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl, now: time.Now}
}

// WithClock swaps the time source. Status resolution stays a pure function of
// (snapshot, instant); only the instant's origin is configurable here.
func (s *QueryService) WithClock(now func() time.Time) *QueryService {
	s.now = now
	return s
}

func (s *QueryService) GetStore(ctx context.Context, id string) (domain.Location, error) {
	key := "store:" + id
	var loc domain.Location
	if ok, _ := s.cache.Get(ctx, key, &loc); ok {
		return loc, nil
	}
	loc, err := s.repo.GetStore(ctx, id)
	if err != nil {
		return domain.Location{}, err
	}
	_ = s.cache.Set(ctx, key, loc, int(s.cacheTTL.Seconds()))
	return loc, nil
}

func (s *QueryService) ListStores(ctx context.Context, q domain.StoresQuery) ([]domain.Location, error) {
	svc := ""
	if q.Service != nil {
		svc = *q.Service
	}
	key := fmt.Sprintf("stores:%s:%v:%d", svc, q.VerifiedOnly, q.Limit)
	var out []domain.Location
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}
	out, err := s.repo.ListStores(ctx, q)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	return out, nil
}

// StoreStatus resolves live open/closed state for one store. The snapshot may
// come from cache; the resolution itself is recomputed on every call with a
// fresh clock reading.
func (s *QueryService) StoreStatus(ctx context.Context, id string) (domain.ResolvedStatus, error) {
	loc, err := s.GetStore(ctx, id)
	if err != nil {
		return domain.ResolvedStatus{}, err
	}
	return domain.ResolveStatus(loc, s.now()), nil
}

// DayView is one row of the week view.
type DayView struct {
	Date      string // ISO calendar date
	Weekday   string
	Range     string
	IsSpecial bool
	Label     string
}

// WeekView renders today plus the following six days.
func (s *QueryService) WeekView(ctx context.Context, id string) ([]DayView, error) {
	loc, err := s.GetStore(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]DayView, 0, 7)
	for i := 0; i < 7; i++ {
		d := now.AddDate(0, 0, i)
		res := domain.ScheduleForDate(loc, d)
		out = append(out, DayView{
			Date:      d.Format("2006-01-02"),
			Weekday:   d.Weekday().String(),
			Range:     domain.RangeText(res.DaySchedule),
			IsSpecial: res.IsSpecial,
			Label:     res.Label,
		})
	}
	return out, nil
}

func (s *QueryService) SpecialHours(ctx context.Context, id string) ([]domain.DateOverride, error) {
	return s.repo.ListOverrides(ctx, id)
}

func (s *QueryService) DeliveryWindows(ctx context.Context, id string) ([]domain.DeliveryWindow, error) {
	return s.repo.ListDeliveryWindows(ctx, id)
}

func (s *QueryService) Notifications(ctx context.Context, id string, limit int) ([]domain.Notification, error) {
	return s.repo.ListNotifications(ctx, id, limit)
}

// NearbyStore pairs a store with its distance from the query point.
type NearbyStore struct {
	Store      domain.Location
	DistanceKm float64
}

// NearbyStores returns stores with known coordinates within radiusKm of the
// point, nearest first.
func (s *QueryService) NearbyStores(ctx context.Context, lat, lon, radiusKm float64) ([]NearbyStore, error) {
	all, err := s.ListStores(ctx, domain.StoresQuery{})
	if err != nil {
		return nil, err
	}
	out := make([]NearbyStore, 0, len(all))
	for _, loc := range all {
		if loc.Lat == nil || loc.Lon == nil {
			continue
		}
		d := haversineKm(lat, lon, *loc.Lat, *loc.Lon)
		if d <= radiusKm {
			out = append(out, NearbyStore{Store: loc, DistanceKm: d})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out, nil
}

const earthRadiusKm = 6371

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
