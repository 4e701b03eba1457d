package domain

import "context"

type StoreRepository interface {
	// Write paths
	UpsertStore(ctx context.Context, loc Location) error
	UpsertOverrides(ctx context.Context, storeID string, ovs []DateOverride) error
	ReplaceBaseHours(ctx context.Context, storeID string, hours WeekSchedule) error
	InsertNotification(ctx context.Context, n Notification) error
	InsertStoreUpdate(ctx context.Context, u StoreUpdate) (int64, error)
	GetStoreUpdate(ctx context.Context, id int64) (StoreUpdate, error)
	ApproveStoreUpdate(ctx context.Context, id int64) error
	ApplyStorePatch(ctx context.Context, storeID string, patchJSON []byte) error
	LogMiss(ctx context.Context, storeID string, status int, reason string) error

	// Read paths
	GetStore(ctx context.Context, id string) (Location, error)
	ListStores(ctx context.Context, q StoresQuery) ([]Location, error)
	ListOverrides(ctx context.Context, storeID string) ([]DateOverride, error)
	ListDeliveryWindows(ctx context.Context, storeID string) ([]DeliveryWindow, error)
	ListNotifications(ctx context.Context, storeID string, limit int) ([]Notification, error)
}

// StoreDataClient fetches raw rows from the hosted data service. Rows come
// back untyped; the ingestion mappers normalize them into Location.
type StoreDataClient interface {
	ListStores(ctx context.Context) ([]map[string]any, error)
	GetStore(ctx context.Context, id string) (map[string]any, error)
	GetSpecialHours(ctx context.Context, id string) ([]map[string]any, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

type StoresQuery struct {
	Service      *string // filter: services JSON contains this entry
	VerifiedOnly bool
	Limit        int
}
