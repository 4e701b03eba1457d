package domain

import "time"

// Location is the canonical shape of one store, normalized at the ingestion
// boundary from whatever field-name variants the hosted data service returns.
type Location struct {
	ID       string
	Name     string
	Address  *string
	Phone    *string
	Email    *string
	Lat, Lon *float64
	Services []string
	Verified bool

	BaseHours    WeekSchedule
	SpecialHours []DateOverride

	RawJSON []byte // full upstream row payload
}

// WeekSchedule maps every weekday to a schedule. Missing days read as closed.
type WeekSchedule map[time.Weekday]DaySchedule

// DaySchedule is either closed or an open/close pair of "HH:MM" 24h strings.
// Open is assumed earlier than Close within the same calendar day; overnight
// spans are not supported.
type DaySchedule struct {
	Closed bool
	Open   string
	Close  string
}

// DateOverride replaces the base schedule on one calendar date ("2006-01-02").
type DateOverride struct {
	Date   string
	Label  string
	Closed bool
	Open   string
	Close  string
}

// DayResolution is the effective schedule for one date: the override when one
// exists, otherwise the base weekday entry.
type DayResolution struct {
	DaySchedule
	IsSpecial bool
	Label     string
}

// ResolvedStatus is the computed open/closed presentation state for one
// location at one instant. Derived, never persisted.
type ResolvedStatus struct {
	IsOpen          bool
	StatusLabel     string // "Open now" | "Closed" | "Closed today"
	TodayRange      string
	Detail          string
	SpecialToday    *string
	UpcomingSpecial *UpcomingSpecial
}

// UpcomingSpecial is the next override with date >= today, pre-formatted for
// display.
type UpcomingSpecial struct {
	DateOverride
	IsToday   bool
	DateLabel string // e.g. "Mon, Dec 25"
	Window    string // e.g. "9:00 AM – 1:00 PM" or "Closed"
}

// DeliveryWindow is a supplier drop-off slot attached to a store.
type DeliveryWindow struct {
	ID      int64
	StoreID string
	Day     time.Weekday
	Start   string // "HH:MM"
	End     string
}

// Notification is a store-scoped event row (e.g. hours changes) surfaced to
// the storefront's notification center.
type Notification struct {
	ID        int64
	StoreID   string
	Type      string
	Message   string
	CreatedAt time.Time
}

// StoreUpdate is a pending change proposal awaiting admin approval.
type StoreUpdate struct {
	ID           int64
	StoreID      string
	ProposedJSON []byte // partial Location fields as JSON
	Approved     bool
	CreatedAt    time.Time
}
