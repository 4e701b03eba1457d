package app

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"kaki_store/internal/domain"
)

/********** alias registries (single source of truth) **********/

// The hosted data service is loose about casing: seed data is camelCase,
// table rows are snake_case. Everything funnels through these registries so
// the resolver only ever sees one canonical shape.

var storeAliases = map[string][]string{
	"id":      {"id", "store_id", "storeId", "slug"},
	"name":    {"name", "store_name", "storeName"},
	"address": {"address", "location", "addr"},
	"phone":   {"phone", "contact"},
	"email":   {"email", "contact_email", "contactEmail"},
}

var overrideAliases = map[string][]string{
	"date":  {"date", "override_date"},
	"label": {"label", "name", "reason"},
	"open":  {"open", "opening_time", "openingTime"},
	"close": {"close", "closing_time", "closingTime"},
}

var weekdayKeys = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

/********** tiny helpers **********/

func lookupAny(m map[string]any, key string) any {
	if v, ok := m[key]; ok {
		return v
	}
	return nil
}

func lookupStr(m map[string]any, key string) string {
	if s, ok := lookupAny(m, key).(string); ok {
		return s
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) string {
	for _, k := range aliases[key] {
		if s := strings.TrimSpace(lookupStr(m, k)); s != "" {
			return s
		}
	}
	return ""
}

func firstBool(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		switch v := lookupAny(m, k).(type) {
		case bool:
			return v
		case float64:
			return v != 0
		}
	}
	return false
}

func firstFloat(m map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		}
	}
	return nil
}

func strSlice(m map[string]any, keys ...string) []string {
	for _, k := range keys {
		if raw, ok := lookupAny(m, k).([]any); ok {
			out := make([]string, 0, len(raw))
			for _, it := range raw {
				if s, ok := it.(string); ok && s != "" {
					out = append(out, s)
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return nil
}

func ptrStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func firstMap(m map[string]any, keys ...string) (map[string]any, bool) {
	for _, k := range keys {
		if v, ok := lookupAny(m, k).(map[string]any); ok {
			return v, true
		}
	}
	return nil, false
}

func firstSliceMaps(m map[string]any, keys ...string) ([]map[string]any, bool) {
	for _, k := range keys {
		raw, ok := lookupAny(m, k).([]any)
		if !ok {
			continue
		}
		out := make([]map[string]any, 0, len(raw))
		for _, it := range raw {
			if mm, ok := it.(map[string]any); ok {
				out = append(out, mm)
			}
		}
		return out, true
	}
	return nil, false
}

/********** store mapper **********/

// MapStore normalizes one raw store row into the canonical Location. idx
// backs the synthesized ID when the row carries none.
func MapStore(row map[string]any, idx int) domain.Location {
	id := firstNonEmptyAlias(row, storeAliases, "id")
	if id == "" {
		id = fmt.Sprintf("store-%d", idx)
	}
	name := firstNonEmptyAlias(row, storeAliases, "name")
	if name == "" {
		name = "Kaki Store"
	}

	raw, err := json.Marshal(row)
	if err != nil {
		log.Error().Err(err).Str("context", "MapStore").Msg("marshal store row failed")
	}

	loc := domain.Location{
		ID:       id,
		Name:     name,
		Address:  ptrStr(firstNonEmptyAlias(row, storeAliases, "address")),
		Phone:    ptrStr(firstNonEmptyAlias(row, storeAliases, "phone")),
		Email:    ptrStr(firstNonEmptyAlias(row, storeAliases, "email")),
		Lat:      firstFloat(row, "latitude", "lat"),
		Lon:      firstFloat(row, "longitude", "lng", "lon"),
		Services: strSlice(row, "services"),
		Verified: firstBool(row, "is_verified", "verified"),
		RawJSON:  raw,
	}

	hours, _ := firstMap(row, "base_hours", "baseHours")
	loc.BaseHours = MapBaseHours(hours)
	if list, ok := firstSliceMaps(row, "special_hours", "specialHours"); ok {
		loc.SpecialHours = MapOverrides(list)
	}
	return loc
}

// MapBaseHours fills all seven weekdays: a day with a closed flag or without a
// complete open/close pair reads as closed, so downstream code never sees a
// half-specified entry.
func MapBaseHours(src map[string]any) domain.WeekSchedule {
	out := make(domain.WeekSchedule, 7)
	for key, wd := range weekdayKeys {
		rec, _ := lookupAny(src, key).(map[string]any)
		open := strings.TrimSpace(lookupStr(rec, "open"))
		closeAt := strings.TrimSpace(lookupStr(rec, "close"))
		switch {
		case firstBool(rec, "closed"):
			out[wd] = domain.DaySchedule{Closed: true}
		case open != "" && closeAt != "":
			out[wd] = domain.DaySchedule{Open: open, Close: closeAt}
		default:
			out[wd] = domain.DaySchedule{Closed: true}
		}
	}
	return out
}

// MapOverrides normalizes dated special-hours rows. Rows without a date are
// dropped; a closed override carries no open/close pair.
func MapOverrides(rows []map[string]any) []domain.DateOverride {
	out := make([]domain.DateOverride, 0, len(rows))
	for _, r := range rows {
		date := firstNonEmptyAlias(r, overrideAliases, "date")
		if date == "" {
			continue
		}
		ov := domain.DateOverride{
			Date:   date,
			Label:  firstNonEmptyAlias(r, overrideAliases, "label"),
			Closed: firstBool(r, "closed", "is_closed"),
		}
		if !ov.Closed {
			ov.Open = firstNonEmptyAlias(r, overrideAliases, "open")
			ov.Close = firstNonEmptyAlias(r, overrideAliases, "close")
		}
		out = append(out, ov)
	}
	return out
}
