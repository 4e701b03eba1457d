package domain

import (
	"strconv"
	"strings"
	"time"
)

// Store hours resolution. Everything here is pure: callers pass the location
// snapshot and the instant explicitly, and malformed schedule data degrades to
// a closed/"Hours unavailable" display state instead of an error.

const isoDate = "2006-01-02"

const nextOpenLookaheadDays = 7

// ScheduleForDate returns the effective schedule for the calendar date of
// `date` in its location (time-of-day is ignored). A dated override wins over
// the base weekday entry; with neither present the day reads as closed. When
// several overrides share a date the first in slice order wins.
func ScheduleForDate(loc Location, date time.Time) DayResolution {
	iso := date.Format(isoDate)
	for _, ov := range loc.SpecialHours {
		if ov.Date == iso {
			return DayResolution{
				DaySchedule: DaySchedule{Closed: ov.Closed, Open: ov.Open, Close: ov.Close},
				IsSpecial:   true,
				Label:       ov.Label,
			}
		}
	}
	if base, ok := loc.BaseHours[date.Weekday()]; ok {
		return DayResolution{DaySchedule: base}
	}
	return DayResolution{DaySchedule: DaySchedule{Closed: true}}
}

// ResolveStatus computes the open/closed presentation state for one location
// at one instant. The open interval is half-open: exactly at open is open,
// exactly at close is closed.
func ResolveStatus(loc Location, now time.Time) ResolvedStatus {
	today := ScheduleForDate(loc, now)

	st := ResolvedStatus{
		TodayRange:      RangeText(today.DaySchedule),
		UpcomingSpecial: NextSpecial(loc, now),
	}
	if today.IsSpecial && today.Label != "" {
		l := today.Label
		st.SpecialToday = &l
	}

	if today.Closed {
		st.StatusLabel = "Closed today"
		st.Detail = closedDetail(loc, now, 1)
		return st
	}

	openAt, okOpen := atClock(now, today.Open)
	closeAt, okClose := atClock(now, today.Close)
	if !okOpen || !okClose {
		st.StatusLabel = "Closed"
		st.Detail = "Hours unavailable"
		return st
	}

	switch {
	case !now.Before(openAt) && now.Before(closeAt):
		st.IsOpen = true
		st.StatusLabel = "Open now"
		st.Detail = "Closes at " + clockText(closeAt)
	case now.Before(openAt):
		st.StatusLabel = "Closed"
		st.Detail = "Opens at " + clockText(openAt)
	default:
		// past today's close; today's window is not reconsidered
		st.StatusLabel = "Closed"
		st.Detail = closedDetail(loc, now, 1)
	}
	return st
}

// NextSpecial returns the override with the earliest date >= today, formatted
// for display, or nil when none exists.
func NextSpecial(loc Location, now time.Time) *UpcomingSpecial {
	todayISO := now.Format(isoDate)
	var best *DateOverride
	for i := range loc.SpecialHours {
		ov := &loc.SpecialHours[i]
		if ov.Date < todayISO {
			continue
		}
		if best == nil || ov.Date < best.Date {
			best = ov
		}
	}
	if best == nil {
		return nil
	}

	out := &UpcomingSpecial{
		DateOverride: *best,
		IsToday:      best.Date == todayISO,
		Window:       "Closed",
	}
	if d, err := time.ParseInLocation(isoDate, best.Date, now.Location()); err == nil {
		out.DateLabel = d.Format("Mon, Jan 2")
	}
	if !best.Closed {
		out.Window = RangeText(DaySchedule{Open: best.Open, Close: best.Close})
	}
	return out
}

// RangeText renders one day's hours: "9:00 AM – 6:00 PM", "Closed today", or
// "Hours unavailable" when the open/close pair is absent or malformed.
func RangeText(s DaySchedule) string {
	if s.Closed {
		return "Closed today"
	}
	ref := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	start, okS := atClock(ref, s.Open)
	end, okE := atClock(ref, s.Close)
	if !okS || !okE {
		return "Hours unavailable"
	}
	return clockText(start) + " – " + clockText(end)
}

// closedDetail is the "Closed" detail line, extended with the next known open
// time when one exists inside the lookahead window. The scan starts `fromDay`
// days after now and is capped at 7 days: beyond that we make no claim.
func closedDetail(loc Location, now time.Time, fromDay int) string {
	for i := fromDay; i <= nextOpenLookaheadDays; i++ {
		probe := now.AddDate(0, 0, i)
		sched := ScheduleForDate(loc, probe)
		if sched.Closed {
			continue
		}
		openAt, ok := atClock(probe, sched.Open)
		if !ok || sched.Close == "" {
			continue
		}
		when := "on " + strings.ToUpper(probe.Weekday().String())
		if i == 1 {
			when = "tomorrow"
		}
		return "Closed · Next open " + when + " at " + clockText(openAt)
	}
	return "Closed"
}

// atClock combines a "HH:MM" time-of-day with the calendar date of base.
// Minutes default to 0 when omitted. Reports ok=false on malformed input.
func atClock(base time.Time, clock string) (time.Time, bool) {
	h, m, ok := parseClock(clock)
	if !ok {
		return time.Time{}, false
	}
	y, mo, d := base.Date()
	return time.Date(y, mo, d, h, m, 0, 0, base.Location()), true
}

func parseClock(s string) (hour, minute int, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if parts[0] == "" {
		return 0, 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, false
	}
	m := 0
	if len(parts) == 2 && parts[1] != "" {
		m, err = strconv.Atoi(parts[1])
		if err != nil || m < 0 || m > 59 {
			return 0, 0, false
		}
	}
	return h, m, true
}

func clockText(t time.Time) string { return t.Format("3:04 PM") }
