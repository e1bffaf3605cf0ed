// Package calendar converts option expiry dates into year fractions using
// the Indian trading-day convention (252 trading days per year).
package calendar

import "time"

const (
	tradingDaysPerYear = 252.0

	// NSE session close. After this instant on expiry day the contract
	// is treated as expired.
	marketCloseHour   = 15
	marketCloseMinute = 30
)

// Calendar answers trading-day questions for one exchange.
// Immutable after construction; safe for concurrent use.
type Calendar struct {
	holidays map[time.Time]struct{}
	location *time.Location
}

// New builds a calendar from an explicit holiday list. Dates are normalized
// to midnight in loc; nil loc means time.Local.
func New(holidays []time.Time, loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.Local
	}
	set := make(map[time.Time]struct{}, len(holidays))
	for _, h := range holidays {
		set[dateOnly(h, loc)] = struct{}{}
	}
	return &Calendar{holidays: set, location: loc}
}

// NewNSE returns a calendar loaded with the NSE holiday list for 2026.
// The list needs an annual refresh; load from config for other years.
func NewNSE() *Calendar {
	ist := time.FixedZone("IST", 5*3600+1800)
	dates := []time.Time{
		time.Date(2026, 1, 26, 0, 0, 0, 0, ist),  // Republic Day
		time.Date(2026, 3, 14, 0, 0, 0, 0, ist),  // Holi
		time.Date(2026, 3, 30, 0, 0, 0, 0, ist),  // Good Friday
		time.Date(2026, 4, 2, 0, 0, 0, 0, ist),   // Ram Navami
		time.Date(2026, 4, 14, 0, 0, 0, 0, ist),  // Dr. Ambedkar Jayanti
		time.Date(2026, 5, 1, 0, 0, 0, 0, ist),   // Maharashtra Day
		time.Date(2026, 8, 15, 0, 0, 0, 0, ist),  // Independence Day
		time.Date(2026, 8, 19, 0, 0, 0, 0, ist),  // Janmashtami
		time.Date(2026, 10, 2, 0, 0, 0, 0, ist),  // Gandhi Jayanti
		time.Date(2026, 10, 24, 0, 0, 0, 0, ist), // Dussehra
		time.Date(2026, 11, 12, 0, 0, 0, 0, ist), // Diwali
		time.Date(2026, 11, 13, 0, 0, 0, 0, ist), // Diwali (Laxmi Pujan)
		time.Date(2026, 11, 14, 0, 0, 0, 0, ist), // Diwali (Balipratipada)
		time.Date(2026, 12, 25, 0, 0, 0, 0, ist), // Christmas
	}
	return New(dates, ist)
}

func dateOnly(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// IsTradingDay reports whether date is a weekday that is not a holiday.
func (c *Calendar) IsTradingDay(date time.Time) bool {
	switch date.In(c.location).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := c.holidays[dateOnly(date, c.location)]
	return !holiday
}

// TradingDays counts trading days in [start, end], inclusive on both ends.
func (c *Calendar) TradingDays(start, end time.Time) int {
	count := 0
	for d := dateOnly(start, c.location); !d.After(dateOnly(end, c.location)); d = d.AddDate(0, 0, 1) {
		if c.IsTradingDay(d) {
			count++
		}
	}
	return count
}

// YearsToExpiry returns the time to expiry in years as tradingDays/252 plus
// the intraday remainder of the current session.
//
// Returns 0 only for contracts that are genuinely expired: expiry before
// asOf's date, or expiry day with asOf past the market close. A same-day
// expiry during the session yields a small positive fraction so the pricing
// path never divides by zero.
func (c *Calendar) YearsToExpiry(expiry, asOf time.Time) float64 {
	expiryDay := dateOnly(expiry, c.location)
	today := dateOnly(asOf, c.location)

	if expiryDay.Before(today) {
		return 0
	}

	local := asOf.In(c.location)
	closeToday := time.Date(local.Year(), local.Month(), local.Day(), marketCloseHour, marketCloseMinute, 0, 0, c.location)

	if expiryDay.Equal(today) && !local.Before(closeToday) {
		return 0 // past the expiry-day close
	}

	days := c.TradingDays(today, expiryDay)

	intraDay := 0.0
	if local.Before(closeToday) {
		intraDay = closeToday.Sub(local).Seconds() / (24 * 60 * 60)
		if days > 0 {
			days-- // today is carried by the intraday fraction
		}
	}

	t := (float64(days) + intraDay) / tradingDaysPerYear

	// Floor so a calculable contract never degenerates to T=0.
	const minYears = 0.0001
	if t < minYears {
		return minYears
	}
	return t
}
