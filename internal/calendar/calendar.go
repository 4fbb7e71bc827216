package calendar

import (
	"time"

	"collections-etl-go/internal/types"
)

// Engine answers business-day questions for one country's holiday calendar.
// Pure calculus: no clocks, no I/O.
type Engine struct {
	country          string
	includeSaturdays bool
	holidays         map[int]map[time.Time]string // lazily built per year
}

// New builds an engine for a country code. Unknown countries are a configuration
// error: the pipeline must fail fast at startup, not mid-run.
func New(country string, includeSaturdays bool) (*Engine, error) {
	if _, ok := holidayRules[country]; !ok {
		return nil, &types.ConfigError{Field: "country_code", Reason: "no holiday calendar for " + country}
	}
	return &Engine{
		country:          country,
		includeSaturdays: includeSaturdays,
		holidays:         make(map[int]map[time.Time]string),
	}, nil
}

// DateOf normalizes a timestamp to its calendar date (midnight UTC).
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsBusinessDay reports whether d is a working day: never Sunday, Saturday only
// when configured, never a holiday.
func (e *Engine) IsBusinessDay(d time.Time) bool {
	d = DateOf(d)
	switch d.Weekday() {
	case time.Sunday:
		return false
	case time.Saturday:
		if !e.includeSaturdays {
			return false
		}
	}
	_, holiday := e.holidaysFor(d.Year())[d]
	return !holiday
}

// IsHoliday reports whether d is on the holiday table.
func (e *Engine) IsHoliday(d time.Time) bool {
	_, ok := e.holidaysFor(d.Year())[DateOf(d)]
	return ok
}

// BusinessDayIndexOfMonth counts business days from the 1st of d's month through d
// inclusive. Returns 0 when d itself is not a business day.
func (e *Engine) BusinessDayIndexOfMonth(d time.Time) int {
	d = DateOf(d)
	if !e.IsBusinessDay(d) {
		return 0
	}
	n := 0
	for cur := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC); !cur.After(d); cur = cur.AddDate(0, 0, 1) {
		if e.IsBusinessDay(cur) {
			n++
		}
	}
	return n
}

// BusinessDaysInMonth lists the business days of a month in order.
func (e *Engine) BusinessDaysInMonth(year int, month time.Month) ([]time.Time, error) {
	if err := validateMonth(year, month); err != nil {
		return nil, err
	}
	var days []time.Time
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	for cur := first; cur.Month() == month; cur = cur.AddDate(0, 0, 1) {
		if e.IsBusinessDay(cur) {
			days = append(days, cur)
		}
	}
	return days, nil
}

// NthBusinessDay returns the nth (1-based) business day of a month. The bool is
// false when the month has fewer than n business days.
func (e *Engine) NthBusinessDay(year int, month time.Month, n int) (time.Time, bool, error) {
	if err := validateMonth(year, month); err != nil {
		return time.Time{}, false, err
	}
	if n < 1 {
		return time.Time{}, false, nil
	}
	days, err := e.BusinessDaysInMonth(year, month)
	if err != nil {
		return time.Time{}, false, err
	}
	if n > len(days) {
		return time.Time{}, false, nil
	}
	return days[n-1], true, nil
}

// SameBusinessDayPreviousMonth maps d to the previous month's business day with the
// same index. When the previous month is shorter it falls back to its last business
// day. The bool is false when d is not a business day or the previous month has no
// business days at all.
func (e *Engine) SameBusinessDayPreviousMonth(d time.Time) (time.Time, bool) {
	idx := e.BusinessDayIndexOfMonth(d)
	if idx == 0 {
		return time.Time{}, false
	}
	prev := DateOf(d).AddDate(0, 0, -d.Day()) // last day of previous month
	days, err := e.BusinessDaysInMonth(prev.Year(), prev.Month())
	if err != nil || len(days) == 0 {
		return time.Time{}, false
	}
	if idx <= len(days) {
		return days[idx-1], true
	}
	return days[len(days)-1], true
}

// MonthSummary describes the business shape of one month.
type MonthSummary struct {
	Year             int
	Month            time.Month
	TotalDays        int
	BusinessDays     int
	NonBusinessDays  int
	Holidays         []time.Time
	FirstBusinessDay time.Time
	LastBusinessDay  time.Time
}

// Summarize computes a MonthSummary for the given month.
func (e *Engine) Summarize(year int, month time.Month) (MonthSummary, error) {
	days, err := e.BusinessDaysInMonth(year, month)
	if err != nil {
		return MonthSummary{}, err
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	total := first.AddDate(0, 1, -1).Day()
	s := MonthSummary{
		Year:            year,
		Month:           month,
		TotalDays:       total,
		BusinessDays:    len(days),
		NonBusinessDays: total - len(days),
	}
	if len(days) > 0 {
		s.FirstBusinessDay = days[0]
		s.LastBusinessDay = days[len(days)-1]
	}
	for cur := first; cur.Month() == month; cur = cur.AddDate(0, 0, 1) {
		if e.IsHoliday(cur) {
			s.Holidays = append(s.Holidays, cur)
		}
	}
	return s, nil
}

func (e *Engine) holidaysFor(year int) map[time.Time]string {
	if table, ok := e.holidays[year]; ok {
		return table
	}
	table := holidayRules[e.country](year)
	e.holidays[year] = table
	return table
}

func validateMonth(year int, month time.Month) error {
	if year < 1 {
		return &types.ConfigError{Field: "year", Reason: "must be positive"}
	}
	if month < time.January || month > time.December {
		return &types.ConfigError{Field: "month", Reason: "must be between 1 and 12"}
	}
	return nil
}
