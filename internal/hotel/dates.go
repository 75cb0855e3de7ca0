package hotel

import "time"

const DateLayout = "2006-01-02"

// DateRange is a half-open window of civil dates [From, To).
type DateRange struct {
	From string
	To   string
}

func (r DateRange) Contains(d time.Time) bool {
	s := d.Format(DateLayout)
	return s >= r.From && s < r.To
}

// Day returns midnight of t's calendar day in loc.
func Day(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DaysFrom builds the window [today+from, today+to) relative to now in loc.
func DaysFrom(now time.Time, loc *time.Location, from, to int) DateRange {
	d := Day(now, loc)
	return DateRange{
		From: d.AddDate(0, 0, from).Format(DateLayout),
		To:   d.AddDate(0, 0, to).Format(DateLayout),
	}
}

// ParseDate parses a YYYY-MM-DD civil date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	return time.Parse(DateLayout, s)
}
