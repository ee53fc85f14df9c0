package engine

import "time"

const DateFormat = "2006-01-02"

// Date is a calendar date without time of day. Its string form sorts
// chronologically, so range checks compare strings.
type Date string

func DateOf(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.Local
	}
	return Date(t.In(loc).Format(DateFormat))
}

func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DateFormat, s, loc)
}

func (d Date) String() string {
	return string(d)
}

// Within reports whether d lies in [from, to], both ends inclusive.
func (d Date) Within(from, to Date) bool {
	return d >= from && d <= to
}

// LongDate renders t as "2 January 2006" in loc.
func LongDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("2 January 2006")
}
