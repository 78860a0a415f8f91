package core

import (
	"fmt"
	"sync"
	"time"
	_ "time/tzdata" // Europe/Berlin must resolve on hosts without zoneinfo
)

// DefaultTimezone is the zone all date and time based rules are evaluated in.
const DefaultTimezone = "Europe/Berlin"

var berlin = sync.OnceValue(func() *time.Location {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		panic(fmt.Sprintf("load %s: %v", DefaultTimezone, err))
	}
	return loc
})

// Berlin returns the Europe/Berlin location.
func Berlin() *time.Location { return berlin() }

// Date is a calendar date without a time of day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func (d Date) midnight() time.Time { return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC) }

// AddDays moves the date by n calendar days.
func (d Date) AddDays(n int) Date {
	t := d.midnight().AddDate(0, 0, n)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Next is the following calendar day.
func (d Date) Next() Date { return d.AddDays(1) }

func (d Date) Before(o Date) bool { return d.midnight().Before(o.midnight()) }

func (d Date) Weekday() time.Weekday { return d.midnight().Weekday() }

func (d Date) String() string { return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day) }

// LocalTime holds the wall-clock fields of an instant in a given zone.
type LocalTime struct {
	Instant     time.Time
	Hour        int
	Minute      int
	Second      int
	Weekday     time.Weekday // 0 = Sunday
	Date        Date
	ISOYear     int
	ISOWeek     int
	MinuteOfDay int
}

// Localize converts an instant to wall-clock fields in loc. A nil loc means Berlin.
func Localize(t time.Time, loc *time.Location) LocalTime {
	if loc == nil {
		loc = Berlin()
	}
	lt := t.In(loc)
	isoYear, isoWeek := lt.ISOWeek()
	return LocalTime{
		Instant:     t,
		Hour:        lt.Hour(),
		Minute:      lt.Minute(),
		Second:      lt.Second(),
		Weekday:     lt.Weekday(),
		Date:        Date{Year: lt.Year(), Month: lt.Month(), Day: lt.Day()},
		ISOYear:     isoYear,
		ISOWeek:     isoWeek,
		MinuteOfDay: lt.Hour()*60 + lt.Minute(),
	}
}
