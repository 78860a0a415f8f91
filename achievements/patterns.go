package achievements

import (
	"math"
	"sort"
	"time"

	"drinktab/core"
)

// Temporal pattern detectors. Every detector receives purchases already
// localized and sorted chronologically and only reads from the slice.

// sameDayBurst finds n purchases on one local day where every gap is at least
// minGap. A shorter gap or a new day restarts the count.
func sameDayBurst(ls []core.LocalTime, n int, minGap time.Duration) bool {
	count := 0
	for i, l := range ls {
		switch {
		case i == 0 || l.Date != ls[i-1].Date:
			count = 1
		case l.Instant.Sub(ls[i-1].Instant) >= minGap:
			count++
		default:
			count = 1
		}
		if count >= n {
			return true
		}
	}
	return false
}

// rapidFire finds three consecutive purchases each at least minGap apart whose
// total span stays within maxSpan.
func rapidFire(ls []core.LocalTime, minGap, maxSpan time.Duration) bool {
	for i := 0; i+2 < len(ls); i++ {
		a, b, c := ls[i].Instant, ls[i+1].Instant, ls[i+2].Instant
		if b.Sub(a) >= minGap && c.Sub(b) >= minGap && c.Sub(a) <= maxSpan {
			return true
		}
	}
	return false
}

// equalGaps finds three consecutive purchases whose two gaps, rounded to whole
// minutes, are equal and at least minMinutes.
func equalGaps(ls []core.LocalTime, minMinutes float64) bool {
	for i := 0; i+2 < len(ls); i++ {
		g1 := math.Round(ls[i+1].Instant.Sub(ls[i].Instant).Minutes())
		g2 := math.Round(ls[i+2].Instant.Sub(ls[i+1].Instant).Minutes())
		if g1 >= minMinutes && g1 == g2 {
			return true
		}
	}
	return false
}

func dateSet(ls []core.LocalTime) map[core.Date]struct{} {
	set := make(map[core.Date]struct{}, len(ls))
	for _, l := range ls {
		set[l.Date] = struct{}{}
	}
	return set
}

// sortedDates returns the distinct local dates in calendar order.
func sortedDates(ls []core.LocalTime) []core.Date {
	set := dateSet(ls)
	out := make([]core.Date, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// weekendPair finds a Saturday purchase followed by one on the next day.
func weekendPair(ls []core.LocalTime) bool {
	set := dateSet(ls)
	for d := range set {
		if d.Weekday() != time.Saturday {
			continue
		}
		if _, ok := set[d.Next()]; ok {
			return true
		}
	}
	return false
}

// busyDays counts local days with at least perDay purchases.
func busyDays(ls []core.LocalTime, perDay int) int {
	counts := make(map[core.Date]int)
	for _, l := range ls {
		counts[l.Date]++
	}
	days := 0
	for _, n := range counts {
		if n >= perDay {
			days++
		}
	}
	return days
}

// consecutiveRun reports whether sorted distinct ints contain a run of n
// values each one greater than the previous.
func consecutiveRun(vals []int, n int) bool {
	run := 0
	for i, v := range vals {
		if i > 0 && v == vals[i-1]+1 {
			run++
		} else {
			run = 1
		}
		if run >= n {
			return true
		}
	}
	return false
}

// weekStreak looks for n consecutive ISO week numbers within one ISO year.
// Week 52/53 and week 1 of the next year are deliberately not joined.
func weekStreak(ls []core.LocalTime, n int) bool {
	byYear := make(map[int]map[int]struct{})
	for _, l := range ls {
		if byYear[l.ISOYear] == nil {
			byYear[l.ISOYear] = make(map[int]struct{})
		}
		byYear[l.ISOYear][l.ISOWeek] = struct{}{}
	}
	for _, weeks := range byYear {
		vals := make([]int, 0, len(weeks))
		for w := range weeks {
			vals = append(vals, w)
		}
		sort.Ints(vals)
		if consecutiveRun(vals, n) {
			return true
		}
	}
	return false
}

// dayStreak looks for n consecutive calendar days with a purchase.
func dayStreak(ls []core.LocalTime, n int) bool {
	dates := sortedDates(ls)
	run := 0
	for i, d := range dates {
		if i > 0 && dates[i-1].Next() == d {
			run++
		} else {
			run = 1
		}
		if run >= n {
			return true
		}
	}
	return false
}

// tightCluster finds n purchases all within window of the first one.
func tightCluster(ls []core.LocalTime, n int, window time.Duration) bool {
	for i := 0; i+n-1 < len(ls); i++ {
		if ls[i+n-1].Instant.Sub(ls[i].Instant) <= window {
			return true
		}
	}
	return false
}

func countWeekday(ls []core.LocalTime, wd time.Weekday) int {
	n := 0
	for _, l := range ls {
		if l.Weekday == wd {
			n++
		}
	}
	return n
}

type season int

const (
	spring season = iota
	summer
	autumn
	winter
)

func seasonOf(m time.Month) season {
	switch m {
	case time.March, time.April, time.May:
		return spring
	case time.June, time.July, time.August:
		return summer
	case time.September, time.October, time.November:
		return autumn
	default:
		return winter
	}
}

func allSeasons(ls []core.LocalTime) bool {
	seen := make(map[season]struct{}, 4)
	for _, l := range ls {
		seen[seasonOf(l.Date.Month)] = struct{}{}
	}
	return len(seen) == 4
}

// habitStreak takes the minute-of-day of each day's first purchase and looks
// for n consecutive calendar days whose values stay within span minutes of
// each other. The span is measured over the whole streak (max - min); a day
// that breaks it starts a new streak.
func habitStreak(ls []core.LocalTime, n int, span int) bool {
	first := make(map[core.Date]int)
	for _, l := range ls {
		if _, ok := first[l.Date]; !ok {
			first[l.Date] = l.MinuteOfDay
		}
	}
	type streak struct {
		last   core.Date
		lo, hi int
		length int
	}
	var s streak
	for _, d := range sortedDates(ls) {
		m := first[d]
		lo, hi := min(s.lo, m), max(s.hi, m)
		if s.length > 0 && s.last.Next() == d && hi-lo <= span {
			s = streak{last: d, lo: lo, hi: hi, length: s.length + 1}
		} else {
			s = streak{last: d, lo: m, hi: m, length: 1}
		}
		if s.length >= n {
			return true
		}
	}
	return false
}
