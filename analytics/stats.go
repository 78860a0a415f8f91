package analytics

import (
	"fmt"
	"sort"
	"time"

	"drinktab/core"
)

// AggregationPeriod selects the bucket width of a timeline.
type AggregationPeriod string

const (
	PeriodDaily   AggregationPeriod = "daily"
	PeriodWeekly  AggregationPeriod = "weekly"
	PeriodMonthly AggregationPeriod = "monthly"
)

// WeekdayLabels are the display labels for Summary.ByWeekday.
var WeekdayLabels = [7]string{"Mo", "Di", "Mi", "Do", "Fr", "Sa", "So"}

// Bucket aggregates purchases in one timeline slot.
type Bucket struct {
	Key       string     `json:"key"` // "2024-01-01", "2024-W01" or "2024-01"
	Purchases int        `json:"purchases"`
	Spent     core.Money `json:"spent"`
}

type ItemCount struct {
	Item  core.ItemID `json:"item"`
	Count int         `json:"count"`
}

// Summary is a per-user statistics report over local wall-clock time.
type Summary struct {
	Purchases int        `json:"purchases"`
	Deposits  int        `json:"deposits"`
	Spent     core.Money `json:"spent"`
	Deposited core.Money `json:"deposited"`

	// ByWeekday is ordered Monday to Sunday.
	ByWeekday [7]int  `json:"by_weekday"`
	ByHour    [24]int `json:"by_hour"`

	Timeline map[AggregationPeriod][]Bucket `json:"timeline"`
	TopItems []ItemCount                    `json:"top_items"`
}

// TopItemsLimit caps Summary.TopItems.
const TopItemsLimit = 5

// Summarize builds a Summary from txs restricted to [from, to). Zero bounds
// are open. Buckets are computed in loc (Berlin when nil).
func Summarize(txs []core.Transaction, loc *time.Location, from, to time.Time) Summary {
	if loc == nil {
		loc = core.Berlin()
	}
	sum := Summary{Timeline: map[AggregationPeriod][]Bucket{}}
	buckets := map[AggregationPeriod]map[string]*Bucket{
		PeriodDaily:   {},
		PeriodWeekly:  {},
		PeriodMonthly: {},
	}
	items := map[core.ItemID]int{}

	for _, tx := range core.SortTransactions(txs) {
		if !from.IsZero() && tx.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !tx.CreatedAt.Before(to) {
			continue
		}
		if tx.Type == core.TxDeposit {
			sum.Deposits++
			sum.Deposited += tx.Amount
			continue
		}
		sum.Purchases++
		sum.Spent -= tx.Amount
		items[tx.Item]++

		l := core.Localize(tx.CreatedAt, loc)
		sum.ByWeekday[(int(l.Weekday)+6)%7]++
		sum.ByHour[l.Hour]++
		for period, key := range map[AggregationPeriod]string{
			PeriodDaily:   l.Date.String(),
			PeriodWeekly:  weekKey(l),
			PeriodMonthly: monthKey(l),
		} {
			b := buckets[period][key]
			if b == nil {
				b = &Bucket{Key: key}
				buckets[period][key] = b
			}
			b.Purchases++
			b.Spent -= tx.Amount
		}
	}

	for period, m := range buckets {
		out := make([]Bucket, 0, len(m))
		for _, b := range m {
			out = append(out, *b)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
		sum.Timeline[period] = out
	}
	sum.TopItems = topItems(items, TopItemsLimit)
	return sum
}

func topItems(counts map[core.ItemID]int, limit int) []ItemCount {
	out := make([]ItemCount, 0, len(counts))
	for id, n := range counts {
		out = append(out, ItemCount{Item: id, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Item < out[j].Item
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func weekKey(l core.LocalTime) string {
	return fmt.Sprintf("%d-W%02d", l.ISOYear, l.ISOWeek)
}

func monthKey(l core.LocalTime) string {
	return fmt.Sprintf("%04d-%02d", l.Date.Year, int(l.Date.Month))
}
