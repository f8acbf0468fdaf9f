package pricing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketwatch-backend/pkg/enums"
)

// DateLayout is the wire format of observation dates.
const DateLayout = "2006-01-02"

var hundred = decimal.NewFromInt(100)

// Observation is one {date, price} sample. Seq orders samples that share a date.
type Observation struct {
	Date  time.Time
	Price decimal.Decimal
	Seq   int64
}

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SortByDate returns a copy of history ordered by date. Samples on the same
// date keep their insertion order.
func SortByDate(history []Observation) []Observation {
	out := make([]Observation, len(history))
	copy(out, history)
	sort.SliceStable(out, func(i, j int) bool {
		return Day(out[i].Date).Before(Day(out[j].Date))
	})
	return out
}

// ComputeTrend is the percentage change from the earliest to the latest
// observation, rounded half away from zero to one decimal place. Histories
// with fewer than two samples have no trend.
func ComputeTrend(history []Observation) decimal.Decimal {
	if len(history) < 2 {
		return decimal.Zero
	}
	sorted := SortByDate(history)
	first := sorted[0].Price
	last := sorted[len(sorted)-1].Price
	if first.IsZero() {
		return decimal.Zero
	}
	return last.Sub(first).Mul(hundred).Div(first).Round(1)
}

// ReferenceObservation picks the latest observation dated on or before ref.
// Ties on the date resolve to the latest inserted sample.
func ReferenceObservation(history []Observation, ref time.Time) (Observation, bool) {
	cutoff := Day(ref)
	var (
		best  Observation
		found bool
	)
	for _, obs := range history {
		day := Day(obs.Date)
		if day.After(cutoff) {
			continue
		}
		if !found {
			best, found = obs, true
			continue
		}
		bestDay := Day(best.Date)
		if day.After(bestDay) || (day.Equal(bestDay) && obs.Seq > best.Seq) {
			best = obs
		}
	}
	return best, found
}

// Delta describes how current moved relative to reference.
type Delta struct {
	Difference decimal.Decimal
	Change     decimal.Decimal
	Direction  enums.PriceDirection
}

// Diff returns the absolute and signed change from reference to current.
func Diff(reference, current decimal.Decimal) Delta {
	change := current.Sub(reference)
	return Delta{
		Difference: change.Abs(),
		Change:     change,
		Direction:  enums.DirectionFromSign(change.Sign()),
	}
}
