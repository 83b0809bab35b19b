package reservation

import (
	"math"
	"time"
)

// Quote is the price breakdown for a stay. Nights are half-open: the check-in
// night counts, the check-out night does not.
type Quote struct {
	Nights        int
	WeekendNights int
	Total         float64
	Deposit       float64
}

// Price walks the stay night by night. A weekend night is one whose date falls
// on Saturday or Sunday and is charged base * multiplier; all amounts are
// rounded to cents.
func Price(base, weekendMultiplier float64, checkIn, checkOut time.Time, depositPercent int) Quote {
	q := Quote{}
	for d := checkIn; d.Before(checkOut); d = d.AddDate(0, 0, 1) {
		q.Nights++
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			q.WeekendNights++
			q.Total += base * weekendMultiplier
		} else {
			q.Total += base
		}
	}
	q.Total = roundCents(q.Total)
	q.Deposit = roundCents(q.Total * float64(depositPercent) / 100)
	return q
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
