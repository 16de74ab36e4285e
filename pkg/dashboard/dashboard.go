package dashboard

import (
	"time"

	"casenotes/pkg/table"
)

var monthNames = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

type MonthCount struct {
	Month int    `json:"month"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Summary is the metric block and the two charts of a program dashboard.
type Summary struct {
	Program            string       `json:"program"`
	TotalReferrals     int          `json:"total_referrals"`
	ReferralsPastYear  int          `json:"referrals_past_year"`
	ReferralsPastMonth int          `json:"referrals_past_month"`
	Year               int          `json:"year"`
	MonthlyReferrals   []MonthCount `json:"monthly_referrals"`
	MonthlyNotes       []MonthCount `json:"monthly_notes"`
}

func Summarize(snap *table.Snapshot, now time.Time) Summary {
	schema := snap.Schema
	return Summary{
		Program:            schema.Program,
		TotalReferrals:     len(snap.Entities()),
		ReferralsPastYear:  CountSince(snap, schema.ReferralDateColumn, now.AddDate(0, 0, -365)),
		ReferralsPastMonth: CountSince(snap, schema.ReferralDateColumn, now.AddDate(0, 0, -30)),
		Year:               now.Year(),
		MonthlyReferrals:   Monthly(snap, schema.ReferralDateColumn, now),
		MonthlyNotes:       Monthly(snap, table.ColumnNoteDate, now),
	}
}

// CountSince counts rows whose date in col is on or after since.
func CountSince(snap *table.Snapshot, col string, since time.Time) int {
	y, m, d := since.Date()
	cutoff := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	n := 0
	for _, r := range snap.Records {
		if date, ok := r.Get(col).Date(); ok && !date.Before(cutoff) {
			n++
		}
	}
	return n
}

// Monthly counts rows per month of now's year, January through now's month.
// Months without rows are zero.
func Monthly(snap *table.Snapshot, col string, now time.Time) []MonthCount {
	current := int(now.Month())
	out := make([]MonthCount, current)
	for i := range out {
		out[i] = MonthCount{Month: i + 1, Name: monthNames[i]}
	}
	for _, r := range snap.Records {
		date, ok := r.Get(col).Date()
		if !ok || date.Year() != now.Year() {
			continue
		}
		if m := int(date.Month()); m <= current {
			out[m-1].Count++
		}
	}
	return out
}
