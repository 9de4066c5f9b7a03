package attendance

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/kozaktomas/face-attendance/internal/constants"
)

// DailySummary lists the marks of one calendar day.
type DailySummary struct {
	Date    string   `json:"date"`
	Count   int      `json:"count"`
	Records []Record `json:"records"`
}

// Summary returns the marks recorded on the calendar date of now.
func (l *Ledger) Summary(ctx context.Context, now time.Time) (DailySummary, error) {
	today := l.Date(now)
	stored, err := l.store.ListSince(ctx, today)
	if err != nil {
		return DailySummary{}, fmt.Errorf("listing attendance for %s: %w", today, err)
	}

	summary := DailySummary{Date: today, Records: []Record{}}
	for _, r := range stored {
		if r.Date != today {
			continue
		}
		summary.Records = append(summary.Records, fromStored(r))
	}
	summary.Count = len(summary.Records)
	return summary, nil
}

// ScheduleDailySummary runs fn with the day's summary every day at the given
// HH:MM in the ledger's location. Stop the returned scheduler on shutdown.
func ScheduleDailySummary(l *Ledger, at string, fn func(DailySummary)) (*gocron.Scheduler, error) {
	s := gocron.NewScheduler(l.loc)
	_, err := s.Every(1).Day().At(at).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.SummaryTimeout)
		defer cancel()

		summary, err := l.Summary(ctx, time.Now())
		if err != nil {
			log.Printf("Warning: daily attendance summary failed: %v", err)
			return
		}
		fn(summary)
	})
	if err != nil {
		return nil, fmt.Errorf("scheduling daily summary at %q: %w", at, err)
	}
	s.StartAsync()
	return s, nil
}

// FormatSummary renders a summary as plain text lines.
func FormatSummary(s DailySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Attendance %s: %d present\n", s.Date, s.Count)
	for _, r := range s.Records {
		fmt.Fprintf(&b, "  %s  %-10s %s\n", r.Time, r.IdentityID, r.DisplayName)
	}
	return b.String()
}
