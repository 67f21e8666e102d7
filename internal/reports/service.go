// Package reports computes the dashboard aggregates. Every read is
// recomputed from the store; nothing is cached.
package reports

import (
	"context"
	"fmt"
	"time"

	"filetrack-backend/internal/files"
	"filetrack-backend/internal/lifecycle"
	"filetrack-backend/internal/shared/apperr"
)

// MaxRangeDays bounds CountByDateRange.
const MaxRangeDays = 366

const (
	activityDays       = 7
	summaryRecentLimit = 5
)

// Store is the slice of the file store the aggregates read from.
type Store interface {
	CountByStatus(ctx context.Context) (map[lifecycle.Status]int, error)
	ReceivedTimes(ctx context.Context, from, to time.Time) ([]time.Time, error)
	CountEvents(ctx context.Context, status lifecycle.Status, from, to time.Time) (int, error)
	ListRecentLifecycleEvents(ctx context.Context, limit int) ([]files.LifecycleEvent, error)
}

type StatusCount struct {
	Status lifecycle.Status `json:"status"`
	Count  int              `json:"count"`
}

type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type DashboardStats struct {
	PendingReceipt  int `json:"pendingReceipt"`
	ReceivedToday   int `json:"receivedToday"`
	ScannedToday    int `json:"scannedToday"`
	UploadCompleted int `json:"uploadCompleted"`
}

type Summary struct {
	TodayFiles     int                      `json:"todayFiles"`
	FilesByStatus  map[lifecycle.Status]int `json:"filesByStatus"`
	ActivityData   []DayCount               `json:"activityData"`
	RecentEvents   []files.LifecycleEvent   `json:"recentEvents"`
	DigitizedFiles int                      `json:"digitizedFiles"`
	PendingFiles   int                      `json:"pendingFiles"`
}

type Inventory struct {
	Total  int           `json:"total"`
	Stages []StatusCount `json:"stages"`
}

type Service struct {
	Store    Store
	Location *time.Location
	Now      func() time.Time
}

func NewService(store Store, loc *time.Location) *Service {
	return &Service{Store: store, Location: loc}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) location() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.Local
}

// midnight returns the start of t's calendar day in the reporting location.
func (s *Service) midnight(t time.Time) time.Time {
	t = t.In(s.location())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.location())
}

// CountByStatus returns one entry per status in pipeline order, zero-filled.
func (s *Service) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	counts, err := s.Store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	return fill(counts), nil
}

func fill(counts map[lifecycle.Status]int) []StatusCount {
	out := make([]StatusCount, 0, len(lifecycle.All()))
	for _, status := range lifecycle.All() {
		out = append(out, StatusCount{Status: status, Count: counts[status]})
	}
	return out
}

// CountToday counts receipts on or after local midnight. The upper end is
// open.
func (s *Service) CountToday(ctx context.Context) (int, error) {
	start := s.midnight(s.now())
	times, err := s.Store.ReceivedTimes(ctx, start, time.Time{})
	if err != nil {
		return 0, err
	}
	return len(times), nil
}

// CountByDateRange returns one entry per calendar day in [start, end],
// chronological and zero-filled.
func (s *Service) CountByDateRange(ctx context.Context, start, end time.Time) ([]DayCount, error) {
	first := s.midnight(start)
	last := s.midnight(end)
	if last.Before(first) {
		return nil, apperr.Invalid("end", "must not be before start")
	}
	days := 0
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days++
		if days > MaxRangeDays {
			return nil, apperr.Invalid("end", fmt.Sprintf("range must not exceed %d days", MaxRangeDays))
		}
	}

	times, err := s.Store.ReceivedTimes(ctx, first, last.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	buckets := make(map[string]int, days)
	for _, t := range times {
		buckets[t.In(s.location()).Format(time.DateOnly)]++
	}

	out := make([]DayCount, 0, days)
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		key := d.Format(time.DateOnly)
		out = append(out, DayCount{Date: key, Count: buckets[key]})
	}
	return out, nil
}

func (s *Service) DashboardStats(ctx context.Context) (DashboardStats, error) {
	counts, err := s.Store.CountByStatus(ctx)
	if err != nil {
		return DashboardStats{}, err
	}
	today, err := s.CountToday(ctx)
	if err != nil {
		return DashboardStats{}, err
	}
	start := s.midnight(s.now())
	scanned, err := s.Store.CountEvents(ctx, lifecycle.StatusScanningCompleted, start, start.AddDate(0, 0, 1))
	if err != nil {
		return DashboardStats{}, err
	}
	return DashboardStats{
		PendingReceipt:  counts[lifecycle.PendingHandover],
		ReceivedToday:   today,
		ScannedToday:    scanned,
		UploadCompleted: counts[lifecycle.StatusUploadCompleted],
	}, nil
}

// Summary is the combined dashboard payload: today's intake, the status
// breakdown, a week of daily receipts and the latest events.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	counts, err := s.Store.CountByStatus(ctx)
	if err != nil {
		return Summary{}, err
	}
	today, err := s.CountToday(ctx)
	if err != nil {
		return Summary{}, err
	}
	now := s.now()
	activity, err := s.CountByDateRange(ctx, now.AddDate(0, 0, -(activityDays-1)), now)
	if err != nil {
		return Summary{}, err
	}
	recent, err := s.Store.ListRecentLifecycleEvents(ctx, summaryRecentLimit)
	if err != nil {
		return Summary{}, err
	}

	byStatus := make(map[lifecycle.Status]int, len(lifecycle.All()))
	for _, sc := range fill(counts) {
		byStatus[sc.Status] = sc.Count
	}
	return Summary{
		TodayFiles:     today,
		FilesByStatus:  byStatus,
		ActivityData:   activity,
		RecentEvents:   recent,
		DigitizedFiles: counts[lifecycle.StatusUploadCompleted],
		PendingFiles:   counts[lifecycle.PendingHandover],
	}, nil
}

func (s *Service) Inventory(ctx context.Context) (Inventory, error) {
	counts, err := s.CountByStatus(ctx)
	if err != nil {
		return Inventory{}, err
	}
	total := 0
	for _, sc := range counts {
		total += sc.Count
	}
	return Inventory{Total: total, Stages: counts}, nil
}
