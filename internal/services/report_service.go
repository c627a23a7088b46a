// Package services – ReportService
//
// This file builds the read-only datasets consumed by the external chart
// renderer. Days are UTC calendar days formatted as YYYY-MM-DD.
package services

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"github.com/tbourn/go-taskbuddy/internal/repo"
)

const (
	dayLayout = "2006-01-02"

	// ActivityDays is the length of the activity dataset.
	ActivityDays = 30
	// TopProducersLimit caps the productivity ranking.
	TopProducersLimit = 10
)

// DayCount is one point of a per-day series.
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
	// Cumulative is the running total up to and including Day.
	Cumulative int `json:"cumulative,omitempty"`
}

// CompletionSplit is the completed/pending task split.
type CompletionSplit struct {
	Total     int64 `json:"total"`
	Completed int64 `json:"completed"`
	Pending   int64 `json:"pending"`
}

// PartnershipSplit is the partnered/unpartnered user split.
type PartnershipSplit struct {
	Total          int64 `json:"total"`
	WithPartner    int64 `json:"with_partner"`
	WithoutPartner int64 `json:"without_partner"`
}

// TimelinePoint counts tasks created on one day and how many of them are done.
type TimelinePoint struct {
	Day       string `json:"day"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
}

// Productivity is one user's task counters.
type Productivity struct {
	Name      string `json:"name"`
	Created   int    `json:"created"`
	Completed int    `json:"completed"`
	Received  int    `json:"received"`
	Deleted   int    `json:"deleted"`
	// Score is Created plus Completed, the ranking key.
	Score int `json:"score"`
}

// ReportService produces chart datasets.
type ReportService struct {
	DB *gorm.DB

	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

func (s *ReportService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// UserGrowth returns new users per join day with the running total.
func (s *ReportService) UserGrowth(ctx context.Context) ([]DayCount, error) {
	ctx, span := otel.Tracer("services/ReportService").Start(ctx, "UserGrowth")
	defer span.End()

	joins, err := repo.ListJoinTimes(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	out := []DayCount{}
	total := 0
	for _, at := range joins {
		day := at.UTC().Format(dayLayout)
		total++
		if n := len(out); n > 0 && out[n-1].Day == day {
			out[n-1].Count++
			out[n-1].Cumulative = total
			continue
		}
		out = append(out, DayCount{Day: day, Count: 1, Cumulative: total})
	}
	return out, nil
}

// TaskCompletion returns the completed/pending split of all stored tasks.
func (s *ReportService) TaskCompletion(ctx context.Context) (*CompletionSplit, error) {
	total, err := repo.CountTasks(ctx, s.DB, nil)
	if err != nil {
		return nil, err
	}
	done := true
	completed, err := repo.CountTasks(ctx, s.DB, &done)
	if err != nil {
		return nil, err
	}
	return &CompletionSplit{Total: total, Completed: completed, Pending: total - completed}, nil
}

// Activity returns, for each of the last ActivityDays days (oldest first,
// today last), how many users were last active on that day.
func (s *ReportService) Activity(ctx context.Context) ([]DayCount, error) {
	ctx, span := otel.Tracer("services/ReportService").Start(ctx, "Activity")
	defer span.End()

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	first := today.AddDate(0, 0, -(ActivityDays - 1))

	out := make([]DayCount, ActivityDays)
	index := make(map[string]int, ActivityDays)
	for i := range out {
		day := first.AddDate(0, 0, i).Format(dayLayout)
		out[i].Day = day
		index[day] = i
	}

	stamps, err := repo.ListLastActiveTimes(ctx, s.DB, first)
	if err != nil {
		return nil, err
	}
	for _, at := range stamps {
		if i, ok := index[at.UTC().Format(dayLayout)]; ok {
			out[i].Count++
		}
	}
	return out, nil
}

// Partnerships returns the partnered/unpartnered user split.
func (s *ReportService) Partnerships(ctx context.Context) (*PartnershipSplit, error) {
	total, err := repo.CountUsers(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	with, err := repo.CountPartneredUsers(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	return &PartnershipSplit{Total: total, WithPartner: with, WithoutPartner: total - with}, nil
}

// TaskTimeline returns tasks created per day with how many are completed.
func (s *ReportService) TaskTimeline(ctx context.Context) ([]TimelinePoint, error) {
	stamps, err := repo.ListTaskStamps(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	out := []TimelinePoint{}
	for _, st := range stamps {
		day := st.CreatedAt.UTC().Format(dayLayout)
		if n := len(out); n == 0 || out[n-1].Day != day {
			out = append(out, TimelinePoint{Day: day})
		}
		p := &out[len(out)-1]
		p.Total++
		if st.Completed {
			p.Completed++
		}
	}
	return out, nil
}

// UserProductivity returns the counters of one user.
//
// Errors: ErrNotFound for an unknown user.
func (s *ReportService) UserProductivity(ctx context.Context, telegramID int64) (*Productivity, error) {
	u, err := repo.GetUserByTelegramID(ctx, s.DB, telegramID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p := productivityOf(u.DisplayName("User"), u.TasksCreated, u.TasksCompleted, u.TasksReceived, u.TasksDeleted)
	return &p, nil
}

// TopProductivity returns up to TopProducersLimit users ranked by tasks
// created plus tasks completed.
func (s *ReportService) TopProductivity(ctx context.Context) ([]Productivity, error) {
	users, err := repo.TopProducers(ctx, s.DB, TopProducersLimit)
	if err != nil {
		return nil, err
	}
	out := make([]Productivity, 0, len(users))
	for _, u := range users {
		name := u.DisplayName(fmt.Sprintf("User %d", u.ID))
		out = append(out, productivityOf(name, u.TasksCreated, u.TasksCompleted, u.TasksReceived, u.TasksDeleted))
	}
	return out, nil
}

func productivityOf(name string, created, completed, received, deleted int) Productivity {
	return Productivity{
		Name:      name,
		Created:   created,
		Completed: completed,
		Received:  received,
		Deleted:   deleted,
		Score:     created + completed,
	}
}
