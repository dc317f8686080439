package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/yourname/sleepcat/internal"
	"github.com/yourname/sleepcat/internal/storage"
)

var validate = validator.New()

// MinSessionLength hides naps too short to be real sleep from history.
const MinSessionLength = 5

// MaxSessionLength bounds a session entered by hand.
const MaxSessionLength = 24 * time.Hour

type DayRequest struct {
	Date string `form:"date" json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func ValidateDayRequest(req *DayRequest) error {
	return validate.Struct(req)
}

type LogRequest struct {
	SleepTime time.Time `json:"sleep_time" validate:"required"`
	WakeTime  time.Time `json:"wake_time" validate:"required"`
}

func ValidateLogRequest(req *LogRequest) error {
	return validate.Struct(req)
}

type DaySummary struct {
	Date         string                  `json:"date"`
	Sessions     []internal.SleepSession `json:"sessions"`
	TotalMinutes int                     `json:"total_minutes"`
}

// History reads a user's sessions grouped by the calendar day sleep began.
type History struct {
	sessions storage.SleepSessionRepository
	loc      *time.Location
	now      func() time.Time
	newID    func() string
}

func NewHistory(sessions storage.SleepSessionRepository, loc *time.Location) *History {
	return &History{sessions: sessions, loc: loc, now: time.Now, newID: uuid.NewString}
}

// Add records a session entered after the fact. It pays no coins and leaves
// the pending registry alone.
func (h *History) Add(ctx context.Context, userID string, sleep, wake time.Time) (*internal.SleepSession, error) {
	if userID == "" {
		return nil, internal.ErrUserRequired
	}
	if !wake.After(sleep) {
		return nil, fmt.Errorf("%w: slept %s, woke %s", internal.ErrInvalidInterval,
			sleep.Format(time.RFC3339), wake.Format(time.RFC3339))
	}
	if wake.Sub(sleep) > MaxSessionLength {
		return nil, fmt.Errorf("%w: slept %s", internal.ErrSessionTooLong, wake.Sub(sleep))
	}

	w := wake
	session := &internal.SleepSession{
		ID:        h.newID(),
		UserID:    userID,
		Date:      sleep.In(h.loc).Format(internal.DateLayout),
		SleepTime: sleep,
		WakeTime:  &w,
		CreatedAt: h.now(),
	}
	stored, err := h.sessions.InsertClosedSession(ctx, session)
	if err != nil {
		return nil, internal.StoreFailure("insert session", err)
	}
	return stored, nil
}

// Day returns the sessions that began on date (today when empty), skipping
// closed sessions shorter than MinSessionLength minutes.
func (h *History) Day(ctx context.Context, userID, date string) (*DaySummary, error) {
	var day time.Time
	if date == "" {
		n := h.now().In(h.loc)
		day = time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, h.loc)
	} else {
		d, err := time.ParseInLocation(internal.DateLayout, date, h.loc)
		if err != nil {
			return nil, err
		}
		day = d
	}

	all, err := h.sessions.ListSessions(ctx, userID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, internal.StoreFailure("list sessions", err)
	}

	summary := &DaySummary{Date: day.Format(internal.DateLayout), Sessions: []internal.SleepSession{}}
	// the open session is listed so today shows the user asleep; it adds no minutes
	for _, s := range all {
		if !s.IsOpen() {
			if s.Flagged || s.DurationMinutes == nil || *s.DurationMinutes < MinSessionLength {
				continue
			}
			summary.TotalMinutes += *s.DurationMinutes
		}
		summary.Sessions = append(summary.Sessions, s)
	}
	return summary, nil
}
