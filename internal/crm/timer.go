package crm

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNothingToSave   = errors.New("no time to save, start the timer first")
	ErrSessionNotFound = errors.New("session not found")
)

const dayLayout = "2006-01-02"

// Timer is a stopwatch whose state survives restarts because it lives in the
// crm payload. Durations are milliseconds.
type Timer struct {
	Running       bool             `json:"isRunning"`
	StartedAt     *time.Time       `json:"startTime,omitempty"`
	Paused        int64            `json:"pausedTime"`
	DailyTotals   map[string]int64 `json:"dailyTotals,omitempty"`
	SavedSessions []Session        `json:"savedSessions"`
}

// Start resumes counting from whatever was accumulated before.
func (t *Timer) Start(now time.Time) {
	if t.Running {
		return
	}
	stamp := now
	t.StartedAt = &stamp
	t.Running = true
}

func (t *Timer) Pause(now time.Time) {
	if !t.Running {
		return
	}
	t.Paused = t.Elapsed(now)
	t.StartedAt = nil
	t.Running = false
}

// Elapsed is the length of the current session.
func (t *Timer) Elapsed(now time.Time) int64 {
	elapsed := t.Paused
	if t.Running && t.StartedAt != nil {
		if d := now.Sub(*t.StartedAt).Milliseconds(); d > 0 {
			elapsed += d
		}
	}
	return elapsed
}

// Reset ends the current session, adding it to today's total.
func (t *Timer) Reset(now time.Time) {
	if elapsed := t.Elapsed(now); elapsed > 0 {
		if t.DailyTotals == nil {
			t.DailyTotals = make(map[string]int64)
		}
		t.DailyTotals[now.Format(dayLayout)] += elapsed
	}
	t.Running = false
	t.StartedAt = nil
	t.Paused = 0
}

// TotalOn reports the time banked on the day of now, including the session
// still in progress.
func (t *Timer) TotalOn(now time.Time) int64 {
	return t.DailyTotals[now.Format(dayLayout)] + t.Elapsed(now)
}

// SaveSession records the current session under name and resets the timer.
// An empty name becomes "Session <time>".
func (t *Timer) SaveSession(name string, now time.Time) (*Session, error) {
	elapsed := t.Elapsed(now)
	if elapsed <= 0 {
		return nil, ErrNothingToSave
	}
	if name == "" {
		name = "Session " + now.Format("15:04:05")
	}

	s := Session{
		ID:       NewID("session", now),
		Name:     name,
		Duration: elapsed,
		Date:     now,
	}
	t.SavedSessions = append(t.SavedSessions, s)
	t.Reset(now)
	return &s, nil
}

func (t *Timer) DeleteSession(id string) error {
	for i, s := range t.SavedSessions {
		if s.ID == id {
			t.SavedSessions = append(t.SavedSessions[:i], t.SavedSessions[i+1:]...)
			return nil
		}
	}
	return ErrSessionNotFound
}

// FormatDuration renders milliseconds as HH:MM:SS.
func FormatDuration(ms int64) string {
	total := ms / 1000
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
