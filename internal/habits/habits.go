// Package habits models the "habits" dataset: up to MaxHabits habits and a
// per-day record of which ones were completed.
package habits

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"productive-cloud/internal/crm"
)

const MaxHabits = 10

const DateLayout = "2006-01-02"

var (
	ErrNameRequired = errors.New("habit name is required")
	ErrLimitReached = errors.New("maximum 10 habits allowed")
	ErrNotFound     = errors.New("habit not found")
)

type Habit struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	Frequency string    `json:"frequency,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Payload is the habits dataset. Progress maps a YYYY-MM-DD day to the
// completion flag of each habit id.
type Payload struct {
	Habits   []Habit                    `json:"habits"`
	Progress map[string]map[string]bool `json:"progress"`
}

func Decode(raw []byte) (*Payload, error) {
	p := &Payload{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, err
		}
	}
	if p.Progress == nil {
		p.Progress = make(map[string]map[string]bool)
	}
	return p, nil
}

func (p *Payload) Encode() ([]byte, error) {
	if p.Habits == nil {
		p.Habits = []Habit{}
	}
	if p.Progress == nil {
		p.Progress = make(map[string]map[string]bool)
	}
	return json.Marshal(p)
}

func DateKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

func (p *Payload) AddHabit(name, category, frequency string, now time.Time) (*Habit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if len(p.Habits) >= MaxHabits {
		return nil, ErrLimitReached
	}
	if frequency == "" {
		frequency = "daily"
	}

	h := Habit{
		ID:        crm.NewID("habit", now),
		Name:      name,
		Category:  category,
		Frequency: frequency,
		CreatedAt: now,
	}
	p.Habits = append(p.Habits, h)
	return &p.Habits[len(p.Habits)-1], nil
}

func (p *Payload) find(id string) int {
	for i, h := range p.Habits {
		if h.ID == id {
			return i
		}
	}
	return -1
}

// RemoveHabit deletes the habit and its completion history.
func (p *Payload) RemoveHabit(id string) error {
	i := p.find(id)
	if i < 0 {
		return ErrNotFound
	}
	p.Habits = append(p.Habits[:i], p.Habits[i+1:]...)
	for day, marks := range p.Progress {
		delete(marks, id)
		if len(marks) == 0 {
			delete(p.Progress, day)
		}
	}
	return nil
}

// SetCompleted records whether habitID was done on day.
func (p *Payload) SetCompleted(day time.Time, habitID string, completed bool) error {
	if p.find(habitID) < 0 {
		return ErrNotFound
	}
	if p.Progress == nil {
		p.Progress = make(map[string]map[string]bool)
	}

	key := DateKey(day)
	if p.Progress[key] == nil {
		p.Progress[key] = make(map[string]bool)
	}
	p.Progress[key][habitID] = completed
	return nil
}

// Toggle flips habitID on day and returns the new state.
func (p *Payload) Toggle(day time.Time, habitID string) (bool, error) {
	done := !p.Completed(day, habitID)
	if err := p.SetCompleted(day, habitID, done); err != nil {
		return false, err
	}
	return done, nil
}

func (p *Payload) Completed(day time.Time, habitID string) bool {
	return p.Progress[DateKey(day)][habitID]
}

// DailyCompletion is the rounded share of current habits done on day.
// Marks left behind by removed habits do not count.
func (p *Payload) DailyCompletion(day time.Time) int {
	if len(p.Habits) == 0 {
		return 0
	}

	marks := p.Progress[DateKey(day)]
	done := 0
	for _, h := range p.Habits {
		if marks[h.ID] {
			done++
		}
	}

	pct := int(math.Round(100 * float64(done) / float64(len(p.Habits))))
	if pct > 100 {
		pct = 100
	}
	return pct
}
