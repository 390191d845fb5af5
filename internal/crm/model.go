// Package crm holds the project tracker carried in the "crm" dataset: a list
// of projects, each owning a tree of tasks, plus a work timer with saved
// sessions.
package crm

import (
	"encoding/json"
	"time"
)

type ProjectStatus string

const (
	ProjectPlanning  ProjectStatus = "planning"
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectPlanning, ProjectActive, ProjectCompleted:
		return true
	}
	return false
}

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Status      ProjectStatus `json:"status"`
	Progress    int           `json:"progress"`
	Cost        float64       `json:"cost"`
	Notes       string        `json:"notes"`
	Tasks       []*Task       `json:"tasks"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
}

// Task is used for tasks and for subtasks at every depth. A task's children
// live in Subtasks and have the same shape.
type Task struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Priority    Priority   `json:"priority"`
	Status      Status     `json:"status"`
	DueDate     string     `json:"dueDate,omitempty"`
	Subtasks    []*Task    `json:"subtasks"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// Nested holds children that the web app writes under "nestedSubtasks"
	// below the first subtask level. Decode folds them into Subtasks.
	Nested []*Task `json:"nestedSubtasks,omitempty"`
}

// Session is one saved timer run. Duration is in milliseconds.
type Session struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Duration int64     `json:"duration"`
	Date     time.Time `json:"date"`
}

// Payload is the whole crm dataset as stored locally and synced.
type Payload struct {
	Projects []*Project `json:"projects"`
	Theme    string     `json:"theme,omitempty"`
	Timer    *Timer     `json:"timer,omitempty"`
}

// Decode parses a crm blob. An empty blob decodes to an empty payload.
// Null projects and tasks are dropped and nestedSubtasks become Subtasks, so
// callers only ever see one tree shape.
func Decode(raw []byte) (*Payload, error) {
	p := &Payload{}
	if len(raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, err
	}

	projects := p.Projects[:0]
	for _, pr := range p.Projects {
		if pr == nil {
			continue
		}
		pr.Tasks = tidy(pr.Tasks)
		projects = append(projects, pr)
	}
	p.Projects = projects
	return p, nil
}

func tidy(list []*Task) []*Task {
	kept := list[:0]
	for _, t := range list {
		if t == nil {
			continue
		}
		if len(t.Nested) > 0 {
			t.Subtasks = append(t.Subtasks, t.Nested...)
		}
		t.Nested = nil
		t.Subtasks = tidy(t.Subtasks)
		kept = append(kept, t)
	}
	return kept
}

func (p *Payload) Encode() ([]byte, error) {
	if p.Projects == nil {
		p.Projects = []*Project{}
	}
	return json.Marshal(p)
}

func (p *Payload) FindProject(id string) *Project {
	for _, pr := range p.Projects {
		if pr.ID == id {
			return pr
		}
	}
	return nil
}

func (p *Payload) RemoveProject(id string) bool {
	for i, pr := range p.Projects {
		if pr.ID == id {
			p.Projects = append(p.Projects[:i], p.Projects[i+1:]...)
			return true
		}
	}
	return false
}

// EnsureTimer returns the payload's timer, creating it on first use.
func (p *Payload) EnsureTimer() *Timer {
	if p.Timer == nil {
		p.Timer = &Timer{}
	}
	return p.Timer
}

// Normalize fills fields an older or hand-edited payload may lack, down to
// every task, and recomputes progress for projects that have tasks.
func (p *Payload) Normalize(now time.Time) {
	kept := p.Projects[:0]
	for _, pr := range p.Projects {
		if pr == nil {
			continue
		}
		if pr.ID == "" {
			pr.ID = NewID("project", now)
		}
		if pr.Name == "" {
			pr.Name = "Unnamed Project"
		}
		if !pr.Status.Valid() {
			pr.Status = ProjectActive
		}
		if pr.Cost < 0 {
			pr.Cost = 0
		}
		if pr.Tasks == nil {
			pr.Tasks = []*Task{}
		}
		if pr.CreatedAt.IsZero() {
			pr.CreatedAt = now
		}
		if pr.UpdatedAt.IsZero() {
			pr.UpdatedAt = now
		}
		pr.Tasks = tidy(pr.Tasks)
		normalizeTasks(pr.Tasks, now)
		if len(pr.Tasks) > 0 {
			ComputeProjectProgress(pr)
		}
		kept = append(kept, pr)
	}
	p.Projects = kept
}

// normalizeTasks gives every node a project-unique id and valid defaults, and
// cuts anything nested deeper than MaxDepth.
func normalizeTasks(list []*Task, now time.Time) {
	seen := make(map[string]bool)
	Walk(list, func(t *Task, depth int) bool {
		if t.ID == "" || seen[t.ID] {
			prefix := "subtask"
			if depth == 1 {
				prefix = "task"
			}
			t.ID = NewID(prefix, now)
		}
		seen[t.ID] = true

		if t.Name == "" {
			t.Name = "Untitled"
		}
		if !t.Priority.Valid() {
			t.Priority = PriorityMedium
		}
		if !t.Status.Valid() {
			t.Status = StatusTodo
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if t.UpdatedAt.IsZero() {
			t.UpdatedAt = t.CreatedAt
		}
		if depth > MaxDepth || t.Subtasks == nil {
			t.Subtasks = []*Task{}
		}
		return true
	})
}
