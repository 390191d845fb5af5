package crm

import (
	"errors"
	"math"
	"time"
)

// MaxDepth bounds subtask nesting below a task. A task's own subtasks are
// level 1, so the deepest node sits at Walk depth MaxDepth+1.
const MaxDepth = 10

var (
	ErrNotFound        = errors.New("item not found")
	ErrMaxDepth        = errors.New("maximum subtask depth reached")
	ErrDuplicateID     = errors.New("id already used in this project")
	ErrNameRequired    = errors.New("name is required")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidPriority = errors.New("invalid priority")
	ErrHasTasks        = errors.New("progress is derived from tasks")
	ErrNegativeCost    = errors.New("cost must not be negative")
	ErrMoveIntoSelf    = errors.New("cannot move a task under itself")
)

// Walk visits every node depth-first, parents before children. fn receives
// the node depth (1 for top-level entries) and may stop the walk by
// returning false. Walk reports whether it ran to completion.
func Walk(list []*Task, fn func(t *Task, depth int) bool) bool {
	return walk(list, 1, fn)
}

func walk(list []*Task, depth int, fn func(*Task, int) bool) bool {
	for _, t := range list {
		if t == nil {
			continue
		}
		if !fn(t, depth) {
			return false
		}
		if !walk(t.Subtasks, depth+1, fn) {
			return false
		}
	}
	return true
}

// FindByID returns the first node with id, or nil.
func FindByID(list []*Task, id string) *Task {
	var found *Task
	Walk(list, func(t *Task, _ int) bool {
		if t.ID == id {
			found = t
			return false
		}
		return true
	})
	return found
}

func count(list []*Task, match func(*Task) bool) int {
	n := 0
	Walk(list, func(t *Task, _ int) bool {
		if match(t) {
			n++
		}
		return true
	})
	return n
}

// CountAll counts every node in list and below.
func CountAll(list []*Task) int {
	return count(list, func(*Task) bool { return true })
}

// CountCompleted counts the nodes whose own status is done. A parent's
// status says nothing about its children.
func CountCompleted(list []*Task) int {
	return count(list, func(t *Task) bool { return t.Status == StatusDone })
}

// ComputeProjectProgress weighs every task and every subtask at any depth as
// one unit, stores the rounded percentage of done units on p and returns it.
// A project without tasks computes to 0; callers that want to keep a manual
// value on such a project should not recompute it.
func ComputeProjectProgress(p *Project) int {
	total := CountAll(p.Tasks)
	if total == 0 {
		p.Progress = 0
		return 0
	}

	p.Progress = int(math.Round(100 * float64(CountCompleted(p.Tasks)) / float64(total)))
	return p.Progress
}

// SetProgress is the manual override, allowed only while p has no tasks.
func SetProgress(p *Project, value int, now time.Time) error {
	if len(p.Tasks) > 0 {
		return ErrHasTasks
	}
	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}
	p.Progress = value
	p.UpdatedAt = now
	return nil
}

// SetStatus moves a task between any two states. Entering done stamps
// completedAt; leaving it clears the stamp.
func SetStatus(t *Task, status Status, now time.Time) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}

	t.Status = status
	t.UpdatedAt = now
	if status == StatusDone {
		stamp := now
		t.CompletedAt = &stamp
	} else {
		t.CompletedAt = nil
	}
	return nil
}

// SetProjectStatus updates p; completing a project pins progress to 100.
func SetProjectStatus(p *Project, status ProjectStatus, now time.Time) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	if status == ProjectCompleted {
		CompleteProject(p, now)
		return nil
	}
	p.Status = status
	p.CompletedAt = nil
	p.UpdatedAt = now
	return nil
}

func CompleteProject(p *Project, now time.Time) {
	stamp := now
	p.Status = ProjectCompleted
	p.Progress = 100
	p.CompletedAt = &stamp
	p.UpdatedAt = now
}

type ProjectInput struct {
	Name   string
	Status ProjectStatus
	Cost   float64
	Notes  string
}

func NewProject(in ProjectInput, now time.Time) (*Project, error) {
	if in.Name == "" {
		return nil, ErrNameRequired
	}
	if in.Status == "" {
		in.Status = ProjectPlanning
	}
	if !in.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if in.Cost < 0 {
		return nil, ErrNegativeCost
	}

	p := &Project{
		ID:        NewID("project", now),
		Name:      in.Name,
		Status:    in.Status,
		Cost:      in.Cost,
		Notes:     in.Notes,
		Tasks:     []*Task{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Status == ProjectCompleted {
		CompleteProject(p, now)
	}
	return p, nil
}

type TaskInput struct {
	Name        string
	Description string
	Priority    Priority
	DueDate     string
}

func newTask(in TaskInput, prefix string, now time.Time) (*Task, error) {
	if in.Name == "" {
		return nil, ErrNameRequired
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !in.Priority.Valid() {
		return nil, ErrInvalidPriority
	}

	return &Task{
		ID:          NewID(prefix, now),
		Name:        in.Name,
		Description: in.Description,
		Priority:    in.Priority,
		Status:      StatusTodo,
		DueDate:     in.DueDate,
		Subtasks:    []*Task{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// insert appends t under parent (or at the top when parent is nil) after
// checking the tree-wide invariants.
func insert(p *Project, parent *Task, t *Task) error {
	if FindByID(p.Tasks, t.ID) != nil {
		return ErrDuplicateID
	}
	if parent == nil {
		p.Tasks = append(p.Tasks, t)
		return nil
	}

	// A child of a node at Walk depth d sits at subtask level d.
	depth := depthOf(p.Tasks, parent.ID)
	if depth+height(t.Subtasks) > MaxDepth {
		return ErrMaxDepth
	}
	parent.Subtasks = append(parent.Subtasks, t)
	return nil
}

func depthOf(list []*Task, id string) int {
	depth := 0
	Walk(list, func(t *Task, d int) bool {
		if t.ID == id {
			depth = d
			return false
		}
		return true
	})
	return depth
}

func height(list []*Task) int {
	h := 0
	Walk(list, func(_ *Task, d int) bool {
		if d > h {
			h = d
		}
		return true
	})
	return h
}

// AddTask creates a top-level task and recomputes progress.
func AddTask(p *Project, in TaskInput, now time.Time) (*Task, error) {
	t, err := newTask(in, "task", now)
	if err != nil {
		return nil, err
	}
	if err := insert(p, nil, t); err != nil {
		return nil, err
	}
	p.UpdatedAt = now
	ComputeProjectProgress(p)
	return t, nil
}

// AddSubtask nests a new node under parentID, which may be a task or a
// subtask at any depth below MaxDepth.
func AddSubtask(p *Project, parentID string, in TaskInput, now time.Time) (*Task, error) {
	parent := FindByID(p.Tasks, parentID)
	if parent == nil {
		return nil, ErrNotFound
	}

	t, err := newTask(in, "subtask", now)
	if err != nil {
		return nil, err
	}
	if err := insert(p, parent, t); err != nil {
		return nil, err
	}
	p.UpdatedAt = now
	ComputeProjectProgress(p)
	return t, nil
}

// AttachTask grafts an existing node (with its subtree) under parentID, or at
// the top level when parentID is empty.
func AttachTask(p *Project, parentID string, t *Task) error {
	var parent *Task
	if parentID != "" {
		if parent = FindByID(p.Tasks, parentID); parent == nil {
			return ErrNotFound
		}
	}

	ids := make(map[string]bool)
	unique := Walk([]*Task{t}, func(n *Task, _ int) bool {
		if ids[n.ID] || FindByID(p.Tasks, n.ID) != nil {
			return false
		}
		ids[n.ID] = true
		return true
	})
	if !unique {
		return ErrDuplicateID
	}

	if parent == nil {
		if height(t.Subtasks) > MaxDepth {
			return ErrMaxDepth
		}
		p.Tasks = append(p.Tasks, t)
	} else if err := insert(p, parent, t); err != nil {
		return err
	}
	ComputeProjectProgress(p)
	return nil
}

// UpdateTaskStatus finds id anywhere in p, applies the status and
// recomputes progress.
func UpdateTaskStatus(p *Project, id string, status Status, now time.Time) (*Task, error) {
	t := FindByID(p.Tasks, id)
	if t == nil {
		return nil, ErrNotFound
	}
	if err := SetStatus(t, status, now); err != nil {
		return nil, err
	}
	p.UpdatedAt = now
	ComputeProjectProgress(p)
	return t, nil
}

func removeFrom(list []*Task, id string) ([]*Task, bool) {
	for i, t := range list {
		if t != nil && t.ID == id {
			return append(list[:i], list[i+1:]...), true
		}
	}
	return list, false
}

// RemoveTask drops a top-level task and its whole subtree.
func RemoveTask(p *Project, id string, now time.Time) error {
	tasks, ok := removeFrom(p.Tasks, id)
	if !ok {
		return ErrNotFound
	}
	p.Tasks = tasks
	p.UpdatedAt = now
	ComputeProjectProgress(p)
	return nil
}

// RemoveSubtask drops the node id from whichever parent owns it, along with
// everything beneath it.
func RemoveSubtask(p *Project, id string, now time.Time) error {
	removed := false
	Walk(p.Tasks, func(t *Task, _ int) bool {
		var ok bool
		if t.Subtasks, ok = removeFrom(t.Subtasks, id); ok {
			removed = true
			return false
		}
		return true
	})
	if !removed {
		return ErrNotFound
	}
	p.UpdatedAt = now
	ComputeProjectProgress(p)
	return nil
}

// detach unlinks the node id from wherever it sits and returns it.
func detach(p *Project, id string) *Task {
	t := FindByID(p.Tasks, id)
	if t == nil {
		return nil
	}
	if tasks, ok := removeFrom(p.Tasks, id); ok {
		p.Tasks = tasks
		return t
	}
	Walk(p.Tasks, func(n *Task, _ int) bool {
		var ok bool
		n.Subtasks, ok = removeFrom(n.Subtasks, id)
		return !ok
	})
	return t
}

// MoveTask re-parents the node id, with its subtree, under parentID or to the
// top level when parentID is empty. The tree is left untouched on error.
func MoveTask(p *Project, id, parentID string, now time.Time) error {
	t := FindByID(p.Tasks, id)
	if t == nil {
		return ErrNotFound
	}
	if parentID != "" {
		if FindByID([]*Task{t}, parentID) != nil {
			return ErrMoveIntoSelf
		}
		parent := FindByID(p.Tasks, parentID)
		if parent == nil {
			return ErrNotFound
		}
		if depthOf(p.Tasks, parent.ID)+height(t.Subtasks) > MaxDepth {
			return ErrMaxDepth
		}
	}

	detach(p, id)
	if err := AttachTask(p, parentID, t); err != nil {
		return err
	}
	p.UpdatedAt = now
	return nil
}
