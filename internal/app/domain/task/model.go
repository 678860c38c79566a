package task

import "time"

type Status string

const (
	StatusAvailable  Status = "available"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusSubmitted  Status = "submitted"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
)

// Active reports whether a task is held by an assignee and not yet decided.
func (s Status) Active() bool {
	return s == StatusAssigned || s == StatusInProgress || s == StatusSubmitted
}

// Task is a unit of work inside a funded project.
type Task struct {
	ID          string     `json:"id" db:"id"`
	ProjectID   string     `json:"project_id" db:"project_id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	Reward      int64      `json:"reward" db:"reward"`
	AssigneeID  string     `json:"assignee_id,omitempty" db:"assignee_id"`
	Status      Status     `json:"status" db:"status"`
	Deliverable string     `json:"deliverable,omitempty" db:"deliverable"`
	Feedback    string     `json:"feedback,omitempty" db:"feedback"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty" db:"assigned_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

var transitions = map[Status][]Status{
	StatusAvailable:  {StatusAssigned},
	StatusAssigned:   {StatusInProgress, StatusAvailable},
	StatusInProgress: {StatusSubmitted},
	StatusSubmitted:  {StatusApproved, StatusRejected},
	StatusRejected:   {StatusInProgress, StatusAvailable},
}

// CanTransition reports whether the lifecycle allows from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
