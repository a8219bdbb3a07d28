package domain

import (
	"encoding/json"
	"time"
)

// Status represents the lifecycle states of a search task.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// IsTerminal returns true if no further state transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// TaskType enumerates the kinds of discovery work.
type TaskType string

const (
	TaskWebSearch           TaskType = "web-search"
	TaskLocalBusinessSearch TaskType = "local-business-search"
	TaskMapsSearch          TaskType = "maps-search"
)

// TaskTypes lists every supported task type in a stable order.
var TaskTypes = []TaskType{TaskWebSearch, TaskLocalBusinessSearch, TaskMapsSearch}

// ParseTaskType returns the TaskType for s, or false if s is not supported.
func ParseTaskType(s string) (TaskType, bool) {
	for _, t := range TaskTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Cadence controls how often the same search may be re-seeded.
type Cadence string

const (
	CadenceDaily  Cadence = "daily"
	CadenceWeekly Cadence = "weekly"
)

// ProfileSmall is the seed profile that enforces the task cap.
const ProfileSmall = "small"

// SearchTask is a unit of discovery work. (Type, Fingerprint) is unique.
type SearchTask struct {
	ID          string          `json:"id"`
	Type        TaskType        `json:"type"`
	Country     string          `json:"country"`
	City        *string         `json:"city,omitempty"`
	Language    string          `json:"language"`
	Query       string          `json:"query"`
	QueryKey    string          `json:"query_key"`
	Fingerprint string          `json:"fingerprint"`
	Params      json.RawMessage `json:"params,omitempty"`
	Page        int             `json:"page"`
	Bucket      string          `json:"bucket"`
	Status      Status          `json:"status"`
	Attempts    int             `json:"attempts"`
	NextRunAt   time.Time       `json:"next_run_at"`
	LastError   string          `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// FollowUpKind selects the base delay of a follow-up action.
type FollowUpKind string

const (
	FollowUpStandard    FollowUpKind = "standard"
	FollowUpOutOfOffice FollowUpKind = "out_of_office"
)

// FollowUp is a time-placed action scheduled for a stored lead.
type FollowUp struct {
	ID        string       `json:"id"`
	LeadID    string       `json:"lead_id"`
	Kind      FollowUpKind `json:"kind"`
	DueAt     time.Time    `json:"due_at"`
	Status    Status       `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}
