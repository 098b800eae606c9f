package action

import (
	"time"

	"github.com/google/uuid"

	"github.com/kelo-robotics/fmlib/internal/temporal"
)

// Status values are stable small integers; they are persisted and compared
// against fixed sets, never reordered.
type Status int

const (
	StatusPlanned  Status = 1
	StatusOngoing  Status = 2
	StatusFinished Status = 3
	StatusFailed   Status = 4
)

// Terminal reports whether the action has stopped executing.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusFailed
}

// Action is one step of a task plan. The type field distinguishes the fleet
// action vocabulary (GOTO, DOCK, UNDOCK, WALL_FOLLOWING, ...); this module
// treats it as opaque apart from identity and duration bookkeeping.
type Action struct {
	ActionID          uuid.UUID                   `yaml:"action_id" json:"action_id"`
	Type              string                      `yaml:"type" json:"type"`
	EstimatedDuration *temporal.EstimatedDuration `yaml:"estimated_duration,omitempty" json:"estimated_duration,omitempty"`
	PreTaskAction     bool                        `yaml:"pre_task_action" json:"pre_task_action"`
	// Type-specific fields, kept opaque.
	Locations []string       `yaml:"locations,omitempty" json:"locations,omitempty"`
	Params    map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// NewAction creates an action with a fresh identity.
func NewAction(actionType string) *Action {
	return &Action{
		ActionID: uuid.New(),
		Type:     actionType,
	}
}

// UpdateDuration lazily creates the duration estimate before applying the
// rounded mean/variance update.
func (a *Action) UpdateDuration(mean, variance float64) {
	if a.EstimatedDuration == nil {
		a.EstimatedDuration = &temporal.EstimatedDuration{}
	}
	a.EstimatedDuration.Update(mean, variance)
}

// Progress tracks the execution of a single action.
type Progress struct {
	ActionID   uuid.UUID  `yaml:"action_id" json:"action_id"`
	Status     Status     `yaml:"status" json:"status"`
	StartTime  *time.Time `yaml:"start_time,omitempty" json:"start_time,omitempty"`
	FinishTime *time.Time `yaml:"finish_time,omitempty" json:"finish_time,omitempty"`
}

// NewProgress tracks a freshly planned action.
func NewProgress(actionID uuid.UUID) *Progress {
	return &Progress{ActionID: actionID, Status: StatusPlanned}
}

// Duration returns the measured execution time, or false while the action
// has not finished.
func (p *Progress) Duration() (time.Duration, bool) {
	if p.StartTime == nil || p.FinishTime == nil {
		return 0, false
	}
	return p.FinishTime.Sub(*p.StartTime), true
}
