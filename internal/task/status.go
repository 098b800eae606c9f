package task

import (
	"time"

	"github.com/google/uuid"

	"github.com/kelo-robotics/fmlib/internal/action"
	"github.com/kelo-robotics/fmlib/internal/environment"
)

// Status values are stable small integers. They are persisted as-is and
// compared against the fixed ArchivedStatus and InTimetable sets, so the
// numbering never changes.
type Status int

const (
	StatusUnallocated Status = 1
	StatusAllocated   Status = 2
	StatusPlanned     Status = 3
	StatusScheduled   Status = 4
	StatusDispatched  Status = 5
	StatusRunning     Status = 6
	StatusFinished    Status = 7
	StatusCanceled    Status = 8
	StatusAborted     Status = 9
	StatusFailed      Status = 10
	StatusOverdue     Status = 11
	StatusDeprecated  Status = 12
)

// ArchivedStatus is the terminal set: entering any of these archives the
// task and its status record.
var ArchivedStatus = []Status{
	StatusFinished,
	StatusCanceled,
	StatusAborted,
	StatusFailed,
	StatusOverdue,
	StatusDeprecated,
}

// InTimetable lists the statuses whose tasks appear in a robot's timetable.
var InTimetable = []Status{
	StatusPlanned,
	StatusAllocated,
	StatusScheduled,
	StatusDispatched,
	StatusRunning,
}

func (s Status) Valid() bool {
	return s >= StatusUnallocated && s <= StatusDeprecated
}

// Archived reports membership in the terminal set.
func (s Status) Archived() bool {
	for _, a := range ArchivedStatus {
		if s == a {
			return true
		}
	}
	return false
}

// ScheduledInTimetable reports whether a task in this status occupies a slot
// in its robot's timetable.
func (s Status) ScheduledInTimetable() bool {
	for _, t := range InTimetable {
		if s == t {
			return true
		}
	}
	return false
}

// RecoveryMethod records how a delayed or failed task should be recovered.
type RecoveryMethod int

const (
	RecoverReallocate RecoveryMethod = 1
	RecoverReschedule RecoveryMethod = 2
	RecoverAbort      RecoveryMethod = 3
	RecoverCancel     RecoveryMethod = 4
)

// TaskStatus is the lifecycle record owned by a task, created with it and
// archived together with it on terminal states. Paused, delayed and early
// are overlays orthogonal to the status enum.
type TaskStatus struct {
	TaskID         uuid.UUID       `yaml:"task_id" json:"task_id"`
	Status         Status          `yaml:"status" json:"status"`
	Delayed        bool            `yaml:"delayed" json:"delayed"`
	Early          bool            `yaml:"early" json:"early"`
	Paused         bool            `yaml:"paused" json:"paused"`
	RecoveryMethod *RecoveryMethod `yaml:"recovery_method,omitempty" json:"recovery_method,omitempty"`
	Progress       *TaskProgress   `yaml:"progress,omitempty" json:"progress,omitempty"`
}

func newTaskStatus(taskID uuid.UUID) TaskStatus {
	return TaskStatus{TaskID: taskID, Status: StatusUnallocated}
}

// TaskProgress tracks execution of the task's current plan: the action being
// executed, the robot's last reported pose and the per-action progress
// records in plan order.
type TaskProgress struct {
	CurrentAction *uuid.UUID            `yaml:"current_action,omitempty" json:"current_action,omitempty"`
	CurrentPose   *environment.Position `yaml:"current_pose,omitempty" json:"current_pose,omitempty"`
	Actions       []*action.Progress    `yaml:"actions,omitempty" json:"actions,omitempty"`
}

// Initialize seeds one progress record per action of the robot-independent
// plan stage and marks actionID current.
func (p *TaskProgress) Initialize(actionID uuid.UUID, plan []*TaskPlan) {
	p.CurrentAction = &actionID
	if len(plan) == 0 {
		return
	}
	for _, a := range plan[0].Actions {
		p.Actions = append(p.Actions, action.NewProgress(a.ActionID))
	}
}

// Update records pose and per-action progress. When the action finished, the
// tracker advances to the next action in plan order.
func (p *TaskProgress) Update(actionID uuid.UUID, status action.Status, pose *environment.Position, startTime, finishTime *time.Time) {
	p.CurrentPose = pose
	idx := p.actionIndex(actionID)
	if idx < 0 {
		return
	}
	progress := p.Actions[idx]
	progress.Status = status
	if startTime != nil {
		progress.StartTime = startTime
	}
	if finishTime != nil {
		progress.FinishTime = finishTime
	}

	if status == action.StatusFinished {
		if next := p.nextAction(actionID); next != nil {
			p.CurrentAction = &next.ActionID
		}
	}
}

// Complete clears the current action once the whole plan has executed.
func (p *TaskProgress) Complete() {
	p.CurrentAction = nil
}

// GetAction returns the progress record for actionID, or nil.
func (p *TaskProgress) GetAction(actionID uuid.UUID) *action.Progress {
	idx := p.actionIndex(actionID)
	if idx < 0 {
		return nil
	}
	return p.Actions[idx]
}

func (p *TaskProgress) actionIndex(actionID uuid.UUID) int {
	for i, a := range p.Actions {
		if a.ActionID == actionID {
			return i
		}
	}
	return -1
}

func (p *TaskProgress) nextAction(actionID uuid.UUID) *action.Progress {
	idx := p.actionIndex(actionID)
	if idx < 0 || idx+1 >= len(p.Actions) {
		// the last action has no next action
		return nil
	}
	return p.Actions[idx+1]
}
