package task

import (
	"time"

	"github.com/google/uuid"

	"github.com/kelo-robotics/fmlib/internal/action"
	"github.com/kelo-robotics/fmlib/internal/request"
	"github.com/kelo-robotics/fmlib/internal/temporal"
)

// TaskPlan is one stage of a task's execution plan: an ordered action list,
// optionally bound to a robot once the task is allocated.
type TaskPlan struct {
	Robot   string           `yaml:"robot,omitempty" json:"robot,omitempty"`
	Actions []*action.Action `yaml:"actions,omitempty" json:"actions,omitempty"`
}

// GetAction returns the plan action with the given id, or nil.
func (p *TaskPlan) GetAction(actionID uuid.UUID) *action.Action {
	for _, a := range p.Actions {
		if a.ActionID == actionID {
			return a
		}
	}
	return nil
}

// Schedule is the assigned execution window produced by the scheduler.
type Schedule struct {
	DepartureTime time.Time `yaml:"departure_time" json:"departure_time"`
	StartTime     time.Time `yaml:"start_time" json:"start_time"`
	FinishTime    time.Time `yaml:"finish_time" json:"finish_time"`
}

// Task is the unit of work derived from a request. It owns its TaskStatus
// record for its whole lifetime; the two are created and archived together.
type Task struct {
	TaskID         uuid.UUID                `yaml:"task_id" json:"task_id"`
	ParentTaskID   *uuid.UUID               `yaml:"parent_task_id,omitempty" json:"parent_task_id,omitempty"`
	Request        *request.TaskRequest     `yaml:"request,omitempty" json:"request,omitempty"`
	Status         TaskStatus               `yaml:"status" json:"status"`
	AssignedRobots []string                 `yaml:"assigned_robots,omitempty" json:"assigned_robots,omitempty"`
	Plan           []*TaskPlan              `yaml:"plan,omitempty" json:"plan,omitempty"`
	Constraints    temporal.TaskConstraints `yaml:"constraints" json:"constraints"`
	Schedule       *Schedule                `yaml:"schedule,omitempty" json:"schedule,omitempty"`
	EligibleRobots []string                 `yaml:"eligible_robots,omitempty" json:"eligible_robots,omitempty"`
	Capabilities   []string                 `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`
	TimeoutTime    *time.Time               `yaml:"timeout_time,omitempty" json:"timeout_time,omitempty"`
}

// New creates an unallocated task with a fresh identity.
func New() *Task {
	id := uuid.New()
	return &Task{
		TaskID: id,
		Status: newTaskStatus(id),
	}
}

// DefaultStartWindow is the start constraint width applied when a request
// carries no temporal window of its own.
const DefaultStartWindow = 10 * time.Minute

// FromRequest derives a task from a validated request envelope: the request's
// temporal window becomes the start constraint (a request without one gets
// now .. now+DefaultStartWindow), its default capabilities and eligible
// robots carry over, and the task id is recorded back on the request. The
// single robot-independent plan stage starts empty and is filled by
// UpdatePlan once a planner has produced the action sequence.
func FromRequest(r *request.TaskRequest) *Task {
	t := New()
	t.Request = r
	t.EligibleRobots = append([]string(nil), r.EligibleRobots...)
	t.Capabilities = r.DefaultCapabilities()
	earliest, latest := r.EarliestStartTime(), r.LatestStartTime()
	if earliest.IsZero() && latest.IsZero() {
		earliest = time.Now().UTC()
		latest = earliest.Add(DefaultStartWindow)
	}
	t.Constraints.Temporal.Start = &temporal.TimepointConstraint{
		EarliestTime: earliest,
		LatestTime:   latest,
	}
	t.Plan = []*TaskPlan{{}}
	r.AddTaskID(t.TaskID)
	return t
}

// AssignRobots allocates the task: the assignment is recorded, the first
// plan stage is bound to the lead robot and the status moves to ALLOCATED.
func (t *Task) AssignRobots(robotIDs ...string) {
	t.AssignedRobots = append([]string(nil), robotIDs...)
	if len(t.Plan) == 0 {
		t.Plan = []*TaskPlan{{}}
	}
	if len(robotIDs) > 0 {
		t.Plan[0].Robot = robotIDs[0]
	}
	t.Status.Status = StatusAllocated
}

// UnassignRobots reverts an allocation: the assignment and the plan's robot
// binding are cleared, the travel estimate is reset because it was computed
// for the removed robot, and the status returns to UNALLOCATED.
func (t *Task) UnassignRobots() {
	t.AssignedRobots = nil
	if len(t.Plan) > 0 {
		t.Plan[0].Robot = ""
	}
	t.Constraints.Temporal.TravelTime = temporal.EstimatedDuration{}
	t.Status.Status = StatusUnallocated
}

// UpdatePlan replaces the action sequence of the robot-independent plan
// stage and moves the task to PLANNED. The stage keeps its robot binding.
func (t *Task) UpdatePlan(actions []*action.Action) {
	if len(t.Plan) == 0 {
		t.Plan = []*TaskPlan{{}}
	}
	t.Plan[0].Actions = actions
	t.Status.Status = StatusPlanned
}

// ScheduleTask records the execution window assigned by the scheduler and
// moves the task to SCHEDULED.
func (t *Task) ScheduleTask(departure, start, finish time.Time) {
	t.Schedule = &Schedule{
		DepartureTime: departure,
		StartTime:     start,
		FinishTime:    finish,
	}
	t.Status.Status = StatusScheduled
}

// Pause freezes dispatch of the task without changing its status.
func (t *Task) Pause() {
	t.Status.Paused = true
}

// Resume lifts a pause.
func (t *Task) Resume() {
	t.Status.Paused = false
}

// IsFrozen reports whether the task may no longer be touched by allocation
// or scheduling: it is paused, holds a timetable slot, is executing, or is
// already terminal. A frozen task must be unscheduled before reallocation.
func (t *Task) IsFrozen() bool {
	if t.Status.Paused {
		return true
	}
	switch t.Status.Status {
	case StatusScheduled, StatusDispatched, StatusRunning:
		return true
	}
	return t.Status.Status.Archived()
}

// LeadRobot returns the first assigned robot, whose timetable anchors the
// task's dispatch times.
func (t *Task) LeadRobot() (string, bool) {
	if len(t.AssignedRobots) == 0 {
		return "", false
	}
	return t.AssignedRobots[0], true
}

// EarliestStartTime returns the lower bound of the start constraint.
func (t *Task) EarliestStartTime() time.Time {
	if t.Constraints.Temporal.Start == nil {
		return time.Time{}
	}
	return t.Constraints.Temporal.Start.EarliestTime
}

// LatestStartTime returns the upper bound of the start constraint.
func (t *Task) LatestStartTime() time.Time {
	if t.Constraints.Temporal.Start == nil {
		return time.Time{}
	}
	return t.Constraints.Temporal.Start.LatestTime
}

// UpdateStartConstraint replaces the start window, materializing the
// constraint when the task never had one.
func (t *Task) UpdateStartConstraint(earliest, latest time.Time) {
	if t.Constraints.Temporal.Start == nil {
		t.Constraints.Temporal.Start = &temporal.TimepointConstraint{}
	}
	t.Constraints.Temporal.Start.Update(earliest, latest)
}

// UpdateWorkTime replaces the work duration estimate.
func (t *Task) UpdateWorkTime(mean, variance float64) {
	t.Constraints.Temporal.WorkTime.Update(mean, variance)
}

// UpdateTravelTime replaces the travel duration estimate.
func (t *Task) UpdateTravelTime(mean, variance float64) {
	t.Constraints.Temporal.TravelTime.Update(mean, variance)
}

// UpdateAlternativeStartTime records a secondary start window for a task
// that could not be honored in its primary one.
func (t *Task) UpdateAlternativeStartTime(earliest, latest time.Time) {
	t.Constraints.Temporal.UpdateAlternativeStartTime(earliest, latest)
}

// SetRecoveryMethod records how the task should be recovered after a delay
// or failure.
func (t *Task) SetRecoveryMethod(m RecoveryMethod) {
	t.Status.RecoveryMethod = &m
}

// ClearRecoveryMethod removes a previously set recovery method.
func (t *Task) ClearRecoveryMethod() {
	t.Status.RecoveryMethod = nil
}

// MarkDelayed flags the task as running behind its constraints.
func (t *Task) MarkDelayed() {
	t.Status.Delayed = true
	t.Status.Early = false
}

// MarkEarly flags the task as running ahead of its constraints.
func (t *Task) MarkEarly() {
	t.Status.Early = true
	t.Status.Delayed = false
}

// InitProgress seeds the progress tracker when execution starts on the
// given action.
func (t *Task) InitProgress(actionID uuid.UUID) {
	t.Status.Progress = &TaskProgress{}
	t.Status.Progress.Initialize(actionID, t.Plan)
}

// RemainingActions returns the suffix of the lead plan stage from the
// current action onward. Before execution starts the whole plan remains.
func (t *Task) RemainingActions() []*action.Action {
	if len(t.Plan) == 0 {
		return nil
	}
	actions := t.Plan[0].Actions
	progress := t.Status.Progress
	if progress == nil || progress.CurrentAction == nil {
		return actions
	}
	for i, a := range actions {
		if a.ActionID == *progress.CurrentAction {
			return actions[i:]
		}
	}
	return actions
}

// IsRecurrent reports whether the task originates from a calendar event.
func (t *Task) IsRecurrent() bool {
	return t.Request != nil && t.Request.IsRecurrent()
}

// IsRepetitive reports whether the task's request carries a repetition
// pattern.
func (t *Task) IsRepetitive() bool {
	return t.Request != nil && t.Request.IsRepetitive()
}

// ToRequest re-derives a request envelope of the given kind from the task's
// originating request, for respawning a follow-up task.
func (t *Task) ToRequest(kind request.Kind) *request.TaskRequest {
	if t.Request == nil {
		return nil
	}
	return t.Request.CommonFields(kind)
}
