package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kelo-robotics/fmlib/internal/action"
	"github.com/kelo-robotics/fmlib/internal/environment"
	"github.com/kelo-robotics/fmlib/internal/eventbus"
	"github.com/kelo-robotics/fmlib/internal/request"
	"github.com/kelo-robotics/fmlib/internal/timetable"
	"github.com/kelo-robotics/fmlib/pkg/cerr"
)

// Publisher is the event fan-out the service notifies on lifecycle changes.
type Publisher interface {
	PublishNew(eventType, resourceID string, payload map[string]any)
}

// Service orchestrates the task lifecycle: it loads tasks, applies entity
// transitions, persists the result and publishes the matching events.
// Terminal transitions archive the task and its status atomically from the
// caller's point of view.
type Service struct {
	repo       Repository
	requests   request.Repository
	timetables timetable.Repository
	publisher  Publisher
	now        func() time.Time
}

func NewService(repo Repository, requests request.Repository, timetables timetable.Repository, publisher Publisher) *Service {
	return &Service{
		repo:       repo,
		requests:   requests,
		timetables: timetables,
		publisher:  publisher,
		now:        time.Now,
	}
}

// Create derives a task from the request envelope, persists both and
// announces the new task.
func (s *Service) Create(ctx context.Context, req *request.TaskRequest) (*Task, error) {
	t := FromRequest(req)
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	if err := s.requests.Update(ctx, req); err != nil {
		// The task exists either way; the request's task list catches up on
		// the next update.
		slog.WarnContext(ctx, "failed to record task on request",
			"task_id", t.TaskID, "request_id", req.RequestID, "error", err)
	}
	s.publisher.PublishNew(eventbus.TypeTaskCreated, t.TaskID.String(), map[string]any{
		"request_id": req.RequestID.String(),
	})
	return t, nil
}

// Get returns the task, falling back to the archive when it has left the
// live collection.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Task, error) {
	t, err := s.repo.Get(ctx, id)
	if err == nil {
		return t, nil
	}
	if !cerr.IsCode(err, cerr.NotFound) {
		return nil, err
	}
	return s.repo.GetArchived(ctx, id)
}

// Filter narrows List results. Zero-valued fields do not filter.
type Filter struct {
	Robots     []string
	Status     []Status
	RequestID  *uuid.UUID
	Recurrent  *bool
	Repetitive *bool
}

func (f Filter) wantsArchived() bool {
	for _, st := range f.Status {
		if st.Archived() {
			return true
		}
	}
	return false
}

func (f Filter) matches(t *Task) bool {
	if len(f.Robots) > 0 && !assignedToAny(t, f.Robots) {
		return false
	}
	if f.RequestID != nil && (t.Request == nil || t.Request.RequestID != *f.RequestID) {
		return false
	}
	if len(f.Status) > 0 {
		found := false
		for _, st := range f.Status {
			if t.Status.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Recurrent != nil && t.IsRecurrent() != *f.Recurrent {
		return false
	}
	if f.Repetitive != nil && t.IsRepetitive() != *f.Repetitive {
		return false
	}
	return true
}

func assignedToAny(t *Task, robots []string) bool {
	for _, assigned := range t.AssignedRobots {
		for _, r := range robots {
			if assigned == r {
				return true
			}
		}
	}
	return false
}

// List returns the tasks matching the filter. The archive is consulted only
// when the status filter names a terminal status.
func (s *Service) List(ctx context.Context, f Filter) ([]*Task, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if f.wantsArchived() {
		archived, err := s.repo.ListArchived(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, archived...)
	}
	var out []*Task
	for _, t := range all {
		if f.matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// ListArchived returns the archived tasks matching the filter.
func (s *Service) ListArchived(ctx context.Context, f Filter) ([]*Task, error) {
	all, err := s.repo.ListArchived(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Task
	for _, t := range all {
		if f.matches(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Earliest returns the live task with the earliest start constraint, or nil
// when no live task carries one.
func (s *Service) Earliest(ctx context.Context) (*Task, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	var earliest *Task
	for _, t := range all {
		est := t.EarliestStartTime()
		if est.IsZero() {
			continue
		}
		if earliest == nil || est.Before(earliest.EarliestStartTime()) {
			earliest = t
		}
	}
	return earliest, nil
}

// ParentChain walks parent ids from the given task to the root, oldest last.
// Parents that already left for the archive are resolved there.
func (s *Service) ParentChain(ctx context.Context, id uuid.UUID) ([]*Task, error) {
	var chain []*Task
	next := &id
	for next != nil {
		t, err := s.Get(ctx, *next)
		if err != nil {
			return nil, err
		}
		chain = append(chain, t)
		next = t.ParentTaskID
	}
	return chain, nil
}

// DeriveRequest re-derives a request envelope of the given kind from the
// task's originating request and stores it, for spawning a related task
// (a charging task derives the stop-charging request, for example).
func (s *Service) DeriveRequest(ctx context.Context, id uuid.UUID, kind request.Kind) (*request.TaskRequest, error) {
	if !kind.Valid() {
		return nil, cerr.NewError(cerr.InvalidArgument, "unknown request kind", nil)
	}
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	req := t.ToRequest(kind)
	if req == nil {
		return nil, cerr.NewError(cerr.FailedPrecondition, "task has no originating request", nil)
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}
	s.publisher.PublishNew(eventbus.TypeRequestCreated, req.RequestID.String(), map[string]any{
		"kind":           string(req.Kind),
		"parent_task_id": t.TaskID.String(),
	})
	return req, nil
}

// AssignRobots allocates the task to the given robots.
func (s *Service) AssignRobots(ctx context.Context, id uuid.UUID, robots []string) (*Task, error) {
	if len(robots) == 0 {
		return nil, cerr.NewError(cerr.InvalidArgument, "no robots given", nil)
	}
	return s.transition(ctx, id, func(t *Task) error {
		t.AssignRobots(robots...)
		return nil
	})
}

// UnassignRobots reverts an allocation.
func (s *Service) UnassignRobots(ctx context.Context, id uuid.UUID) (*Task, error) {
	return s.transition(ctx, id, func(t *Task) error {
		t.UnassignRobots()
		return nil
	})
}

// UpdatePlan installs a planner-produced action sequence.
func (s *Service) UpdatePlan(ctx context.Context, id uuid.UUID, actions []*action.Action) (*Task, error) {
	return s.transition(ctx, id, func(t *Task) error {
		t.UpdatePlan(actions)
		return nil
	})
}

// Schedule records the scheduler's execution window.
func (s *Service) Schedule(ctx context.Context, id uuid.UUID, departure, start, finish time.Time) (*Task, error) {
	return s.transition(ctx, id, func(t *Task) error {
		t.ScheduleTask(departure, start, finish)
		return nil
	})
}

// UpdateStartConstraint replaces the task's start window and persists it.
func (s *Service) UpdateStartConstraint(ctx context.Context, id uuid.UUID, earliest, latest time.Time) (*Task, error) {
	if latest.Before(earliest) {
		return nil, cerr.NewError(cerr.InvalidArgument, "start window is inverted", nil)
	}
	return s.transition(ctx, id, func(t *Task) error {
		t.UpdateStartConstraint(earliest, latest)
		return nil
	})
}

// UpdateWorkTime replaces the work duration estimate and persists it.
func (s *Service) UpdateWorkTime(ctx context.Context, id uuid.UUID, mean, variance float64) (*Task, error) {
	if mean < 0 || variance < 0 {
		return nil, cerr.NewError(cerr.InvalidArgument, "negative duration estimate", nil)
	}
	return s.transition(ctx, id, func(t *Task) error {
		t.UpdateWorkTime(mean, variance)
		return nil
	})
}

// UpdateTravelTime replaces the travel duration estimate and persists it.
func (s *Service) UpdateTravelTime(ctx context.Context, id uuid.UUID, mean, variance float64) (*Task, error) {
	if mean < 0 || variance < 0 {
		return nil, cerr.NewError(cerr.InvalidArgument, "negative duration estimate", nil)
	}
	return s.transition(ctx, id, func(t *Task) error {
		t.UpdateTravelTime(mean, variance)
		return nil
	})
}

// UpdateAlternativeStartTime records a secondary start window and persists
// it.
func (s *Service) UpdateAlternativeStartTime(ctx context.Context, id uuid.UUID, earliest, latest time.Time) (*Task, error) {
	if latest.Before(earliest) {
		return nil, cerr.NewError(cerr.InvalidArgument, "start window is inverted", nil)
	}
	return s.transition(ctx, id, func(t *Task) error {
		t.UpdateAlternativeStartTime(earliest, latest)
		return nil
	})
}

// transition applies a lifecycle mutation to a live, non-frozen task and
// persists it.
func (s *Service) transition(ctx context.Context, id uuid.UUID, apply func(*Task) error) (*Task, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.IsFrozen() {
		return nil, cerr.NewError(cerr.FailedPrecondition, "task is frozen", nil)
	}
	if err := apply(t); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	s.publisher.PublishNew(eventbus.TypeTaskUpdate, t.TaskID.String(), map[string]any{
		"status": int(t.Status.Status),
	})
	return t, nil
}

// UpdateStatus moves the task to the given status. Terminal statuses archive
// the task and its status record; a finished repetitive task additionally
// spawns its follow-up.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Task, error) {
	if !status.Valid() {
		return nil, cerr.NewError(cerr.InvalidArgument, "unknown status", nil)
	}
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Status.Status = status

	if !status.Archived() {
		if err := s.repo.Update(ctx, t); err != nil {
			return nil, err
		}
		s.publisher.PublishNew(eventbus.TypeTaskUpdate, t.TaskID.String(), map[string]any{
			"status": int(status),
		})
		return t, nil
	}

	if err := s.repo.Archive(ctx, t); err != nil {
		return nil, err
	}
	s.publisher.PublishNew(eventbus.TypeTaskArchived, t.TaskID.String(), map[string]any{
		"status": int(status),
	})
	if status == StatusFinished {
		s.respawn(ctx, t)
	}
	return t, nil
}

// respawn creates the follow-up task of a finished repetitive task. Failures
// are logged, never raised: the finished task is already archived.
func (s *Service) respawn(ctx context.Context, t *Task) {
	req := t.Request
	if req == nil {
		return
	}
	finish := s.now()
	if t.Schedule != nil {
		finish = t.Schedule.FinishTime
	}
	if !req.Repeat(finish, s.now()) {
		return
	}
	follow := FromRequest(req)
	follow.ParentTaskID = &t.TaskID
	if err := s.repo.Create(ctx, follow); err != nil {
		slog.ErrorContext(ctx, "failed to spawn follow-up task",
			"parent_task_id", t.TaskID, "request_id", req.RequestID, "error", err)
		return
	}
	if err := s.requests.Update(ctx, req); err != nil {
		slog.WarnContext(ctx, "failed to record follow-up task on request",
			"task_id", follow.TaskID, "request_id", req.RequestID, "error", err)
	}
	s.publisher.PublishNew(eventbus.TypeTaskCreated, follow.TaskID.String(), map[string]any{
		"request_id":     req.RequestID.String(),
		"parent_task_id": t.TaskID.String(),
	})
}

// Pause freezes dispatch of the task.
func (s *Service) Pause(ctx context.Context, id uuid.UUID) (*Task, error) {
	return s.overlay(ctx, id, func(t *Task) { t.Pause() })
}

// Resume lifts a pause.
func (s *Service) Resume(ctx context.Context, id uuid.UUID) (*Task, error) {
	return s.overlay(ctx, id, func(t *Task) { t.Resume() })
}

// SetRecoveryMethod records how a delayed or failed task recovers.
func (s *Service) SetRecoveryMethod(ctx context.Context, id uuid.UUID, m RecoveryMethod) (*Task, error) {
	if m < RecoverReallocate || m > RecoverCancel {
		return nil, cerr.NewError(cerr.InvalidArgument, "unknown recovery method", nil)
	}
	return s.overlay(ctx, id, func(t *Task) { t.SetRecoveryMethod(m) })
}

// MarkDelayed flags the task as behind its constraints.
func (s *Service) MarkDelayed(ctx context.Context, id uuid.UUID) (*Task, error) {
	return s.overlay(ctx, id, func(t *Task) { t.MarkDelayed() })
}

// MarkEarly flags the task as ahead of its constraints.
func (s *Service) MarkEarly(ctx context.Context, id uuid.UUID) (*Task, error) {
	return s.overlay(ctx, id, func(t *Task) { t.MarkEarly() })
}

// overlay applies a status-overlay mutation that is legal even on frozen
// tasks.
func (s *Service) overlay(ctx context.Context, id uuid.UUID, apply func(*Task)) (*Task, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	apply(t)
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	s.publisher.PublishNew(eventbus.TypeTaskUpdate, t.TaskID.String(), map[string]any{
		"status": int(t.Status.Status),
	})
	return t, nil
}

// ProgressUpdate reports execution progress from a robot.
type ProgressUpdate struct {
	ActionID     uuid.UUID
	ActionStatus action.Status
	Pose         *environment.Position
	StartTime    *time.Time
	FinishTime   *time.Time
}

// UpdateProgress records execution progress. The first update initializes
// the tracker and moves the task to RUNNING; finishing the last plan action
// completes the tracker but leaves the terminal transition to the caller.
func (s *Service) UpdateProgress(ctx context.Context, id uuid.UUID, u ProgressUpdate) (*Task, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status.Progress == nil {
		t.InitProgress(u.ActionID)
		if t.Status.Status == StatusDispatched || t.Status.Status == StatusScheduled {
			t.Status.Status = StatusRunning
		}
	}
	t.Status.Progress.Update(u.ActionID, u.ActionStatus, u.Pose, u.StartTime, u.FinishTime)
	if s.planExecuted(t) {
		t.Status.Progress.Complete()
	}
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	s.publisher.PublishNew(eventbus.TypeTaskUpdate, t.TaskID.String(), map[string]any{
		"status": int(t.Status.Status),
		"action": u.ActionID.String(),
	})
	return t, nil
}

func (s *Service) planExecuted(t *Task) bool {
	progress := t.Status.Progress
	if progress == nil || len(progress.Actions) == 0 {
		return false
	}
	for _, a := range progress.Actions {
		if a.Status != action.StatusFinished {
			return false
		}
	}
	return true
}

// DepartureTime resolves the task's departure time from the lead robot's
// timetable. The false return means the task is not scheduled there, which
// is not an error.
func (s *Service) DepartureTime(ctx context.Context, id uuid.UUID) (time.Time, bool, error) {
	return s.timetableTime(ctx, id, timetable.NodeDeparture)
}

// StartTime resolves the task's start time from the lead robot's timetable.
func (s *Service) StartTime(ctx context.Context, id uuid.UUID) (time.Time, bool, error) {
	return s.timetableTime(ctx, id, timetable.NodeStart)
}

// FinishTime resolves the task's finish time from the lead robot's
// timetable.
func (s *Service) FinishTime(ctx context.Context, id uuid.UUID) (time.Time, bool, error) {
	return s.timetableTime(ctx, id, timetable.NodeFinish)
}

func (s *Service) timetableTime(ctx context.Context, id uuid.UUID, nodeType string) (time.Time, bool, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return time.Time{}, false, err
	}
	robot, ok := t.LeadRobot()
	if !ok {
		return time.Time{}, false, nil
	}
	tt, err := s.timetables.Get(ctx, robot)
	if err != nil {
		if cerr.IsCode(err, cerr.NotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	at, ok := tt.GetTime(t.TaskID.String(), nodeType, true)
	return at, ok, nil
}
