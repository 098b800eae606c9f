package task_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelo-robotics/fmlib/internal/action"
	"github.com/kelo-robotics/fmlib/internal/eventbus"
	"github.com/kelo-robotics/fmlib/internal/request"
	requestrepo "github.com/kelo-robotics/fmlib/internal/request/repositoryimpl"
	"github.com/kelo-robotics/fmlib/internal/task"
	taskrepo "github.com/kelo-robotics/fmlib/internal/task/repositoryimpl"
	"github.com/kelo-robotics/fmlib/internal/timetable"
	timetablerepo "github.com/kelo-robotics/fmlib/internal/timetable/repositoryimpl"
	"github.com/kelo-robotics/fmlib/pkg/cerr"
	"github.com/kelo-robotics/fmlib/pkg/storage"
)

type fixture struct {
	service    *task.Service
	requests   request.Repository
	timetables timetable.Repository
	store      *storage.LocalStorage
	bus        *eventbus.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	requests := requestrepo.NewYAMLRepository(store)
	timetables := timetablerepo.NewYAMLRepository(store)
	tasks := taskrepo.NewYAMLRepository(store)
	bus := eventbus.New()

	return &fixture{
		service:    task.NewService(tasks, requests, timetables, bus),
		requests:   requests,
		timetables: timetables,
		store:      store,
		bus:        bus,
	}
}

func (f *fixture) createTask(t *testing.T, ctx context.Context) *task.Task {
	t.Helper()
	req := transportationRequest(time.Now().UTC())
	require.NoError(t, f.requests.Create(ctx, req))
	tk, err := f.service.Create(ctx, req)
	require.NoError(t, err)
	return tk
}

func TestLifecycleToArchive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, events := f.bus.Subscribe(16)
	defer f.bus.Unsubscribe(id)

	tk := f.createTask(t, ctx)
	assert.Equal(t, task.StatusUnallocated, tk.Status.Status)

	tk, err := f.service.AssignRobots(ctx, tk.TaskID, []string{"frank"})
	require.NoError(t, err)
	assert.Equal(t, task.StatusAllocated, tk.Status.Status)

	tk, err = f.service.UpdatePlan(ctx, tk.TaskID, []*action.Action{action.NewAction("GOTO")})
	require.NoError(t, err)
	assert.Equal(t, task.StatusPlanned, tk.Status.Status)

	now := time.Now().UTC()
	tk, err = f.service.Schedule(ctx, tk.TaskID, now, now.Add(2*time.Minute), now.Add(20*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, task.StatusScheduled, tk.Status.Status)

	tk, err = f.service.UpdateStatus(ctx, tk.TaskID, task.StatusFinished)
	require.NoError(t, err)
	assert.Equal(t, task.StatusFinished, tk.Status.Status)

	// The terminal transition moved the task out of the live collection;
	// Get falls back to the archive.
	got, err := f.service.Get(ctx, tk.TaskID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusFinished, got.Status.Status)

	live, err := f.service.List(ctx, task.Filter{})
	require.NoError(t, err)
	assert.Empty(t, live)

	archived, err := f.service.ListArchived(ctx, task.Filter{})
	require.NoError(t, err)
	assert.Len(t, archived, 1)

	created := <-events
	assert.Equal(t, eventbus.TypeTaskCreated, created.Type)
	var last eventbus.Event
	for len(events) > 0 {
		last = <-events
	}
	assert.Equal(t, eventbus.TypeTaskArchived, last.Type)
}

func TestUnassignThenReassign(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created := f.createTask(t, ctx)

	_, err := f.service.AssignRobots(ctx, created.TaskID, []string{"frank"})
	require.NoError(t, err)

	tk, err := f.service.UnassignRobots(ctx, created.TaskID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusUnallocated, tk.Status.Status)
	assert.Empty(t, tk.Plan[0].Robot)

	tk, err = f.service.AssignRobots(ctx, created.TaskID, []string{"walter"})
	require.NoError(t, err)
	assert.Equal(t, task.StatusAllocated, tk.Status.Status)
	assert.Equal(t, "walter", tk.Plan[0].Robot)
}

func TestFrozenTaskRejectsTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created := f.createTask(t, ctx)

	_, err := f.service.Pause(ctx, created.TaskID)
	require.NoError(t, err)

	_, err = f.service.AssignRobots(ctx, created.TaskID, []string{"frank"})
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))

	// Overlay operations stay legal on frozen tasks.
	tk, err := f.service.SetRecoveryMethod(ctx, created.TaskID, task.RecoverReschedule)
	require.NoError(t, err)
	require.NotNil(t, tk.Status.RecoveryMethod)
	assert.Equal(t, task.RecoverReschedule, *tk.Status.RecoveryMethod)

	_, err = f.service.Resume(ctx, created.TaskID)
	require.NoError(t, err)
	_, err = f.service.AssignRobots(ctx, created.TaskID, []string{"frank"})
	assert.NoError(t, err)
}

func TestScheduledTaskIsFrozen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created := f.createTask(t, ctx)

	_, err := f.service.AssignRobots(ctx, created.TaskID, []string{"frank"})
	require.NoError(t, err)
	_, err = f.service.UpdatePlan(ctx, created.TaskID, []*action.Action{action.NewAction("GOTO")})
	require.NoError(t, err)
	now := time.Now().UTC()
	_, err = f.service.Schedule(ctx, created.TaskID, now, now, now.Add(10*time.Minute))
	require.NoError(t, err)

	// A scheduled task holds a timetable slot and must be unscheduled
	// before it can be reallocated or replanned.
	_, err = f.service.AssignRobots(ctx, created.TaskID, []string{"walter"})
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))
	_, err = f.service.UpdateStartConstraint(ctx, created.TaskID, now, now.Add(time.Hour))
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))
}

func TestConstraintUpdatesPersist(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created := f.createTask(t, ctx)

	earliest := time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC)
	latest := earliest.Add(30 * time.Minute)
	_, err := f.service.UpdateStartConstraint(ctx, created.TaskID, earliest, latest)
	require.NoError(t, err)

	_, err = f.service.UpdateWorkTime(ctx, created.TaskID, 300.1234, 25.5678)
	require.NoError(t, err)
	_, err = f.service.UpdateTravelTime(ctx, created.TaskID, 120.5, 9.0)
	require.NoError(t, err)
	_, err = f.service.UpdateAlternativeStartTime(ctx, created.TaskID, latest, latest.Add(time.Hour))
	require.NoError(t, err)

	tk, err := f.service.Get(ctx, created.TaskID)
	require.NoError(t, err)
	assert.Equal(t, earliest, tk.EarliestStartTime().UTC())
	assert.Equal(t, latest, tk.LatestStartTime().UTC())
	assert.Equal(t, 300.123, tk.Constraints.Temporal.WorkTime.Mean)
	assert.Equal(t, 25.568, tk.Constraints.Temporal.WorkTime.Variance)
	assert.Equal(t, 120.5, tk.Constraints.Temporal.TravelTime.Mean)
	require.NotNil(t, tk.Constraints.Temporal.AlternativeTimeslot)
	require.NotNil(t, tk.Constraints.Temporal.AlternativeTimeslot.Start)
	assert.Equal(t, latest, tk.Constraints.Temporal.AlternativeTimeslot.Start.EarliestTime.UTC())
}

func TestConstraintUpdateRejectsInvertedWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created := f.createTask(t, ctx)

	now := time.Now().UTC()
	_, err := f.service.UpdateStartConstraint(ctx, created.TaskID, now.Add(time.Hour), now)
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
	_, err = f.service.UpdateWorkTime(ctx, created.TaskID, -1, 0)
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
}

func TestRepetitiveTaskSpawnsFollowUp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	req := transportationRequest(time.Now().UTC())
	req.Repetition = &request.RepetitionPattern{Count: 2}
	require.NoError(t, f.requests.Create(ctx, req))

	tk, err := f.service.Create(ctx, req)
	require.NoError(t, err)

	_, err = f.service.UpdateStatus(ctx, tk.TaskID, task.StatusFinished)
	require.NoError(t, err)

	live, err := f.service.List(ctx, task.Filter{})
	require.NoError(t, err)
	require.Len(t, live, 1)
	follow := live[0]
	require.NotNil(t, follow.ParentTaskID)
	assert.Equal(t, tk.TaskID, *follow.ParentTaskID)

	chain, err := f.service.ParentChain(ctx, follow.TaskID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, tk.TaskID, chain[1].TaskID)

	// The second finish exhausts the repetition count.
	_, err = f.service.UpdateStatus(ctx, follow.TaskID, task.StatusFinished)
	require.NoError(t, err)
	live, err = f.service.List(ctx, task.Filter{})
	require.NoError(t, err)
	assert.Empty(t, live)
}

func TestUpdateProgressMovesTaskToRunning(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created := f.createTask(t, ctx)

	_, err := f.service.AssignRobots(ctx, created.TaskID, []string{"frank"})
	require.NoError(t, err)
	goTo := action.NewAction("GOTO")
	_, err = f.service.UpdatePlan(ctx, created.TaskID, []*action.Action{goTo})
	require.NoError(t, err)
	now := time.Now().UTC()
	_, err = f.service.Schedule(ctx, created.TaskID, now, now, now.Add(10*time.Minute))
	require.NoError(t, err)

	tk, err := f.service.UpdateProgress(ctx, created.TaskID, task.ProgressUpdate{
		ActionID:     goTo.ActionID,
		ActionStatus: action.StatusOngoing,
	})
	require.NoError(t, err)
	assert.Equal(t, task.StatusRunning, tk.Status.Status)
	require.NotNil(t, tk.Status.Progress)

	finish := now.Add(5 * time.Minute)
	tk, err = f.service.UpdateProgress(ctx, created.TaskID, task.ProgressUpdate{
		ActionID:     goTo.ActionID,
		ActionStatus: action.StatusFinished,
		StartTime:    &now,
		FinishTime:   &finish,
	})
	require.NoError(t, err)
	assert.Nil(t, tk.Status.Progress.CurrentAction)
}

func TestTimetableTimes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created := f.createTask(t, ctx)

	_, err := f.service.AssignRobots(ctx, created.TaskID, []string{"frank"})
	require.NoError(t, err)

	ztp := time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC)
	graph := timetable.DispatchableGraph{
		Nodes: []timetable.Node{
			{ID: 0},
			{ID: 1, Data: timetable.NodeData{TaskID: created.TaskID.String(), NodeType: timetable.NodeStart}},
		},
		Links: []timetable.Edge{
			{Source: 1, Target: 0, Weight: -90},
		},
	}
	require.NoError(t, f.timetables.Save(ctx, timetable.New("frank", ztp, graph)))

	at, ok, err := f.service.StartTime(ctx, created.TaskID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ztp.Add(90*time.Second), at.UTC())

	// No finish node committed yet: not scheduled, no error.
	_, ok, err = f.service.FinishTime(ctx, created.TaskID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTimetableTimesWithoutRobot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	created := f.createTask(t, ctx)

	_, ok, err := f.service.StartTime(ctx, created.TaskID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFilterByRobotAndStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.createTask(t, ctx)
	b := f.createTask(t, ctx)

	_, err := f.service.AssignRobots(ctx, a.TaskID, []string{"frank"})
	require.NoError(t, err)
	_, err = f.service.AssignRobots(ctx, b.TaskID, []string{"walter"})
	require.NoError(t, err)

	byRobot, err := f.service.List(ctx, task.Filter{Robots: []string{"frank"}})
	require.NoError(t, err)
	require.Len(t, byRobot, 1)
	assert.Equal(t, a.TaskID, byRobot[0].TaskID)

	byStatus, err := f.service.List(ctx, task.Filter{Status: []task.Status{task.StatusAllocated}})
	require.NoError(t, err)
	assert.Len(t, byStatus, 2)

	none, err := f.service.List(ctx, task.Filter{Status: []task.Status{task.StatusRunning}})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListConsultsArchiveForTerminalStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tk := f.createTask(t, ctx)

	_, err := f.service.UpdateStatus(ctx, tk.TaskID, task.StatusCanceled)
	require.NoError(t, err)

	canceled, err := f.service.List(ctx, task.Filter{Status: []task.Status{task.StatusCanceled}})
	require.NoError(t, err)
	require.Len(t, canceled, 1)
	assert.Equal(t, tk.TaskID, canceled[0].TaskID)
}

func TestListFilterByRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.createTask(t, ctx)
	f.createTask(t, ctx)

	rid := a.Request.RequestID
	byRequest, err := f.service.List(ctx, task.Filter{RequestID: &rid})
	require.NoError(t, err)
	require.Len(t, byRequest, 1)
	assert.Equal(t, a.TaskID, byRequest[0].TaskID)
}

func TestDeriveRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tk := f.createTask(t, ctx)

	req, err := f.service.DeriveRequest(ctx, tk.TaskID, request.KindStopCharging)
	require.NoError(t, err)
	assert.Equal(t, request.KindStopCharging, req.Kind)
	assert.NotEqual(t, tk.Request.RequestID, req.RequestID)
	assert.Empty(t, req.TaskIDs)

	stored, err := f.requests.Get(ctx, req.RequestID)
	require.NoError(t, err)
	assert.Equal(t, request.KindStopCharging, stored.Kind)
}

func TestDeriveRequestFromRepetitiveTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	eventUID := uuid.New()
	origin := transportationRequest(time.Now().UTC())
	origin.Repetition = &request.RepetitionPattern{Count: 5}
	origin.EventUID = &eventUID
	require.NoError(t, f.requests.Create(ctx, origin))
	tk, err := f.service.Create(ctx, origin)
	require.NoError(t, err)

	// The derived request is a one-off: it does not continue the series
	// or stay linked to the calendar event of its origin.
	req, err := f.service.DeriveRequest(ctx, tk.TaskID, request.KindStopCharging)
	require.NoError(t, err)
	assert.False(t, req.IsRepetitive())
	assert.False(t, req.IsRecurrent())
}

func TestDeprecatedTaskIsStrippedAndArchived(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := uuid.New()

	legacy := fmt.Sprintf(
		"task_id: %s\nstatus:\n  task_id: %s\n  status: 2\nconstraints:\n  temporal: {}\nrobot_actions:\n  frank: []\n",
		id, id)
	require.NoError(t, f.store.Write(ctx, fmt.Sprintf("tasks/%s.yaml", id), []byte(legacy)))

	got, err := f.service.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, task.StatusDeprecated, got.Status.Status)
	assert.Equal(t, id, got.TaskID)

	// The record moved to the archive in its stripped form.
	live, err := f.service.List(ctx, task.Filter{})
	require.NoError(t, err)
	assert.Empty(t, live)

	archived, err := f.service.ListArchived(ctx, task.Filter{})
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, task.StatusDeprecated, archived[0].Status.Status)
}
