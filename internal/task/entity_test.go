package task_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelo-robotics/fmlib/internal/action"
	"github.com/kelo-robotics/fmlib/internal/environment"
	"github.com/kelo-robotics/fmlib/internal/request"
	"github.com/kelo-robotics/fmlib/internal/task"
)

func transportationRequest(now time.Time) *request.TaskRequest {
	r := request.New(request.KindTransportation)
	r.EligibleRobots = []string{"frank", "walter"}
	r.Transportation = &request.TransportationPayload{
		PickupLocation:     environment.Position{Name: "PHARMACY"},
		DeliveryLocation:   environment.Position{Name: "WARD-3"},
		EarliestPickupTime: now.Add(10 * time.Minute),
		LatestPickupTime:   now.Add(25 * time.Minute),
	}
	return r
}

func TestFromRequest(t *testing.T) {
	now := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	req := transportationRequest(now)

	tk := task.FromRequest(req)

	assert.Equal(t, task.StatusUnallocated, tk.Status.Status)
	assert.Equal(t, tk.TaskID, tk.Status.TaskID)
	assert.Equal(t, now.Add(10*time.Minute), tk.EarliestStartTime())
	assert.Equal(t, now.Add(25*time.Minute), tk.LatestStartTime())
	assert.Equal(t, []string{"frank", "walter"}, tk.EligibleRobots)
	assert.Contains(t, tk.Capabilities, "docking")
	assert.Contains(t, req.TaskIDs, tk.TaskID)
	require.Len(t, tk.Plan, 1)
}

func TestFromRequestDefaultWindow(t *testing.T) {
	req := request.New(request.KindCharging)

	tk := task.FromRequest(req)

	assert.False(t, tk.EarliestStartTime().IsZero())
	assert.Equal(t, task.DefaultStartWindow, tk.LatestStartTime().Sub(tk.EarliestStartTime()))
}

func TestAssignAndUnassignRobots(t *testing.T) {
	now := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	tk := task.FromRequest(transportationRequest(now))
	tk.UpdateTravelTime(120, 16)

	tk.AssignRobots("frank")
	assert.Equal(t, task.StatusAllocated, tk.Status.Status)
	assert.Equal(t, "frank", tk.Plan[0].Robot)
	robot, ok := tk.LeadRobot()
	assert.True(t, ok)
	assert.Equal(t, "frank", robot)

	tk.UnassignRobots()
	assert.Equal(t, task.StatusUnallocated, tk.Status.Status)
	assert.Empty(t, tk.AssignedRobots)
	assert.Empty(t, tk.Plan[0].Robot)
	// The travel estimate belonged to the removed robot.
	assert.Zero(t, tk.Constraints.Temporal.TravelTime.Mean)

	tk.AssignRobots("walter")
	assert.Equal(t, task.StatusAllocated, tk.Status.Status)
	assert.Equal(t, "walter", tk.Plan[0].Robot)
}

func TestUpdatePlanAndSchedule(t *testing.T) {
	now := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	tk := task.FromRequest(transportationRequest(now))
	tk.AssignRobots("frank")

	actions := []*action.Action{action.NewAction("GOTO"), action.NewAction("DOCK")}
	tk.UpdatePlan(actions)
	assert.Equal(t, task.StatusPlanned, tk.Status.Status)
	assert.Equal(t, "frank", tk.Plan[0].Robot)
	assert.Len(t, tk.Plan[0].Actions, 2)

	tk.ScheduleTask(now.Add(8*time.Minute), now.Add(10*time.Minute), now.Add(30*time.Minute))
	assert.Equal(t, task.StatusScheduled, tk.Status.Status)
	require.NotNil(t, tk.Schedule)
	assert.Equal(t, now.Add(8*time.Minute), tk.Schedule.DepartureTime)
}

func TestIsFrozen(t *testing.T) {
	tk := task.New()
	assert.False(t, tk.IsFrozen())

	tk.Pause()
	assert.True(t, tk.IsFrozen())
	tk.Resume()
	assert.False(t, tk.IsFrozen())

	tk.Status.Status = task.StatusPlanned
	assert.False(t, tk.IsFrozen())

	tk.Status.Status = task.StatusScheduled
	assert.True(t, tk.IsFrozen())

	tk.Status.Status = task.StatusRunning
	assert.True(t, tk.IsFrozen())

	tk.Status.Status = task.StatusFinished
	assert.True(t, tk.IsFrozen())
}

func TestStatusSets(t *testing.T) {
	assert.True(t, task.StatusFinished.Archived())
	assert.True(t, task.StatusDeprecated.Archived())
	assert.False(t, task.StatusRunning.Archived())

	assert.True(t, task.StatusScheduled.ScheduledInTimetable())
	assert.False(t, task.StatusUnallocated.ScheduledInTimetable())
	assert.False(t, task.StatusFinished.ScheduledInTimetable())
}

func TestProgressAdvancesThroughPlan(t *testing.T) {
	now := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	tk := task.FromRequest(transportationRequest(now))
	tk.AssignRobots("frank")
	first := action.NewAction("GOTO")
	second := action.NewAction("DOCK")
	tk.UpdatePlan([]*action.Action{first, second})

	tk.InitProgress(first.ActionID)
	progress := tk.Status.Progress
	require.NotNil(t, progress)
	require.Len(t, progress.Actions, 2)
	assert.Equal(t, first.ActionID, *progress.CurrentAction)
	assert.Len(t, tk.RemainingActions(), 2)

	finish := now.Add(5 * time.Minute)
	progress.Update(first.ActionID, action.StatusFinished, nil, &now, &finish)
	assert.Equal(t, second.ActionID, *progress.CurrentAction)
	assert.Len(t, tk.RemainingActions(), 1)

	record := progress.GetAction(first.ActionID)
	require.NotNil(t, record)
	assert.Equal(t, action.StatusFinished, record.Status)
	d, ok := record.Duration()
	assert.True(t, ok)
	assert.Equal(t, 5*time.Minute, d)

	progress.Update(second.ActionID, action.StatusFinished, nil, nil, nil)
	progress.Complete()
	assert.Nil(t, progress.CurrentAction)
}
