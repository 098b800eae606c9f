package timetable_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelo-robotics/fmlib/internal/eventbus"
	"github.com/kelo-robotics/fmlib/internal/timetable"
	timetablerepo "github.com/kelo-robotics/fmlib/internal/timetable/repositoryimpl"
	"github.com/kelo-robotics/fmlib/pkg/storage"
)

func TestWatcherPublishesOnSolverHandOff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	base := t.TempDir()
	store, err := storage.NewLocalStorage(base)
	require.NoError(t, err)
	repo := timetablerepo.NewYAMLRepository(store)

	// Seed one timetable so the watched directory exists before Run starts.
	ztp := time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Save(ctx, timetable.New("walter", ztp, timetable.DispatchableGraph{})))

	bus := eventbus.New()
	subID, events := bus.Subscribe(8)
	defer bus.Unsubscribe(subID)

	watcher := timetable.NewWatcher(filepath.Join(base, timetablerepo.Prefix()), repo, bus)
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()

	// Give the watcher a moment to register before the solver hand-off.
	time.Sleep(200 * time.Millisecond)

	graph := timetable.DispatchableGraph{
		Nodes: []timetable.Node{
			{ID: 0},
			{ID: 1, Data: timetable.NodeData{TaskID: "task-a", NodeType: timetable.NodeStart}},
		},
		Links: []timetable.Edge{{Source: 1, Target: 0, Weight: -60}},
	}
	require.NoError(t, repo.Save(ctx, timetable.New("frank", ztp, graph)))

	select {
	case event := <-events:
		assert.Equal(t, eventbus.TypeTimetableUpdate, event.Type)
		assert.Equal(t, "frank", event.ResourceID)
		assert.Equal(t, []string{"task-a"}, event.Payload["tasks"])
	case <-ctx.Done():
		t.Fatal("timed out waiting for timetable update event")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
