package repositoryimpl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelo-robotics/fmlib/internal/timetable"
	"github.com/kelo-robotics/fmlib/pkg/cerr"
	"github.com/kelo-robotics/fmlib/pkg/storage"
)

func newRepo(t *testing.T) *YAMLRepository {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewYAMLRepository(store)
}

func testTimetable(robotID string) *timetable.Timetable {
	ztp := time.Date(2026, 8, 29, 8, 0, 0, 0, time.UTC)
	return timetable.New(robotID, ztp, timetable.DispatchableGraph{
		Nodes: []timetable.Node{
			{ID: 0},
			{ID: 1, Data: timetable.NodeData{TaskID: "task-a", NodeType: timetable.NodeStart}},
		},
		Links: []timetable.Edge{
			{Source: 1, Target: 0, Weight: -120},
		},
	})
}

func TestSaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	require.NoError(t, repo.Save(ctx, testTimetable("frank")))

	got, err := repo.Get(ctx, "frank")
	require.NoError(t, err)
	assert.Equal(t, "frank", got.RobotID)

	// The decoded timetable must answer queries without an explicit reindex.
	at, ok := got.GetTime("task-a", timetable.NodeStart, true)
	assert.True(t, ok)
	assert.Equal(t, got.ZTP.Add(120*time.Second), at)
}

func TestSaveReplacesWholeGraph(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	require.NoError(t, repo.Save(ctx, testTimetable("frank")))

	replacement := timetable.New("frank", time.Now().UTC(), timetable.DispatchableGraph{})
	require.NoError(t, repo.Save(ctx, replacement))

	got, err := repo.Get(ctx, "frank")
	require.NoError(t, err)
	assert.Empty(t, got.TaskIDs())
	_, ok := got.GetTime("task-a", timetable.NodeStart, true)
	assert.False(t, ok)
}

func TestGetMissing(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	_, err := repo.Get(ctx, "ghost")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestArchiveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	tt := testTimetable("frank")

	require.NoError(t, repo.Save(ctx, tt))
	require.NoError(t, repo.Archive(ctx, tt))
	require.NoError(t, repo.Archive(ctx, tt))

	_, err := repo.Get(ctx, "frank")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))

	archived, err := repo.GetArchived(ctx, "frank")
	require.NoError(t, err)
	assert.Equal(t, "frank", archived.RobotID)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	require.NoError(t, repo.Save(ctx, testTimetable("frank")))
	require.NoError(t, repo.Delete(ctx, "frank"))

	_, err := repo.Get(ctx, "frank")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}
