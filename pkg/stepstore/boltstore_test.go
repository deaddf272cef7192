package stepstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daniel-olson-code/pipeline/pkg/types"
)

func openTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBoltStore_PutGet(t *testing.T) {
	s := openTestStore(t)
	step := &types.Step{ID: "s1", Scope: "default", Status: types.StatusQueued}
	require.NoError(t, s.Put(step))

	got, err := s.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, step.Status, got.Status)

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, types.ErrStepNotFound)
}

func TestBoltStore_GetMany(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put(&types.Step{ID: "a"}))
	require.NoError(t, s.Put(&types.Step{ID: "b"}))

	got, err := s.GetMany([]string{"a", "b", "missing"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestBoltStore_PutMany(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.PutMany([]*types.Step{
		{ID: "a", Status: types.StatusPending},
		{ID: "b", Status: types.StatusQueued},
	}))

	a, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, a.Status)

	b, err := s.Get("b")
	require.NoError(t, err)
	assert.Equal(t, types.StatusQueued, b.Status)

	assert.NoError(t, s.PutMany(nil))
}

func TestBoltStore_UpdateStatus(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put(&types.Step{ID: "s1", Status: types.StatusQueued}))

	require.NoError(t, s.UpdateStatus("s1", types.StatusWorking, 100))

	got, err := s.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusWorking, got.Status)
	assert.Equal(t, int64(100), got.Epoch)

	assert.ErrorIs(t, s.UpdateStatus("missing", types.StatusWorking, 100), types.ErrStepNotFound)
}

func TestBoltStore_SetError(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put(&types.Step{ID: "s1", Status: types.StatusWorking}))

	require.NoError(t, s.SetError("s1", "boom", "trace here", 200))

	got, err := s.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusError, got.Status)
	assert.Equal(t, "boom", got.Msg)
	assert.Equal(t, "trace here", got.Trace)
}

func TestBoltStore_BulkSetStatus(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put(&types.Step{ID: "a", Status: types.StatusQueued}))
	require.NoError(t, s.Put(&types.Step{ID: "b", Status: types.StatusQueued}))

	require.NoError(t, s.BulkSetStatus([]string{"a", "b", "missing"}, types.StatusPending, 5))

	a, _ := s.Get("a")
	b, _ := s.Get("b")
	assert.Equal(t, types.StatusPending, a.Status)
	assert.Equal(t, types.StatusPending, b.Status)

	assert.NoError(t, s.BulkSetStatus(nil, types.StatusPending, 5))
}

func TestBoltStore_ScanCandidates(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put(&types.Step{ID: "ready", Scope: "etl", Status: types.StatusPending, Epoch: 1}))
	require.NoError(t, s.Put(&types.Step{ID: "wrong-scope", Scope: "other", Status: types.StatusPending, Epoch: 1}))
	require.NoError(t, s.Put(&types.Step{ID: "queued", Scope: "etl", Status: types.StatusQueued, Epoch: 1}))
	require.NoError(t, s.Put(&types.Step{ID: "fresh-lease", Scope: "etl", Status: types.StatusWorking, Epoch: 1000}))
	require.NoError(t, s.Put(&types.Step{ID: "expired-lease", Scope: "etl", Status: types.StatusWorking, Epoch: 10}))

	var got []string
	err := s.ScanCandidates([]string{"etl"}, 500, 2, func(step *types.Step) bool {
		got = append(got, step.ID)
		return true
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ready", "expired-lease"}, got)
}

func TestBoltStore_ScanCandidates_StopsEarly(t *testing.T) {
	s := openTestStore(t)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Put(&types.Step{ID: id, Scope: "etl", Status: types.StatusPending}))
	}

	var got []string
	err := s.ScanCandidates([]string{"etl"}, 0, 1, func(step *types.Step) bool {
		got = append(got, step.ID)
		return false
	})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestBoltStore_CountByStatus(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put(&types.Step{ID: "a", Status: types.StatusQueued}))
	require.NoError(t, s.Put(&types.Step{ID: "b", Status: types.StatusQueued}))
	require.NoError(t, s.Put(&types.Step{ID: "c", Status: types.StatusSuccess}))

	counts, err := s.CountByStatus()
	require.NoError(t, err)
	assert.Equal(t, 2, counts[types.StatusQueued])
	assert.Equal(t, 1, counts[types.StatusSuccess])
}

func TestBoltStore_Tags(t *testing.T) {
	s := openTestStore(t)

	row, err := s.GetTag("unconfigured")
	require.NoError(t, err)
	assert.Nil(t, row)

	require.NoError(t, s.PutTag(&types.TagRow{Tag: "gpu", Velocity: 3}))
	got, err := s.GetTag("gpu")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.Velocity)

	rows, err := s.ListTags()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
