package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daniel-olson-code/pipeline/pkg/blobstore"
	"github.com/daniel-olson-code/pipeline/pkg/events"
	"github.com/daniel-olson-code/pipeline/pkg/stepstore"
	"github.com/daniel-olson-code/pipeline/pkg/types"
)

func newTestEngine(t *testing.T) (*Engine, stepstore.Store, blobstore.Store) {
	t.Helper()
	steps, err := stepstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { steps.Close() })

	blobs, err := blobstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { blobs.Close() })

	return New(steps, blobs, nil), steps, blobs
}

func putStep(t *testing.T, steps stepstore.Store, step *types.Step) {
	t.Helper()
	require.NoError(t, steps.Put(step))
}

// TestLinearChain covers a three-step chain A -> B -> C: finishing A
// should promote B to pending and leave C queued.
func TestLinearChain(t *testing.T) {
	engine, steps, _ := newTestEngine(t)

	putStep(t, steps, &types.Step{ID: "a", Status: types.StatusPending, Children: []string{"b"}})
	putStep(t, steps, &types.Step{ID: "b", Status: types.StatusQueued, Parents: []string{"a"}, Children: []string{"c"}})
	putStep(t, steps, &types.Step{ID: "c", Status: types.StatusQueued, Parents: []string{"b"}})

	require.NoError(t, engine.Done("a"))

	a, _ := steps.Get("a")
	b, _ := steps.Get("b")
	c, _ := steps.Get("c")
	assert.Equal(t, types.StatusSuccess, a.Status)
	assert.Equal(t, types.StatusPending, b.Status)
	assert.Equal(t, types.StatusQueued, c.Status)
}

// TestDiamond covers A -> {B, C} -> D: D stays queued while neither of its
// parents has finished, but both B and C become runnable as soon as A
// finishes.
func TestDiamond(t *testing.T) {
	engine, steps, _ := newTestEngine(t)

	putStep(t, steps, &types.Step{ID: "a", Status: types.StatusPending, Children: []string{"b", "c"}})
	putStep(t, steps, &types.Step{ID: "b", Status: types.StatusQueued, Parents: []string{"a"}, Children: []string{"d"}})
	putStep(t, steps, &types.Step{ID: "c", Status: types.StatusQueued, Parents: []string{"a"}, Children: []string{"d"}})
	putStep(t, steps, &types.Step{ID: "d", Status: types.StatusQueued, Parents: []string{"b", "c"}})

	require.NoError(t, engine.Done("a"))

	b, _ := steps.Get("b")
	c, _ := steps.Get("c")
	d, _ := steps.Get("d")
	assert.Equal(t, types.StatusPending, b.Status)
	assert.Equal(t, types.StatusPending, c.Status)
	assert.Equal(t, types.StatusQueued, d.Status)
}

// TestCancelPropagation covers cancelling any one node of a component
// cancelling the whole component, parents and children alike.
func TestCancelPropagation(t *testing.T) {
	engine, steps, _ := newTestEngine(t)

	putStep(t, steps, &types.Step{ID: "a", Status: types.StatusSuccess, Children: []string{"b"}})
	putStep(t, steps, &types.Step{ID: "b", Status: types.StatusPending, Parents: []string{"a"}, Children: []string{"c"}})
	putStep(t, steps, &types.Step{ID: "c", Status: types.StatusQueued, Parents: []string{"b"}})

	require.NoError(t, engine.Cancel("b"))

	a, _ := steps.Get("a")
	b, _ := steps.Get("b")
	c, _ := steps.Get("c")
	assert.Equal(t, types.StatusCancel, a.Status)
	assert.Equal(t, types.StatusCancel, b.Status)
	assert.Equal(t, types.StatusCancel, c.Status)
}

// TestResetVsQueued covers reset returning a root to queued but a step
// with parents to pending, not queued.
func TestResetVsQueued(t *testing.T) {
	engine, steps, _ := newTestEngine(t)

	putStep(t, steps, &types.Step{ID: "root", Status: types.StatusSuccess, Children: []string{"child"}})
	putStep(t, steps, &types.Step{ID: "child", Status: types.StatusError, Parents: []string{"root"}})

	require.NoError(t, engine.Reset("root"))

	root, _ := steps.Get("root")
	child, _ := steps.Get("child")
	assert.Equal(t, types.StatusQueued, root.Status)
	assert.Equal(t, types.StatusPending, child.Status)
}

// TestBlobGCSweep covers blob-data GC firing only once every member of a
// component reaches a terminal status, and never firing while any member
// is still in flight.
func TestBlobGCSweep(t *testing.T) {
	engine, steps, blobs := newTestEngine(t)

	putStep(t, steps, &types.Step{ID: "a", Status: types.StatusPending, Children: []string{"b"}})
	putStep(t, steps, &types.Step{ID: "b", Status: types.StatusQueued, Parents: []string{"a"}})

	require.NoError(t, blobstore.SetStepData(blobs, "a", "payload-a"))
	require.NoError(t, blobstore.SetStepData(blobs, "b", "payload-b"))

	// a finishes, promoting b to pending: b is not yet terminal, so no sweep.
	require.NoError(t, engine.Done("a"))
	_, err := blobstore.GetStepData(blobs, "a")
	assert.NoError(t, err, "payload must survive until the whole component finishes")

	// b finishes too: now the whole component is terminal and gets swept.
	require.NoError(t, engine.Done("b"))
	_, err = blobstore.GetStepData(blobs, "a")
	assert.Error(t, err, "payload should be swept once the component is fully terminal")
	_, err = blobstore.GetStepData(blobs, "b")
	assert.Error(t, err)
}

func TestPending_NoPropagation(t *testing.T) {
	engine, steps, _ := newTestEngine(t)
	putStep(t, steps, &types.Step{ID: "a", Status: types.StatusWorking, Children: []string{"b"}})
	putStep(t, steps, &types.Step{ID: "b", Status: types.StatusQueued, Parents: []string{"a"}})

	require.NoError(t, engine.Pending("a"))

	a, _ := steps.Get("a")
	b, _ := steps.Get("b")
	assert.Equal(t, types.StatusPending, a.Status)
	assert.Equal(t, types.StatusQueued, b.Status)
}

func TestError_RecordsMsgAndTrace(t *testing.T) {
	engine, steps, _ := newTestEngine(t)
	putStep(t, steps, &types.Step{ID: "a", Status: types.StatusWorking})

	require.NoError(t, engine.Error("a", "boom", "line 1\nline 2"))

	a, _ := steps.Get("a")
	assert.Equal(t, types.StatusError, a.Status)
	assert.Equal(t, "boom", a.Msg)
	assert.Equal(t, "line 1\nline 2", a.Trace)
}

func TestEngine_PublishesEvents(t *testing.T) {
	steps, err := stepstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { steps.Close() })
	blobs, err := blobstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { blobs.Close() })

	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)
	sub := broker.Subscribe()

	engine := New(steps, blobs, broker)
	putStep(t, steps, &types.Step{ID: "a", Status: types.StatusWorking})
	require.NoError(t, engine.Done("a"))

	ev := <-sub
	assert.Equal(t, events.EventStepDone, ev.Type)
	assert.Equal(t, "a", ev.StepID)
}
