package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	s := New(nil)
	require.NoError(t, s.Add(Job{Name: "a", Schedule: "@every 1h", Run: func(context.Context) error { return nil }}))
	s.Start()
	s.Stop()
}

func TestAdd_Validation(t *testing.T) {
	t.Parallel()
	s := New(nil)
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Add(Job{Name: "a", Schedule: "@every 1m", Run: noop}))
	assert.Error(t, s.Add(Job{Name: "a", Schedule: "@every 1m", Run: noop}), "duplicate name")
	assert.Error(t, s.Add(Job{Name: "b", Schedule: "not a schedule", Run: noop}))
	assert.Error(t, s.Add(Job{Name: "", Schedule: "@hourly", Run: noop}))
	assert.Error(t, s.Add(Job{Name: "c", Schedule: "@hourly"}))
	require.NoError(t, s.Add(Job{Name: "d", Schedule: "*/5 * * * *", Run: noop}))

	jobs := s.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].Name)
	assert.Equal(t, "d", jobs[1].Name)
	assert.True(t, jobs[0].Next.After(time.Now()), "next run projected before Start")
}

func TestRunNow(t *testing.T) {
	t.Parallel()
	s := New(nil)

	var calls atomic.Int32
	require.NoError(t, s.Add(Job{Name: "ok", Schedule: "@hourly", Run: func(context.Context) error {
		calls.Add(1)
		return nil
	}}))
	require.NoError(t, s.Add(Job{Name: "fails", Schedule: "@hourly", Run: func(context.Context) error {
		return errors.New("disk full")
	}}))
	require.NoError(t, s.Add(Job{Name: "panics", Schedule: "@hourly", Run: func(context.Context) error {
		panic("boom")
	}}))

	require.NoError(t, s.RunNow("ok"))
	assert.Equal(t, int32(1), calls.Load())
	assert.EqualError(t, s.RunNow("fails"), "disk full")
	assert.EqualError(t, s.RunNow("panics"), "panic: boom")
	assert.ErrorIs(t, s.RunNow("missing"), ErrUnknownJob)

	for _, st := range s.Jobs() {
		assert.False(t, st.LastRunAt.IsZero(), st.Name)
	}
}

type fakeSweeper struct{ maxAge time.Duration }

func (f *fakeSweeper) SweepTemp(maxAge time.Duration) (int, error) {
	f.maxAge = maxAge
	return 2, nil
}

type fakePruner struct{ calls int }

func (f *fakePruner) PruneCooldowns() int {
	f.calls++
	return 1
}

func TestAddMaintenance(t *testing.T) {
	t.Parallel()
	s := New(nil)
	sweeper := &fakeSweeper{}
	pruner := &fakePruner{}

	require.NoError(t, s.AddMaintenance(MaintenanceConfig{
		TempSweep:     "@every 10m",
		CooldownPrune: "@every 5m",
	}, sweeper, pruner, nil))

	require.NoError(t, s.RunNow("temp-sweep"))
	assert.Equal(t, time.Hour, sweeper.maxAge)
	require.NoError(t, s.RunNow("cooldown-prune"))
	assert.Equal(t, 1, pruner.calls)

	s.Start()
	s.Stop()
}

func TestAddMaintenance_SkipsEmptySchedules(t *testing.T) {
	t.Parallel()
	s := New(nil)
	require.NoError(t, s.AddMaintenance(MaintenanceConfig{}, &fakeSweeper{}, &fakePruner{}, nil))
	assert.Empty(t, s.Jobs())
}
