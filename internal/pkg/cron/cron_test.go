package cron

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestSchedulerRunsJobOnInterval(t *testing.T) {
	var runs atomic.Int64
	sched := New()
	sched.Register(Job{
		Name:     "tick",
		Interval: 10 * time.Millisecond,
		Fn: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)

	waitFor(t, func() bool { return runs.Load() >= 3 }, "job did not run repeatedly")
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	var runs atomic.Int64
	sched := New()
	sched.Register(Job{
		Name:     "tick",
		Interval: 10 * time.Millisecond,
		Fn: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	sched.Start(ctx)
	waitFor(t, func() bool { return runs.Load() >= 1 }, "job never ran")

	cancel()
	time.Sleep(30 * time.Millisecond)
	after := runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}

func TestSchedulerReportsStatuses(t *testing.T) {
	sched := New()
	sched.Register(Job{
		Name:        "ok",
		Description: "always succeeds",
		Interval:    10 * time.Millisecond,
		Fn:          func(ctx context.Context) error { return nil },
	})
	sched.Register(Job{
		Name:     "bad",
		Interval: 10 * time.Millisecond,
		Fn:       func(ctx context.Context) error { return errors.New("boom") },
	})

	items := sched.List()
	require.Len(t, items, 2)
	for _, item := range items {
		assert.Equal(t, StatusIdle, item.Status)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)

	waitFor(t, func() bool {
		byName := map[string]ListItem{}
		for _, item := range sched.List() {
			byName[item.Name] = item
		}
		return byName["ok"].Status == StatusFulfill && byName["bad"].Status == StatusReject
	}, "statuses did not settle")

	byName := map[string]ListItem{}
	for _, item := range sched.List() {
		byName[item.Name] = item
	}
	assert.Equal(t, "boom", byName["bad"].Message)
	assert.Empty(t, byName["ok"].Message)
	assert.NotNil(t, byName["ok"].LastRunAt)
}
