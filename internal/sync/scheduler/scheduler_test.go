package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/semsproject/sems-client/internal/sync"
)

// fakeRunner signals each pass over a channel.
type fakeRunner struct {
	passes chan struct{}
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{passes: make(chan struct{}, 16)}
}

func (f *fakeRunner) RunPass(ctx context.Context) (sync.Result, error) {
	select {
	case f.passes <- struct{}{}:
	default:
	}
	return sync.Result{}, nil
}

func waitForPass(t *testing.T, r *fakeRunner) {
	t.Helper()
	select {
	case <-r.passes:
	case <-time.After(2 * time.Second):
		t.Fatal("no sync pass observed")
	}
}

func TestClampInterval(t *testing.T) {
	cases := []struct {
		in   int
		want time.Duration
	}{
		{0, MinIntervalSeconds * time.Second},
		{-5, MinIntervalSeconds * time.Second},
		{29, MinIntervalSeconds * time.Second},
		{30, 30 * time.Second},
		{300, 300 * time.Second},
		{3600, 3600 * time.Second},
		{86400, MaxIntervalSeconds * time.Second},
	}
	for _, tc := range cases {
		if got := ClampInterval(tc.in); got != tc.want {
			t.Errorf("ClampInterval(%d) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestStartRunsImmediatePass(t *testing.T) {
	r := newFakeRunner()
	s := New(r, 300)
	s.Start()
	defer s.Stop()

	waitForPass(t, r)
}

func TestStartTwiceIsNoop(t *testing.T) {
	r := newFakeRunner()
	s := New(r, 300)
	s.Start()
	s.Start()
	defer s.Stop()

	waitForPass(t, r)
	// Only the one immediate pass; a second Start must not spawn another loop.
	select {
	case <-r.passes:
		t.Error("second loop started")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestOnReconnectTriggersPass(t *testing.T) {
	r := newFakeRunner()
	s := New(r, 3600)
	s.Start()
	defer s.Stop()

	waitForPass(t, r) // the immediate one

	s.OnReconnect()
	waitForPass(t, r)
}

func TestStopHaltsLoop(t *testing.T) {
	r := newFakeRunner()
	s := New(r, 300)
	s.Start()
	waitForPass(t, r)

	s.Stop()
	s.OnReconnect()
	select {
	case <-r.passes:
		t.Error("pass ran after Stop")
	case <-time.After(100 * time.Millisecond):
	}

	// Stop again is a no-op.
	s.Stop()
}

// blockingRunner holds a pass open until released and records the context
// state the pass observed.
type blockingRunner struct {
	begun    chan struct{}
	release  chan struct{}
	finished chan struct{}
	ctxErr   error
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{
		begun:    make(chan struct{}),
		release:  make(chan struct{}),
		finished: make(chan struct{}),
	}
}

func (b *blockingRunner) RunPass(ctx context.Context) (sync.Result, error) {
	close(b.begun)
	<-b.release
	b.ctxErr = ctx.Err()
	close(b.finished)
	return sync.Result{}, nil
}

func TestStopLetsInFlightPassFinish(t *testing.T) {
	r := newBlockingRunner()
	s := New(r, 3600)
	s.Start()

	select {
	case <-r.begun:
	case <-time.After(2 * time.Second):
		t.Fatal("immediate pass never started")
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	// Stop must wait for the running pass, not tear it down.
	select {
	case <-stopped:
		t.Fatal("Stop returned while a pass was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(r.release)
	select {
	case <-r.finished:
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight pass never finished")
	}
	<-stopped

	if r.ctxErr != nil {
		t.Errorf("in-flight pass saw cancellation: %v", r.ctxErr)
	}
}

func TestUpdateIntervalOnStoppedScheduler(t *testing.T) {
	r := newFakeRunner()
	s := New(r, 300)
	// Must not block or panic before Start.
	s.UpdateInterval(60)
	s.UpdateInterval(999999) // clamped, still fine
}
