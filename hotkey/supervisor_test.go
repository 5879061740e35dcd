package hotkey

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// runningListener is one live Run call of fakeListener.
type runningListener struct {
	binding Binding
	observe func(bool)
	stopped chan struct{}
}

// fakeListener hands every Run call to the test and blocks until stopped.
type fakeListener struct {
	started chan *runningListener
	fail    atomic.Bool
}

func newFakeListener() *fakeListener {
	return &fakeListener{started: make(chan *runningListener, 4)}
}

func (f *fakeListener) Run(stop <-chan struct{}, b Binding, observe func(bool)) error {
	if f.fail.Load() {
		return ErrUnsupported
	}
	r := &runningListener{binding: b, observe: observe, stopped: make(chan struct{})}
	f.started <- r
	<-stop
	close(r.stopped)
	return nil
}

func (f *fakeListener) next(t *testing.T) *runningListener {
	t.Helper()
	select {
	case r := <-f.started:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("listener not started")
		return nil
	}
}

func startSupervisor(t *testing.T, l Listener, b Binding) *Supervisor {
	t.Helper()
	s := NewSupervisor(l, NewDetector())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, b) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s
}

func collectEdges(d *Detector) []EdgeKind {
	var kinds []EdgeKind
	for {
		select {
		case e := <-d.Edges():
			kinds = append(kinds, e.Kind)
		case <-time.After(100 * time.Millisecond):
			return kinds
		}
	}
}

func equalKinds(a, b []EdgeKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDetectorDebounces(t *testing.T) {
	d := NewDetector()
	for _, p := range []bool{false, true, true, true, false, false, true, false} {
		d.Observe(p)
	}
	got := collectEdges(d)
	want := []EdgeKind{Press, Release, Press, Release}
	if !equalKinds(got, want) {
		t.Errorf("edges = %v, want %v", got, want)
	}
}

func TestSupervisorReloadWhileHeld(t *testing.T) {
	l := newFakeListener()
	b := Binding{Key: KeyR, Modifiers: []KeyCode{Control}}
	s := startSupervisor(t, l, b)

	first := l.next(t)
	first.observe(true)

	s.Reload(b)
	<-first.stopped
	second := l.next(t)

	// The new listener sees the key still held, then its release.
	second.observe(true)
	second.observe(false)

	got := collectEdges(s.Detector())
	want := []EdgeKind{Press, Release}
	if !equalKinds(got, want) {
		t.Errorf("edges = %v, want %v", got, want)
	}
}

func TestSupervisorReloadWithNewBindingReleases(t *testing.T) {
	l := newFakeListener()
	s := startSupervisor(t, l, DefaultBinding())

	first := l.next(t)
	first.observe(true)

	next := Binding{Key: F5}
	s.Reload(next)
	second := l.next(t)
	if !second.binding.Equal(next) {
		t.Errorf("listener binding = %v, want %v", second.binding, next)
	}

	got := collectEdges(s.Detector())
	want := []EdgeKind{Press, Release}
	if !equalKinds(got, want) {
		t.Errorf("edges = %v, want %v", got, want)
	}

	second.observe(true)
	e := <-s.Detector().Edges()
	if e.Kind != Press || !e.Binding.Equal(next) {
		t.Errorf("edge = %+v, want press on %v", e, next)
	}
}

func TestSupervisorReloadReplacesPending(t *testing.T) {
	s := NewSupervisor(newFakeListener(), NewDetector())
	s.Reload(Binding{Key: F1})
	s.Reload(Binding{Key: F2})

	select {
	case b := <-s.reload:
		if b.Key != F2 {
			t.Errorf("pending binding = %s, want F2", b.Key)
		}
	default:
		t.Fatal("no pending reload")
	}
}

func TestSupervisorStopsOnCancel(t *testing.T) {
	l := newFakeListener()
	s := NewSupervisor(l, NewDetector())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, DefaultBinding()) }()
	r := l.next(t)

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop")
	}
	select {
	case <-r.stopped:
	default:
		t.Error("listener was not stopped")
	}
}

func TestSupervisorWaitsForReloadAfterFailure(t *testing.T) {
	l := newFakeListener()
	l.fail.Store(true)
	s := startSupervisor(t, l, DefaultBinding())

	time.Sleep(50 * time.Millisecond)
	l.fail.Store(false)
	s.Reload(Binding{Key: F9})

	for {
		if r := l.next(t); r.binding.Key == F9 {
			return
		}
	}
}
