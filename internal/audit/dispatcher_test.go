package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/shopgate/internal/infrastructure/logging"
)

type recordingSink struct {
	mu     sync.Mutex
	events []*Event
	err    error
}

func (s *recordingSink) Write(_ context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *recordingSink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Action
	}
	return out
}

func TestDispatcher_FansOutToAllSinks(t *testing.T) {
	d := NewDispatcher(8, logging.Discard().Logger)
	failing := &recordingSink{err: errors.New("broker down")}
	healthy := &recordingSink{}
	d.AddSink("failing", failing)
	d.AddSink("healthy", healthy)

	d.Emit(ActionLoginSucceeded, "alice", nil)
	d.Emit(ActionUserRegistered, "bob", map[string]any{"roles": []string{"USER"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := d.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{ActionLoginSucceeded, ActionUserRegistered}
	for name, s := range map[string]*recordingSink{"failing": failing, "healthy": healthy} {
		got := s.actions()
		if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("%s sink got %v, want %v", name, got, want)
		}
	}

	e := healthy.events[0]
	if e.ID == "" || e.Source != "api" || e.CreatedAt.IsZero() {
		t.Errorf("event not fully populated: %+v", e)
	}
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	d := NewDispatcher(2, logging.Discard().Logger)

	for n := 0; n < 5; n++ {
		d.Emit(ActionLoginFailed, "alice", nil)
	}
	if got := d.Dropped(); got != 3 {
		t.Errorf("Dropped() = %d, want 3", got)
	}
}

func TestDispatcher_DeliversWhileRunning(t *testing.T) {
	d := NewDispatcher(4, logging.Discard().Logger)
	sink := &recordingSink{}
	d.AddSink("rec", sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	d.Emit(ActionAccessDenied, "", map[string]any{"path": "/orders"})

	deadline := time.After(2 * time.Second)
	for len(sink.actions()) == 0 {
		select {
		case <-deadline:
			t.Fatal("event not delivered within 2s")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestDispatcher_NilIsNoop(t *testing.T) {
	var d *Dispatcher
	d.Emit(ActionLoginFailed, "alice", nil)
}
