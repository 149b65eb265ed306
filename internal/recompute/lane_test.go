package recompute

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// gatedSolver blocks each solve until release is called and counts runs.
type gatedSolver struct {
	runs    atomic.Int32
	started chan string
	gate    chan struct{}
}

func newGatedSolver() *gatedSolver {
	return &gatedSolver{started: make(chan string, 16), gate: make(chan struct{})}
}

func (g *gatedSolver) solve(ctx context.Context, id string) (Outcome, error) {
	g.runs.Add(1)
	g.started <- id
	select {
	case <-g.gate:
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
	return Outcome{Critical: 2}, nil
}

func (g *gatedSolver) release() { g.gate <- struct{}{} }

func waitStarted(t *testing.T, g *gatedSolver) string {
	t.Helper()
	select {
	case id := <-g.started:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("solve did not start")
		return ""
	}
}

func TestLane_CoalescesRequests(t *testing.T) {
	g := newGatedSolver()
	lane := NewLane(g.solve)
	defer lane.Close()

	if !lane.Request("p1") {
		t.Fatal("first request should start a solve")
	}
	waitStarted(t, g)
	for i := 0; i < 3; i++ {
		if lane.Request("p1") {
			t.Error("request during a solve should coalesce")
		}
	}
	if !lane.Busy("p1") {
		t.Error("lane should be busy")
	}

	g.release()
	waitStarted(t, g)
	g.release()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := lane.Wait(ctx, "p1"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if n := g.runs.Load(); n != 2 {
		t.Errorf("runs = %d, want 2", n)
	}
	if lane.Busy("p1") {
		t.Error("lane should be idle")
	}
}

func TestLane_ProjectsRunIndependently(t *testing.T) {
	g := newGatedSolver()
	lane := NewLane(g.solve)
	defer lane.Close()

	lane.Request("p1")
	lane.Request("p2")
	seen := map[string]bool{waitStarted(t, g): true, waitStarted(t, g): true}
	if !seen["p1"] || !seen["p2"] {
		t.Errorf("started = %v", seen)
	}
	g.release()
	g.release()
}

func TestLane_WaitIdle(t *testing.T) {
	lane := NewLane(func(ctx context.Context, id string) (Outcome, error) { return Outcome{}, nil })
	defer lane.Close()
	if err := lane.Wait(context.Background(), "never"); err != nil {
		t.Errorf("Wait on idle project: %v", err)
	}
}

func TestLane_WaitContextCancelled(t *testing.T) {
	g := newGatedSolver()
	lane := NewLane(g.solve)
	defer lane.Close()

	lane.Request("p1")
	waitStarted(t, g)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := lane.Wait(ctx, "p1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
	g.release()
}

func TestLane_PanickingSolveReleasesProject(t *testing.T) {
	var calls atomic.Int32
	lane := NewLane(func(ctx context.Context, id string) (Outcome, error) {
		if calls.Add(1) == 1 {
			panic("index out of range")
		}
		return Outcome{Critical: 1}, nil
	})
	defer lane.Close()
	outcomes, unsubscribe := lane.Subscribe()
	defer unsubscribe()

	lane.Request("p1")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := lane.Wait(ctx, "p1"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if lane.Busy("p1") {
		t.Error("project still busy after a panicking solve")
	}
	out := <-outcomes
	if out.ProjectID != "p1" || !strings.Contains(out.Err, "solve panicked: index out of range") {
		t.Errorf("outcome = %+v", out)
	}

	if !lane.Request("p1") {
		t.Fatal("project should accept a new solve")
	}
	if err := lane.Wait(ctx, "p1"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if out := <-outcomes; out.Err != "" || out.Critical != 1 {
		t.Errorf("second outcome = %+v", out)
	}
}

func TestLane_Subscribe(t *testing.T) {
	var calls atomic.Int32
	lane := NewLane(func(ctx context.Context, id string) (Outcome, error) {
		if calls.Add(1) == 2 {
			return Outcome{}, errors.New("solver exploded")
		}
		return Outcome{Finish: time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), Critical: 3}, nil
	})
	defer lane.Close()

	events, unsubscribe := lane.Subscribe()
	defer unsubscribe()

	next := func() Outcome {
		t.Helper()
		select {
		case out := <-events:
			return out
		case <-time.After(2 * time.Second):
			t.Fatal("no outcome")
			return Outcome{}
		}
	}

	lane.Request("p1")
	out := next()
	if out.ProjectID != "p1" || out.Critical != 3 || out.Err != "" || out.At.IsZero() {
		t.Errorf("outcome = %+v", out)
	}

	lane.Wait(context.Background(), "p1")
	lane.Request("p1")
	out = next()
	if out.Err != "solver exploded" {
		t.Errorf("Err = %q", out.Err)
	}
}

func TestLane_UnsubscribeClosesChannel(t *testing.T) {
	lane := NewLane(func(ctx context.Context, id string) (Outcome, error) { return Outcome{}, nil })
	defer lane.Close()

	events, unsubscribe := lane.Subscribe()
	unsubscribe()
	unsubscribe()
	if _, ok := <-events; ok {
		t.Error("channel should be closed")
	}
}

func TestLane_Close(t *testing.T) {
	g := newGatedSolver()
	lane := NewLane(g.solve)
	events, _ := lane.Subscribe()

	lane.Request("p1")
	waitStarted(t, g)

	lane.Close()

	if lane.Request("p1") {
		t.Error("request after Close should be ignored")
	}
	// The cancelled solve still reports, then the channel closes.
	var got []Outcome
	for out := range events {
		got = append(got, out)
	}
	if len(got) != 1 || got[0].Err == "" {
		t.Errorf("outcomes = %+v", got)
	}
	lane.Close()
}
