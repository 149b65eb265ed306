// Package recompute runs schedule solves in the background. A Lane keeps at
// most one solve per project in flight and folds requests that arrive
// during a solve into one follow-up run; a Sweeper feeds the lane on a
// cron schedule.
package recompute

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Outcome reports one finished solve.
type Outcome struct {
	ProjectID  string    `json:"project_id"`
	Finish     time.Time `json:"finish"`
	Critical   int       `json:"critical"`
	Violations int       `json:"violations"`
	SlipDays   int       `json:"slip_days,omitempty"`
	Err        string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// SolveFunc solves one project.
type SolveFunc func(ctx context.Context, projectID string) (Outcome, error)

// subscriberBuffer is the outcome backlog each subscriber may hold before
// new outcomes are dropped for it.
const subscriberBuffer = 16

type laneState struct {
	dirty bool
	done  chan struct{}
}

// Lane serializes solves per project.
type Lane struct {
	solve  SolveFunc
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	running map[string]*laneState
	subs    map[int]chan Outcome
	nextSub int
}

// NewLane returns a Lane that runs solve.
func NewLane(solve SolveFunc) *Lane {
	ctx, cancel := context.WithCancel(context.Background())
	return &Lane{
		solve:   solve,
		ctx:     ctx,
		cancel:  cancel,
		running: make(map[string]*laneState),
		subs:    make(map[int]chan Outcome),
	}
}

// Request asks for projectID to be solved. It starts a solve when the
// project is idle and reports true; while a solve is in flight the request
// is folded into a single run after it and Request reports false.
func (l *Lane) Request(projectID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	if st, ok := l.running[projectID]; ok {
		st.dirty = true
		return false
	}
	l.running[projectID] = &laneState{done: make(chan struct{})}
	l.wg.Add(1)
	go l.run(projectID)
	return true
}

// Busy reports whether a solve of projectID is in flight.
func (l *Lane) Busy(projectID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.running[projectID]
	return ok
}

// Wait blocks until projectID has no solve in flight or pending.
func (l *Lane) Wait(ctx context.Context, projectID string) error {
	l.mu.Lock()
	st, ok := l.running[projectID]
	l.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-st.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Lane) run(projectID string) {
	defer l.wg.Done()
	for {
		out, err := l.solveOnce(projectID)
		out.ProjectID = projectID
		if out.At.IsZero() {
			out.At = time.Now().UTC()
		}
		if err != nil {
			out.Err = err.Error()
			log.Printf("recompute: %s: %v", projectID, err)
		}
		l.Publish(out)

		l.mu.Lock()
		st := l.running[projectID]
		if st.dirty && !l.closed {
			st.dirty = false
			l.mu.Unlock()
			continue
		}
		delete(l.running, projectID)
		close(st.done)
		l.mu.Unlock()
		return
	}
}

// solveOnce runs one solve, turning a panic into an error so the project is
// not left in flight.
func (l *Lane) solveOnce(projectID string) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = Outcome{}, fmt.Errorf("solve panicked: %v", r)
		}
	}()
	return l.solve(l.ctx, projectID)
}

// Subscribe returns a channel of solve outcomes and a function that ends
// the subscription. A subscriber that falls behind misses outcomes rather
// than stalling the lane.
func (l *Lane) Subscribe() (<-chan Outcome, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := make(chan Outcome, subscriberBuffer)
	if l.closed {
		close(ch)
		return ch, func() {}
	}
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if c, ok := l.subs[id]; ok {
				delete(l.subs, id)
				close(c)
			}
		})
	}
}

// Publish sends out to every subscriber. Solves run outside the lane, such
// as a synchronous API recalculation, report through it.
func (l *Lane) Publish(out Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ch := range l.subs {
		select {
		case ch <- out:
		default:
			log.Printf("recompute: subscriber full, dropping outcome for %s", out.ProjectID)
		}
	}
}

// Close cancels in-flight solves, waits for them to return and ends every
// subscription. Requests after Close are ignored.
func (l *Lane) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	l.cancel()
	l.wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	for id, ch := range l.subs {
		delete(l.subs, id)
		close(ch)
	}
}
