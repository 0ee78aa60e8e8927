// Package livemon interprets polled system-status payloads into a
// presentation-ready health state. It is a reducer over one poller feed:
// Idle until the subscription starts, Fetching while a cycle is in
// flight, then Ready or Errored, re-entering Fetching on every tick.
// There is no terminal state.
package livemon

import (
	"sync"
	"time"

	"github.com/reveris/aetherwatch/pkg/domain"
	"github.com/reveris/aetherwatch/pkg/poller"
)

// Phase is the reducer state.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseFetching Phase = "fetching"
	PhaseReady    Phase = "ready"
	PhaseErrored  Phase = "errored"
)

// View is the presentation-ready projection of the health feed. Counts
// are zero-filled for display; the underlying snapshot is untouched.
type View struct {
	Phase        Phase
	APIOnline    bool
	WorkerOnline bool
	Counts       domain.StatusCounts
	LastUpdate   time.Time
	Err          error
}

// Monitor reduces poller snapshots of the status endpoint into a View.
// Safe for concurrent Reduce/View calls.
type Monitor struct {
	mu   sync.Mutex
	view View
}

// NewMonitor returns a monitor in the idle phase.
func NewMonitor() *Monitor {
	return &Monitor{view: View{Phase: PhaseIdle}}
}

// Reduce folds one poller snapshot into the monitor state and returns
// the resulting view.
func (m *Monitor) Reduce(snap poller.Snapshot[*domain.StatusSnapshot]) View {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case snap.Loading, snap.InFlight:
		m.view.Phase = PhaseFetching
	case snap.Err != nil:
		m.view.Phase = PhaseErrored
	default:
		m.view.Phase = PhaseReady
	}

	m.view.Err = snap.Err

	// A failed cycle keeps the previous health flags: the poller retains
	// the prior value and so does the view.
	if snap.Err == nil && !snap.Loading {
		status := snap.Value
		if status != nil {
			m.view.APIOnline = status.Healthy
			m.view.WorkerOnline = status.CeleryOK
			m.view.Counts = status.DisplayCounts()
		}
		m.view.LastUpdate = snap.LastUpdate
	}

	return m.view
}

// View returns the current view without reducing anything.
func (m *Monitor) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view
}

// Run consumes the subscription's update channel until ctx is done or the
// channel goes quiet after unsubscribe, invoking onChange with each
// reduced view. It blocks; run it in its own goroutine when the caller
// has other work.
func (m *Monitor) Run(done <-chan struct{}, sub *poller.Subscription[*domain.StatusSnapshot], onChange func(View)) {
	for {
		select {
		case <-done:
			return
		case snap := <-sub.Updates():
			view := m.Reduce(snap)
			if onChange != nil {
				onChange(view)
			}
		}
	}
}
