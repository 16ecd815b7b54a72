// internal/game/runner.go
//
// Wall-clock driver for a Session. The Runner owns the two timers the game
// needs — the one-second countdown ticker and the reveal-delay timer — as
// explicit, cancellable callbacks, and serializes every callback and player
// action through one mutex so the session sees run-to-completion semantics.
// Both timers are torn down on terminal transitions and on Close.

package game

import (
	"sync"
	"time"
)

// DefaultRevealDelay is how long a completed pair stays face up before the
// selection is cleared. Long enough for a human to register the pair.
const DefaultRevealDelay = 800 * time.Millisecond

// Runner drives a Session in real time.
type Runner struct {
	mu     sync.Mutex
	sess   *Session
	reveal time.Duration

	stopTick    chan struct{} // non-nil while the countdown goroutine runs
	revealTimer *time.Timer
	closed      bool
}

// NewRunner wraps a session. revealDelay <= 0 selects DefaultRevealDelay.
func NewRunner(sess *Session, revealDelay time.Duration) *Runner {
	if revealDelay <= 0 {
		revealDelay = DefaultRevealDelay
	}
	return &Runner{sess: sess, reveal: revealDelay}
}

// Start begins play: transitions the session to playing and starts the
// countdown ticker.
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.sess.Start(); err != nil {
		return err
	}
	r.startTicker()
	return nil
}

// Select forwards a card selection. Completing a pair schedules the reveal
// resolution; a win from this selection stops the countdown.
func (r *Runner) Select(i int) (SelectResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, err := r.sess.Select(i)
	if err != nil {
		return res, err
	}
	if res.PairDone {
		r.revealTimer = time.AfterFunc(r.reveal, func() {
			r.mu.Lock()
			r.sess.ResolveReveal()
			r.mu.Unlock()
		})
	}
	if res.State == StateWon {
		r.stopTicker()
	}
	return res, nil
}

// Pause suspends the countdown; the session keeps its remaining time.
func (r *Runner) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.sess.Pause(); err != nil {
		return err
	}
	r.stopTicker()
	return nil
}

// Resume restarts the countdown from where Pause left it.
func (r *Runner) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.sess.Resume(); err != nil {
		return err
	}
	r.startTicker()
	return nil
}

// Reset tears down timers and reinitializes the session to the start state.
func (r *Runner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopTicker()
	r.cancelReveal()
	r.sess.Reset()
}

// View snapshots the session for rendering.
func (r *Runner) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sess.View()
}

// Close disposes the runner and all of its timers. The session is left in
// whatever state it reached.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.stopTicker()
	r.cancelReveal()
}

// startTicker launches the once-per-second countdown goroutine.
// Caller must hold r.mu.
func (r *Runner) startTicker() {
	if r.stopTick != nil || r.closed {
		return
	}
	stop := make(chan struct{})
	r.stopTick = stop
	go func() {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				r.mu.Lock()
				if r.stopTick != stop {
					// Cancelled while this tick was in flight; a pause must
					// not lose or double-count a second.
					r.mu.Unlock()
					return
				}
				r.sess.Tick()
				done := r.sess.State() != StatePlaying
				if done {
					r.stopTick = nil
				}
				r.mu.Unlock()
				if done {
					return
				}
			case <-stop:
				return
			}
		}
	}()
}

// stopTicker halts the countdown goroutine if one is running.
// Caller must hold r.mu.
func (r *Runner) stopTicker() {
	if r.stopTick != nil {
		close(r.stopTick)
		r.stopTick = nil
	}
}

// cancelReveal drops any pending reveal-delay callback.
// Caller must hold r.mu.
func (r *Runner) cancelReveal() {
	if r.revealTimer != nil {
		r.revealTimer.Stop()
		r.revealTimer = nil
	}
}
