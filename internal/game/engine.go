// internal/game/engine.go
//
// Core state machine for a single memory-match session.
// Responsibilities:
//   - Generate the card grid (pairCount symbols, each exactly twice, shuffled).
//   - Validate and apply card selections; detect matches.
//   - Track the countdown and the playing/paused/won/lost transitions.
//   - Fire the score-submission side effect exactly once per session.
//
// Notes:
//   - The Session is not self-locking; a Runner (runner.go) owns wall-clock
//     timers and serializes callbacks. Tests drive Tick/ResolveReveal directly.
//   - All transitions are explicit method calls: a mutation never implicitly
//     triggers another mutation beyond the single win/loss guard evaluated at
//     the end of the mutating call.
package game

import (
	"errors"
	"fmt"
	"math/rand"
)

const (
	// DefaultPairCount yields a 4x4 grid.
	DefaultPairCount = 8
	// DefaultDuration is the countdown length in seconds.
	DefaultDuration = 60
)

// DefaultAlphabet is the symbol pool cards are drawn from.
var DefaultAlphabet = []rune("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")

// Selection errors. Callers typically ignore these (an invalid tap is a
// no-op for the player) but tests assert on them.
var (
	ErrNotPlaying      = errors.New("session is not in the playing state")
	ErrRevealPending   = errors.New("two cards already face up")
	ErrIndexOutOfRange = errors.New("card index out of range")
	ErrUnselectable    = errors.New("card is already selected or matched")
)

// Config parameterizes a Session. Zero values fall back to the defaults
// above. Rand may be set for deterministic grids in tests; when nil a
// time-seeded source is used. Sink may be nil (no score submission).
type Config struct {
	PairCount int
	Alphabet  []rune
	Duration  int
	Rand      *rand.Rand
	Sink      ScoreSink
}

// Session holds the full state of one memory-match game.
type Session struct {
	cfg Config

	state     State
	grid      []Card
	selected  []int
	matched   map[rune]bool
	remaining int

	revealPending bool // two cards face up, waiting for ResolveReveal
	concluded     bool // win/loss side effect already fired
}

// SelectResult reports the outcome of a single card selection.
type SelectResult struct {
	Selected    []int // indices currently face up, including this one
	PairDone    bool  // this selection completed a pair; a reveal resolution must be scheduled
	PairMatched bool  // the completed pair's symbols were equal
	State       State
}

// NewSession validates the configuration and builds a session in the start
// state with a freshly generated grid. An alphabet with fewer distinct
// symbols than PairCount is a configuration error, not a runtime one.
func NewSession(cfg Config) (*Session, error) {
	if cfg.PairCount <= 0 {
		cfg.PairCount = DefaultPairCount
	}
	if len(cfg.Alphabet) == 0 {
		cfg.Alphabet = DefaultAlphabet
	}
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultDuration
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(rand.Int63()))
	}
	if n := distinct(cfg.Alphabet); n < cfg.PairCount {
		return nil, fmt.Errorf("alphabet has %d distinct symbols, need at least %d", n, cfg.PairCount)
	}
	s := &Session{cfg: cfg}
	s.reset()
	return s, nil
}

// Start transitions start → playing and arms the countdown value.
func (s *Session) Start() error {
	if s.state != StateStart {
		return fmt.Errorf("cannot start from state %q", s.state)
	}
	s.state = StatePlaying
	return nil
}

// Select applies a card selection at grid index i.
//
// Rules:
//   - Only legal while playing.
//   - Ignored while two cards are already face up (reveal pending).
//   - Ignored for indices that are out of range, already selected, or
//     already matched.
//
// When the selection completes a pair the symbols are compared; equal
// symbols grow the match set. Either way the caller must schedule
// ResolveReveal after the reveal delay. The win guard is evaluated once,
// at the end of the call.
func (s *Session) Select(i int) (SelectResult, error) {
	if s.state != StatePlaying {
		return s.selectResult(false, false), ErrNotPlaying
	}
	if s.revealPending {
		return s.selectResult(false, false), ErrRevealPending
	}
	if i < 0 || i >= len(s.grid) {
		return s.selectResult(false, false), ErrIndexOutOfRange
	}
	if s.matched[s.grid[i].Symbol] {
		return s.selectResult(false, false), ErrUnselectable
	}
	for _, j := range s.selected {
		if i == j {
			return s.selectResult(false, false), ErrUnselectable
		}
	}

	s.selected = append(s.selected, i)
	if len(s.selected) < 2 {
		return s.selectResult(false, false), nil
	}

	s.revealPending = true
	a, b := s.grid[s.selected[0]].Symbol, s.grid[s.selected[1]].Symbol
	matchedPair := a == b
	if matchedPair {
		s.matched[a] = true
	}
	if len(s.matched) == s.cfg.PairCount {
		s.conclude(true)
	}
	return s.selectResult(true, matchedPair), nil
}

// ResolveReveal clears the face-up selection after the reveal delay.
// Reports whether a pending reveal was actually cleared; calling it with
// nothing pending is a no-op.
func (s *Session) ResolveReveal() bool {
	if !s.revealPending {
		return false
	}
	s.selected = s.selected[:0]
	s.revealPending = false
	return true
}

// Tick consumes one second of the countdown. Ticks outside the playing
// state are ignored, so a straggling timer callback after pause or
// conclusion cannot double-count. Remaining never goes below zero; hitting
// zero transitions to lost.
func (s *Session) Tick() int {
	if s.state != StatePlaying {
		return s.remaining
	}
	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining == 0 {
		s.conclude(false)
	}
	return s.remaining
}

// Pause suspends the countdown without resetting it.
func (s *Session) Pause() error {
	if s.state != StatePlaying {
		return fmt.Errorf("cannot pause from state %q", s.state)
	}
	s.state = StatePaused
	return nil
}

// Resume returns to playing with the countdown untouched.
func (s *Session) Resume() error {
	if s.state != StatePaused {
		return fmt.Errorf("cannot resume from state %q", s.state)
	}
	s.state = StatePlaying
	return nil
}

// Reset reinitializes the session: fresh grid, full countdown, start state.
// Used after won/lost and for quitting mid-game.
func (s *Session) Reset() {
	s.reset()
}

// conclude performs the terminal transition. The concluded flag guarantees
// the score submission fires at most once per session even if the trigger
// re-enters (a timer tick racing a winning selection in the same event-loop
// turn).
func (s *Session) conclude(won bool) {
	if s.concluded {
		return
	}
	s.concluded = true
	timeLeft := s.remaining
	if !won {
		timeLeft = 0
	}
	if won {
		s.state = StateWon
	} else {
		s.state = StateLost
	}
	if s.cfg.Sink != nil {
		s.cfg.Sink.SubmitScore(Result{Won: won, Matches: len(s.matched), TimeLeft: timeLeft})
	}
}

func (s *Session) reset() {
	s.state = StateStart
	s.grid = generateGrid(s.cfg.Alphabet, s.cfg.PairCount, s.cfg.Rand)
	s.selected = s.selected[:0]
	s.matched = make(map[rune]bool, s.cfg.PairCount)
	s.remaining = s.cfg.Duration
	s.revealPending = false
	s.concluded = false
}

func (s *Session) selectResult(pairDone, pairMatched bool) SelectResult {
	return SelectResult{
		Selected:    append([]int(nil), s.selected...),
		PairDone:    pairDone,
		PairMatched: pairMatched,
		State:       s.state,
	}
}

// --------------------------------- views -----------------------------------

// State reports the current lifecycle phase.
func (s *Session) State() State { return s.state }

// Remaining reports the countdown seconds left.
func (s *Session) Remaining() int { return s.remaining }

// Matches reports the number of pairs found so far.
func (s *Session) Matches() int { return len(s.matched) }

// PairCount reports the number of pairs in the grid.
func (s *Session) PairCount() int { return s.cfg.PairCount }

// Grid returns a copy of the card grid.
func (s *Session) Grid() []Card { return append([]Card(nil), s.grid...) }

// View snapshots the session for rendering.
func (s *Session) View() View {
	matched := make(map[rune]bool, len(s.matched))
	for k := range s.matched {
		matched[k] = true
	}
	return View{
		State:     s.state,
		Grid:      append([]Card(nil), s.grid...),
		Selected:  append([]int(nil), s.selected...),
		Matched:   matched,
		Remaining: s.remaining,
		PairCount: s.cfg.PairCount,
	}
}

// ------------------------------- grid gen ----------------------------------

// generateGrid draws pairCount distinct symbols from the alphabet without
// replacement, duplicates each, and returns a uniform shuffle of the
// resulting 2×pairCount multiset. The alphabet is validated in NewSession.
func generateGrid(alphabet []rune, pairCount int, rng *rand.Rand) []Card {
	pool := dedupe(alphabet)
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	cards := make([]Card, 0, 2*pairCount)
	for _, sym := range pool[:pairCount] {
		cards = append(cards, Card{Symbol: sym}, Card{Symbol: sym})
	}
	rng.Shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
	return cards
}

func dedupe(rs []rune) []rune {
	seen := make(map[rune]bool, len(rs))
	out := make([]rune, 0, len(rs))
	for _, r := range rs {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

func distinct(rs []rune) int { return len(dedupe(rs)) }
