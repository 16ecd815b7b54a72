// internal/game/types.go
//
// Core type definitions for the memory-match game engine.
// Defines:
//   - State: coarse lifecycle phase of a session.
//   - Card: a single grid tile, identified by position, compared by symbol.
//   - Result: the payload handed to a ScoreSink when a session concludes.

package game

// State represents the lifecycle phase of a Session.
// Transitions: start → playing → {paused ⇄ playing} → {won | lost} → start.
type State string

const (
	StateStart   State = "start"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateWon     State = "won"
	StateLost    State = "lost"
)

// Card is one tile in the grid. Identity is positional (grid index);
// equality is by Symbol. Every symbol appears exactly twice per grid.
type Card struct {
	Symbol rune
}

// Result is emitted exactly once per session, on the won or lost transition.
// Matches is the number of pairs found; TimeLeft is the remaining countdown
// seconds (always 0 on a loss).
type Result struct {
	Won      bool
	Matches  int
	TimeLeft int
}

// ScoreSink receives the single score submission fired when a session
// concludes. A failing or slow sink must never block the session's terminal
// transition; the engine calls it exactly once per session.
type ScoreSink interface {
	SubmitScore(res Result)
}

// SinkFunc adapts a plain function to the ScoreSink interface.
type SinkFunc func(res Result)

func (f SinkFunc) SubmitScore(res Result) { f(res) }

// View is a point-in-time copy of session state, safe to render from.
type View struct {
	State     State
	Grid      []Card
	Selected  []int
	Matched   map[rune]bool
	Remaining int
	PairCount int
}
