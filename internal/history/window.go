package history

// DefaultMaxTurns is the number of turns retained per session.
const DefaultMaxTurns = 20

// Window keeps only the last MaxTurns turns of a conversation.
// MaxTurns <= 0 disables truncation.
type Window struct {
	MaxTurns int
}

// Trim returns a copy of the most recent MaxTurns turns, oldest first.
func (w Window) Trim(turns []Turn) []Turn {
	start := 0
	if w.MaxTurns > 0 && len(turns) > w.MaxTurns {
		start = len(turns) - w.MaxTurns
	}
	out := make([]Turn, len(turns)-start)
	copy(out, turns[start:])
	return out
}

// Request builds the turn list sent upstream: the stored history followed by
// the new user turn, trimmed to the window.
func (w Window) Request(stored []Turn, user Turn) []Turn {
	turns := make([]Turn, 0, len(stored)+1)
	turns = append(turns, stored...)
	turns = append(turns, user)
	return w.Trim(turns)
}
