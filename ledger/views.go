package ledger

import (
	"sort"
	"time"

	"github.com/sapph1re/blindboard/protocol"
)

func secondsToDuration(s int64) time.Duration {
	return time.Duration(s) * time.Second
}

// GetGame returns a snapshot of the game record.
func (l *Ledger) GetGame(id string) (protocol.Game, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	g, ok := l.games[id]
	if !ok {
		return protocol.Game{}, false
	}
	return *g, true
}

// GetMoves returns a snapshot of both players' move records.
func (l *Ledger) GetMoves(id string) (protocol.MoveSet, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ms, ok := l.moves[id]
	if !ok {
		return protocol.MoveSet{}, false
	}
	return *ms, true
}

// GetOpenGames lists joinable games, oldest first.
func (l *Ledger) GetOpenGames() []protocol.Game {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []protocol.Game
	for _, g := range l.games {
		if g.Open() {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// GetGamesByPlayer lists games the address participates in, oldest first.
func (l *Ledger) GetGamesByPlayer(addr string) []protocol.Game {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []protocol.Game
	for _, g := range l.games {
		if g.HasPlayer(addr) {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// CanSubmitMove reports whether the player may submit a move right now:
// the game is active with both seats taken, no round result is pending, and
// the player's slot for this round is free.
func (l *Ledger) CanSubmitMove(id, player string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	g, ok := l.games[id]
	if !ok {
		return false
	}
	ms := l.moves[id]
	if g.Terminal() || g.PlayerB == "" || g.ResultPending() {
		return false
	}
	mv := ms.Of(g, player)
	return mv != nil && !mv.IsSubmitted
}
