package protocol

import (
	"time"

	"github.com/sapph1re/blindboard/domain/board"
	"github.com/sapph1re/blindboard/fhe"
)

// Winner is the terminal outcome of a game.
type Winner byte

const (
	WinnerNone    Winner = Winner(fhe.WinnerNone)
	WinnerPlayerA Winner = Winner(fhe.WinnerPlayerA)
	WinnerPlayerB Winner = Winner(fhe.WinnerPlayerB)
	WinnerDraw    Winner = Winner(fhe.WinnerDraw)
	// WinnerCancelled marks a game cancelled before an opponent joined.
	// Bookkeeping only, never produced by board logic.
	WinnerCancelled Winner = 4
)

func (w Winner) String() string {
	switch w {
	case WinnerNone:
		return "none"
	case WinnerPlayerA:
		return "playerA"
	case WinnerPlayerB:
		return "playerB"
	case WinnerDraw:
		return "draw"
	case WinnerCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Game is the authoritative record of one match.
type Game struct {
	ID      string `json:"id"`
	PlayerA string `json:"player_a"`
	// PlayerB is empty while the game is open and joinable.
	PlayerB string `json:"player_b,omitempty"`

	Board board.Board `json:"-"`
	// EncryptedWinner and EncryptedCollision are set while a round result
	// awaits its finalize call and cleared once it is consumed.
	EncryptedWinner    fhe.Handle `json:"-"`
	EncryptedCollision fhe.Handle `json:"-"`

	// ClearBoard stays all-empty until the terminal reveal step.
	ClearBoard  [board.Size][board.Size]byte `json:"clear_board"`
	ClearWinner Winner                       `json:"clear_winner"`
	Revealed    bool                         `json:"revealed"`

	Stake        uint64        `json:"stake"`
	MoveTimeout  time.Duration `json:"move_timeout"`
	CreatedAt    time.Time     `json:"created_at"`
	LastActionAt time.Time     `json:"last_action_at"`
}

// Open reports whether the game is still joinable.
func (g *Game) Open() bool { return g.PlayerB == "" && !g.Terminal() }

// Terminal reports whether the game reached a final outcome.
func (g *Game) Terminal() bool { return g.ClearWinner != WinnerNone }

// HasPlayer reports whether addr participates in the game.
func (g *Game) HasPlayer(addr string) bool {
	return addr != "" && (g.PlayerA == addr || g.PlayerB == addr)
}

// ResultPending reports whether a processed round awaits FinalizeGameState.
func (g *Game) ResultPending() bool { return !g.EncryptedWinner.IsZero() }

// Move is one player's move record for the current round.
type Move struct {
	IsSubmitted bool `json:"is_submitted"`
	IsMade      bool `json:"is_made"`

	EncryptedIsInvalid      fhe.Handle `json:"-"`
	EncryptedIsCellOccupied fhe.Handle `json:"-"`
	EncryptedX              fhe.Handle `json:"-"`
	EncryptedY              fhe.Handle `json:"-"`
}

// MoveSet holds both players' move records for a game. Records are cleared
// (reset to the zero Move) when a round is consumed by board processing.
type MoveSet struct {
	A Move `json:"a"`
	B Move `json:"b"`
}

// Of returns the move record for the given player of g, or nil when addr is
// not a participant.
func (ms *MoveSet) Of(g *Game, addr string) *Move {
	switch addr {
	case g.PlayerA:
		return &ms.A
	case g.PlayerB:
		if addr == "" {
			return nil
		}
		return &ms.B
	default:
		return nil
	}
}
