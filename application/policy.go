package application

import (
	"context"
	"errors"
	"math/rand"

	"github.com/sapph1re/blindboard/domain/board"
	"github.com/sapph1re/blindboard/protocol"
)

// ErrNoCellAvailable means every cell has already been attempted.
var ErrNoCellAvailable = errors.New("application: no cell left to attempt")

// A MovePolicy proposes the next cell to play. The forbidden set holds every
// cell this participant has ever attempted in the game, whether or not the
// attempt was confirmed; a policy must never propose one of them again.
type MovePolicy interface {
	Propose(ctx context.Context, g *protocol.Game, forbidden map[[2]byte]bool) (x, y byte, err error)
}

// RandomPolicy picks a uniformly random cell outside the forbidden set.
type RandomPolicy struct {
	Rng *rand.Rand
}

func (p *RandomPolicy) Propose(_ context.Context, _ *protocol.Game, forbidden map[[2]byte]bool) (byte, byte, error) {
	var free [][2]byte
	for x := byte(0); x < board.Size; x++ {
		for y := byte(0); y < board.Size; y++ {
			if !forbidden[[2]byte{x, y}] {
				free = append(free, [2]byte{x, y})
			}
		}
	}
	if len(free) == 0 {
		return 0, 0, ErrNoCellAvailable
	}
	cell := free[p.Rng.Intn(len(free))]
	return cell[0], cell[1], nil
}

// FuncPolicy adapts a plain function to a MovePolicy.
type FuncPolicy func(ctx context.Context, g *protocol.Game, forbidden map[[2]byte]bool) (byte, byte, error)

func (f FuncPolicy) Propose(ctx context.Context, g *protocol.Game, forbidden map[[2]byte]bool) (byte, byte, error) {
	return f(ctx, g, forbidden)
}
