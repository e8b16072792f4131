package protocol

import (
	"fmt"
	"time"

	"github.com/sapph1re/blindboard/fhe"
)

// CancelGame refunds the creator's stake and closes an unjoined game.
// Allowed only while no opponent has joined.
func (e *Engine) CancelGame(g *Game, caller string, now time.Time) error {
	if g.Terminal() {
		return ErrGameTerminal
	}
	if caller != g.PlayerA {
		return ErrNotCreator
	}
	if g.PlayerB != "" {
		return ErrGameNotJoinable
	}

	// zero before transfer, same discipline as distributePrizes
	amount := g.Stake
	g.Stake = 0
	g.ClearWinner = WinnerCancelled
	g.LastActionAt = now
	if amount > 0 {
		if err := e.bank.Release(g.PlayerA, amount); err != nil {
			return fmt.Errorf("refunding creator: %w", err)
		}
	}
	e.events.emit(EventGameCancelled, g.ID, map[string]string{"creator": g.PlayerA})
	return nil
}

// ClaimTimeout settles a stalled game once the move timeout has elapsed.
// If exactly one player completed their move for the pending round, that
// player wins by timeout; both or neither completed is a timeout draw.
// Outstanding moves are cleared before settlement.
func (e *Engine) ClaimTimeout(g *Game, ms *MoveSet, now time.Time) error {
	if g.Terminal() {
		return ErrGameTerminal
	}
	if g.PlayerB == "" {
		return ErrGameNotStarted
	}
	if !now.After(g.LastActionAt.Add(g.MoveTimeout)) {
		return ErrTimeoutNotReached
	}

	var w Winner
	switch {
	case ms.A.IsMade && !ms.B.IsMade:
		w = WinnerPlayerA
	case ms.B.IsMade && !ms.A.IsMade:
		w = WinnerPlayerB
	default:
		w = WinnerDraw
	}

	ms.A = Move{}
	ms.B = Move{}
	g.ClearWinner = w
	g.EncryptedWinner = fhe.Handle{}
	g.EncryptedCollision = fhe.Handle{}
	g.LastActionAt = now
	if err := e.fhe.AllowDecryption(g.Board.Handles()...); err != nil {
		return fmt.Errorf("marking board decryptable: %w", err)
	}
	if err := e.distributePrizes(g, w); err != nil {
		return err
	}
	e.events.emit(EventGameTimeout, g.ID, map[string]string{"winner": w.String()})
	return nil
}

// distributePrizes releases the escrowed pot exactly once. The stake field
// is zeroed before any transfer so a re-entrant call sees an empty pot.
// Zero-stake games skip the bank entirely. A draw splits the pot evenly,
// any odd remainder going to player A deterministically.
func (e *Engine) distributePrizes(g *Game, w Winner) error {
	stake := g.Stake
	g.Stake = 0
	if stake == 0 {
		return nil
	}
	pot := stake * 2

	switch w {
	case WinnerPlayerA:
		if err := e.bank.Release(g.PlayerA, pot); err != nil {
			return fmt.Errorf("paying winner: %w", err)
		}
	case WinnerPlayerB:
		if err := e.bank.Release(g.PlayerB, pot); err != nil {
			return fmt.Errorf("paying winner: %w", err)
		}
	case WinnerDraw:
		half := pot / 2
		if err := e.bank.Release(g.PlayerA, half+pot%2); err != nil {
			return fmt.Errorf("splitting pot: %w", err)
		}
		if err := e.bank.Release(g.PlayerB, half); err != nil {
			return fmt.Errorf("splitting pot: %w", err)
		}
	default:
		return fmt.Errorf("protocol: cannot settle outcome %s", w)
	}
	return nil
}
