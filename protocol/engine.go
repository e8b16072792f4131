package protocol

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sapph1re/blindboard/domain/board"
	"github.com/sapph1re/blindboard/fhe"
)

var (
	ErrGameNotJoinable      = errors.New("protocol: game is not joinable")
	ErrGameTerminal         = errors.New("protocol: game already ended")
	ErrGameNotStarted       = errors.New("protocol: game has no opponent yet")
	ErrNotAPlayer           = errors.New("protocol: caller is not a player of this game")
	ErrStakeMismatch        = errors.New("protocol: joining stake must match the game stake")
	ErrMoveAlreadySubmitted = errors.New("protocol: move already submitted for this round")
	ErrMoveNotSubmitted     = errors.New("protocol: no submitted move to finalize")
	ErrMoveAlreadyMade      = errors.New("protocol: move already finalized")
	ErrResultPending        = errors.New("protocol: round result awaits finalization")
	ErrNoPendingResult      = errors.New("protocol: no round result to finalize")
	ErrNotTerminal          = errors.New("protocol: game is not terminal")
	ErrTimeoutNotReached    = errors.New("protocol: move timeout not reached")
	ErrNotCreator           = errors.New("protocol: only the creator may cancel")
	ErrBadProof             = errors.New("protocol: decryption proof rejected")
)

// Bank escrows and releases game stakes. The ledger provides the
// implementation; no component other than the settlement path ever moves
// escrowed funds.
type Bank interface {
	// Escrow moves amount from the player's balance into the game pot.
	Escrow(player string, amount uint64) error
	// Release pays amount from the pot to the player.
	Release(player string, amount uint64) error
}

// Engine drives the move protocol over the encrypted board. It is pure with
// respect to storage: callers own the Game and MoveSet records and the
// engine mutates them under the caller's serialization.
type Engine struct {
	fhe    *fhe.Engine
	board  *board.Engine
	consts *fhe.Constants
	attKey ed25519.PublicKey
	bank   Bank
	events Emitter
}

// NewEngine assembles a protocol engine. attKey is the public key the
// decryption oracle's attestations are verified against.
func NewEngine(f *fhe.Engine, b *board.Engine, consts *fhe.Constants, attKey ed25519.PublicKey, bank Bank, events Emitter) *Engine {
	return &Engine{fhe: f, board: b, consts: consts, attKey: attKey, bank: bank, events: events}
}

// StartGame escrows the creator's stake and returns a fresh game with an
// all-empty encrypted board.
func (e *Engine) StartGame(creator string, stake uint64, moveTimeout time.Duration, now time.Time) (*Game, error) {
	if err := e.bank.Escrow(creator, stake); err != nil {
		return nil, fmt.Errorf("escrowing creator stake: %w", err)
	}
	g := &Game{
		ID:           uuid.NewString(),
		PlayerA:      creator,
		Board:        e.board.NewBoard(),
		Stake:        stake,
		MoveTimeout:  moveTimeout,
		CreatedAt:    now,
		LastActionAt: now,
	}
	e.events.emit(EventGameStarted, g.ID, map[string]string{"creator": creator})
	return g, nil
}

// JoinGame escrows the joiner's matching stake and closes the seat.
func (e *Engine) JoinGame(g *Game, joiner string, stake uint64, now time.Time) error {
	if !g.Open() {
		return ErrGameNotJoinable
	}
	if joiner == g.PlayerA {
		return ErrGameNotJoinable
	}
	if stake != g.Stake {
		return ErrStakeMismatch
	}
	if err := e.bank.Escrow(joiner, stake); err != nil {
		return fmt.Errorf("escrowing joiner stake: %w", err)
	}
	g.PlayerB = joiner
	g.LastActionAt = now
	e.events.emit(EventPlayerJoined, g.ID, map[string]string{"joiner": joiner})
	return nil
}

// SubmitMove records a candidate move as encrypted coordinates and computes
// its encrypted validity. The invalid flag is marked decryptable so the
// oracle can reveal it for the finalize step. Validity itself is never
// checked in cleartext here; an out-of-range or occupied cell simply yields
// an invalid flag that decrypts true.
func (e *Engine) SubmitMove(g *Game, ms *MoveSet, player string, x, y fhe.Handle) error {
	if g.Terminal() {
		return ErrGameTerminal
	}
	if g.PlayerB == "" {
		return ErrGameNotStarted
	}
	if g.ResultPending() {
		return ErrResultPending
	}
	mv := ms.Of(g, player)
	if mv == nil {
		return ErrNotAPlayer
	}
	if mv.IsSubmitted {
		return ErrMoveAlreadySubmitted
	}

	isValid, isOccupied, err := e.board.ValidateMove(g.Board, x, y)
	if err != nil {
		return fmt.Errorf("validating move: %w", err)
	}
	isInvalid, err := e.fhe.Not(isValid)
	if err != nil {
		return fmt.Errorf("negating validity: %w", err)
	}
	if err := e.fhe.AllowDecryption(isInvalid, isOccupied); err != nil {
		return fmt.Errorf("marking validity decryptable: %w", err)
	}

	*mv = Move{
		IsSubmitted:             true,
		EncryptedIsInvalid:      isInvalid,
		EncryptedIsCellOccupied: isOccupied,
		EncryptedX:              x,
		EncryptedY:              y,
	}
	e.events.emit(EventMoveSubmitted, g.ID, map[string]string{"player": player})
	return nil
}

// FinalizeMove feeds the decrypted invalid flag back in. The attestation
// must bind the cleartext to the exact handle SubmitMove committed to. An
// invalid move resets the player's slot for a fresh attempt; a valid one
// reaches Made, and once both players are Made the round is processed.
func (e *Engine) FinalizeMove(g *Game, ms *MoveSet, player string, att fhe.Attestation) error {
	if g.Terminal() {
		return ErrGameTerminal
	}
	mv := ms.Of(g, player)
	if mv == nil {
		return ErrNotAPlayer
	}
	if !mv.IsSubmitted {
		return ErrMoveNotSubmitted
	}
	if mv.IsMade {
		return ErrMoveAlreadyMade
	}
	if err := att.Verify(e.attKey, mv.EncryptedIsInvalid); err != nil {
		return fmt.Errorf("%w: %v", ErrBadProof, err)
	}

	if att.Value != 0 {
		*mv = Move{}
		e.events.emit(EventMoveInvalid, g.ID, map[string]string{"player": player})
		return nil
	}

	mv.IsMade = true
	e.events.emit(EventMoveMade, g.ID, map[string]string{"player": player})

	if ms.A.IsMade && ms.B.IsMade {
		if err := e.processMoves(g, ms); err != nil {
			return err
		}
	}
	return nil
}

// processMoves consumes both Made moves: it computes the encrypted collision
// flag, writes both marks, commits the written board only when no collision
// occurred, computes the winner over the committed board, and marks winner
// and collision decryptable. Both move records are cleared.
func (e *Engine) processMoves(g *Game, ms *MoveSet) error {
	collision, err := e.board.ComputeCollision(
		ms.A.EncryptedX, ms.A.EncryptedY,
		ms.B.EncryptedX, ms.B.EncryptedY)
	if err != nil {
		return fmt.Errorf("computing collision: %w", err)
	}

	withA, err := e.board.WriteCell(g.Board, ms.A.EncryptedX, ms.A.EncryptedY, e.consts.MarkX)
	if err != nil {
		return fmt.Errorf("writing player A move: %w", err)
	}
	withBoth, err := e.board.WriteCell(withA, ms.B.EncryptedX, ms.B.EncryptedY, e.consts.MarkO)
	if err != nil {
		return fmt.Errorf("writing player B move: %w", err)
	}
	// a collision discards the whole round's writes
	committed, err := e.board.SelectBoard(collision, g.Board, withBoth)
	if err != nil {
		return fmt.Errorf("committing round board: %w", err)
	}
	winner, err := e.board.ComputeWinner(committed)
	if err != nil {
		return fmt.Errorf("computing winner: %w", err)
	}
	if err := e.fhe.AllowDecryption(winner, collision); err != nil {
		return fmt.Errorf("marking round result decryptable: %w", err)
	}

	g.Board = committed
	g.EncryptedWinner = winner
	g.EncryptedCollision = collision
	ms.A = Move{}
	ms.B = Move{}
	e.events.emit(EventMovesProcessed, g.ID, nil)
	return nil
}

// FinalizeGameState consumes the decrypted round result. Both attestations
// must bind to the exact winner and collision handles of the processed
// round; the handles are cleared on success, so only one finalize per round
// is honored. A collision refreshes the action timestamp and keeps the round
// open for resubmission. A real winner makes the game terminal, schedules
// the board for decryption and settles the stake.
func (e *Engine) FinalizeGameState(g *Game, winnerAtt, collisionAtt fhe.Attestation, now time.Time) error {
	if g.Terminal() {
		return ErrGameTerminal
	}
	if !g.ResultPending() {
		return ErrNoPendingResult
	}
	if err := winnerAtt.Verify(e.attKey, g.EncryptedWinner); err != nil {
		return fmt.Errorf("%w: winner: %v", ErrBadProof, err)
	}
	if err := collisionAtt.Verify(e.attKey, g.EncryptedCollision); err != nil {
		return fmt.Errorf("%w: collision: %v", ErrBadProof, err)
	}

	g.EncryptedWinner = fhe.Handle{}
	g.EncryptedCollision = fhe.Handle{}
	g.LastActionAt = now

	if collisionAtt.Value != 0 {
		e.events.emit(EventCollision, g.ID, nil)
		return nil
	}

	w := Winner(winnerAtt.Value)
	if w == WinnerNone {
		e.events.emit(EventGameUpdated, g.ID, nil)
		return nil
	}

	g.ClearWinner = w
	if err := e.fhe.AllowDecryption(g.Board.Handles()...); err != nil {
		return fmt.Errorf("marking board decryptable: %w", err)
	}
	if err := e.distributePrizes(g, w); err != nil {
		return err
	}
	e.events.emit(EventGameUpdated, g.ID, map[string]string{"winner": w.String()})
	return nil
}

// RevealBoard writes the cleartext board once the game is terminal. Each
// attestation must bind to the corresponding cell handle in row-major order.
func (e *Engine) RevealBoard(g *Game, atts []fhe.Attestation) error {
	if !g.Terminal() {
		return ErrNotTerminal
	}
	handles := g.Board.Handles()
	if len(atts) != len(handles) {
		return fmt.Errorf("%w: expected %d cell proofs, got %d", ErrBadProof, len(handles), len(atts))
	}
	for i, att := range atts {
		if err := att.Verify(e.attKey, handles[i]); err != nil {
			return fmt.Errorf("%w: cell %d: %v", ErrBadProof, i, err)
		}
	}
	for i, att := range atts {
		g.ClearBoard[i/board.Size][i%board.Size] = att.Value
	}
	g.Revealed = true
	e.events.emit(EventBoardRevealed, g.ID, nil)
	return nil
}
