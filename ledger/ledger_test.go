package ledger

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sapph1re/blindboard/domain/board"
	"github.com/sapph1re/blindboard/fhe"
	"github.com/sapph1re/blindboard/protocol"
)

type harness struct {
	fhe   *fhe.Engine
	l     *Ledger
	clock *clock.Mock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	e, err := fhe.NewEngine()
	require.NoError(t, err)
	consts := fhe.NewConstants(e)
	mc := clock.NewMock()
	l := New(mc, func(b protocol.Bank, emit protocol.Emitter) *protocol.Engine {
		return protocol.NewEngine(e, board.NewEngine(e, consts), consts, e.AttestationKey(), b, emit)
	})
	return &harness{fhe: e, l: l, clock: mc}
}

func (h *harness) mustCall(t *testing.T, action string, args any) Receipt {
	t.Helper()
	txID, err := h.l.Call(action, args)
	require.NoError(t, err)
	rc := h.l.Status(txID)
	require.Equal(t, TxSuccess, rc.Status, "action %s reverted: %s", action, rc.Reason)
	return rc
}

func (h *harness) startJoined(t *testing.T, stake uint64) string {
	t.Helper()
	h.l.Deposit("alice", 100)
	h.l.Deposit("bob", 100)
	rc := h.mustCall(t, ActionStartGame, StartGameArgs{Creator: "alice", Stake: stake, MoveTimeout: 3600})
	h.mustCall(t, ActionJoinGame, JoinGameArgs{GameID: rc.Result, Joiner: "bob", Stake: stake})
	return rc.Result
}

func (h *harness) attFor(t *testing.T, hd fhe.Handle) fhe.Attestation {
	t.Helper()
	_, att, err := h.fhe.Reveal(hd)
	require.NoError(t, err)
	return att
}

func TestStartGameAndViews(t *testing.T) {
	h := newHarness(t)
	h.l.Deposit("alice", 50)

	rc := h.mustCall(t, ActionStartGame, StartGameArgs{Creator: "alice", Stake: 20, MoveTimeout: 3600})
	require.NotEmpty(t, rc.Result)

	g, ok := h.l.GetGame(rc.Result)
	require.True(t, ok)
	assert.Equal(t, "alice", g.PlayerA)
	assert.True(t, g.Open())
	assert.Equal(t, uint64(30), h.l.Balance("alice"))
	assert.Equal(t, uint64(20), h.l.Escrowed())

	open := h.l.GetOpenGames()
	require.Len(t, open, 1)
	assert.Equal(t, rc.Result, open[0].ID)

	mine := h.l.GetGamesByPlayer("alice")
	require.Len(t, mine, 1)
	assert.Empty(t, h.l.GetGamesByPlayer("bob"))
}

func TestCallRevertsOnProtocolRejection(t *testing.T) {
	h := newHarness(t)
	h.l.Deposit("alice", 50)
	h.l.Deposit("bob", 50)
	rc := h.mustCall(t, ActionStartGame, StartGameArgs{Creator: "alice", Stake: 20, MoveTimeout: 3600})

	before := h.l.Chain().Len()
	txID, err := h.l.Call(ActionJoinGame, JoinGameArgs{GameID: rc.Result, Joiner: "bob", Stake: 5})
	require.NoError(t, err)
	st := h.l.Status(txID)
	assert.Equal(t, TxReverted, st.Status)
	assert.NotEmpty(t, st.Reason)
	assert.Equal(t, before, h.l.Chain().Len(), "reverted call must not reach the audit chain")

	_, err = h.l.Call("no_such_action", nil)
	assert.ErrorIs(t, err, ErrUnknownAction)
	_, err = h.l.Call(ActionJoinGame, "not a struct")
	assert.ErrorIs(t, err, ErrBadArgs)
}

func TestChainAuditsConfirmedActions(t *testing.T) {
	h := newHarness(t)
	id := h.startJoined(t, 10)

	assert.Equal(t, 3, h.l.Chain().Len()) // genesis + start + join
	require.NoError(t, h.l.Chain().Verify())
	assert.Equal(t, ActionJoinGame, h.l.Chain().Latest().Action)
	assert.Equal(t, id, h.l.Chain().Latest().GameID)
}

func TestFaultInjection(t *testing.T) {
	h := newHarness(t)
	h.l.Deposit("alice", 100)

	h.l.FailNext(ActionStartGame, FaultDrop)
	txID, err := h.l.Call(ActionStartGame, StartGameArgs{Creator: "alice", Stake: 0, MoveTimeout: 60})
	require.NoError(t, err)
	assert.Equal(t, TxNotFound, h.l.Status(txID).Status)
	assert.Empty(t, h.l.GetOpenGames(), "dropped call must not be applied")

	h.l.FailNext(ActionStartGame, FaultRevert)
	txID, err = h.l.Call(ActionStartGame, StartGameArgs{Creator: "alice", Stake: 0, MoveTimeout: 60})
	require.NoError(t, err)
	assert.Equal(t, TxReverted, h.l.Status(txID).Status)

	h.l.FailNext(ActionStartGame, FaultHold)
	txID, err = h.l.Call(ActionStartGame, StartGameArgs{Creator: "alice", Stake: 0, MoveTimeout: 60})
	require.NoError(t, err)
	assert.Equal(t, TxPending, h.l.Status(txID).Status)
	require.Len(t, h.l.GetOpenGames(), 1, "held call is applied, only confirmation lags")
	h.l.ReleaseHeld()
	assert.Equal(t, TxSuccess, h.l.Status(txID).Status)
}

func TestCanSubmitMove(t *testing.T) {
	h := newHarness(t)
	id := h.startJoined(t, 0)

	assert.True(t, h.l.CanSubmitMove(id, "alice"))
	assert.True(t, h.l.CanSubmitMove(id, "bob"))
	assert.False(t, h.l.CanSubmitMove(id, "carol"))
	assert.False(t, h.l.CanSubmitMove("missing", "alice"))

	h.mustCall(t, ActionSubmitMove, SubmitMoveArgs{
		GameID: id, Player: "alice", X: h.fhe.Encrypt(0), Y: h.fhe.Encrypt(0),
	})
	assert.False(t, h.l.CanSubmitMove(id, "alice"), "submitted slot is taken")
	assert.True(t, h.l.CanSubmitMove(id, "bob"))
}

func TestFullRoundThroughLedger(t *testing.T) {
	h := newHarness(t)
	id := h.startJoined(t, 10)
	events := h.l.Subscribe()

	h.mustCall(t, ActionSubmitMove, SubmitMoveArgs{
		GameID: id, Player: "alice", X: h.fhe.Encrypt(0), Y: h.fhe.Encrypt(0),
	})
	ms, ok := h.l.GetMoves(id)
	require.True(t, ok)
	require.True(t, ms.A.IsSubmitted)
	h.mustCall(t, ActionFinalizeMove, FinalizeMoveArgs{
		GameID: id, Player: "alice", Att: h.attFor(t, ms.A.EncryptedIsInvalid),
	})

	h.mustCall(t, ActionSubmitMove, SubmitMoveArgs{
		GameID: id, Player: "bob", X: h.fhe.Encrypt(1), Y: h.fhe.Encrypt(0),
	})
	ms, _ = h.l.GetMoves(id)
	h.mustCall(t, ActionFinalizeMove, FinalizeMoveArgs{
		GameID: id, Player: "bob", Att: h.attFor(t, ms.B.EncryptedIsInvalid),
	})

	g, _ := h.l.GetGame(id)
	require.True(t, g.ResultPending())
	h.mustCall(t, ActionFinalizeGameState, FinalizeGameStateArgs{
		GameID:       id,
		WinnerAtt:    h.attFor(t, g.EncryptedWinner),
		CollisionAtt: h.attFor(t, g.EncryptedCollision),
	})

	g, _ = h.l.GetGame(id)
	assert.False(t, g.Terminal())
	assert.False(t, g.ResultPending())
	ms, _ = h.l.GetMoves(id)
	assert.False(t, ms.A.IsSubmitted, "consumed moves are cleared")

	var seen []protocol.EventType
	for len(events) > 0 {
		seen = append(seen, (<-events).Type)
	}
	assert.Contains(t, seen, protocol.EventMovesProcessed)
	assert.Contains(t, seen, protocol.EventGameUpdated)
}

func TestClaimTimeoutThroughLedger(t *testing.T) {
	h := newHarness(t)
	id := h.startJoined(t, 10)

	txID, err := h.l.Call(ActionClaimTimeout, ClaimTimeoutArgs{GameID: id, Caller: "alice"})
	require.NoError(t, err)
	assert.Equal(t, TxReverted, h.l.Status(txID).Status, "timeout not reached yet")

	h.clock.Add(3601 * time.Second) // move past the 3600s timeout
	h.mustCall(t, ActionClaimTimeout, ClaimTimeoutArgs{GameID: id, Caller: "alice"})
	g, _ := h.l.GetGame(id)
	assert.Equal(t, protocol.WinnerDraw, g.ClearWinner)
	assert.Equal(t, uint64(0), h.l.Escrowed())
}
