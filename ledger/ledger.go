package ledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/sapph1re/blindboard/fhe"
	"github.com/sapph1re/blindboard/protocol"
)

// TxStatus is the lifecycle state of a submitted transaction.
type TxStatus string

const (
	TxPending  TxStatus = "pending"
	TxSuccess  TxStatus = "success"
	TxReverted TxStatus = "reverted"
	TxNotFound TxStatus = "notFound"
)

// Action names for state-changing calls.
const (
	ActionStartGame         = "start_game"
	ActionJoinGame          = "join_game"
	ActionSubmitMove        = "submit_move"
	ActionFinalizeMove      = "finalize_move"
	ActionFinalizeGameState = "finalize_game_state"
	ActionRevealBoard       = "reveal_board"
	ActionCancelGame        = "cancel_game"
	ActionClaimTimeout      = "claim_timeout"
)

var (
	ErrUnknownAction = errors.New("ledger: unknown action")
	ErrBadArgs       = errors.New("ledger: wrong argument type for action")
	ErrUnknownGame   = errors.New("ledger: unknown game")
)

// Receipt is the observable state of a transaction.
type Receipt struct {
	TxID   string   `json:"tx_id"`
	Action string   `json:"action"`
	Status TxStatus `json:"status"`
	// Reason carries the revert reason for reverted transactions.
	Reason string `json:"reason,omitempty"`
	// Result carries action output, e.g. the game id of start_game.
	Result string `json:"result,omitempty"`
}

// Argument payloads for Call.
type (
	StartGameArgs struct {
		Creator     string
		Stake       uint64
		MoveTimeout int64 // seconds
	}
	JoinGameArgs struct {
		GameID string
		Joiner string
		Stake  uint64
	}
	SubmitMoveArgs struct {
		GameID string
		Player string
		X, Y   fhe.Handle
	}
	FinalizeMoveArgs struct {
		GameID string
		Player string
		Att    fhe.Attestation
	}
	FinalizeGameStateArgs struct {
		GameID       string
		WinnerAtt    fhe.Attestation
		CollisionAtt fhe.Attestation
	}
	RevealBoardArgs struct {
		GameID string
		Atts   []fhe.Attestation
	}
	CancelGameArgs struct {
		GameID string
		Caller string
	}
	ClaimTimeoutArgs struct {
		GameID string
		Caller string
	}
)

// FaultMode injects a transport failure for the next call of an action.
// Used by tests to exercise the orchestrator's recovery paths.
type FaultMode string

const (
	// FaultDrop makes the transaction disappear: it is never applied and
	// Status reports notFound.
	FaultDrop FaultMode = "drop"
	// FaultRevert reverts the transaction without applying it.
	FaultRevert FaultMode = "revert"
	// FaultHold applies the transaction but keeps its status pending until
	// ReleaseHeld is called.
	FaultHold FaultMode = "hold"
)

// Ledger is the authoritative registry of games, moves, escrow accounts and
// transactions. All state-changing calls are serialized behind one mutex.
type Ledger struct {
	mu     sync.RWMutex
	engine *protocol.Engine
	clock  clock.Clock

	games map[string]*protocol.Game
	moves map[string]*protocol.MoveSet
	txs   map[string]*Receipt

	balances map[string]uint64
	escrowed uint64

	chain *Chain
	subs  []chan protocol.Event

	faults map[string]FaultMode
	held   []string
}

// New creates a ledger around a protocol engine factory. The factory
// receives the ledger's bank and event emitter, closing the loop between
// settlement and escrow accounts.
func New(c clock.Clock, build func(protocol.Bank, protocol.Emitter) *protocol.Engine) *Ledger {
	l := &Ledger{
		clock:    c,
		games:    make(map[string]*protocol.Game),
		moves:    make(map[string]*protocol.MoveSet),
		txs:      make(map[string]*Receipt),
		balances: make(map[string]uint64),
		chain:    NewChain(),
		faults:   make(map[string]FaultMode),
	}
	l.engine = build(&bank{l: l}, l.publish)
	return l
}

// bank adapts ledger accounts to the protocol's settlement interface.
// Escrowed funds are tracked separately so stake conservation is auditable.
type bank struct{ l *Ledger }

func (b *bank) Escrow(player string, amount uint64) error {
	if b.l.balances[player] < amount {
		return fmt.Errorf("insufficient balance for %s", player)
	}
	b.l.balances[player] -= amount
	b.l.escrowed += amount
	return nil
}

func (b *bank) Release(player string, amount uint64) error {
	if b.l.escrowed < amount {
		return fmt.Errorf("release of %d exceeds escrow %d", amount, b.l.escrowed)
	}
	b.l.escrowed -= amount
	b.l.balances[player] += amount
	return nil
}

// Deposit credits a player's spendable balance.
func (l *Ledger) Deposit(player string, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[player] += amount
}

// Balance returns a player's spendable balance.
func (l *Ledger) Balance(player string) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[player]
}

// Escrowed returns the total funds currently held in game pots.
func (l *Ledger) Escrowed() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.escrowed
}

// Chain exposes the audit log.
func (l *Ledger) Chain() *Chain { return l.chain }

// Subscribe returns a buffered event channel. Slow consumers lose events
// rather than blocking the ledger.
func (l *Ledger) Subscribe() <-chan protocol.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch := make(chan protocol.Event, 64)
	l.subs = append(l.subs, ch)
	return ch
}

func (l *Ledger) publish(ev protocol.Event) {
	for _, ch := range l.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// FailNext arms a one-shot fault for the next call of the given action.
func (l *Ledger) FailNext(action string, mode FaultMode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.faults[action] = mode
}

// ReleaseHeld flips all held transactions to success.
func (l *Ledger) ReleaseHeld() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range l.held {
		if rc, ok := l.txs[id]; ok && rc.Status == TxPending {
			rc.Status = TxSuccess
		}
	}
	l.held = nil
}

// Call submits a state-changing action and returns its transaction id.
// The call itself only fails on malformed input; protocol rejections revert
// the transaction and are visible through Status.
func (l *Ledger) Call(action string, args any) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fault := l.faults[action]
	delete(l.faults, action)
	if fault == FaultDrop {
		// the transaction vanishes in transit; callers observe notFound
		return uuid.NewString(), nil
	}

	txID := uuid.NewString()
	rc := &Receipt{TxID: txID, Action: action, Status: TxPending}
	l.txs[txID] = rc

	if fault == FaultRevert {
		rc.Status = TxReverted
		rc.Reason = "injected revert"
		return txID, nil
	}

	result, gameID, actor, err := l.apply(action, args)
	if err != nil {
		if errors.Is(err, ErrUnknownAction) || errors.Is(err, ErrBadArgs) {
			delete(l.txs, txID)
			return "", err
		}
		rc.Status = TxReverted
		rc.Reason = err.Error()
		return txID, nil
	}

	rc.Result = result
	l.chain.append(action, gameID, actor, txID, l.clock.Now())
	if fault == FaultHold {
		l.held = append(l.held, txID)
		return txID, nil
	}
	rc.Status = TxSuccess
	return txID, nil
}

// Status reports the lifecycle state of a transaction.
func (l *Ledger) Status(txID string) Receipt {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if rc, ok := l.txs[txID]; ok {
		return *rc
	}
	return Receipt{TxID: txID, Status: TxNotFound}
}

// apply executes an action under l.mu. It returns the action result, the
// game id and acting player for the audit chain.
func (l *Ledger) apply(action string, args any) (result, gameID, actor string, err error) {
	now := l.clock.Now()
	switch action {
	case ActionStartGame:
		a, ok := args.(StartGameArgs)
		if !ok {
			return "", "", "", fmt.Errorf("%w: %s", ErrBadArgs, action)
		}
		g, err := l.engine.StartGame(a.Creator, a.Stake, secondsToDuration(a.MoveTimeout), now)
		if err != nil {
			return "", "", "", err
		}
		l.games[g.ID] = g
		l.moves[g.ID] = &protocol.MoveSet{}
		return g.ID, g.ID, a.Creator, nil

	case ActionJoinGame:
		a, ok := args.(JoinGameArgs)
		if !ok {
			return "", "", "", fmt.Errorf("%w: %s", ErrBadArgs, action)
		}
		g, ok := l.games[a.GameID]
		if !ok {
			return "", "", "", fmt.Errorf("%w: %s", ErrUnknownGame, a.GameID)
		}
		return "", a.GameID, a.Joiner, l.engine.JoinGame(g, a.Joiner, a.Stake, now)

	case ActionSubmitMove:
		a, ok := args.(SubmitMoveArgs)
		if !ok {
			return "", "", "", fmt.Errorf("%w: %s", ErrBadArgs, action)
		}
		g, ms, err := l.gameAndMoves(a.GameID)
		if err != nil {
			return "", "", "", err
		}
		return "", a.GameID, a.Player, l.engine.SubmitMove(g, ms, a.Player, a.X, a.Y)

	case ActionFinalizeMove:
		a, ok := args.(FinalizeMoveArgs)
		if !ok {
			return "", "", "", fmt.Errorf("%w: %s", ErrBadArgs, action)
		}
		g, ms, err := l.gameAndMoves(a.GameID)
		if err != nil {
			return "", "", "", err
		}
		return "", a.GameID, a.Player, l.engine.FinalizeMove(g, ms, a.Player, a.Att)

	case ActionFinalizeGameState:
		a, ok := args.(FinalizeGameStateArgs)
		if !ok {
			return "", "", "", fmt.Errorf("%w: %s", ErrBadArgs, action)
		}
		g, _, err := l.gameAndMoves(a.GameID)
		if err != nil {
			return "", "", "", err
		}
		return "", a.GameID, "", l.engine.FinalizeGameState(g, a.WinnerAtt, a.CollisionAtt, now)

	case ActionRevealBoard:
		a, ok := args.(RevealBoardArgs)
		if !ok {
			return "", "", "", fmt.Errorf("%w: %s", ErrBadArgs, action)
		}
		g, _, err := l.gameAndMoves(a.GameID)
		if err != nil {
			return "", "", "", err
		}
		return "", a.GameID, "", l.engine.RevealBoard(g, a.Atts)

	case ActionCancelGame:
		a, ok := args.(CancelGameArgs)
		if !ok {
			return "", "", "", fmt.Errorf("%w: %s", ErrBadArgs, action)
		}
		g, _, err := l.gameAndMoves(a.GameID)
		if err != nil {
			return "", "", "", err
		}
		return "", a.GameID, a.Caller, l.engine.CancelGame(g, a.Caller, now)

	case ActionClaimTimeout:
		a, ok := args.(ClaimTimeoutArgs)
		if !ok {
			return "", "", "", fmt.Errorf("%w: %s", ErrBadArgs, action)
		}
		g, ms, err := l.gameAndMoves(a.GameID)
		if err != nil {
			return "", "", "", err
		}
		return "", a.GameID, a.Caller, l.engine.ClaimTimeout(g, ms, now)

	default:
		return "", "", "", fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
}

func (l *Ledger) gameAndMoves(id string) (*protocol.Game, *protocol.MoveSet, error) {
	g, ok := l.games[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownGame, id)
	}
	return g, l.moves[id], nil
}
