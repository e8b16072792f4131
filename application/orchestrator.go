package application

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sapph1re/blindboard/fhe"
	"github.com/sapph1re/blindboard/ledger"
	"github.com/sapph1re/blindboard/oracle"
	"github.com/sapph1re/blindboard/protocol"
)

// LedgerAPI is the slice of the ledger the orchestrator needs.
type LedgerAPI interface {
	Call(action string, args any) (string, error)
	Status(txID string) ledger.Receipt
	GetGame(id string) (protocol.Game, bool)
	GetMoves(id string) (protocol.MoveSet, bool)
	CanSubmitMove(id, player string) bool
}

// Step is what a single Tick decided to do.
type Step string

const (
	// StepWait means there is nothing for this participant to do yet.
	StepWait Step = "wait"
	// StepWaitTx means a previously submitted transaction is still pending.
	StepWaitTx Step = "waitTx"
	// StepSubmitMove means a fresh move was submitted.
	StepSubmitMove Step = "submitMove"
	// StepFinalizeMove means the pending move's validity was fed back.
	StepFinalizeMove Step = "finalizeMove"
	// StepFinalizeResult means a decrypted round result was fed back.
	StepFinalizeResult Step = "finalizeResult"
	// StepReveal means the terminal board reveal was submitted.
	StepReveal Step = "revealBoard"
	// StepClaimTimeout means a stalled game's timeout was claimed.
	StepClaimTimeout Step = "claimTimeout"
	// StepDone means the game is terminal and fully revealed.
	StepDone Step = "done"
)

// markerActions lists every action the orchestrator tracks with a TxMarker,
// in the order markers are resolved on each tick.
var markerActions = []string{
	ledger.ActionSubmitMove,
	ledger.ActionFinalizeMove,
	ledger.ActionFinalizeGameState,
	ledger.ActionRevealBoard,
	ledger.ActionClaimTimeout,
}

// Options tunes an Orchestrator. Zero values fall back to sane defaults.
type Options struct {
	Backoff   Backoff
	Clock     clock.Clock
	Logger    *slog.Logger
	Rng       *rand.Rand
	CacheSize int
}

// Orchestrator drives one participant through a game. It holds no
// authoritative state of its own: every tick re-derives what to do from the
// ledger and the durable local store, so a crashed process resumes cleanly.
type Orchestrator struct {
	player string
	ledger LedgerAPI
	oracle oracle.Client
	engine *fhe.Engine
	store  *Store
	policy MovePolicy

	clock   clock.Clock
	logger  *slog.Logger
	backoff Backoff
	rng     *rand.Rand

	// atts caches decrypted attestations by handle id so a retried tick
	// does not ask the oracle for the same handle twice.
	atts *lru.Cache[string, fhe.Attestation]
}

// New builds an orchestrator for the given participant.
func New(player string, l LedgerAPI, oc oracle.Client, engine *fhe.Engine, store *Store, policy MovePolicy, opts Options) (*Orchestrator, error) {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Rng == nil {
		opts.Rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Backoff == (Backoff{}) {
		opts.Backoff = DefaultBackoff()
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 128
	}
	cache, err := lru.New[string, fhe.Attestation](opts.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		player:  player,
		ledger:  l,
		oracle:  oc,
		engine:  engine,
		store:   store,
		policy:  policy,
		clock:   opts.Clock,
		logger:  opts.Logger.With("player", player),
		backoff: opts.Backoff,
		rng:     opts.Rng,
		atts:    cache,
	}, nil
}

// Tick advances the participant by at most one protocol step. It is safe to
// call Tick as often as desired; repeated calls while a transaction is in
// flight just report StepWaitTx.
func (o *Orchestrator) Tick(ctx context.Context, gameID string) (Step, error) {
	if err := ctx.Err(); err != nil {
		return StepWait, err
	}
	inFlight, err := o.resolveMarkers(gameID)
	if err != nil {
		return StepWait, err
	}
	if inFlight {
		return StepWaitTx, nil
	}

	g, ok := o.ledger.GetGame(gameID)
	if !ok {
		return StepWait, fmt.Errorf("game %s not found on ledger", gameID)
	}

	if g.Terminal() {
		if g.Revealed || g.ClearWinner == protocol.WinnerCancelled {
			return StepDone, nil
		}
		return o.revealBoard(ctx, &g)
	}
	if g.ResultPending() {
		return o.finalizeResult(ctx, &g)
	}

	ms, _ := o.ledger.GetMoves(gameID)
	if mv := ms.Of(&g, o.player); mv != nil && mv.IsSubmitted && !mv.IsMade {
		return o.finalizeMove(ctx, &g, mv)
	}
	if o.ledger.CanSubmitMove(gameID, o.player) {
		return o.submitMove(ctx, &g)
	}
	if g.PlayerB != "" && o.clock.Now().After(g.LastActionAt.Add(g.MoveTimeout)) {
		return o.claimTimeout(&g)
	}
	return StepWait, nil
}

// claimTimeout settles a game whose opponent went silent past the timeout.
func (o *Orchestrator) claimTimeout(g *protocol.Game) (Step, error) {
	o.logger.Info("claiming timeout", "game", g.ID)
	err := o.invoke(TxMarker{GameID: g.ID, Action: ledger.ActionClaimTimeout}, ledger.ClaimTimeoutArgs{
		GameID: g.ID,
		Caller: o.player,
	})
	if err != nil {
		return StepWait, err
	}
	return StepClaimTimeout, nil
}

// Run ticks the game until it is done. Transient errors are logged and
// retried on the next poll.
func (o *Orchestrator) Run(ctx context.Context, gameID string, poll time.Duration) error {
	ticker := o.clock.Ticker(poll)
	defer ticker.Stop()
	for {
		step, err := o.Tick(ctx, gameID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.logger.Warn("tick failed", "game", gameID, "error", err)
		} else if step == StepDone {
			return nil
		} else if step != StepWait && step != StepWaitTx {
			o.logger.Info("step taken", "game", gameID, "step", string(step))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// resolveMarkers reconciles every durable transaction marker for the game
// against the ledger. It reports whether a transaction is still pending.
func (o *Orchestrator) resolveMarkers(gameID string) (bool, error) {
	for _, action := range markerActions {
		m, found, err := o.store.GetMarker(gameID, action)
		if err != nil {
			return false, err
		}
		if !found {
			continue
		}
		rc := o.ledger.Status(m.TxID)
		switch rc.Status {
		case ledger.TxPending:
			return true, nil
		case ledger.TxSuccess:
			if m.HandleID != "" {
				if err := o.store.MarkProcessed(gameID, m.HandleID); err != nil {
					return false, err
				}
			}
			if err := o.store.ClearMarker(gameID, action); err != nil {
				return false, err
			}
		case ledger.TxReverted, ledger.TxNotFound:
			o.logger.Warn("transaction did not land", "game", gameID, "action", action, "tx", m.TxID, "status", string(rc.Status), "reason", rc.Reason)
			if err := o.store.ClearMarker(gameID, action); err != nil {
				return false, err
			}
		}
	}
	return false, nil
}

// invoke submits an action and persists its marker, so the next tick polls
// the transaction instead of submitting again.
func (o *Orchestrator) invoke(m TxMarker, args any) error {
	txID, err := o.ledger.Call(m.Action, args)
	if err != nil {
		return err
	}
	m.TxID = txID
	return o.store.SetMarker(m)
}

func (o *Orchestrator) submitMove(ctx context.Context, g *protocol.Game) (Step, error) {
	attempts, err := o.store.Attempts(g.ID)
	if err != nil {
		return StepWait, err
	}
	forbidden := make(map[[2]byte]bool, len(attempts))
	for _, am := range attempts {
		forbidden[[2]byte{am.X, am.Y}] = true
	}
	x, y, err := o.policy.Propose(ctx, g, forbidden)
	if err != nil {
		return StepWait, err
	}
	// The attempt record lands before the network call. If the process dies
	// in between, the cell is burned rather than ever submitted twice.
	if err := o.store.RecordAttempt(AttemptedMove{GameID: g.ID, X: x, Y: y, Round: len(attempts)}); err != nil {
		return StepWait, err
	}
	o.logger.Info("submitting move", "game", g.ID, "x", x, "y", y)
	err = o.invoke(TxMarker{GameID: g.ID, Action: ledger.ActionSubmitMove}, ledger.SubmitMoveArgs{
		GameID: g.ID,
		Player: o.player,
		X:      o.engine.Encrypt(x),
		Y:      o.engine.Encrypt(y),
	})
	if err != nil {
		return StepWait, err
	}
	return StepSubmitMove, nil
}

func (o *Orchestrator) finalizeMove(ctx context.Context, g *protocol.Game, mv *protocol.Move) (Step, error) {
	atts, err := o.decrypt(ctx, []fhe.Handle{mv.EncryptedIsInvalid})
	if err != nil {
		return StepWait, err
	}
	err = o.invoke(TxMarker{GameID: g.ID, Action: ledger.ActionFinalizeMove}, ledger.FinalizeMoveArgs{
		GameID: g.ID,
		Player: o.player,
		Att:    atts[0],
	})
	if err != nil {
		return StepWait, err
	}
	return StepFinalizeMove, nil
}

func (o *Orchestrator) finalizeResult(ctx context.Context, g *protocol.Game) (Step, error) {
	done, err := o.store.IsProcessed(g.ID, g.EncryptedWinner.ID)
	if err != nil {
		return StepWait, err
	}
	if done {
		// already consumed by this participant; the ledger view is stale
		return StepWait, nil
	}
	atts, err := o.decrypt(ctx, []fhe.Handle{g.EncryptedWinner, g.EncryptedCollision})
	if err != nil {
		return StepWait, err
	}
	err = o.invoke(TxMarker{GameID: g.ID, Action: ledger.ActionFinalizeGameState, HandleID: g.EncryptedWinner.ID}, ledger.FinalizeGameStateArgs{
		GameID:       g.ID,
		WinnerAtt:    atts[0],
		CollisionAtt: atts[1],
	})
	if err != nil {
		return StepWait, err
	}
	return StepFinalizeResult, nil
}

func (o *Orchestrator) revealBoard(ctx context.Context, g *protocol.Game) (Step, error) {
	atts, err := o.decrypt(ctx, g.Board.Handles())
	if err != nil {
		return StepWait, err
	}
	err = o.invoke(TxMarker{GameID: g.ID, Action: ledger.ActionRevealBoard}, ledger.RevealBoardArgs{
		GameID: g.ID,
		Atts:   atts,
	})
	if err != nil {
		return StepWait, err
	}
	return StepReveal, nil
}

// decrypt fetches attestations for the handles, serving repeats from the
// local cache and retrying transient oracle failures with backoff.
func (o *Orchestrator) decrypt(ctx context.Context, handles []fhe.Handle) ([]fhe.Attestation, error) {
	out := make([]fhe.Attestation, len(handles))
	var missing []fhe.Handle
	var at []int
	for i, h := range handles {
		if att, ok := o.atts.Get(h.ID); ok {
			out[i] = att
			continue
		}
		missing = append(missing, h)
		at = append(at, i)
	}
	if len(missing) == 0 {
		return out, nil
	}
	var res *oracle.Result
	err := withRetry(ctx, o.clock, o.backoff, o.rng, func() error {
		r, err := o.oracle.Decrypt(ctx, missing)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("decrypting %d handles: %w", len(missing), err)
	}
	if len(res.Attestations) != len(missing) {
		return nil, fmt.Errorf("oracle returned %d attestations for %d handles", len(res.Attestations), len(missing))
	}
	for j, att := range res.Attestations {
		out[at[j]] = att
		o.atts.Add(missing[j].ID, att)
	}
	return out, nil
}
