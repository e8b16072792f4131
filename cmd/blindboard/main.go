package main

import (
	"context"
	"log/slog"
	"math/rand"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"

	"github.com/sapph1re/blindboard/application"
	"github.com/sapph1re/blindboard/domain/board"
	"github.com/sapph1re/blindboard/fhe"
	"github.com/sapph1re/blindboard/ledger"
	"github.com/sapph1re/blindboard/oracle"
	"github.com/sapph1re/blindboard/protocol"
)

const (
	modeDemo = "Watch a demo match"
	modePlay = "Play as the first player"
)

// humanPolicy prompts for coordinates on the terminal.
type humanPolicy struct {
	name string
}

func (p *humanPolicy) Propose(_ context.Context, _ *protocol.Game, forbidden map[[2]byte]bool) (byte, byte, error) {
	for {
		in, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText(p.name + ", enter your move as x,y (0-3)").Show()
		parts := strings.Split(strings.TrimSpace(in), ",")
		if len(parts) != 2 {
			pterm.Error.Println("Use the x,y format, e.g. 1,3")
			continue
		}
		x, errX := strconv.Atoi(strings.TrimSpace(parts[0]))
		y, errY := strconv.Atoi(strings.TrimSpace(parts[1]))
		if errX != nil || errY != nil || x < 0 || x >= board.Size || y < 0 || y >= board.Size {
			pterm.Error.Println("Coordinates must be in 0-3")
			continue
		}
		if forbidden[[2]byte{byte(x), byte(y)}] {
			pterm.Error.Println("You already tried that cell in this game")
			continue
		}
		return byte(x), byte(y), nil
	}
}

func main() {
	handler := pterm.NewSlogHandler(&pterm.DefaultLogger)
	logger := slog.New(handler)

	pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("B", pterm.FgRed.ToStyle()),
		putils.LettersFromStringWithStyle("lind ", pterm.FgDarkGray.ToStyle()),
		putils.LettersFromStringWithStyle("B", pterm.FgRed.ToStyle()),
		putils.LettersFromStringWithStyle("oard", pterm.FgDarkGray.ToStyle()),
	).Render()

	nameA, _ := pterm.DefaultInteractiveTextInput.WithDefaultText("First player name").WithDefaultValue("alice").Show()
	nameB, _ := pterm.DefaultInteractiveTextInput.WithDefaultText("Second player name").WithDefaultValue("bob").Show()
	stakeStr, _ := pterm.DefaultInteractiveTextInput.WithDefaultText("Stake per player").WithDefaultValue("10").Show()
	mode, _ := pterm.DefaultInteractiveSelect.
		WithDefaultText("Select the game mode").
		WithOptions([]string{modeDemo, modePlay}).Show()
	pterm.Println()

	nameA = strings.TrimSpace(nameA)
	nameB = strings.TrimSpace(nameB)
	stake, err := strconv.ParseUint(strings.TrimSpace(stakeStr), 10, 64)
	if err != nil {
		pterm.Error.Printfln("Invalid stake: %s", stakeStr)
		os.Exit(1)
	}

	engine, err := fhe.NewEngine()
	if err != nil {
		logger.Error("failed to initialize the confidential engine", "error", err.Error())
		panic(err)
	}
	consts := fhe.NewConstants(engine)
	led := ledger.New(clock.New(), func(b protocol.Bank, emit protocol.Emitter) *protocol.Engine {
		return protocol.NewEngine(engine, board.NewEngine(engine, consts), consts, engine.AttestationKey(), b, emit)
	})

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		logger.Error("failed to listen for the oracle", "error", err.Error())
		panic(err)
	}
	srv, err := oracle.NewServer(oracle.NewService(engine), l.Addr().String())
	if err != nil {
		logger.Error("failed to start the oracle", "error", err.Error())
		panic(err)
	}
	srv.Start(l)
	defer srv.Close()
	client, err := oracle.NewHTTPClient(l.Addr().String(), srv.CertPEM())
	if err != nil {
		logger.Error("failed to build the oracle client", "error", err.Error())
		panic(err)
	}
	pterm.Info.Printfln("Decryption oracle listening on %s", l.Addr().String())

	led.Deposit(nameA, stake)
	led.Deposit(nameB, stake)

	txID, err := led.Call(ledger.ActionStartGame, ledger.StartGameArgs{Creator: nameA, Stake: stake, MoveTimeout: 300})
	if err != nil {
		logger.Error("start_game failed", "error", err.Error())
		panic(err)
	}
	rc := led.Status(txID)
	if rc.Status != ledger.TxSuccess {
		pterm.Error.Printfln("start_game reverted: %s", rc.Reason)
		os.Exit(1)
	}
	gameID := rc.Result

	for _, og := range led.GetOpenGames() {
		pterm.Info.Printfln("Open game %s by %s, stake %d", og.ID, og.PlayerA, og.Stake)
	}

	txID, err = led.Call(ledger.ActionJoinGame, ledger.JoinGameArgs{GameID: gameID, Joiner: nameB, Stake: stake})
	if err != nil {
		logger.Error("join_game failed", "error", err.Error())
		panic(err)
	}
	if rc := led.Status(txID); rc.Status != ledger.TxSuccess {
		pterm.Error.Printfln("join_game reverted: %s", rc.Reason)
		os.Exit(1)
	}
	pterm.Info.Printfln("Game %s started, %s vs %s, stake %d each", gameID, nameA, nameB, stake)

	events := led.Subscribe()
	go func() {
		for ev := range events {
			switch ev.Type {
			case protocol.EventMoveMade, protocol.EventCollision, protocol.EventGameUpdated, protocol.EventBoardRevealed:
				logger.Info("ledger event", "type", string(ev.Type), "game", ev.GameID)
			}
		}
	}()

	newOrchestrator := func(name string, policy application.MovePolicy) *application.Orchestrator {
		dir, err := os.MkdirTemp("", "blindboard-"+name+"-*")
		if err != nil {
			panic(err)
		}
		store, err := application.OpenStore(dir)
		if err != nil {
			logger.Error("failed to open the local store", "player", name, "error", err.Error())
			panic(err)
		}
		o, err := application.New(name, led, client, engine, store, policy, application.Options{Logger: logger})
		if err != nil {
			panic(err)
		}
		return o
	}

	randomPolicy := func() application.MovePolicy {
		return &application.RandomPolicy{Rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
	}
	var policyA application.MovePolicy = randomPolicy()
	if mode == modePlay {
		policyA = &humanPolicy{name: nameA}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var spinner *pterm.SpinnerPrinter
	if mode == modeDemo {
		spinner, _ = pterm.DefaultSpinner.Start("Playing the match ...")
	}

	var wg sync.WaitGroup
	for _, p := range []struct {
		name   string
		policy application.MovePolicy
	}{
		{nameA, policyA},
		{nameB, randomPolicy()},
	} {
		o := newOrchestrator(p.name, p.policy)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := o.Run(ctx, gameID, 50*time.Millisecond); err != nil {
				logger.Error("orchestrator stopped", "error", err.Error())
			}
		}()
	}
	wg.Wait()
	if spinner != nil {
		spinner.Success("Match finished")
	}
	pterm.Println()

	g, ok := led.GetGame(gameID)
	if !ok {
		pterm.Error.Println("Game disappeared from the ledger")
		os.Exit(1)
	}
	printOutcome(g, nameA, nameB, led)

	if err := led.Chain().Verify(); err != nil {
		pterm.Error.Printfln("Audit chain verification failed: %v", err)
		os.Exit(1)
	}
	pterm.Success.Printfln("Audit chain verified, %d blocks", led.Chain().Len())
}
