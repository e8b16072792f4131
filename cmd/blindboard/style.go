package main

import (
	"strings"

	"github.com/pterm/pterm"

	"github.com/sapph1re/blindboard/domain/board"
	"github.com/sapph1re/blindboard/fhe"
	"github.com/sapph1re/blindboard/ledger"
	"github.com/sapph1re/blindboard/protocol"
)

func cellString(v byte) string {
	switch v {
	case fhe.CellX:
		return pterm.LightCyan("X")
	case fhe.CellO:
		return pterm.LightMagenta("O")
	default:
		return pterm.Gray(".")
	}
}

func boardPanel(g protocol.Game) pterm.Panel {
	pbox := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)
	rows := ""
	for y := 0; y < board.Size; y++ {
		line := make([]string, 0, board.Size)
		for x := 0; x < board.Size; x++ {
			line = append(line, cellString(g.ClearBoard[y][x]))
		}
		rows += strings.Join(line, " ") + "\n"
	}
	title := pterm.LightYellow("|BOARD|")
	if !g.Revealed {
		title = pterm.LightRed("|BOARD (still encrypted)|")
	}
	return pterm.Panel{Data: pbox.WithTitle(title).WithTitleTopCenter().Sprint(rows)}
}

func resultPanel(g protocol.Game, nameA, nameB string, led *ledger.Ledger) pterm.Panel {
	pbox := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)
	var outcome string
	switch g.ClearWinner {
	case protocol.WinnerPlayerA:
		outcome = pterm.Sprintfln("%s won the pot", pterm.LightCyan(nameA))
	case protocol.WinnerPlayerB:
		outcome = pterm.Sprintfln("%s won the pot", pterm.LightMagenta(nameB))
	case protocol.WinnerDraw:
		outcome = pterm.Sprintfln("Draw, the pot is split")
	case protocol.WinnerCancelled:
		outcome = pterm.Sprintfln("Game cancelled, stake refunded")
	default:
		outcome = pterm.Sprintfln("Game still in progress")
	}
	outcome += pterm.Sprintfln("%s balance: %d", nameA, led.Balance(nameA))
	outcome += pterm.Sprintfln("%s balance: %d", nameB, led.Balance(nameB))
	return pterm.Panel{Data: pbox.WithTitle(pterm.LightGreen("|RESULT|")).WithTitleTopCenter().Sprint(outcome)}
}

func printOutcome(g protocol.Game, nameA, nameB string, led *ledger.Ledger) {
	pterm.DefaultPanel.WithPanels([][]pterm.Panel{
		{boardPanel(g)},
		{resultPanel(g, nameA, nameB, led)},
	}).Render()
}
