package fhe

// Enum values shared between the engine and its callers. The encrypted
// counterparts live in a Constants pool created once per engine.
const (
	CellEmpty byte = 0
	CellX     byte = 1
	CellO     byte = 2

	WinnerNone    byte = 0
	WinnerPlayerA byte = 1
	WinnerPlayerB byte = 2
	WinnerDraw    byte = 3
)

// Constants is the pool of encrypted enum constants used by the board
// circuits. It is created once and injected into engine construction instead
// of living in package-level mutable state, so tests can build fixtures with
// their own pool.
type Constants struct {
	True  Handle
	False Handle

	Empty Handle
	MarkX Handle
	MarkO Handle

	None    Handle
	PlayerA Handle
	PlayerB Handle
	Draw    Handle

	// Coords holds encryptions of the coordinate values 0..3, used to
	// evaluate encrypted coordinates against every board slot.
	Coords [4]Handle
}

// NewConstants encrypts the constant pool on the given engine.
func NewConstants(e *Engine) *Constants {
	c := &Constants{
		True:    e.EncryptBool(true),
		False:   e.EncryptBool(false),
		Empty:   e.Encrypt(CellEmpty),
		MarkX:   e.Encrypt(CellX),
		MarkO:   e.Encrypt(CellO),
		None:    e.Encrypt(WinnerNone),
		PlayerA: e.Encrypt(WinnerPlayerA),
		PlayerB: e.Encrypt(WinnerPlayerB),
		Draw:    e.Encrypt(WinnerDraw),
	}
	for i := range c.Coords {
		c.Coords[i] = e.Encrypt(byte(i))
	}
	return c
}
