package board

import (
	"github.com/sapph1re/blindboard/fhe"
)

// Size is the board edge length. Win length equals Size: four in a row.
const Size = 4

// Board holds one encrypted handle per cell, indexed [y][x].
type Board [Size][Size]fhe.Handle

// Engine evaluates board circuits on a fhe engine with an injected
// constants pool.
type Engine struct {
	fhe    *fhe.Engine
	consts *fhe.Constants
}

// NewEngine wraps a fhe engine and its constants pool.
func NewEngine(e *fhe.Engine, consts *fhe.Constants) *Engine {
	return &Engine{fhe: e, consts: consts}
}

// NewBoard returns a board of fresh encryptions of the empty cell.
func (en *Engine) NewBoard() Board {
	var b Board
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			b[y][x] = en.fhe.Encrypt(fhe.CellEmpty)
		}
	}
	return b
}

// Handles flattens the board into its 16 cell handles in row-major order,
// the order the reveal step commits to.
func (b Board) Handles() []fhe.Handle {
	out := make([]fhe.Handle, 0, Size*Size)
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			out = append(out, b[y][x])
		}
	}
	return out
}

// circuit threads a sticky error through a chain of fhe operations so the
// evaluation code reads like plain boolean logic.
type circuit struct {
	e   *fhe.Engine
	err error
}

func (c *circuit) eq(a, b fhe.Handle) fhe.Handle {
	if c.err != nil {
		return fhe.Handle{}
	}
	h, err := c.e.Eq(a, b)
	c.err = err
	return h
}

func (c *circuit) and(a, b fhe.Handle) fhe.Handle {
	if c.err != nil {
		return fhe.Handle{}
	}
	h, err := c.e.And(a, b)
	c.err = err
	return h
}

func (c *circuit) or(a, b fhe.Handle) fhe.Handle {
	if c.err != nil {
		return fhe.Handle{}
	}
	h, err := c.e.Or(a, b)
	c.err = err
	return h
}

func (c *circuit) not(a fhe.Handle) fhe.Handle {
	if c.err != nil {
		return fhe.Handle{}
	}
	h, err := c.e.Not(a)
	c.err = err
	return h
}

func (c *circuit) sel(cond, ifTrue, ifFalse fhe.Handle) fhe.Handle {
	if c.err != nil {
		return fhe.Handle{}
	}
	h, err := c.e.Select(cond, ifTrue, ifFalse)
	c.err = err
	return h
}

// axisMatches compares an encrypted coordinate against the constants 0..3,
// yielding one match boolean per axis position.
func (c *circuit) axisMatches(coord fhe.Handle, consts *fhe.Constants) [Size]fhe.Handle {
	var m [Size]fhe.Handle
	for i := 0; i < Size; i++ {
		m[i] = c.eq(coord, consts.Coords[i])
	}
	return m
}

// inRange is the disjunction of the axis matches: an encrypted coordinate is
// in range exactly when it equals one of 0..3.
func (c *circuit) inRange(m [Size]fhe.Handle) fhe.Handle {
	r := m[0]
	for i := 1; i < Size; i++ {
		r = c.or(r, m[i])
	}
	return r
}

// ValidateMove computes, without decrypting anything, whether the encrypted
// coordinates name an empty in-range cell. It returns the encrypted validity
// flag and the encrypted cell-occupied flag (the latter for client-side UX).
func (en *Engine) ValidateMove(b Board, x, y fhe.Handle) (isValid, isOccupied fhe.Handle, err error) {
	c := &circuit{e: en.fhe}
	colMatch := c.axisMatches(x, en.consts)
	rowMatch := c.axisMatches(y, en.consts)
	inX := c.inRange(colMatch)
	inY := c.inRange(rowMatch)

	occupied := en.consts.False
	for yy := 0; yy < Size; yy++ {
		for xx := 0; xx < Size; xx++ {
			hit := c.and(rowMatch[yy], colMatch[xx])
			nonEmpty := c.not(c.eq(b[yy][xx], en.consts.Empty))
			occupied = c.or(occupied, c.and(hit, nonEmpty))
		}
	}

	valid := c.and(c.and(inX, inY), c.not(occupied))
	if c.err != nil {
		return fhe.Handle{}, fhe.Handle{}, c.err
	}
	return valid, occupied, nil
}

// ReadCell obliviously reads the cell named by encrypted coordinates.
// Out-of-range coordinates read as empty.
func (en *Engine) ReadCell(b Board, x, y fhe.Handle) (fhe.Handle, error) {
	c := &circuit{e: en.fhe}
	colMatch := c.axisMatches(x, en.consts)
	rowMatch := c.axisMatches(y, en.consts)

	out := en.consts.Empty
	for yy := 0; yy < Size; yy++ {
		for xx := 0; xx < Size; xx++ {
			hit := c.and(rowMatch[yy], colMatch[xx])
			out = c.sel(hit, b[yy][xx], out)
		}
	}
	if c.err != nil {
		return fhe.Handle{}, c.err
	}
	return out, nil
}

// WriteCell obliviously writes value at the encrypted coordinates, returning
// a new board. Every cell is re-selected so the write leaks nothing about
// which cell changed.
func (en *Engine) WriteCell(b Board, x, y, value fhe.Handle) (Board, error) {
	c := &circuit{e: en.fhe}
	colMatch := c.axisMatches(x, en.consts)
	rowMatch := c.axisMatches(y, en.consts)

	var out Board
	for yy := 0; yy < Size; yy++ {
		for xx := 0; xx < Size; xx++ {
			hit := c.and(rowMatch[yy], colMatch[xx])
			out[yy][xx] = c.sel(hit, value, b[yy][xx])
		}
	}
	if c.err != nil {
		return Board{}, c.err
	}
	return out, nil
}

// SelectBoard returns a board equal to ifTrue when cond holds, ifFalse
// otherwise, selected cell by cell. Used to commit or discard a round's
// writes under an encrypted collision flag.
func (en *Engine) SelectBoard(cond fhe.Handle, ifTrue, ifFalse Board) (Board, error) {
	c := &circuit{e: en.fhe}
	var out Board
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			out[y][x] = c.sel(cond, ifTrue[y][x], ifFalse[y][x])
		}
	}
	if c.err != nil {
		return Board{}, c.err
	}
	return out, nil
}

// lines enumerates every winning line: 4 rows, 4 columns, both diagonals.
func lines() [][Size][2]int {
	var ls [][Size][2]int
	for y := 0; y < Size; y++ {
		var row [Size][2]int
		for x := 0; x < Size; x++ {
			row[x] = [2]int{x, y}
		}
		ls = append(ls, row)
	}
	for x := 0; x < Size; x++ {
		var col [Size][2]int
		for y := 0; y < Size; y++ {
			col[y] = [2]int{x, y}
		}
		ls = append(ls, col)
	}
	var main, anti [Size][2]int
	for i := 0; i < Size; i++ {
		main[i] = [2]int{i, i}
		anti[i] = [2]int{Size - 1 - i, i}
	}
	return append(ls, main, anti)
}

// ComputeWinner evaluates every line in full and returns the encrypted
// winner value: PlayerA or PlayerB on a completed line, Draw on a full board
// without one, None while the game continues. A board where both marks
// complete lines resolves to Draw.
func (en *Engine) ComputeWinner(b Board) (fhe.Handle, error) {
	c := &circuit{e: en.fhe}

	lineFor := func(mark fhe.Handle, ln [Size][2]int) fhe.Handle {
		all := c.eq(b[ln[0][1]][ln[0][0]], mark)
		for i := 1; i < Size; i++ {
			all = c.and(all, c.eq(b[ln[i][1]][ln[i][0]], mark))
		}
		return all
	}

	aWins := en.consts.False
	bWins := en.consts.False
	for _, ln := range lines() {
		aWins = c.or(aWins, lineFor(en.consts.MarkX, ln))
		bWins = c.or(bWins, lineFor(en.consts.MarkO, ln))
	}

	full := en.consts.True
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			full = c.and(full, c.not(c.eq(b[y][x], en.consts.Empty)))
		}
	}

	// both marks holding a line is impossible in correct play; resolve to
	// Draw rather than pick one
	winner := c.sel(c.and(aWins, bWins), en.consts.Draw,
		c.sel(aWins, en.consts.PlayerA,
			c.sel(bWins, en.consts.PlayerB,
				c.sel(full, en.consts.Draw, en.consts.None))))
	if c.err != nil {
		return fhe.Handle{}, c.err
	}
	return winner, nil
}

// ComputeCollision returns the encrypted conjunction of coordinate equality
// for two moves: true iff both players named the same cell.
func (en *Engine) ComputeCollision(ax, ay, bx, by fhe.Handle) (fhe.Handle, error) {
	c := &circuit{e: en.fhe}
	col := c.and(c.eq(ax, bx), c.eq(ay, by))
	if c.err != nil {
		return fhe.Handle{}, c.err
	}
	return col, nil
}
