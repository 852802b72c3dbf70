package repeater

// Grid is the column/row capacity of one sheet.
type Grid struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// Capacity is the number of tiles one sheet holds.
func (g Grid) Capacity() int { return g.Cols * g.Rows }

// Size is the pixel size of one tile.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Cursor is the 0-based placement counter of a page. In single-region mode every
// page of a session holds the same *Cursor.
type Cursor struct {
	X int
	Y int
}

// advance moves one tile forward, carrying columns into rows. It reports true when
// the rows overflow and the cursor wraps back to the origin.
func (c *Cursor) advance(g Grid) bool {
	c.X++
	if c.X > g.Cols-1 {
		c.X = 0
		c.Y++
	}
	if c.Y > g.Rows-1 {
		c.X, c.Y = 0, 0
		return true
	}
	return false
}

// Tile is one rendered fragment. Index echoes the index passed to LayoutStep.
type Tile struct {
	Index int    `json:"index"`
	HTML  string `json:"html"`
}

// Stack collects rendered tiles until the session content is taken. In
// single-region mode every page of a session holds the same *Stack.
type Stack struct {
	tiles []Tile
}

func (s *Stack) push(t Tile) { s.tiles = append(s.tiles, t) }

func (s *Stack) len() int { return len(s.tiles) }

// sheetCounter counts pushed records over the sheet grid, 1-based.
type sheetCounter struct {
	col int
	row int
}

func newSheetCounter() sheetCounter { return sheetCounter{col: 1, row: 1} }

// advance records one push and reports true when the sheet is full.
func (c *sheetCounter) advance(g Grid) bool {
	c.col++
	if c.col > g.Cols {
		c.row++
		c.col = 1
	}
	if c.row > g.Rows {
		c.row, c.col = 1, 1
		return true
	}
	return false
}
