package viz

import (
	"strings"
)

const brailleBlank = 0x2800

// Dot bits of a braille cell, indexed [row][column]:
//
//	1 4
//	2 5
//	3 6
//	7 8
var dotBits = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// Canvas is a character grid where every cell holds 2x4 braille dots, so a
// canvas of Cols x Rows cells has Cols*2 x Rows*4 addressable dots.
type Canvas struct {
	Cols, Rows int
	cells      [][]rune
	lit        int
}

func NewCanvas(cols, rows int) *Canvas {
	c := &Canvas{Cols: max(cols, 1), Rows: max(rows, 1)}
	c.cells = make([][]rune, c.Rows)
	for i := range c.cells {
		c.cells[i] = make([]rune, c.Cols)
	}
	c.Clear()
	return c
}

// Dots returns the canvas size in dots.
func (c *Canvas) Dots() (w, h int) {
	return c.Cols * 2, c.Rows * 4
}

// Set lights the dot at (x, y). Out-of-range dots are ignored and reported
// as false.
func (c *Canvas) Set(x, y int) bool {
	if x < 0 || y < 0 {
		return false
	}
	col, row := x/2, y/4
	if col >= c.Cols || row >= c.Rows {
		return false
	}
	bit := dotBits[y%4][x%2]
	if c.cells[row][col]&bit == 0 {
		c.lit++
	}
	c.cells[row][col] |= bit
	return true
}

// IsSet reports whether the dot at (x, y) is lit.
func (c *Canvas) IsSet(x, y int) bool {
	if x < 0 || y < 0 {
		return false
	}
	col, row := x/2, y/4
	if col >= c.Cols || row >= c.Rows {
		return false
	}
	return c.cells[row][col]&dotBits[y%4][x%2] != 0
}

// Lit returns the number of lit dots.
func (c *Canvas) Lit() int { return c.lit }

func (c *Canvas) Clear() {
	for _, row := range c.cells {
		for j := range row {
			row[j] = brailleBlank
		}
	}
	c.lit = 0
}

// DrawLine draws a line using Bresenham's algorithm.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx, dy := absInt(x1-x0), absInt(y1-y0)
	sx, sy := -1, -1
	if x0 < x1 {
		sx = 1
	}
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy
	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// DrawCross marks a 3x3 plus sign centred on (x, y).
func (c *Canvas) DrawCross(x, y int) {
	c.DrawLine(x-1, y, x+1, y)
	c.DrawLine(x, y-1, x, y+1)
}

func (c *Canvas) String() string {
	var b strings.Builder
	b.Grow(c.Rows * (c.Cols*3 + 1))
	for _, row := range c.cells {
		b.WriteString(string(row))
		b.WriteByte('\n')
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
