package tui

import (
	"strings"

	"github.com/san-kum/policyloop/internal/sim"
)

// Braille cells hold 2x4 dots:
// 1 4
// 2 5
// 3 6
// 7 8
var pixelMap = [4][2]rune{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const blank = rune(0x2800)

// Canvas draws the x-z plane of the world onto braille cells.
type Canvas struct {
	Width, Height int
	Grid          [][]rune

	xmin, xmax float64
	zmin, zmax float64
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Width: w, Height: h, Grid: make([][]rune, h)}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.SetView(-3, 3, 0, 4)
	c.Clear()
	return c
}

// SetView sets the world rectangle mapped onto the canvas.
func (c *Canvas) SetView(xmin, xmax, zmin, zmax float64) {
	c.xmin, c.xmax, c.zmin, c.zmax = xmin, xmax, zmin, zmax
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
}

// Set turns on the dot at sub-cell coordinates (x, y). The canvas is
// Width*2 by Height*4 dots.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= pixelMap[y%4][x%2]
}

// Project maps a world point to dot coordinates.
func (c *Canvas) Project(p sim.Vec3) (int, int) {
	w := float64(c.Width*2 - 1)
	h := float64(c.Height*4 - 1)
	x := (p[0] - c.xmin) / (c.xmax - c.xmin) * w
	y := (c.zmax - p[2]) / (c.zmax - c.zmin) * h
	return int(x + 0.5), int(y + 0.5)
}

func (c *Canvas) Line(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx - dy
	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
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

func (c *Canvas) WorldLine(a, b sim.Vec3) {
	x0, y0 := c.Project(a)
	x1, y1 := c.Project(b)
	c.Line(x0, y0, x1, y1)
}

// Blob draws a small filled square centred on p.
func (c *Canvas) Blob(p sim.Vec3) {
	x, y := c.Project(p)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			c.Set(x+dx, y+dy)
		}
	}
}

// DrawBodies draws the ground and every body of p, linking each body to
// the one before it.
func (c *Canvas) DrawBodies(p sim.Physics) {
	c.WorldLine(sim.Vec3{c.xmin, 0, 0}, sim.Vec3{c.xmax, 0, 0})
	for i := 0; i < p.NumBodies(); i++ {
		pos := p.BodyPosition(i)
		if i > 0 {
			c.WorldLine(p.BodyPosition(i-1), pos)
		}
		c.Blob(pos)
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
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
