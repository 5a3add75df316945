package analysis

import (
	"strings"

	"github.com/san-kum/clothsim/internal/sim"
)

type Point struct{ X, Y float64 }

// Portrait is the path of one particle projected onto two axes.
type Portrait struct {
	XAxis, YAxis int
	Points       []Point
}

// NewPortrait collects the path of particle over snaps. It returns nil for
// an out of range particle or axis.
func NewPortrait(snaps []sim.Snapshot, particle, xAxis, yAxis int) *Portrait {
	if xAxis < 0 || xAxis > 2 || yAxis < 0 || yAxis > 2 {
		return nil
	}
	p := &Portrait{XAxis: xAxis, YAxis: yAxis, Points: make([]Point, 0, len(snaps))}
	for _, s := range snaps {
		if particle < 0 || particle >= len(s) {
			return nil
		}
		v := s[particle]
		p.Points = append(p.Points, Point{float64(v[xAxis]), float64(v[yAxis])})
	}
	return p
}

// PortraitToASCII plots the path on a width x height character grid, with
// axes drawn where zero is visible.
func PortraitToASCII(p *Portrait, width, height int) string {
	if p == nil || len(p.Points) == 0 || width < 2 || height < 2 {
		return ""
	}

	minX, maxX := p.Points[0].X, p.Points[0].X
	minY, maxY := p.Points[0].Y, p.Points[0].Y
	for _, pt := range p.Points {
		minX, maxX = min(minX, pt.X), max(maxX, pt.X)
		minY, maxY = min(minY, pt.Y), max(maxY, pt.Y)
	}
	rangeX, rangeY := maxX-minX, maxY-minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX, rangeY = maxX-minX, maxY-minY

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", width))
	}
	col := func(x float64) int { return int((x - minX) / rangeX * float64(width-1)) }
	row := func(y float64) int { return height - 1 - int((y-minY)/rangeY*float64(height-1)) }

	for _, pt := range p.Points {
		grid[row(pt.Y)][col(pt.X)] = '•'
	}
	if minX <= 0 && maxX >= 0 {
		c := col(0)
		for r := range grid {
			if grid[r][c] == ' ' {
				grid[r][c] = '│'
			}
		}
	}
	if minY <= 0 && maxY >= 0 {
		r := row(0)
		for c := range grid[r] {
			if grid[r][c] == ' ' {
				grid[r][c] = '─'
			}
		}
	}

	var sb strings.Builder
	for _, r := range grid {
		sb.WriteString(string(r))
		sb.WriteByte('\n')
	}
	return sb.String()
}
