package storage

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/clothsim/internal/metrics"
	"github.com/san-kum/clothsim/internal/sim"
)

// Point is a projected 2D position.
type Point struct{ X, Y float64 }

// SideView projects a snapshot onto the XY plane.
func SideView(snap sim.Snapshot) []Point {
	pts := make([]Point, len(snap))
	for i, p := range snap {
		pts[i] = Point{X: float64(p.X()), Y: float64(p.Y())}
	}
	return pts
}

type bounds struct {
	minX, minY, rangeX, rangeY float64
}

// fit pads the extent of points by 10% per axis.
func fit(points []Point) bounds {
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	// one scale for both axes keeps the cloth undistorted
	r := math.Max(rangeX, rangeY) * 1.2
	return bounds{
		minX:   minX - (r-rangeX)/2,
		minY:   minY - (r-rangeY)/2,
		rangeX: r,
		rangeY: r,
	}
}

func (b bounds) project(p Point, width, height int) (float64, float64) {
	x := (p.X - b.minX) / b.rangeX * float64(width)
	y := float64(height) - (p.Y-b.minY)/b.rangeY*float64(height)
	return x, y
}

// SnapshotToSVG draws the side view of a snapshot with its edges as lines
// and every particle as a dot. Edge indices refer to snapshot positions.
func SnapshotToSVG(snap sim.Snapshot, edges []metrics.Edge, width, height int) string {
	if len(snap) == 0 {
		return ""
	}
	pts := SideView(snap)
	b := fit(pts)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<g stroke="#4a9eff" stroke-width="1">
`, width, height, width, height))

	for _, e := range edges {
		if e.A < 0 || e.B < 0 || e.A >= len(pts) || e.B >= len(pts) {
			continue
		}
		x0, y0 := b.project(pts[e.A], width, height)
		x1, y1 := b.project(pts[e.B], width, height)
		sb.WriteString(fmt.Sprintf(`<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f"/>
`, x0, y0, x1, y1))
	}
	sb.WriteString("</g>\n<g fill=\"#00ff00\">\n")
	for _, p := range pts {
		x, y := b.project(p, width, height)
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="2"/>
`, x, y))
	}
	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// TrajectoryToSVG draws one particle's path over the recorded snapshots.
func TrajectoryToSVG(snaps []sim.Snapshot, particle, width, height int, strokeColor string) string {
	points := make([]Point, 0, len(snaps))
	for _, s := range snaps {
		if particle < len(s) {
			points = append(points, Point{X: float64(s[particle].X()), Y: float64(s[particle].Y())})
		}
	}
	if len(points) < 2 {
		return ""
	}
	b := fit(points)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, strokeColor))

	for i, p := range points {
		x, y := b.project(p, width, height)
		if i == 0 {
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
		}
	}

	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}
