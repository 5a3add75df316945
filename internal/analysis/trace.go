package analysis

import (
	"math"

	"github.com/san-kum/clothsim/internal/sim"
)

// Trace extracts coordinate axis (0 X, 1 Y, 2 Z) of particle from every
// snapshot. Snapshots too short to hold the particle yield NaN.
func Trace(snaps []sim.Snapshot, particle, axis int) []float64 {
	out := make([]float64, len(snaps))
	for i, s := range snaps {
		if particle < 0 || particle >= len(s) || axis < 0 || axis > 2 {
			out[i] = math.NaN()
			continue
		}
		out[i] = float64(s[particle][axis])
	}
	return out
}

// SettleTime is the first time after which every value stays within tol of
// the last value. It returns -1 for an empty trace.
func SettleTime(values, times []float64, tol float64) float64 {
	n := min(len(values), len(times))
	if n == 0 {
		return -1
	}
	final := values[n-1]
	settled := n - 1
	for i := n - 1; i >= 0; i-- {
		if math.Abs(values[i]-final) > tol {
			break
		}
		settled = i
	}
	return times[settled]
}

// Crossings returns the times at which values rise through threshold,
// linearly interpolated between samples.
func Crossings(values, times []float64, threshold float64) []float64 {
	var out []float64
	n := min(len(values), len(times))
	for i := 1; i < n; i++ {
		a, b := values[i-1], values[i]
		if a < threshold && b >= threshold {
			frac := (threshold - a) / (b - a)
			out = append(out, times[i-1]+frac*(times[i]-times[i-1]))
		}
	}
	return out
}

// Period is the mean spacing of consecutive crossings, or 0 with fewer than
// two.
func Period(crossings []float64) float64 {
	if len(crossings) < 2 {
		return 0
	}
	return (crossings[len(crossings)-1] - crossings[0]) / float64(len(crossings)-1)
}
