// Package constraint implements the position-based constraint workers.
//
// Every worker owns per-team groups and schedules one or more passes over
// the whole particle store. A pass reads the front next-position buffer,
// writes the back buffer for every particle and swaps once it completes, so
// particles never observe a neighbour half-way through a pass. Particles that
// are disabled, kinematic, in an inactive team or without a group in the
// worker are copied through unchanged.
//
// Rotation workers ([AdjustRotation], [LineRotation], [TriangleRotation])
// run after the position solve and derive orientation from the deformed
// shape instead.
package constraint
