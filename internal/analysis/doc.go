// Package analysis extracts signals from recorded runs.
//
//   - [Trace]: one coordinate of one particle over recorded snapshots
//   - [DominantFrequency]: strongest oscillation frequency of a trace
//   - [SettleTime]: time after which a trace stays near its final value
//   - [Crossings]: upward threshold crossings, the period estimate of a swing
//   - [Portrait]: particle path in a plane, printable with [PortraitToASCII]
//
// A springy strand shaken once should ring at a stable frequency and settle:
//
//	tip := analysis.Trace(snaps, last, 1)
//	f := analysis.DominantFrequency(tip, dt)
package analysis
