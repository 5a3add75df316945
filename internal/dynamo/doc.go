// Package dynamo provides the scheduling and error primitives shared by the
// cloth engine.
//
// A frame is expressed as a chain of passes over flat arrays. Every pass is
// scheduled against the [Handle] of its predecessors and returns its own
// handle, so the pipeline is a dependency chain rather than free-running
// goroutines:
//
//   - [Schedule]: run a single function once its dependencies complete
//   - [ScheduleFor]: run a parallel-for over [0, n) in batches
//   - [Combine]: join several handles into one
//   - [ParallelFor]: synchronous parallel-for used inside a pass
//
// # Example
//
//	h := dynamo.ScheduleFor(n, 64, integrate)
//	h = dynamo.ScheduleFor(n, 64, solve, h)
//	h.Complete()
//
// # Thread Safety
//
// Handles may be waited on from any goroutine. A pass must only write to the
// buffers it owns; shared buffers are double-buffered by the callers.
package dynamo
