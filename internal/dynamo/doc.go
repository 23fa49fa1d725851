// Package dynamo provides the shared primitives of the control lab.
//
// The package defines the vocabulary used by the core components and the
// closed-loop harness:
//
//   - [Vector]: dense signal vector (plant state, input, output)
//   - [Sample]: one closed-loop cycle as seen by metrics and observers
//   - [Metric]: accumulates a scalar figure of merit over a run
//   - [Observer]: receives every cycle of a run
//   - [DimensionError]: structural mismatch between matrices or vectors
//
// # Errors
//
// Errors are package-prefixed sentinels. Typed errors wrap them so callers
// can match with errors.Is:
//
//	if errors.Is(err, dynamo.ErrDimensionMismatch) {
//		// handle bad plant shapes
//	}
//
// # Thread Safety
//
// Nothing in this package carries state across calls. Components built on it
// (controller, plant, loop) are owned by a single goroutine.
package dynamo
