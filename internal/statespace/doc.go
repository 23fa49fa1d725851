// Package statespace simulates discrete-time linear time-invariant plants.
//
//	x[k+1] = A*x[k] + B*u[k]
//	y[k]   = C*x[k] + D*u[k]
//
// Each call to [Discrete.Step] computes the output from the current state
// first and only then advances the state, so after a call the output belongs
// to sample k and the state to sample k+1.
package statespace
