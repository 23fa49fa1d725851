// Package control provides the discrete PI controller used in the loop.
//
// [PID] evaluates once per sampling period and keeps its own integral state.
// An external supervisor selects the operating [Mode] and the anti-windup
// [FreezeMode] between evaluations:
//
//   - [Auto]: closed-loop PI action clamped to [UMin, UMax]
//   - [Tracking]: output follows an external signal, integral back-computed
//   - [Manual]: output holds the last commanded value
//
// # Usage
//
//	pid, _ := control.NewPID(0.8, 2.0, 0.01, -10, 10) // Kc, Ti, Ts, umin, umax
//	pid.SetControllerState(control.Auto)
//	u := pid.Evaluate(y, ysp, 0)
//
// Pass [NoIntegral] as Ti (or use [NewP]) for a pure proportional controller.
package control
