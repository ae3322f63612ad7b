// Package stepper provides the core contracts for implicit time-stepping
// of nonlinear state-space models.
//
// The package defines the interfaces and value types shared by the solver
// and driver layers:
//
//   - [Model]: a physical model (battery, thermal, ...) exposing residual
//     assembly and state construction
//   - [System]: the discretized residual/Jacobian equations for one step
//   - [State]: an accepted snapshot with a time stamp and named scalar
//     quantities
//   - [ConvergenceReport]: per-attempt iteration history and verdict
//   - [Report]: per-run step records, statistics, and terminal status
//
// # Example
//
//	cell := models.NewCell()
//	drv, _ := driver.New(cell, sched, driver.DefaultConfig())
//	result, _ := drv.Run(ctx)
//
// # Thread Safety
//
// Models must not retain mutable references to states they have returned;
// the driver owns the accepted-state chain and steps strictly sequentially.
package stepper
