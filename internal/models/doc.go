// Package models provides concrete physical models for the stepping
// driver.
//
// Each model implements the [stepper.Model] interface, defining the
// implicit residual equations advanced by the Newton solver:
//
//   - [Cell]: equivalent-circuit battery cell (state of charge +
//     terminal voltage) under current, power, or rest controls
//   - [Thermal]: lumped thermal block with convective and radiative
//     losses under a heater power control
//
// States expose their scalar quantities by name ("soc", "voltage",
// "current", "temperature") so stop conditions and adaptive step
// selection stay decoupled from the concrete representations.
package models
