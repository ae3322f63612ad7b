package models

// CurrentControl applies a fixed terminal current. Positive discharges.
type CurrentControl struct {
	Amps float64
}

// PowerControl applies a fixed terminal power. Positive discharges; the
// drawn current then depends on the terminal voltage, which makes the
// step system nonlinear even for a linear cell.
type PowerControl struct {
	Watts float64
}

// RestControl applies no load.
type RestControl struct{}
