package stepper

// QuantityBelow returns a stop condition that fires when the named
// quantity of the new state drops below threshold. States that do not
// expose the quantity never trigger it.
func QuantityBelow(name string, threshold float64) StopCondition {
	return func(m Model, next, prev State) bool {
		v, ok := next.Quantity(name)
		return ok && v < threshold
	}
}

// QuantityAbove returns a stop condition that fires when the named
// quantity of the new state exceeds threshold.
func QuantityAbove(name string, threshold float64) StopCondition {
	return func(m Model, next, prev State) bool {
		v, ok := next.Quantity(name)
		return ok && v > threshold
	}
}
