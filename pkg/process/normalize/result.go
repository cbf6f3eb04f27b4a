package normalize

// Result is the outcome of a type-specific transform. Warning is set when the
// transform could not apply and Value is the original value.
type Result struct {
	Value   interface{}
	Warning error
}

// Ok wraps a successfully normalized value.
func Ok(v interface{}) Result {
	return Result{Value: v}
}

// Fallback returns the original value together with the reason it was kept.
func Fallback(original interface{}, warning error) Result {
	return Result{Value: original, Warning: warning}
}
