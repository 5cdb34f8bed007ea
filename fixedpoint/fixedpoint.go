// Package fixedpoint implements the 17.14 fixed-point arithmetic used by
// the MLFQS policy for load average and recent-CPU bookkeeping.
package fixedpoint

// fracBits is the number of fractional bits in a Value (17.14 format).
const fracBits = 14

const scale = 1 << fracBits

// Value is a real number stored as a scaled integer. The zero Value is 0.0.
type Value int32

// FromInt converts an integer to fixed-point.
func FromInt(n int) Value {
	return Value(n * scale)
}

// Trunc converts v to an integer, rounding toward zero.
func (v Value) Trunc() int {
	return int(v / scale)
}

// Round converts v to the nearest integer, ties away from zero.
func (v Value) Round() int {
	if v >= 0 {
		return int((v + scale/2) / scale)
	}
	return int((v - scale/2) / scale)
}

func (v Value) Add(o Value) Value {
	return v + o
}

func (v Value) Sub(o Value) Value {
	return v - o
}

func (v Value) AddInt(n int) Value {
	return v + FromInt(n)
}

func (v Value) SubInt(n int) Value {
	return v - FromInt(n)
}

// Mul multiplies two fixed-point values, widening to 64 bits so the
// intermediate product cannot overflow.
func (v Value) Mul(o Value) Value {
	return Value(int64(v) * int64(o) / scale)
}

func (v Value) MulInt(n int) Value {
	return Value(int64(v) * int64(n))
}

// Div divides two fixed-point values, widening to 64 bits before scaling.
func (v Value) Div(o Value) Value {
	return Value(int64(v) * scale / int64(o))
}

func (v Value) DivInt(n int) Value {
	return v / Value(n)
}
