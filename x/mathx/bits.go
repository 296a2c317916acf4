package mathx

import "golang.org/x/exp/constraints"

// Field reads the bits selected by mask, shifted down to bit 0.
// mask must be contiguous; shift is its lowest set bit.
func Field[T constraints.Unsigned](v, mask T, shift uint) T {
	return (v & mask) >> shift
}

// WithField returns v with the masked field replaced by f (f is pre-shift).
// Bits of f that do not fit in mask are dropped.
func WithField[T constraints.Unsigned](v, mask T, shift uint, f T) T {
	return (v &^ mask) | ((f << shift) & mask)
}

// Update sets and clears bits in one step. Clear wins over set.
func Update[T constraints.Unsigned](v, set, clear T) T {
	return (v | set) &^ clear
}
