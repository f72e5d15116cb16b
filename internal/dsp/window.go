// SPDX-License-Identifier: MIT
package dsp

import "math"

// RaisedCosine returns the analysis taper of length size:
//
//	w[i] = cos((i/(size/2) - 1) * Pi) + 1
//
// The values range over [0, 2], peaking at the centre of the window. This is a
// periodic Hann window scaled by two, so gonum's dsp/window (symmetric, unit
// peak) cannot produce it directly.
func RaisedCosine(size int) []float64 {
	coeffs := make([]float64, size)
	if size < 2 {
		for i := range coeffs {
			coeffs[i] = 1
		}
		return coeffs
	}
	half := float64(size / 2)
	for i := range coeffs {
		coeffs[i] = math.Cos((float64(i)/half-1)*math.Pi) + 1
	}
	return coeffs
}
