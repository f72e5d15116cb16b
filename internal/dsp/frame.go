// SPDX-License-Identifier: MIT
package dsp

// Channels is the number of interleaved channels the analyzer accepts.
const Channels = 2

// Frame is one unit of analyzer output covering both channels. Every slice is
// allocated for the frame alone, so a consumer that pops a frame owns it.
type Frame struct {
	// Seq numbers frames in production order, starting at 1.
	Seq uint64

	// Spectrum holds the full complex FFT output (WindowSize bins, mirrored
	// half included). The transform is not normalized.
	Spectrum [Channels][]complex128

	// TimeSamples holds the WindowSize samples that were transformed, raw by
	// default or tapered when the analyzer is configured that way.
	TimeSamples [Channels][]float64

	// PhaseDerivative holds |arg(conj(X[k]) * Y[k])| for the first
	// WindowSize/2 bins, where Y is the spectrum of the window shifted by one
	// sample. Values are within [0, Pi].
	PhaseDerivative [Channels][]float64
}

// WindowSize returns the transform size the frame was produced with.
func (f *Frame) WindowSize() int {
	return len(f.Spectrum[0])
}
