// SPDX-License-Identifier: MIT
package utils

import "math"

// GenerateStereoSine returns frames of interleaved stereo float32 samples with
// a sine at leftHz on the left channel and rightHz on the right channel. A
// frequency of 0 produces silence on that channel.
func GenerateStereoSine(frames int, sampleRate, leftHz, rightHz, amplitude float64) []float32 {
	buffer := make([]float32, frames*2)
	for i := range frames {
		tm := float64(i) / sampleRate
		buffer[2*i] = float32(amplitude * math.Sin(2*math.Pi*leftHz*tm))
		buffer[2*i+1] = float32(amplitude * math.Sin(2*math.Pi*rightHz*tm))
	}
	return buffer
}

// GenerateComplexStereo returns a 440Hz fundamental plus harmonics on both
// channels, the right channel at half amplitude.
func GenerateComplexStereo(frames int, sampleRate float64) []float32 {
	buffer := make([]float32, frames*2)
	for i := range frames {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[2*i] = float32(signal * 0.9)
		buffer[2*i+1] = float32(signal * 0.45)
	}
	return buffer
}

// Silence returns frames of interleaved stereo zeros.
func Silence(frames int) []float32 {
	return make([]float32, frames*2)
}

// FindPeakBin returns the index of the largest value in values[startBin:endBin+1].
func FindPeakBin(values []float64, startBin, endBin int) int {
	if len(values) == 0 {
		return 0
	}
	if startBin < 0 {
		startBin = 0
	}
	if endBin >= len(values) {
		endBin = len(values) - 1
	}

	peakBin := startBin
	peakValue := values[startBin]
	for bin := startBin + 1; bin <= endBin; bin++ {
		if values[bin] > peakValue {
			peakValue = values[bin]
			peakBin = bin
		}
	}
	return peakBin
}

// BinForFrequency returns the transform bin closest to hz.
func BinForFrequency(hz, sampleRate float64, windowSize int) int {
	return int(math.Round(hz * float64(windowSize) / sampleRate))
}
