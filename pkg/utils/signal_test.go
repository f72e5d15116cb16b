// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"testing"
)

const (
	testFrames     = 1024
	testSampleRate = 44100
)

func TestGenerateStereoSine(t *testing.T) {
	tests := []struct {
		name    string
		leftHz  float64
		rightHz float64
	}{
		{"Both channels", 440, 880},
		{"Left only", 440, 0},
		{"Right only", 0, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateStereoSine(testFrames, testSampleRate, tt.leftHz, tt.rightHz, 0.5)
			if len(result) != testFrames*2 {
				t.Fatalf("buffer size = %d, want %d", len(result), testFrames*2)
			}

			var peak [2]float64
			for i, v := range result {
				peak[i%2] = math.Max(peak[i%2], math.Abs(float64(v)))
			}
			for ch, hz := range []float64{tt.leftHz, tt.rightHz} {
				if hz == 0 && peak[ch] != 0 {
					t.Errorf("channel %d: expected silence, peak %f", ch, peak[ch])
				}
				if hz != 0 && (peak[ch] < 0.45 || peak[ch] > 0.5) {
					t.Errorf("channel %d: peak %f outside [0.45, 0.5]", ch, peak[ch])
				}
			}
		})
	}
}

func TestGenerateComplexStereo(t *testing.T) {
	result := GenerateComplexStereo(testFrames, testSampleRate)
	if len(result) != testFrames*2 {
		t.Fatalf("buffer size = %d, want %d", len(result), testFrames*2)
	}
	for i := 0; i < len(result); i += 2 {
		if math.Abs(float64(result[i])-2*float64(result[i+1])) > 1e-6 {
			t.Fatalf("frame %d: right channel is not half of left (%f, %f)", i/2, result[i], result[i+1])
		}
	}
}

func TestSilence(t *testing.T) {
	for _, v := range Silence(16) {
		if v != 0 {
			t.Fatal("Silence produced a non-zero sample")
		}
	}
}

func TestFindPeakBin(t *testing.T) {
	values := make([]float64, 64)
	for i := range values {
		values[i] = math.Exp(-0.05 * math.Pow(float64(i-20), 2))
	}

	tests := []struct {
		name       string
		start, end int
		expected   int
	}{
		{"Full range", 0, 63, 20},
		{"Clamped range", -5, 100, 20},
		{"Sub range", 30, 40, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindPeakBin(values, tt.start, tt.end); got != tt.expected {
				t.Errorf("FindPeakBin = %d, want %d", got, tt.expected)
			}
		})
	}

	if got := FindPeakBin(nil, 0, 10); got != 0 {
		t.Errorf("FindPeakBin(nil) = %d, want 0", got)
	}
}

func TestBinForFrequency(t *testing.T) {
	if got := BinForFrequency(1000, 48000, 2048); got != 43 {
		t.Errorf("BinForFrequency = %d, want 43", got)
	}
}
