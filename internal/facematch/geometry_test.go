package facematch

import (
	"math"
	"testing"
)

func assertBBox(t *testing.T, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length = %d, want %d", len(got), len(want))
	}
	for i := range got {
		if math.Abs(got[i]-want[i]) > 0.0001 {
			t.Errorf("[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestScaleBBox(t *testing.T) {
	tests := []struct {
		name     string
		bbox     []float64
		factor   float64
		expected []float64
	}{
		{
			name:     "quarter frame back to full size",
			bbox:     []float64{10, 20, 30, 40},
			factor:   4,
			expected: []float64{40, 80, 120, 160},
		},
		{
			name:     "identity",
			bbox:     []float64{1.5, 2.5, 3.5, 4.5},
			factor:   1,
			expected: []float64{1.5, 2.5, 3.5, 4.5},
		},
		{
			name:     "invalid bbox",
			bbox:     []float64{1, 2},
			factor:   4,
			expected: []float64{1, 2},
		},
		{
			name:     "zero factor",
			bbox:     []float64{1, 2, 3, 4},
			factor:   0,
			expected: []float64{1, 2, 3, 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertBBox(t, ScaleBBox(tt.bbox, tt.factor), tt.expected)
		})
	}
}

func TestRelativeBBox(t *testing.T) {
	tests := []struct {
		name     string
		bbox     []float64
		width    int
		height   int
		expected []float64
	}{
		{
			name:     "inside frame",
			bbox:     []float64{40, 40, 80, 80},
			width:    400,
			height:   200,
			expected: []float64{0.1, 0.2, 0.2, 0.4},
		},
		{
			name:     "whole frame",
			bbox:     []float64{0, 0, 1920, 1080},
			width:    1920,
			height:   1080,
			expected: []float64{0, 0, 1, 1},
		},
		{
			name:     "clamped to frame",
			bbox:     []float64{-10, -5, 120, 60},
			width:    100,
			height:   50,
			expected: []float64{0, 0, 1, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertBBox(t, RelativeBBox(tt.bbox, tt.width, tt.height), tt.expected)
		})
	}
}

func TestRelativeBBox_Invalid(t *testing.T) {
	if got := RelativeBBox([]float64{1, 2}, 100, 100); got != nil {
		t.Errorf("expected nil for malformed bbox, got %v", got)
	}
	if got := RelativeBBox([]float64{1, 2, 3, 4}, 0, 100); got != nil {
		t.Errorf("expected nil for empty frame, got %v", got)
	}
}
