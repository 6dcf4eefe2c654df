package vector

import (
	"math"
	"testing"
)

func TestSquaredL2(t *testing.T) {
	if got := SquaredL2([]float32{0, 0}, []float32{3, 4}); got != 25 {
		t.Errorf("SquaredL2 = %v, want 25", got)
	}
	if got := SquaredL2([]float32{1}, []float32{1, 2}); !math.IsInf(got, 1) {
		t.Errorf("mismatched lengths should be +Inf, got %v", got)
	}
}

func TestDistanceToSimilarity(t *testing.T) {
	tests := []struct {
		distance float64
		want     float64
	}{
		{0, 1},
		{1, 0.5},
		{3, 0.25},
		{-1, 1},
	}
	for _, tt := range tests {
		if got := DistanceToSimilarity(tt.distance); got != tt.want {
			t.Errorf("DistanceToSimilarity(%v) = %v, want %v", tt.distance, got, tt.want)
		}
	}
	prev := DistanceToSimilarity(0)
	for d := 0.1; d < 10; d += 0.1 {
		s := DistanceToSimilarity(d)
		if s >= prev || s <= 0 {
			t.Fatalf("similarity must strictly decrease and stay positive: d=%v s=%v prev=%v", d, s, prev)
		}
		prev = s
	}
}
