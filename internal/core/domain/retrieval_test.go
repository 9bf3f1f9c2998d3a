package domain

import (
	"math"
	"testing"
)

func TestFusionWeightsValidate(t *testing.T) {
	valid := []FusionWeights{{Dense: 0.5, Sparse: 0.5}, {Dense: 0, Sparse: 2}}
	for _, w := range valid {
		if err := w.Validate(); err != nil {
			t.Fatalf("Validate(%+v) error = %v", w, err)
		}
	}

	invalid := []FusionWeights{
		{Dense: -0.1, Sparse: 0.5},
		{Dense: math.NaN(), Sparse: 0.5},
		{Dense: 0.5, Sparse: math.Inf(1)},
	}
	for _, w := range invalid {
		err := w.Validate()
		if !IsKind(err, ErrInvalidInput) {
			t.Fatalf("Validate(%+v) expected invalid input, got %v", w, err)
		}
	}
}
