package geom

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"2d", []float64{0, 0}, []float64{3, 4}, 5},
		{"3d", []float64{1, 2, 3}, []float64{1, 2, 3}, 0},
		{"1d", []float64{-2}, []float64{2}, 4},
		{"mismatched lengths", []float64{0, 0, 9}, []float64{3, 4}, 5},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Distance(tt.a, tt.b), 1e-12)
		})
	}
	assert.InDelta(t, 5.0, Dist(V(1, 1), V(4, 5)), 1e-12)
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	got := NormalizeVec2(V(3, 4), 10)
	assert.InDelta(t, 6.0, got.X(), 1e-12)
	assert.InDelta(t, 8.0, got.Y(), 1e-12)

	neg := NormalizeVec2(V(0, -2), 5)
	assert.InDelta(t, 0.0, neg.X(), 1e-12)
	assert.InDelta(t, -5.0, neg.Y(), 1e-12)

	zero := NormalizeVec2(V(0, 0), 3)
	assert.Equal(t, V(3, 0), zero)

	n := Normalize([]float64{1, 1, 1}, math.Sqrt(3))
	for _, c := range n {
		assert.InDelta(t, 1.0, c, 1e-12)
	}
}

func TestLinearScale(t *testing.T) {
	t.Parallel()

	s := NewLinearScale([2]float64{0, 160}, [2]float64{0, 480})
	assert.InDelta(t, 0.0, s.Apply(0), 1e-12)
	assert.InDelta(t, 240.0, s.Apply(80), 1e-12)
	assert.InDelta(t, 80.0, s.Invert(240), 1e-12)
	assert.InDelta(t, 3.0, s.Factor(), 1e-12)

	collapsed := NewLinearScale([2]float64{5, 5}, [2]float64{1, 2})
	assert.Equal(t, 1.0, collapsed.Apply(100))
	assert.Equal(t, 0.0, collapsed.Factor())
}

func TestVec2_JSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal([]Vec2{V(1, 2), V(3.5, 4)})
	require.NoError(t, err)
	assert.JSONEq(t, `[[1,2],[3.5,4]]`, string(data))
}

func TestVec2_Arithmetic(t *testing.T) {
	t.Parallel()

	p := V(1.5, -2.25)
	assert.Equal(t, V(2.5, -1.25), p.Add(V(1, 1)))
	assert.Equal(t, V(0.5, -3.25), p.Sub(V(1, 1)))
	assert.Equal(t, V(3, -4.5), p.Scale(2))
	assert.Equal(t, V(1, -3), p.Floor())
	assert.Equal(t, 2.0, Clamp(5, 0, 2))
	assert.Equal(t, 0.0, Clamp(-1, 0, 2))
}
