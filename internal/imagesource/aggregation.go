package imagesource

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Aggregation names how a dense per-iteration result is folded into the
// accumulated image.
type Aggregation string

const (
	AggregationSum Aggregation = "sum"
	AggregationMax Aggregation = "max"
	AggregationMin Aggregation = "min"
)

// AggregationFunc combines the accumulated value with the current one.
type AggregationFunc func(aggregated, current float64) float64

// SumAggregation adds.
func SumAggregation(aggregated, current float64) float64 { return aggregated + current }

// MaxAggregation keeps the larger value.
func MaxAggregation(aggregated, current float64) float64 { return math.Max(aggregated, current) }

// MinAggregation keeps the smaller value.
func MinAggregation(aggregated, current float64) float64 { return math.Min(aggregated, current) }

// ParseAggregation accepts sum, max or min in any case. An empty string means
// sum.
func ParseAggregation(s string) (Aggregation, error) {
	switch a := Aggregation(strings.ToLower(strings.TrimSpace(s))); a {
	case "":
		return AggregationSum, nil
	case AggregationSum, AggregationMax, AggregationMin:
		return a, nil
	default:
		return "", fmt.Errorf("unknown aggregation %q: expected sum, max or min", s)
	}
}

// Func returns the combining function. Unknown values fall back to sum.
func (a Aggregation) Func() AggregationFunc {
	switch a {
	case AggregationMax:
		return MaxAggregation
	case AggregationMin:
		return MinAggregation
	default:
		return SumAggregation
	}
}

// aggregateRow folds src into dst. Sum goes through gonum's vectorised add.
func (a Aggregation) aggregateRow(dst, src []float64) {
	n := len(src)
	if len(dst) < n {
		n = len(dst)
	}
	if a == AggregationSum || a == "" {
		floats.Add(dst[:n], src[:n])
		return
	}
	fn := a.Func()
	for i := 0; i < n; i++ {
		dst[i] = fn(dst[i], src[i])
	}
}
