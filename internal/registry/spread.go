package registry

import (
	"fmt"
	"sort"
)

// Evaluate computes the spread value from one price per component code.
// 각 kind 는 고정 수식. 자유 형식 수식은 허용하지 않음
func (s Spread) Evaluate(prices map[string]float64) (float64, error) {
	v := make([]float64, len(s.Components))
	for i, c := range s.Components {
		p, ok := prices[c.Code]
		if !ok {
			return 0, fmt.Errorf("missing price for %s", c.Code)
		}
		v[i] = p * c.Factor()
	}

	switch s.Kind {
	case KindRatio:
		if v[1] == 0 {
			return 0, fmt.Errorf("ratio denominator %s is zero", s.Components[1].Code)
		}
		return v[0] / v[1], nil
	case KindDifference:
		return v[0] - v[1], nil
	case KindWeighted:
		total := 0.0
		for i, c := range s.Components {
			total += c.Weight * v[i]
		}
		return total, nil
	case KindSoyCrush:
		// role order: zm, zl, zs
		return v[0]*0.022 + v[1]*0.11 - v[2], nil
	case KindFeedlot:
		// role order: le, gf, zc
		return 6*v[0] - v[1] - 0.5*v[2], nil
	default:
		return 0, fmt.Errorf("unknown spread kind %q", s.Kind)
	}
}

// arity returns the required component count for a kind (0 = at least one)
func arity(kind string) (int, bool) {
	switch kind {
	case KindRatio, KindDifference:
		return 2, true
	case KindSoyCrush, KindFeedlot:
		return 3, true
	case KindWeighted:
		return 0, true
	default:
		return 0, false
	}
}

func sortStrings(s []string) {
	sort.Strings(s)
}
