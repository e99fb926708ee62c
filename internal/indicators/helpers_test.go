package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/registry"
)

// weekdays builds a weekday-only series between from and to (inclusive)
func weekdays(t *testing.T, from, to string, price func(d time.Time) float64) contracts.Series {
	t.Helper()
	start, err := time.Parse(contracts.DateLayout, from)
	require.NoError(t, err)
	end, err := time.Parse(contracts.DateLayout, to)
	require.NoError(t, err)

	var s contracts.Series
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		s = append(s, contracts.Bar{Date: d.Format(contracts.DateLayout), Close: contracts.Float(price(d))})
	}
	return s
}

func constant(v float64) func(time.Time) float64 {
	return func(time.Time) float64 { return v }
}

func shippedRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, _, err := registry.Load("../../config/registry.yml")
	require.NoError(t, err)
	return reg
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(contracts.DateLayout, s)
	require.NoError(t, err)
	return d
}
