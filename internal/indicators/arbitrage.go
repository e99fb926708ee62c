package indicators

import (
	"fmt"
	"sort"

	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/registry"
)

// Arbitrage directions
const (
	DirectionPremium  = "PREMIO_LOCAL"
	DirectionDiscount = "DESCONTO_LOCAL"
)

// ReferenceInLocal converts an exchange price to local currency per local unit.
// 환산 계수는 모두 레지스트리 conversions 에서 옴
func ReferenceInLocal(reg *registry.Registry, pair registry.ArbitragePair, price, fx float64) (float64, error) {
	ref, ok := reg.Conversions[pair.ReferenceUnit]
	if !ok || ref.KG <= 0 {
		return 0, fmt.Errorf("unknown conversion %q", pair.ReferenceUnit)
	}
	local, ok := reg.Conversions[pair.LocalUnit]
	if !ok || local.KG <= 0 {
		return 0, fmt.Errorf("unknown conversion %q", pair.LocalUnit)
	}
	scale := pair.ReferenceScale
	if scale == 0 {
		scale = 1
	}
	return price * scale * (local.KG / ref.KG) * fx, nil
}

// Arbitrage compares each registered exchange price with its local cash quote.
// spread = local − reference (양수 = 현지 프리미엄)
func Arbitrage(reg *registry.Registry, history contracts.PriceHistory, physical map[string]contracts.PhysicalQuote, fx map[string]float64) contracts.ArbitrageReport {
	report := contracts.ArbitrageReport{
		Pairs:   make(map[string]contracts.ArbitrageEntry),
		Skipped: make(map[string]string),
	}

	names := make([]string, 0, len(reg.Arbitrage))
	for name := range reg.Arbitrage {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pair := reg.Arbitrage[name]

		ref, ok := history[pair.Reference].LastClose()
		if !ok {
			report.Skipped[name] = "no reference price for " + pair.Reference
			continue
		}
		quote, ok := physical[pair.Local]
		if !ok || quote.Price <= 0 {
			report.Skipped[name] = "no local quote for " + pair.Local
			continue
		}
		rate, ok := fx[pair.FX]
		if !ok || rate <= 0 {
			report.Skipped[name] = "no fx rate " + pair.FX
			continue
		}

		inLocal, err := ReferenceInLocal(reg, pair, ref.Value, rate)
		if err != nil {
			report.Skipped[name] = err.Error()
			continue
		}

		spread := quote.Price - inLocal
		direction := DirectionDiscount
		if spread > 0 {
			direction = DirectionPremium
		}

		report.Pairs[name] = contracts.ArbitrageEntry{
			Name:           pair.DisplayName,
			Reference:      pair.Reference,
			Local:          pair.Local,
			ReferencePrice: ref.Value,
			ReferenceUnit:  reg.Symbols[pair.Reference].Unit,
			LocalPrice:     quote.Price,
			LocalUnit:      quote.Unit,
			FX:             rate,
			ReferenceInBRL: round(inLocal, 4),
			SpreadBRL:      round(spread, 4),
			SpreadPct:      round(spread/inLocal*100, 4),
			Direction:      direction,
		}
	}

	if len(report.Skipped) == 0 {
		report.Skipped = nil
	}
	return report
}
