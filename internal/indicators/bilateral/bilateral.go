package bilateral

import (
	"time"

	"github.com/agrimacro/agrimacro/internal/contracts"
)

// Inputs are everything the bilateral step reads
type Inputs struct {
	Market      Market
	ExportSales map[string]contracts.ExportSales // usda_fas, keyed by commodity
	ComexYTD    map[string]contracts.ComexYTD    // comexstat, keyed by heading
	History     map[string][]float64             // prior raw values per BCI component
	AsOf        time.Time
}

// Compute builds processed/bilateral_indicators.json.
// 각 지표는 독립적. 입력이 부족한 지표는 skipped 에 사유를 남김
func Compute(in Inputs) contracts.BilateralIndicators {
	out := contracts.BilateralIndicators{
		Date:       in.AsOf.Format(contracts.DateLayout),
		ExportRace: make(map[string]contracts.ExportRace),
		Skipped:    make(map[string]string),
	}

	lc, err := LandedCost(in.Market)
	if err != nil {
		out.Skipped["landed_cost"] = err.Error()
	} else {
		out.LandedCost = lc
	}

	raw := RawComponents(in.Market, lc)
	if len(raw) == 0 {
		out.Skipped["bci"] = "no component inputs"
	} else {
		bci := BCI(raw, in.History)
		out.BCI = &bci
	}

	for _, spec := range Races {
		us, okUS := in.ExportSales[spec.Commodity]
		br, okBR := in.ComexYTD[spec.ComexHeading]
		if !okUS || !okBR {
			out.Skipped["export_race_"+spec.Commodity] = "missing usda_fas or comexstat accumulation"
			continue
		}
		out.ExportRace[spec.Commodity] = Race(spec, us, br, in.AsOf)
	}

	if len(out.Skipped) == 0 {
		out.Skipped = nil
	}
	return out
}
