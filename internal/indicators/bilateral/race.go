package bilateral

import (
	"time"

	"github.com/agrimacro/agrimacro/internal/contracts"
)

// Pace signals
const (
	PaceAhead  = "AHEAD"
	PaceOnPace = "ON_PACE"
	PaceBehind = "BEHIND"

	paceThresholdPP = 3.0
)

// RaceSpec is the reference data of one commodity race
type RaceSpec struct {
	Commodity     string // USDA FAS key
	ComexHeading  string // Comex Stat heading key
	USTargetMMT   float64
	BRTargetMMT   float64
	USStartMonth  int
	BRStartMonth  int
	BRShareBase   float64 // 5-year average BR share of BR+US exports (%)
	USSeasonalPct map[int]float64
	BRSeasonalPct map[int]float64
}

// Races are the tracked commodities.
// 브라질 누적은 Comex Stat 의 역년 YTD 이므로 BR 시작월은 1월
var Races = []RaceSpec{
	{
		Commodity:    "soybeans",
		ComexHeading: "soja_grao",
		USTargetMMT:  49.67,
		BRTargetMMT:  105.50,
		USStartMonth: 9,
		BRStartMonth: 1,
		BRShareBase:  68,
		USSeasonalPct: map[int]float64{
			9: 8, 10: 15, 11: 14, 12: 10, 1: 8, 2: 6, 3: 5, 4: 5, 5: 6, 6: 8, 7: 8, 8: 7,
		},
		BRSeasonalPct: map[int]float64{
			1: 4, 2: 3, 3: 12, 4: 16, 5: 15, 6: 12, 7: 10, 8: 8, 9: 6, 10: 5, 11: 5, 12: 4,
		},
	},
	{
		Commodity:    "corn",
		ComexHeading: "milho_grao",
		USTargetMMT:  62.23,
		BRTargetMMT:  46.00,
		USStartMonth: 9,
		BRStartMonth: 1,
		BRShareBase:  42,
		USSeasonalPct: map[int]float64{
			9: 6, 10: 12, 11: 12, 12: 10, 1: 8, 2: 7, 3: 7, 4: 6, 5: 5, 6: 5, 7: 8, 8: 14,
		},
		BRSeasonalPct: map[int]float64{
			1: 4, 2: 2, 3: 3, 4: 3, 5: 4, 6: 6, 7: 14, 8: 18, 9: 16, 10: 14, 11: 10, 12: 6,
		},
	},
}

// ExpectedPace sums the seasonal pattern from the start month through the current month
func ExpectedPace(pattern map[int]float64, start, current int) float64 {
	expected := 0.0
	m := start
	for i := 0; i < 12; i++ {
		expected += pattern[m]
		if m == current {
			break
		}
		m = m%12 + 1
	}
	return expected
}

// PaceSignal labels pace versus seasonal expectation
func PaceSignal(diff float64) string {
	switch {
	case diff > paceThresholdPP:
		return PaceAhead
	case diff < -paceThresholdPP:
		return PaceBehind
	default:
		return PaceOnPace
	}
}

func origin(name string, ytdMMT, chinaMMT, target float64, pattern map[int]float64, start, month int) contracts.ExportOrigin {
	o := contracts.ExportOrigin{
		Origin:    name,
		YTDMMT:    round(ytdMMT, 2),
		ChinaMMT:  round(chinaMMT, 2),
		TargetMMT: target,
	}
	if ytdMMT > 0 {
		o.ChinaSharePct = round(chinaMMT/ytdMMT*100, 1)
	}
	if target > 0 {
		o.PacePct = round(ytdMMT/target*100, 1)
	}
	o.ExpectedPacePct = ExpectedPace(pattern, start, month)
	o.PaceVsSeasonal = round(o.PacePct-o.ExpectedPacePct, 1)
	o.PaceSignal = PaceSignal(o.PaceVsSeasonal)
	return o
}

// Race compares US accumulated export inspections (metric tons) with Brazil's year-to-date exports (kg)
func Race(spec RaceSpec, us contracts.ExportSales, br contracts.ComexYTD, asOf time.Time) contracts.ExportRace {
	month := int(asOf.Month())
	r := contracts.ExportRace{
		Commodity: spec.Commodity,
		US:        origin("US", us.AccumulatedExports/1e6, us.ChinaAccumulated/1e6, spec.USTargetMMT, spec.USSeasonalPct, spec.USStartMonth, month),
		BR:        origin("BR", br.KG/1e9, br.ChinaKG/1e9, spec.BRTargetMMT, spec.BRSeasonalPct, spec.BRStartMonth, month),
	}

	total := r.US.YTDMMT + r.BR.YTDMMT
	r.TotalMMT = round(total, 2)
	if total > 0 {
		r.BRSharePct = round(r.BR.YTDMMT/total*100, 1)
		r.USSharePct = round(r.US.YTDMMT/total*100, 1)
	}
	r.ShareShiftPP = round(r.BRSharePct-spec.BRShareBase, 1)

	// 리더는 물량이 아니라 목표 대비 진도로 판정
	if r.US.PacePct > 0 && r.BR.PacePct > 0 {
		if r.BR.PacePct > r.US.PacePct {
			r.Leader = "BR"
			r.LeadPacePct = round(r.BR.PacePct-r.US.PacePct, 1)
		} else {
			r.Leader = "US"
			r.LeadPacePct = round(r.US.PacePct-r.BR.PacePct, 1)
		}
	}
	lead := r.BR.YTDMMT - r.US.YTDMMT
	if lead < 0 {
		lead = -lead
	}
	r.LeadMMT = round(lead, 2)

	china := r.US.ChinaMMT + r.BR.ChinaMMT
	r.ChinaTotalMMT = round(china, 2)
	if china > 0 {
		r.BRChinaSharePct = round(r.BR.ChinaMMT/china*100, 1)
		r.USChinaSharePct = round(r.US.ChinaMMT/china*100, 1)
	}
	return r
}
