// Package bilateral compares Brazil and the United States as soybean and corn origins.
package bilateral

import (
	"math"

	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/external/ams"
)

// Physical conversion constants
const (
	BushelsPerMT = 36.7437 // soybean bushels per metric ton
	SacasPerMT   = 16.6667 // 60 kg sacas per metric ton

	shortTonsPerMT = 1.10231

	// 1976 benchmark tariff (St. Louis), GTR barge rates are quoted as a percent of it
	bargeBenchmarkUSDPerShortTon = 3.99

	// IMEA 는 Sorriso→Miritituba 만 고시. Sorriso→Santos 는 약 1.3 배
	santosFreightFactor = 1.3
)

// Defaults used when a live input is unavailable (USD/mt unless noted)
const (
	DefaultGulfBasisCentsBu = 50.0
	DefaultBargeUSDMT       = 25.0
	DefaultOceanGulfUSDMT   = 45.0
	DefaultOceanSantosUSDMT = 32.0
	DefaultInteriorBRUSDMT  = 32.0
)

// IMEA metric keys consumed here
const (
	imeaPrice     = "soja_preco_mt"
	imeaPremium   = "soja_premio_santos"
	imeaFreight   = "soja_frete_sorriso_miritituba"
	imeaCrush     = "soja_margem_esmagamento"
	imeaSelling   = "soja_comercializacao_atual"
	assumeDefault = "default"
)

// Market gathers the live inputs of the bilateral indicators.
// nil 포인터 = 해당 입력 없음
type Market struct {
	CBOTCentsBu    *float64 // ZS last close
	PTAX           *float64 // BRL/USD
	ParanaguaBRLSc *float64 // SOJA_PARANAGUA, BRL/sc60
	USCrushUSDBu   *float64 // soy_crush spread current
	IMEA           map[string]contracts.IMEAMetric
	GTR            *contracts.FreightData
	BrazilFreight  *contracts.FreightData
	Month          int // 1..12, month of the run date
}

func (m Market) imea(key string) (float64, bool) {
	v, ok := m.IMEA[key]
	if !ok {
		return 0, false
	}
	return v.Value, true
}

// Barge returns the Illinois River barge rate in USD/mt
func (m Market) Barge() (float64, bool) {
	if m.GTR == nil {
		return DefaultBargeUSDMT, false
	}
	r, ok := m.GTR.Latest(ams.RouteBargeIllinois)
	if !ok || r.Value <= 0 {
		return DefaultBargeUSDMT, false
	}
	return r.Value / 100 * bargeBenchmarkUSDPerShortTon * shortTonsPerMT, true
}

// OceanGulf returns the Gulf→Asia ocean rate in USD/mt
func (m Market) OceanGulf() (float64, bool) {
	if m.GTR == nil {
		return DefaultOceanGulfUSDMT, false
	}
	r, ok := m.GTR.Latest(ams.RouteOceanGulfAsia)
	if !ok || r.Value <= 0 {
		return DefaultOceanGulfUSDMT, false
	}
	return r.Value, true
}

// OceanBrazil returns the Brazil→Shanghai ocean rate from the given port route
func (m Market) OceanBrazil(route string) (float64, bool) {
	if m.BrazilFreight == nil {
		return DefaultOceanSantosUSDMT, false
	}
	if r, ok := m.BrazilFreight.Latest(route); ok && r.Value > 0 {
		return r.Value, true
	}
	if r, ok := m.BrazilFreight.Latest(ams.RouteOceanSantosChina); ok && r.Value > 0 {
		return r.Value, true
	}
	return DefaultOceanSantosUSDMT, false
}

// InteriorBrazil returns the Sorriso→port truck freight in USD/mt
func (m Market) InteriorBrazil() (float64, bool) {
	frete, ok := m.imea(imeaFreight)
	if !ok || m.PTAX == nil || *m.PTAX <= 0 {
		return DefaultInteriorBRUSDMT, false
	}
	return frete * santosFreightFactor / *m.PTAX, true
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
