package bilateral

import (
	"errors"
	"fmt"

	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/external/ams"
)

// BR price methods
const (
	MethodParanagua  = "paranagua"
	MethodMTInterior = "mt_interior"
)

// ErrMissingInput is returned when a required live input is absent
var ErrMissingInput = errors.New("missing input")

// LandedCost compares the delivered cost of soybeans in Shanghai from the US Gulf and from Brazil.
//
//	US = (cbot + gulf basis)/100 · 36.7437 + barge + ocean
//	BR = (R$/sc ÷ ptax) · 16.6667 + ocean                         (Paranaguá)
//	BR = MT price + interior freight/ptax + premium/100 · 36.7437 + ocean   (MT interior)
func LandedCost(m Market) (*contracts.LandedCost, error) {
	if m.CBOTCentsBu == nil || *m.CBOTCentsBu <= 0 {
		return nil, fmt.Errorf("%w: CBOT soybeans", ErrMissingInput)
	}
	if m.PTAX == nil || *m.PTAX <= 0 {
		return nil, fmt.Errorf("%w: PTAX", ErrMissingInput)
	}
	ptax := *m.PTAX
	assumptions := make(map[string]string)

	// US side
	barge, live := m.Barge()
	if !live {
		assumptions["barge_usd_mt"] = assumeDefault
	}
	usOcean, live := m.OceanGulf()
	if !live {
		assumptions["ocean_gulf_usd_mt"] = assumeDefault
	}
	assumptions["gulf_basis_cents_bu"] = assumeDefault
	usFOB := (*m.CBOTCentsBu + DefaultGulfBasisCentsBu) / 100 * BushelsPerMT
	usLanded := usFOB + barge + usOcean

	// BR side
	var brFOB, brOcean float64
	var method string
	switch {
	case m.ParanaguaBRLSc != nil && *m.ParanaguaBRLSc > 0:
		method = MethodParanagua
		brFOB = *m.ParanaguaBRLSc / ptax * SacasPerMT
		if brOcean, live = m.OceanBrazil(ams.RouteOceanParanaguaChina); !live {
			assumptions["ocean_br_usd_mt"] = assumeDefault
		}
	default:
		price, ok := m.imea(imeaPrice)
		if !ok || price <= 0 {
			return nil, fmt.Errorf("%w: Brazil soybean price", ErrMissingInput)
		}
		method = MethodMTInterior
		interior, live := m.InteriorBrazil()
		if !live {
			assumptions["interior_br_usd_mt"] = assumeDefault
		}
		premium, _ := m.imea(imeaPremium)
		brFOB = price/ptax*SacasPerMT + interior + premium/100*BushelsPerMT
		if brOcean, live = m.OceanBrazil(ams.RouteOceanSantosChina); !live {
			assumptions["ocean_br_usd_mt"] = assumeDefault
		}
	}
	brLanded := brFOB + brOcean

	spread := usLanded - brLanded
	spreadPct := 0.0
	if avg := (usLanded + brLanded) / 2; avg > 0 {
		spreadPct = spread / avg * 100
	}
	origin := "US"
	if spread > 0 {
		origin = "BR"
	}

	return &contracts.LandedCost{
		USLanded:          round(usLanded, 2),
		BRLanded:          round(brLanded, 2),
		Spread:            round(spread, 2),
		SpreadPct:         round(spreadPct, 2),
		CompetitiveOrigin: origin,
		USFOB:             round(usFOB, 2),
		BRFOB:             round(brFOB, 2),
		FOBSpread:         round(usFOB-brFOB, 2),
		USOcean:           round(usOcean, 2),
		BROcean:           round(brOcean, 2),
		OceanAdvantage:    round(usOcean-brOcean, 2),
		BRPriceMethod:     method,
		PTAX:              ptax,
		CBOTCentsBu:       *m.CBOTCentsBu,
		Assumptions:       assumptions,
	}, nil
}
