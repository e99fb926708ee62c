package eia

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/agrimacro/agrimacro/internal/collector"
	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/external"
	"github.com/agrimacro/agrimacro/pkg/httputil"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

// Name is the adapter name
const Name = "eia"

// ErrNoAPIKey is returned when EIA_API_KEY is not configured
var ErrNoAPIKey = errors.New("EIA_API_KEY not set")

// Series is one EIA v2 query; Key matches the registry symbol
type Series struct {
	Key       string
	Name      string
	Route     string
	Facet     string // facets[...] name
	FacetVal  string
	Frequency string // weekly, monthly
}

// DefaultSeries are the energy series relevant to agriculture
var DefaultSeries = []Series{
	{Key: "CRUDE_STOCKS", Name: "Crude Oil Stocks", Route: "/petroleum/stoc/wstk/data/", Facet: "product", FacetVal: "EPC0", Frequency: "weekly"},
	{Key: "ETHANOL_PRODUCTION", Name: "Ethanol Production", Route: "/petroleum/sum/sndw/data/", Facet: "series", FacetVal: "W_EPOOXE_YOP_NUS_MBBLD", Frequency: "weekly"},
	{Key: "ETHANOL_STOCKS", Name: "Ethanol Stocks", Route: "/petroleum/sum/sndw/data/", Facet: "series", FacetVal: "W_EPOOXE_SAE_NUS_MBBL", Frequency: "weekly"},
	{Key: "DIESEL_RETAIL", Name: "Diesel Retail Price", Route: "/petroleum/pri/gnd/data/", Facet: "series", FacetVal: "EMD_EPD2D_PTE_NUS_DPG", Frequency: "weekly"},
	{Key: "GASOLINE_RETAIL", Name: "Gasoline Retail Price", Route: "/petroleum/pri/gnd/data/", Facet: "series", FacetVal: "EMM_EPMR_PTE_NUS_DPG", Frequency: "weekly"},
	{Key: "WTI_SPOT", Name: "WTI Spot Price", Route: "/petroleum/pri/spt/data/", Facet: "series", FacetVal: "RWTC", Frequency: "weekly"},
	{Key: "NATGAS_SPOT", Name: "Henry Hub Spot", Route: "/natural-gas/pri/sum/data/", Facet: "series", FacetVal: "RNGWHHD", Frequency: "monthly"},
}

// upstream unit → registry unit
var unitMap = map[string]string{
	"MBBL":    "kbbl",
	"MBBL/D":  "kbbl/d",
	"$/GAL":   "USD/gal",
	"$/BBL":   "USD/bbl",
	"$/MMBTU": "USD/MMBtu",
}

// NormalizeUnit maps EIA unit labels to registry units; unknown labels pass through
func NormalizeUnit(u string) string {
	if v, ok := unitMap[strings.ToUpper(strings.TrimSpace(u))]; ok {
		return v
	}
	return u
}

// Adapter reads EIA API v2
type Adapter struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	apiKey     string
	series     []Series
}

// New creates the eia adapter
func New(httpClient *httputil.Client, apiKey string, log *logger.Logger) *Adapter {
	return &Adapter{
		httpClient: httpClient,
		logger:     log.WithField("adapter", Name),
		baseURL:    "https://api.eia.gov/v2",
		apiKey:     apiKey,
		series:     DefaultSeries,
	}
}

// WithBaseURL overrides the API host (tests)
func (a *Adapter) WithBaseURL(u string) *Adapter {
	a.baseURL = u
	return a
}

// Name implements collector.Adapter
func (a *Adapter) Name() string { return Name }

type v2Response struct {
	Response struct {
		Data []struct {
			Period string      `json:"period"`
			Value  interface{} `json:"value"`
			Units  string      `json:"units"`
		} `json:"data"`
	} `json:"response"`
}

// Fetch implements collector.Adapter
func (a *Adapter) Fetch(ctx context.Context, _ collector.Window, _ collector.Options) (interface{}, error) {
	if a.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	data := contracts.EIAData{Series: make(map[string]contracts.EIASeries, len(a.series))}
	var firstErr error
	for _, s := range a.series {
		es, err := a.fetchSeries(ctx, s)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if firstErr == nil {
				firstErr = err
			}
			a.logger.WithError(err).WithField("series", s.Key).Warn("eia series failed")
			continue
		}
		data.Series[s.Key] = es
	}

	a.logger.WithFields(map[string]interface{}{
		"success": len(data.Series),
		"total":   len(a.series),
	}).Info("eia collected")

	if len(data.Series) == 0 {
		return nil, firstErr
	}
	return data, nil
}

func (a *Adapter) fetchSeries(ctx context.Context, s Series) (contracts.EIASeries, error) {
	length := 60
	if s.Frequency == "monthly" {
		length = 14
	}
	params := url.Values{}
	params.Set("api_key", a.apiKey)
	params.Set("frequency", s.Frequency)
	params.Set("data[0]", "value")
	params.Set(fmt.Sprintf("facets[%s][]", s.Facet), s.FacetVal)
	params.Set("sort[0][column]", "period")
	params.Set("sort[0][direction]", "desc")
	params.Set("length", strconv.Itoa(length))

	var resp v2Response
	if err := external.GetJSON(ctx, a.httpClient, Name, s.Key, a.baseURL+s.Route+"?"+params.Encode(), &resp); err != nil {
		return contracts.EIASeries{}, err
	}

	var desc []contracts.Point
	unit := ""
	for _, row := range resp.Response.Data {
		v, ok := toFloat(row.Value)
		if !ok {
			continue
		}
		if unit == "" {
			unit = NormalizeUnit(row.Units)
		}
		desc = append(desc, contracts.Point{Date: row.Period, Value: v})
	}
	if len(desc) == 0 {
		return contracts.EIASeries{}, &contracts.ParseError{Source: Name, Field: s.Key, Err: fmt.Errorf("no numeric values")}
	}
	return Summarize(s, unit, desc), nil
}

// Summarize derives latest, wow/mom changes and 52-week extremes from
// newest-first observations
func Summarize(s Series, unit string, desc []contracts.Point) contracts.EIASeries {
	out := contracts.EIASeries{
		Name:         s.Name,
		Unit:         unit,
		LatestPeriod: desc[0].Date,
		LatestValue:  desc[0].Value,
	}

	latest := desc[0].Value
	window := 52
	if s.Frequency == "monthly" {
		window = 12
		if len(desc) > 1 {
			out.MomChangePct = external.PctChange(latest, desc[1].Value)
		}
	} else {
		if len(desc) > 1 {
			out.WowChangePct = external.PctChange(latest, desc[1].Value)
		}
		if len(desc) > 4 {
			out.MomChangePct = external.PctChange(latest, desc[4].Value)
		}
	}

	if window > len(desc) {
		window = len(desc)
	}
	hi, lo := desc[0].Value, desc[0].Value
	for _, p := range desc[:window] {
		if p.Value > hi {
			hi = p.Value
		}
		if p.Value < lo {
			lo = p.Value
		}
	}
	out.High52w = &hi
	out.Low52w = &lo

	// history ascending
	out.History = make([]contracts.Point, len(desc))
	for i, p := range desc {
		out.History[len(desc)-1-i] = p
	}
	return out
}

// toFloat accepts EIA values sent as numbers or strings
func toFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
