package weather

import (
	"context"
	"fmt"
	"sort"

	"github.com/agrimacro/agrimacro/internal/collector"
	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/pkg/httputil"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

// Name is the adapter name
const Name = "weather"

// Thresholds are the per-region alert limits; nil disables a check
type Thresholds struct {
	FrostBelowC *float64
	DroughtMM7d *float64
	FloodMM7d   *float64
}

// Region is a producing region forecast point
type Region struct {
	Key    string
	Label  string
	Lat    float64
	Lon    float64
	Limits Thresholds
}

func limit(v float64) *float64 { return &v }

// Regions are the forecast points of the report
var Regions = []Region{
	{Key: "corn_belt", Label: "Corn Belt (IA/IL)", Lat: 41.5, Lon: -93.5, Limits: Thresholds{FrostBelowC: limit(-2), DroughtMM7d: limit(5), FloodMM7d: limit(100)}},
	{Key: "cerrado_mt", Label: "Cerrado (MT/GO/MS)", Lat: -14.5, Lon: -53.0, Limits: Thresholds{DroughtMM7d: limit(10), FloodMM7d: limit(150)}},
	{Key: "sul_pr_rs", Label: "Sul do Brasil (PR/RS)", Lat: -25.5, Lon: -51.0, Limits: Thresholds{FrostBelowC: limit(0), DroughtMM7d: limit(8), FloodMM7d: limit(120)}},
	{Key: "minas_cafe", Label: "Minas Gerais (Café)", Lat: -21.5, Lon: -45.5, Limits: Thresholds{FrostBelowC: limit(2), DroughtMM7d: limit(5)}},
	{Key: "pampas_arg", Label: "Pampas (Argentina)", Lat: -34.5, Lon: -61.0, Limits: Thresholds{FrostBelowC: limit(-1), DroughtMM7d: limit(8), FloodMM7d: limit(110)}},
	{Key: "delta_ms", Label: "Delta Mississippi (US)", Lat: 33.5, Lon: -90.5, Limits: Thresholds{FloodMM7d: limit(100)}},
}

// Provider returns daily forecasts for a point
type Provider interface {
	Name() string
	Forecast(ctx context.Context, lat, lon float64) ([]contracts.WeatherDay, error)
}

// Adapter collects regional forecasts and the ENSO state
type Adapter struct {
	primary  Provider
	fallback Provider
	enso     *ENSOClient
	logger   *logger.Logger
	regions  []Region
}

// New creates the weather adapter. Tomorrow.io is primary when a key is set,
// Open-Meteo otherwise (and always as fallback).
func New(httpClient *httputil.Client, tomorrowKey, noaaKey string, log *logger.Logger) *Adapter {
	openMeteo := NewOpenMeteo(httpClient)
	a := &Adapter{
		primary: openMeteo,
		enso:    NewENSOClient(httpClient, noaaKey),
		logger:  log.WithField("adapter", Name),
		regions: Regions,
	}
	if tomorrowKey != "" {
		a.primary = NewTomorrow(httpClient, tomorrowKey)
		a.fallback = openMeteo
	}
	return a
}

// NewWithProviders wires explicit providers (tests)
func NewWithProviders(primary, fallback Provider, enso *ENSOClient, log *logger.Logger) *Adapter {
	return &Adapter{primary: primary, fallback: fallback, enso: enso, logger: log.WithField("adapter", Name), regions: Regions}
}

// Name implements collector.Adapter
func (a *Adapter) Name() string { return Name }

// Fetch implements collector.Adapter
func (a *Adapter) Fetch(ctx context.Context, _ collector.Window, _ collector.Options) (interface{}, error) {
	data := contracts.WeatherData{
		Provider: a.primary.Name(),
		Regions:  make(map[string]contracts.RegionForecast, len(a.regions)),
	}

	var firstErr error
	usedFallback := false
	for _, r := range a.regions {
		days, err := a.primary.Forecast(ctx, r.Lat, r.Lon)
		if err != nil && a.fallback != nil && ctx.Err() == nil {
			a.logger.WithError(err).WithField("region", r.Key).Warn("primary provider failed, using fallback")
			days, err = a.fallback.Forecast(ctx, r.Lat, r.Lon)
			usedFallback = err == nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		data.Regions[r.Key] = Summarize(r, days)
	}
	if usedFallback {
		data.Provider = fmt.Sprintf("%s+%s", a.primary.Name(), a.fallback.Name())
	}

	if len(data.Regions) == 0 {
		return nil, firstErr
	}

	if a.enso != nil {
		enso, err := a.enso.Latest(ctx)
		if err != nil {
			a.logger.WithError(err).Warn("enso status unavailable")
		} else {
			data.ENSO = enso
		}
	}

	keys := make([]string, 0, len(data.Regions))
	for k := range data.Regions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	a.logger.WithFields(map[string]interface{}{
		"regions":  keys,
		"provider": data.Provider,
	}).Info("weather collected")
	return data, nil
}

// Summarize computes 7-day aggregates and alerts for a region
func Summarize(r Region, days []contracts.WeatherDay) contracts.RegionForecast {
	out := contracts.RegionForecast{Name: r.Label, Lat: r.Lat, Lon: r.Lon, Days: days}

	week := days
	if len(week) > 7 {
		week = week[:7]
	}
	if len(week) == 0 {
		return out
	}

	var precip, temp float64
	minT := week[0].TempMin
	minDate := week[0].Date
	frostDays := 0
	for _, d := range week {
		precip += d.PrecipMM
		temp += (d.TempMax + d.TempMin) / 2
		if r.Limits.FrostBelowC != nil && d.TempMin <= *r.Limits.FrostBelowC {
			if frostDays == 0 || d.TempMin < minT {
				minT, minDate = d.TempMin, d.Date
			}
			frostDays++
		}
	}
	out.Precip7dMM = round1(precip)
	out.TempAvg7d = round1(temp / float64(len(week)))

	if frostDays > 0 {
		out.Alerts = append(out.Alerts, fmt.Sprintf("GEADA: risco de geada em %d dia(s), mínima %.1f°C em %s", frostDays, minT, minDate))
	}
	if lim := r.Limits.DroughtMM7d; lim != nil && precip < *lim {
		out.Alerts = append(out.Alerts, fmt.Sprintf("SECA: precipitação 7d %.1f mm (limiar %.0f mm)", precip, *lim))
	}
	if lim := r.Limits.FloodMM7d; lim != nil && precip > *lim {
		out.Alerts = append(out.Alerts, fmt.Sprintf("EXCESSO_HIDRICO: %.1f mm em 7 dias (limiar %.0f mm)", precip, *lim))
	}
	return out
}

func round1(v float64) float64 {
	if v < 0 {
		return -round1(-v)
	}
	return float64(int64(v*10+0.5)) / 10
}
