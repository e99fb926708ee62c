package weather

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrimacro/agrimacro/internal/collector"
	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/pkg/httputil"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

const oniText = `SEAS  YR   TOTAL   ANOM
 OND 2024  26.25  -0.37
 NDJ 2024  26.12  -0.52
 DJF 2025  26.01  -0.62
`

type stubProvider struct {
	name string
	err  error
	days []contracts.WeatherDay
}

func (s stubProvider) Name() string { return s.name }

func (s stubProvider) Forecast(context.Context, float64, float64) ([]contracts.WeatherDay, error) {
	return s.days, s.err
}

func TestParseONI(t *testing.T) {
	got, err := ParseONI(oniText)
	require.NoError(t, err)
	assert.Equal(t, "DJF", got.Season)
	assert.Equal(t, 2025, got.Year)
	assert.Equal(t, -0.62, got.ONI)
	assert.Equal(t, PhaseLaNina, got.Phase)

	_, err = ParseONI("SEAS YR TOTAL ANOM\n")
	assert.Equal(t, "parse", contracts.ErrorKind(err))
}

func TestPhase(t *testing.T) {
	tests := []struct {
		oni  float64
		want string
	}{
		{0.5, PhaseElNino},
		{0.49, PhaseNeutral},
		{-0.49, PhaseNeutral},
		{-0.5, PhaseLaNina},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Phase(tt.oni), "oni=%v", tt.oni)
	}
}

func TestSummarize_Alerts(t *testing.T) {
	days := make([]contracts.WeatherDay, 10)
	for i := range days {
		days[i] = contracts.WeatherDay{Date: fmt.Sprintf("2025-06-%02d", i+1), TempMax: 18, TempMin: 4, PrecipMM: 0.2}
	}
	days[2].TempMin = -3.5
	days[9].TempMin = -9 // outside the 7-day window

	region := Regions[0] // corn_belt: frost ≤ -2, drought < 5 mm
	got := Summarize(region, days)

	assert.Equal(t, 1.4, got.Precip7dMM)
	require.Len(t, got.Alerts, 2)
	assert.Contains(t, got.Alerts[0], "GEADA")
	assert.Contains(t, got.Alerts[0], "-3.5")
	assert.Contains(t, got.Alerts[1], "SECA")
}

func TestFetch_FallbackProvider(t *testing.T) {
	oni := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.URL.Query().Get("token"))
		fmt.Fprint(w, oniText)
	}))
	defer oni.Close()

	days := []contracts.WeatherDay{{Date: "2025-03-01", TempMax: 30, TempMin: 20, PrecipMM: 40}}
	enso := NewENSOClient(httputil.New(logger.Nop(), 5*time.Second).DisableRetry(), "tok").WithURL(oni.URL)
	a := NewWithProviders(
		stubProvider{name: "tomorrow.io", err: errors.New("quota")},
		stubProvider{name: "open-meteo", days: days},
		enso, logger.Nop(),
	)

	out, err := a.Fetch(context.Background(), collector.Window{}, collector.Options{})
	require.NoError(t, err)

	data := out.(contracts.WeatherData)
	assert.Equal(t, "tomorrow.io+open-meteo", data.Provider)
	assert.Len(t, data.Regions, len(Regions))
	require.NotNil(t, data.ENSO)
	assert.Equal(t, PhaseLaNina, data.ENSO.Phase)
}

func TestOpenMeteoForecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "16", r.URL.Query().Get("forecast_days"))
		fmt.Fprint(w, `{"daily":{"time":["2025-03-01","2025-03-02"],
			"temperature_2m_max":[31.2,null],"temperature_2m_min":[21.0,20.5],"precipitation_sum":[12.4,0]}}`)
	}))
	defer srv.Close()

	p := NewOpenMeteo(httputil.New(logger.Nop(), 5*time.Second).DisableRetry()).WithBaseURL(srv.URL)
	days, err := p.Forecast(context.Background(), -14.5, -53)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, 12.4, days[0].PrecipMM)
	assert.Equal(t, 0.0, days[1].TempMax)
}
