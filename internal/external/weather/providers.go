package weather

import (
	"context"
	"fmt"
	"net/url"

	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/external"
	"github.com/agrimacro/agrimacro/pkg/httputil"
)

// OpenMeteo is the keyless 16-day forecast provider
type OpenMeteo struct {
	httpClient *httputil.Client
	baseURL    string
}

// NewOpenMeteo creates the Open-Meteo provider
func NewOpenMeteo(httpClient *httputil.Client) *OpenMeteo {
	return &OpenMeteo{httpClient: httpClient, baseURL: "https://api.open-meteo.com"}
}

// WithBaseURL overrides the API host (tests)
func (p *OpenMeteo) WithBaseURL(u string) *OpenMeteo {
	p.baseURL = u
	return p
}

// Name implements Provider
func (p *OpenMeteo) Name() string { return "open-meteo" }

type openMeteoResponse struct {
	Daily struct {
		Time    []string   `json:"time"`
		TempMax []*float64 `json:"temperature_2m_max"`
		TempMin []*float64 `json:"temperature_2m_min"`
		Precip  []*float64 `json:"precipitation_sum"`
	} `json:"daily"`
}

// Forecast implements Provider
func (p *OpenMeteo) Forecast(ctx context.Context, lat, lon float64) ([]contracts.WeatherDay, error) {
	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%.2f", lat))
	params.Set("longitude", fmt.Sprintf("%.2f", lon))
	params.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_sum")
	params.Set("forecast_days", "16")
	params.Set("timezone", "auto")

	var resp openMeteoResponse
	if err := external.GetJSON(ctx, p.httpClient, Name, "open-meteo", p.baseURL+"/v1/forecast?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	d := resp.Daily
	days := make([]contracts.WeatherDay, 0, len(d.Time))
	for i, date := range d.Time {
		days = append(days, contracts.WeatherDay{
			Date:     date,
			TempMax:  val(d.TempMax, i),
			TempMin:  val(d.TempMin, i),
			PrecipMM: val(d.Precip, i),
		})
	}
	if len(days) == 0 {
		return nil, &contracts.ParseError{Source: Name, Field: "daily", Err: fmt.Errorf("empty forecast")}
	}
	return days, nil
}

func val(vals []*float64, i int) float64 {
	if i < len(vals) && vals[i] != nil {
		return *vals[i]
	}
	return 0
}

// Tomorrow is the Tomorrow.io 15-day forecast provider
type Tomorrow struct {
	httpClient *httputil.Client
	baseURL    string
	apiKey     string
}

// NewTomorrow creates the Tomorrow.io provider
func NewTomorrow(httpClient *httputil.Client, apiKey string) *Tomorrow {
	return &Tomorrow{httpClient: httpClient, baseURL: "https://api.tomorrow.io", apiKey: apiKey}
}

// WithBaseURL overrides the API host (tests)
func (p *Tomorrow) WithBaseURL(u string) *Tomorrow {
	p.baseURL = u
	return p
}

// Name implements Provider
func (p *Tomorrow) Name() string { return "tomorrow.io" }

type tomorrowResponse struct {
	Timelines struct {
		Daily []struct {
			Time   string `json:"time"`
			Values struct {
				TemperatureMax            float64 `json:"temperatureMax"`
				TemperatureMin            float64 `json:"temperatureMin"`
				PrecipitationIntensityAvg float64 `json:"precipitationIntensityAvg"`
			} `json:"values"`
		} `json:"daily"`
	} `json:"timelines"`
}

// Forecast implements Provider.
// 일 강수량 = 평균 강도(mm/h) × 24
func (p *Tomorrow) Forecast(ctx context.Context, lat, lon float64) ([]contracts.WeatherDay, error) {
	params := url.Values{}
	params.Set("location", fmt.Sprintf("%.2f,%.2f", lat, lon))
	params.Set("apikey", p.apiKey)
	params.Set("timesteps", "1d")
	params.Set("units", "metric")

	var resp tomorrowResponse
	if err := external.GetJSON(ctx, p.httpClient, Name, "tomorrow.io", p.baseURL+"/v4/weather/forecast?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	days := make([]contracts.WeatherDay, 0, len(resp.Timelines.Daily))
	for _, d := range resp.Timelines.Daily {
		date := d.Time
		if len(date) > 10 {
			date = date[:10]
		}
		days = append(days, contracts.WeatherDay{
			Date:     date,
			TempMax:  d.Values.TemperatureMax,
			TempMin:  d.Values.TemperatureMin,
			PrecipMM: round1(d.Values.PrecipitationIntensityAvg * 24),
		})
	}
	if len(days) == 0 {
		return nil, &contracts.ParseError{Source: Name, Field: "timelines", Err: fmt.Errorf("empty forecast")}
	}
	return days, nil
}
