package ams

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/agrimacro/agrimacro/internal/collector"
	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/pkg/httputil"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

// workbook builds an XLSX with one sheet holding rows
func workbook(t *testing.T, sheet string, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", sheet))
	for i, row := range rows {
		addr, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, addr, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func serial(t *testing.T, y int, m time.Month, d int) float64 {
	t.Helper()
	v, err := excelize.TimeToExcelTime(time.Date(y, m, d, 0, 0, 0, 0, time.UTC), false)
	require.NoError(t, err)
	return v
}

func TestParseCostIndicators(t *testing.T) {
	rows := [][]string{
		{"Grain Transport Cost Indicators"},
		{"Date", "Diesel", "Rail", "Barge", "Gulf", "PNW"},
		{"45299", "3.80", "3500", "300", "55.0", "30.0"}, // 2024-01-08
		{"45306", "3.90", "-", "320", "57.0", ""},        // 2024-01-15
		{"45390", "4.00", "3600", "350", "60.0", "31.0"}, // 2024-04-08
	}
	got, err := ParseCostIndicators(rows, logger.Nop())
	require.NoError(t, err)

	data := contracts.FreightData{Records: got}
	barge, ok := data.Latest(RouteBargeIllinois)
	require.True(t, ok)
	assert.Equal(t, contracts.FreightRecord{Route: RouteBargeIllinois, Mode: "barge", Year: 2024, Quarter: 2, Value: 350, Unit: "pct_tariff"}, barge)

	var q1Diesel, q1Rail *contracts.FreightRecord
	for i, r := range got {
		if r.Year == 2024 && r.Quarter == 1 {
			switch r.Route {
			case RouteDiesel:
				q1Diesel = &got[i]
			case RouteRailShuttle:
				q1Rail = &got[i]
			}
		}
	}
	require.NotNil(t, q1Diesel)
	assert.InDelta(t, 3.85, q1Diesel.Value, 1e-9)
	require.NotNil(t, q1Rail)
	assert.InDelta(t, 3500, q1Rail.Value, 1e-9)
}

func TestParseOceanFreight(t *testing.T) {
	rows := [][]string{
		{"", "Table 9"},
		{"", "Port", "Destination", "1st qtr 2023", "2nd qtr 2023", "3rd qtr 2023", "4th qtr 2023", "Average 2023"},
		{"", "Santos", "China (Shanghai)", "40.5", "38.0", "42.0", "45.25", "41.4"},
		{"", "Port", "Destination", "1st qtr 2024", "2nd qtr 2024", "3rd qtr 2024", "4th qtr 2024", "Average 2024"},
		{"", "Santos", "China (Shanghai)", "44.0", "", "", "", ""},
	}
	got, err := ParseOceanFreight(rows, logger.Nop())
	require.NoError(t, err)
	require.Len(t, got, 5)

	latest, ok := contracts.FreightData{Records: got}.Latest(RouteOceanSantosChina)
	require.True(t, ok)
	assert.Equal(t, 2024, latest.Year)
	assert.Equal(t, 1, latest.Quarter)
	assert.InDelta(t, 44.0, latest.Value, 1e-9)
}

func TestParse_Empty(t *testing.T) {
	_, err := ParseCostIndicators([][]string{{"Date"}}, logger.Nop())
	assert.Error(t, err)
	_, err = ParseOceanFreight(nil, logger.Nop())
	assert.Error(t, err)
	_, err = TruckRoutesParser(2024)([][]string{{"", "Route #"}}, logger.Nop())
	assert.Error(t, err)
}

func TestParse_DuplicateRouteQuarterKeepsMax(t *testing.T) {
	t.Run("truck routes", func(t *testing.T) {
		rows := [][]string{
			{"", "Route #", "Origin", "Destination", "Distance", "Share %", "Freight price"},
			{"", "1", "Sorriso (MT)", "Santos", "1190", "12.5", "3.1", "", "", ""},
			{"", "7", "Sorriso (MT)", "Santos", "1210", "4.0", "3.6", "", "", ""},
		}
		var buf bytes.Buffer
		got, err := TruckRoutesParser(2024)(rows, logger.NewWithWriter(&buf, "warn"))
		require.NoError(t, err)

		require.Len(t, got, 1)
		assert.Equal(t, contracts.FreightRecord{Route: "Sorriso (MT) - Santos", Mode: "truck", Year: 2024, Quarter: 1, Value: 3.6, Unit: "USD/mt/100mi"}, got[0])
		assert.Contains(t, buf.String(), "mixed-series bucket")
		assert.Contains(t, buf.String(), "route #7")
	})

	t.Run("ocean freight", func(t *testing.T) {
		rows := [][]string{
			{"", "Port", "Destination", "1st qtr 2024", "2nd qtr 2024"},
			{"", "Santos", "China (Shanghai)", "44.0", "41.0"},
			{"", "Santos", "China (Shanghai)", "46.5", ""},
		}
		got, err := ParseOceanFreight(rows, logger.Nop())
		require.NoError(t, err)

		require.Len(t, got, 2)
		assert.Equal(t, 1, got[0].Quarter)
		assert.InDelta(t, 46.5, got[0].Value, 1e-9)
		assert.Equal(t, 2, got[1].Quarter)
		assert.InDelta(t, 41.0, got[1].Value, 1e-9)
	})

	t.Run("cost indicators repeated week", func(t *testing.T) {
		rows := [][]string{
			{"Date", "Diesel", "Rail", "Barge", "Gulf", "PNW"},
			{"45299", "3.80", "", "", "", ""}, // 2024-01-08
			{"45299", "4.00", "", "", "", ""}, // 같은 주 재게시
			{"45306", "3.90", "", "", "", ""}, // 2024-01-15
		}
		got, err := ParseCostIndicators(rows, logger.Nop())
		require.NoError(t, err)

		require.Len(t, got, 1)
		assert.Equal(t, RouteDiesel, got[0].Route)
		assert.InDelta(t, 3.95, got[0].Value, 1e-9)
	})
}

func TestFetch_Brazil(t *testing.T) {
	ocean := workbook(t, "Table 9", [][]interface{}{
		{"", "Port", "Destination", "1st qtr 2024", "2nd qtr 2024", "3rd qtr 2024", "4th qtr 2024", "Average 2024"},
		{"", "Santos", "China (Shanghai)", 44.0, 41.5, 39.0, 40.0, 41.1},
	})
	truck := workbook(t, "Table 7", [][]interface{}{
		{"", "Quarterly truck rates"},
		{"", "Route #", "Origin", "Destination", "Distance", "Share %", "Freight price"},
		{"", "", "", "", "", "", "1st qtr", "2nd qtr", "3rd qtr", "4th qtr"},
		{"", 1, "Sorriso (MT)", "Santos", 1190, 12.5, 3.1, 3.4, 3.2, 3.0},
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case BrazilSheets[0].Path:
			w.Write(ocean)
		case BrazilSheets[1].Path:
			w.Write(truck)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	a := NewBrazilTransport(httputil.New(logger.Nop(), 5*time.Second).DisableRetry(), logger.Nop()).WithBaseURL(srv.URL)
	assert.Equal(t, NameBrazil, a.Name())

	out, err := a.Fetch(context.Background(), collector.Window{}, collector.Options{})
	require.NoError(t, err)
	data := out.(contracts.FreightData)
	assert.Equal(t, NameBrazil, data.Dataset)
	require.Len(t, data.Records, 8)

	rec, ok := data.Latest("Sorriso (MT) - Santos")
	require.True(t, ok)
	assert.Equal(t, "truck", rec.Mode)
	assert.InDelta(t, 3.0, rec.Value, 1e-9)
}

func TestFetch_GTRDates(t *testing.T) {
	body := workbook(t, "Data", [][]interface{}{
		{"Date", "Price", "Rail", "River", "Gulf", "PNW"},
		{serial(t, 2025, 2, 5), 3.61, 3400, 280, 52.1, 29.3},
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	a := NewGTR(httputil.New(logger.Nop(), 5*time.Second).DisableRetry(), logger.Nop()).WithBaseURL(srv.URL)
	out, err := a.Fetch(context.Background(), collector.Window{}, collector.Options{})
	require.NoError(t, err)

	rec, ok := out.(contracts.FreightData).Latest(RouteOceanGulfAsia)
	require.True(t, ok)
	assert.Equal(t, 2025, rec.Year)
	assert.Equal(t, 1, rec.Quarter)
}

func TestFetch_NotAWorkbook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>moved</html>"))
	}))
	defer srv.Close()

	a := NewGTR(httputil.New(logger.Nop(), 5*time.Second).DisableRetry(), logger.Nop()).WithBaseURL(srv.URL)
	_, err := a.Fetch(context.Background(), collector.Window{}, collector.Options{})
	assert.Equal(t, "parse", contracts.ErrorKind(err))
}
