package fas

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrimacro/agrimacro/internal/collector"
	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/pkg/httputil"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("API_KEY"))
		switch {
		case strings.HasSuffix(r.URL.Path, "/year/2025"):
			w.WriteHeader(http.StatusNotFound)
		case strings.Contains(r.URL.Path, "/psd/commodity/0440000/"):
			fmt.Fprint(w, `[
				{"attributeDescription":"Production","unitDescription":"(1000 MT)","value":1200000},
				{"attributeDescription":"Ending Stocks","unitDescription":"(1000 MT)","value":300000}
			]`)
		case strings.Contains(r.URL.Path, "/esr/exports/commodityCode/401/"):
			fmt.Fprint(w, `[
				{"weekEndingDate":"2025-02-20T00:00:00","countryCode":5700,"weeklyExports":100,"accumulatedExports":1000,"outstandingSales":50,"currentMYNetSales":20},
				{"weekEndingDate":"2025-02-20T00:00:00","countryCode":2010,"weeklyExports":300,"accumulatedExports":9000,"outstandingSales":150,"currentMYNetSales":80},
				{"weekEndingDate":"2025-02-13T00:00:00","countryCode":2010,"weeklyExports":999,"accumulatedExports":8700,"outstandingSales":1,"currentMYNetSales":1}
			]`)
		default:
			fmt.Fprint(w, `[]`)
		}
	}))
	defer srv.Close()

	a := New(httputil.New(logger.Nop(), 5*time.Second).DisableRetry(), "k", []string{"corn"}, logger.Nop()).WithBaseURL(srv.URL)
	asOf := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	out, err := a.Fetch(context.Background(), collector.NewWindow(asOf, 30), collector.Options{AsOf: asOf})
	require.NoError(t, err)

	data := out.(contracts.FASData)
	require.Len(t, data.Stocks["corn"], StockYears-1)
	assert.Equal(t, 300000.0, data.Stocks["corn"][0].Value)
	assert.Equal(t, 2020, data.Stocks["corn"][0].Year)

	sales := data.ExportSales["corn"]
	assert.Equal(t, "2025-02-20", sales.WeekEnding)
	assert.Equal(t, 10000.0, sales.AccumulatedExports)
	assert.Equal(t, 1000.0, sales.ChinaAccumulated)
	assert.Equal(t, 100.0, sales.NetSales)

	// 국가/주 원본 행은 집계와 별도로 보존
	assert.Equal(t, []contracts.ExportSalesRow{
		{WeekEnding: "2025-02-13", CountryCode: 2010, NetSales: 1, WeeklyExports: 999, AccumulatedExports: 8700, OutstandingSales: 1},
		{WeekEnding: "2025-02-20", CountryCode: 2010, NetSales: 80, WeeklyExports: 300, AccumulatedExports: 9000, OutstandingSales: 150},
		{WeekEnding: "2025-02-20", CountryCode: 5700, NetSales: 20, WeeklyExports: 100, AccumulatedExports: 1000, OutstandingSales: 50},
	}, sales.Rows)
}

func TestEndingStocks_MixedSeries(t *testing.T) {
	rows := []psdRow{
		{AttributeDescription: "Ending Stocks", UnitDescription: "(1000 480 lb. Bales)", Value: 80000},
		{AttributeDescription: "Ending Stocks (Farm)", UnitDescription: "(1000 480 lb. Bales)", Value: 5000},
		{AttributeDescription: "Imports", Value: 40000},
	}
	obs := EndingStocks(rows, 2024)
	require.Len(t, obs, 2)

	deduped, mixed := collector.DedupeMax("cotton", obs, logger.Nop())
	require.Len(t, deduped, 1)
	assert.Equal(t, 80000.0, deduped[0].Value)
	require.Len(t, mixed, 1)
	assert.Equal(t, "2024/MY", mixed[0].Period)
}

func TestFetch_NoKey(t *testing.T) {
	a := New(httputil.New(logger.Nop(), time.Second), "", []string{"corn"}, logger.Nop())
	_, err := a.Fetch(context.Background(), collector.Window{}, collector.Options{})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}
