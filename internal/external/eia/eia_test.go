package eia

import (
	"context"
	"errors"
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
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		if !strings.Contains(r.URL.Path, "wstk") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"response":{"data":[
			{"period":"2025-02-21","value":"433.8","units":"MBBL"},
			{"period":"2025-02-14","value":"430.2","units":"MBBL"},
			{"period":"2025-02-07","value":427.9,"units":"MBBL"},
			{"period":"2025-01-31","value":null,"units":"MBBL"},
			{"period":"2025-01-24","value":"415.1","units":"MBBL"},
			{"period":"2025-01-17","value":"412.0","units":"MBBL"}
		]}}`)
	}))
	defer srv.Close()

	a := New(httputil.New(logger.Nop(), 5*time.Second).DisableRetry(), "secret", logger.Nop()).WithBaseURL(srv.URL)
	out, err := a.Fetch(context.Background(), collector.Window{}, collector.Options{})
	require.NoError(t, err)

	data := out.(contracts.EIAData)
	require.Len(t, data.Series, 1)
	crude := data.Series["CRUDE_STOCKS"]
	assert.Equal(t, "kbbl", crude.Unit)
	assert.Equal(t, 433.8, crude.LatestValue)
	assert.Equal(t, "2025-02-21", crude.LatestPeriod)
	require.NotNil(t, crude.WowChangePct)
	assert.InDelta(t, (433.8-430.2)/430.2*100, *crude.WowChangePct, 1e-9)
	require.NotNil(t, crude.MomChangePct)
	assert.InDelta(t, (433.8-412.0)/412.0*100, *crude.MomChangePct, 1e-9)
	assert.Equal(t, 412.0, *crude.Low52w)
	assert.Equal(t, "2025-01-17", crude.History[0].Date)
}

func TestFetch_NoKey(t *testing.T) {
	a := New(httputil.New(logger.Nop(), time.Second), "", logger.Nop())
	_, err := a.Fetch(context.Background(), collector.Window{}, collector.Options{})
	assert.True(t, errors.Is(err, ErrNoAPIKey))
	assert.False(t, contracts.IsRetryable(err))
}

func TestNormalizeUnit(t *testing.T) {
	tests := map[string]string{
		"MBBL":    "kbbl",
		"mbbl/d":  "kbbl/d",
		"$/GAL":   "USD/gal",
		"$/MMBTU": "USD/MMBtu",
		"Percent": "Percent",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeUnit(in), in)
	}
}

func TestSummarize_Monthly(t *testing.T) {
	s := Series{Key: "NATGAS_SPOT", Name: "Henry Hub Spot", Frequency: "monthly"}
	got := Summarize(s, "USD/MMBtu", []contracts.Point{{Date: "2025-01", Value: 4.13}, {Date: "2024-12", Value: 3.01}})

	assert.Nil(t, got.WowChangePct)
	require.NotNil(t, got.MomChangePct)
	assert.InDelta(t, (4.13-3.01)/3.01*100, *got.MomChangePct, 1e-9)
	assert.Equal(t, 4.13, *got.High52w)
}
