package collector

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

func TestDedupeMax(t *testing.T) {
	rows := []contracts.StockObservation{
		{Year: 2025, Period: "DEC", Value: 1200, SeriesKey: "total", ShortDesc: "CORN, GRAIN - STOCKS, MEASURED IN BU"},
		{Year: 2025, Period: "DEC", Value: 1900, SeriesKey: "total", ShortDesc: "CORN, GRAIN - STOCKS, MEASURED IN BU"},
		{Year: 2025, Period: "DEC", Value: 800, SeriesKey: "on_farm", ShortDesc: "CORN, GRAIN, ON FARM - STOCKS, MEASURED IN BU"},
		{Year: 2025, Period: "SEP", Value: 1500, SeriesKey: "total", ShortDesc: "CORN, GRAIN - STOCKS, MEASURED IN BU"},
	}

	out, mixed := DedupeMax("corn", rows, logger.Nop())

	want := []contracts.StockObservation{
		{Year: 2025, Period: "DEC", Value: 800, SeriesKey: "on_farm", ShortDesc: "CORN, GRAIN, ON FARM - STOCKS, MEASURED IN BU"},
		{Year: 2025, Period: "DEC", Value: 1900, SeriesKey: "total", ShortDesc: "CORN, GRAIN - STOCKS, MEASURED IN BU"},
		{Year: 2025, Period: "SEP", Value: 1500, SeriesKey: "total", ShortDesc: "CORN, GRAIN - STOCKS, MEASURED IN BU"},
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("DedupeMax() mismatch (-want +got):\n%s", diff)
	}

	assert.Len(t, mixed, 1)
	assert.Equal(t, "2025/DEC", mixed[0].Period)
	assert.Equal(t, "corn", mixed[0].Commodity)
	assert.Len(t, mixed[0].ShortDescs, 2)
}

func TestDedupeMax_Empty(t *testing.T) {
	out, mixed := DedupeMax("wheat", nil, logger.Nop())
	assert.Empty(t, out)
	assert.Empty(t, mixed)
}

type rate struct {
	route   string
	quarter string
	value   float64
	label   string
}

func TestDedupeMaxBy(t *testing.T) {
	rows := []rate{
		{"santos", "2024/Q1", 44, "route #1"},
		{"santos", "2024/Q2", 41, "route #1"},
		{"santos", "2024/Q1", 47, "route #7"},
		{"paranagua", "2024/Q1", 39, "route #2"},
	}
	key := DedupeKey[rate]{
		Period: func(r rate) string { return r.quarter },
		Series: func(r rate) string { return r.route },
		Value:  func(r rate) float64 { return r.value },
		Desc:   func(r rate) string { return r.label },
		Bucket: func(r rate) string { return r.route + " " + r.quarter },
	}

	var buf bytes.Buffer
	out, mixed := DedupeMaxBy(rows, key, logger.NewWithWriter(&buf, "warn"))

	want := []rate{
		{"santos", "2024/Q1", 47, "route #7"},
		{"santos", "2024/Q2", 41, "route #1"},
		{"paranagua", "2024/Q1", 39, "route #2"},
	}
	if diff := cmp.Diff(want, out, cmp.AllowUnexported(rate{})); diff != "" {
		t.Errorf("DedupeMaxBy() mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []Mixed{{Bucket: "santos 2024/Q1", Descs: []string{"route #1", "route #7"}}}, mixed)
	assert.Contains(t, buf.String(), "mixed-series bucket")
	assert.Contains(t, buf.String(), "santos 2024/Q1")
}

func TestDedupeMaxBy_NoDesc(t *testing.T) {
	rows := []rate{
		{"santos", "2024/Q1", 44, "a"},
		{"santos", "2024/Q1", 40, "b"},
	}
	out, mixed := DedupeMaxBy(rows, DedupeKey[rate]{
		Period: func(r rate) string { return r.quarter },
		Series: func(r rate) string { return r.route },
		Value:  func(r rate) float64 { return r.value },
	}, logger.Nop())

	assert.Len(t, out, 1)
	assert.InDelta(t, 44, out[0].value, 1e-9)
	assert.Empty(t, mixed)
}
