package render

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrimacro/agrimacro/internal/bundle"
	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/paths"
	"github.com/agrimacro/agrimacro/internal/store"
	"github.com/agrimacro/agrimacro/pkg/httputil"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func testBundle(t *testing.T) *bundle.Bundle {
	t.Helper()
	return &bundle.Bundle{
		Date: "2025-03-07",
		Prices: bundle.PricesSection{
			Status: contracts.SnapshotOK,
			Latest: map[string]contracts.Scalar{
				"ZS": {Value: 1020, Unit: "c/bu", Source: "Yahoo Finance", AsOf: "2025-03-07"},
				"ZC": {Value: 450, Unit: "c/bu", Source: "Yahoo Finance", AsOf: "2025-03-07"},
				"LE": {Value: 200, Unit: "c/lb", Source: "Yahoo Finance", AsOf: "2025-03-07"},
			},
			DailyChangePct: map[string]float64{"ZS": 2.0, "ZC": -0.5, "LE": -3.1},
		},
		Spreads: contracts.SpreadsReport{Spreads: map[string]contracts.ProcessedIndicator{
			"soy_crush": {Name: "soy_crush", Unit: "USD/bu", Current: 1.2,
				Statistics: contracts.Statistics{ZScore1Y: 2.4, Percentile: 98, Regime: contracts.RegimeExtreme}, Trend: contracts.TrendUp},
			"zc_zs": {Name: "zc_zs", Unit: "ratio", Current: 0.44,
				Statistics: contracts.Statistics{Regime: contracts.RegimeNormal}, Trend: contracts.TrendSideways},
		}},
		Stocks: bundle.StocksSection{
			Entries: map[string]contracts.StockEntry{
				"ZC": {Symbol: "ZC", State: contracts.StockTight, DeviationPct: contracts.Float(-18), Period: "2024/25"},
			},
			PriceProxies: map[string]contracts.StockEntry{
				"KC": {Symbol: "KC", State: contracts.PriceElevated, PriceVsAvg: contracts.Float(25)},
			},
		},
		Arbitrage: contracts.ArbitrageReport{Pairs: map[string]contracts.ArbitrageEntry{
			"soja_paranagua": {Name: "soja_paranagua", ReferenceInBRL: 146.74, LocalPrice: 145, LocalUnit: "BRL/sc60", SpreadPct: -1.18, Direction: "DESCONTO_LOCAL"},
		}},
		DailyReading: mustJSON(t, contracts.DailyReading{
			Date:      "2025-03-07",
			Blocks:    []contracts.ReadingBlock{{Title: "SPREAD SOY_CRUSH EM EXTREMO", Body: "Margem acima do normal.", Tag: "spread"}},
			Questions: []contracts.ReadingQuestion{{Question: "O que mudou?", Answer: "soy_crush subiu 6.0%"}},
			Summary:   contracts.ReadingSummary{StocksWatch: "1 em aperto", Spreads: "1 de 2 fora do normal", PriceVsHistorical: "0 acima, 1 abaixo"},
		}),
		Bilateral: mustJSON(t, contracts.BilateralIndicators{
			Date:       "2025-03-07",
			LandedCost: &contracts.LandedCost{USLanded: 470, BRLanded: 455, Spread: 15, CompetitiveOrigin: "BR"},
			BCI: &contracts.BCI{Commodity: "soybeans", Score: 73, Signal: "MODERATE",
				Components: []contracts.BCIComponent{{Key: "fx", Name: "Câmbio", Score: 80, WeightPct: 30, Signal: contracts.SignalBullish}}},
		}),
		QAReport:    mustJSON(t, map[string]interface{}{"status": "FLAG", "confidence": 90}),
		ReportDaily: json.RawMessage(`{}`),
	}
}

func TestTemplateGenerator_Report(t *testing.T) {
	b := testBundle(t)
	raw, err := NewTemplateGenerator().Generate(context.Background(), b, SchemaReportDaily)
	require.NoError(t, err)

	r, err := DecodeReport(raw, b)
	require.NoError(t, err)

	assert.Equal(t, "AgriMacro 2025-03-07: maior movimento LE -3.1%, 1 spreads fora do normal", r.Headline)
	assert.Equal(t, GeneratorTemplate, r.Generator)
	assert.Equal(t, b.Prices.Latest["ZS"], r.Scalars["ZS"])

	titles := make([]string, 0, len(r.Sections))
	for _, s := range r.Sections {
		titles = append(titles, s.Title)
	}
	assert.Equal(t, []string{"Preços", "Spreads", "Estoques", "Brasil x EUA", "Leitura do dia"}, titles)
	assert.Equal(t, "LE 200.00 c/lb (-3.1%)\nZS 1020.00 c/bu (+2.0%)\nZC 450.00 c/bu (-0.5%)", r.Sections[0].Body)
	assert.Equal(t, "soy_crush: EXTREME (z=2.40, percentil 98, SUBINDO)", r.Sections[1].Body)
	assert.NotContains(t, r.Sections[2].Body, "KC", "price proxies stay out of the stocks section")

	_, err = NewTemplateGenerator().Generate(context.Background(), b, "poem")
	assert.Error(t, err)
}

func TestTemplateGenerator_Script(t *testing.T) {
	b := testBundle(t)
	raw, err := NewTemplateGenerator().Generate(context.Background(), b, SchemaVideoScript)
	require.NoError(t, err)

	s, err := DecodeScript(raw, b)
	require.NoError(t, err)

	assert.Equal(t, "FLAG (90%)", s.Verdict)
	require.Len(t, s.Scenes, 4)
	assert.Equal(t, "Abertura", s.Scenes[0].Title)
	assert.Equal(t, "SPREAD SOY_CRUSH EM EXTREMO", s.Scenes[1].Title)
	assert.Equal(t, "Encerramento", s.Scenes[3].Title)
	for i, sc := range s.Scenes {
		assert.Equal(t, i+1, sc.Index)
		assert.GreaterOrEqual(t, sc.DurationS, minSceneSecs)
	}
}

func TestDecodeReport(t *testing.T) {
	b := testBundle(t)

	r, err := DecodeReport([]byte(`{"headline":"h","sections":[{"title":"t","body":"b"}],"scalars":{"ZS":{"value":1020}}}`), b)
	require.NoError(t, err)
	assert.Equal(t, "c/bu", r.Scalars["ZS"].Unit)
	assert.Equal(t, "Yahoo Finance", r.Scalars["ZS"].Source)
	assert.Equal(t, "2025-03-07", r.Date)

	_, err = DecodeReport([]byte(`{"headline":""}`), b)
	assert.Error(t, err)
	_, err = DecodeReport([]byte(`not json`), b)
	assert.Error(t, err)
}

func TestSceneDuration(t *testing.T) {
	assert.Equal(t, minSceneSecs, sceneDuration("curto"))
	assert.Equal(t, 12, sceneDuration(strings.Repeat("palavra ", 30)))
}

func newTestClient() *httputil.Client {
	return httputil.New(logger.Nop(), 5*time.Second).DisableRetry()
}

func TestAnthropicGenerator(t *testing.T) {
	var gotKey, gotVersion string
	var gotReq messagesRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotReq)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Aqui está:\n{\"headline\":\"Soja sobe 2%\",\"sections\":[{\"title\":\"Grãos\",\"body\":\"ZS 1020\"}],\"scalars\":{\"ZS\":{\"value\":1020}}}"}]}`))
	}))
	defer server.Close()

	gen := NewAnthropicGenerator(newTestClient(), "sk-test", "claude-test", NewTemplateGenerator(), logger.Nop()).
		WithBaseURL(server.URL)

	b := testBundle(t)
	raw, err := gen.Generate(context.Background(), b, SchemaReportDaily)
	require.NoError(t, err)

	r, err := DecodeReport(raw, b)
	require.NoError(t, err)
	assert.Equal(t, "Soja sobe 2%", r.Headline)
	assert.Equal(t, "anthropic:claude-test", r.Generator)
	assert.Equal(t, "c/bu", r.Scalars["ZS"].Unit)

	assert.Equal(t, "sk-test", gotKey)
	assert.Equal(t, anthropicVersion, gotVersion)
	assert.Equal(t, "claude-test", gotReq.Model)
	require.Len(t, gotReq.Messages, 1)
	assert.Contains(t, gotReq.Messages[0].Content, `"date":"2025-03-07"`)
}

func TestAnthropicGenerator_FallsBackToTemplate(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"upstream error", http.StatusBadRequest, `{"error":"bad"}`},
		{"no json in answer", http.StatusOK, `{"content":[{"type":"text","text":"desculpe"}]}`},
		{"missing sections", http.StatusOK, `{"content":[{"type":"text","text":"{\"headline\":\"x\"}"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			}))
			defer server.Close()

			gen := NewAnthropicGenerator(newTestClient(), "k", "m", NewTemplateGenerator(), logger.Nop()).WithBaseURL(server.URL)
			b := testBundle(t)
			raw, err := gen.Generate(context.Background(), b, SchemaReportDaily)
			require.NoError(t, err)

			r, err := DecodeReport(raw, b)
			require.NoError(t, err)
			assert.Equal(t, GeneratorTemplate, r.Generator)
		})
	}
}

func TestAnthropicGenerator_NoFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	gen := NewAnthropicGenerator(newTestClient(), "k", "m", nil, logger.Nop()).WithBaseURL(server.URL)
	_, err := gen.Generate(context.Background(), testBundle(t), SchemaVideoScript)

	var se *httputil.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
}

func TestWriteReportDaily(t *testing.T) {
	p := paths.New(t.TempDir())
	require.NoError(t, p.Ensure())

	r, err := WriteReportDaily(context.Background(), NewTemplateGenerator(), testBundle(t), p, logger.Nop())
	require.NoError(t, err)

	var onDisk contracts.ReportDaily
	require.NoError(t, store.ReadJSON(p.ProcessedFile(bundle.FileReport), &onDisk))
	assert.Equal(t, r.Headline, onDisk.Headline)
	assert.Equal(t, GeneratorTemplate, onDisk.Generator)
}

func TestPDFRenderer(t *testing.T) {
	p := paths.New(t.TempDir())
	require.NoError(t, p.Ensure())
	b := testBundle(t)

	raw, err := NewTemplateGenerator().Generate(context.Background(), b, SchemaReportDaily)
	require.NoError(t, err)
	report, err := DecodeReport(raw, b)
	require.NoError(t, err)

	path, err := NewPDFRenderer(p, logger.Nop()).Render(b, report)
	require.NoError(t, err)
	assert.Equal(t, p.ReportFile("2025-03-07", "pdf"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF-"))
}

func TestPDFRenderer_EmptyBundle(t *testing.T) {
	b := &bundle.Bundle{Date: "2025-03-07"}
	data, err := NewPDFRenderer(paths.New(t.TempDir()), logger.Nop()).Bytes(b, contracts.ReportDaily{Headline: "vazio"})
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestVideoScriptRenderer(t *testing.T) {
	p := paths.New(t.TempDir())
	require.NoError(t, p.Ensure())

	script, err := NewVideoScriptRenderer(NewTemplateGenerator(), p, logger.Nop()).Render(context.Background(), testBundle(t))
	require.NoError(t, err)
	assert.Len(t, script.Scenes, 4)

	assert.True(t, store.Exists(p.ProcessedFile(bundle.FileVideo)))
	srt, err := os.ReadFile(p.ReportFile("2025-03-07", "srt"))
	require.NoError(t, err)
	assert.Contains(t, string(srt), "00:00:00,000 --> ")
	assert.Contains(t, string(srt), "Margem acima do normal.")
}

type failingGenerator struct{}

func (failingGenerator) Name() string { return "failing" }
func (failingGenerator) Generate(context.Context, *bundle.Bundle, string) ([]byte, error) {
	return nil, errors.New("offline")
}

func TestVideoScriptRenderer_RenderError(t *testing.T) {
	_, err := NewVideoScriptRenderer(failingGenerator{}, paths.New(t.TempDir()), logger.Nop()).Render(context.Background(), testBundle(t))

	var re *contracts.RenderError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, bundle.FileVideo, re.Artifact)
	assert.Equal(t, "render", contracts.ErrorKind(err))
}
