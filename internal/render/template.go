package render

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agrimacro/agrimacro/internal/bundle"
	"github.com/agrimacro/agrimacro/internal/contracts"
)

// GeneratorTemplate is the generator name recorded in report_daily.json
const GeneratorTemplate = "template"

const (
	topMovers     = 5
	wordsPerSec   = 2.5
	minSceneSecs  = 6
	maxReadScenes = 4
)

// TemplateGenerator writes deterministic prose from the bundle, offline
type TemplateGenerator struct{}

// NewTemplateGenerator creates a TemplateGenerator
func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

// Name returns the generator name
func (g *TemplateGenerator) Name() string { return GeneratorTemplate }

// Generate produces the requested schema
func (g *TemplateGenerator) Generate(_ context.Context, b *bundle.Bundle, schema string) ([]byte, error) {
	switch schema {
	case SchemaReportDaily:
		return json.Marshal(g.report(b))
	case SchemaVideoScript:
		return json.Marshal(g.script(b))
	default:
		return nil, fmt.Errorf("unknown schema %q", schema)
	}
}

func (g *TemplateGenerator) report(b *bundle.Bundle) contracts.ReportDaily {
	r := contracts.ReportDaily{
		Date:      b.Date,
		Headline:  headline(b),
		Scalars:   make(map[string]contracts.Scalar, len(b.Prices.Latest)),
		Generator: GeneratorTemplate,
	}
	for sym, s := range b.Prices.Latest {
		r.Scalars[sym] = s
	}

	r.Sections = append(r.Sections, contracts.ReportSection{Title: "Preços", Body: pricesBody(b)})
	r.Sections = append(r.Sections, contracts.ReportSection{Title: "Spreads", Body: spreadsBody(b)})
	r.Sections = append(r.Sections, contracts.ReportSection{Title: "Estoques", Body: stocksBody(b)})
	if body := bilateralBody(b); body != "" {
		r.Sections = append(r.Sections, contracts.ReportSection{Title: "Brasil x EUA", Body: body})
	}
	if reading, ok := Reading(b); ok {
		var lines []string
		for _, q := range reading.Questions {
			lines = append(lines, q.Question+" "+q.Answer)
		}
		r.Sections = append(r.Sections, contracts.ReportSection{Title: "Leitura do dia", Body: strings.Join(lines, "\n")})
	}
	return r
}

func headline(b *bundle.Bundle) string {
	movers := TopMovers(b, 1)
	out := len(OutOfNormal(b))
	if len(movers) == 0 {
		return fmt.Sprintf("AgriMacro %s: %d spreads fora do normal", b.Date, out)
	}
	m := movers[0]
	return fmt.Sprintf("AgriMacro %s: maior movimento %s %+.1f%%, %d spreads fora do normal",
		b.Date, m.Symbol, m.ChangePct, out)
}

func pricesBody(b *bundle.Bundle) string {
	movers := TopMovers(b, topMovers)
	if len(movers) == 0 {
		return "Sem cotações disponíveis."
	}
	lines := make([]string, 0, len(movers))
	for _, m := range movers {
		lines = append(lines, fmt.Sprintf("%s %.2f %s (%+.1f%%)", m.Symbol, m.Close.Value, m.Close.Unit, m.ChangePct))
	}
	return strings.Join(lines, "\n")
}

func spreadsBody(b *bundle.Bundle) string {
	spreads := OutOfNormal(b)
	if len(spreads) == 0 {
		return "Todos os spreads dentro da faixa normal de 1 ano."
	}
	lines := make([]string, 0, len(spreads))
	for _, sp := range spreads {
		lines = append(lines, fmt.Sprintf("%s: %s (z=%.2f, percentil %.0f, %s)",
			sp.Name, sp.Statistics.Regime, sp.Statistics.ZScore1Y, sp.Statistics.Percentile, sp.Trend))
	}
	return strings.Join(lines, "\n")
}

func stocksBody(b *bundle.Bundle) string {
	if len(b.Stocks.Entries) == 0 {
		return "Sem leituras de estoque."
	}
	var lines []string
	for _, sym := range sortedKeys(b.Stocks.Entries) {
		e := b.Stocks.Entries[sym]
		switch {
		case e.DeviationPct != nil:
			lines = append(lines, fmt.Sprintf("%s: %s (%+.1f%% vs média 5a)", sym, e.State, *e.DeviationPct))
		case e.PriceVsAvg != nil:
			lines = append(lines, fmt.Sprintf("%s: %s (preço %+.1f%% vs média, proxy)", sym, e.State, *e.PriceVsAvg))
		}
	}
	return strings.Join(lines, "\n")
}

func bilateralBody(b *bundle.Bundle) string {
	bi, ok := Bilateral(b)
	if !ok {
		return ""
	}
	var lines []string
	if bi.LandedCost != nil {
		lc := bi.LandedCost
		lines = append(lines, fmt.Sprintf("Custo posto China: EUA %.2f, Brasil %.2f USD/t, origem competitiva %s",
			lc.USLanded, lc.BRLanded, lc.CompetitiveOrigin))
	}
	if bi.BCI != nil {
		lines = append(lines, fmt.Sprintf("BCI soja: %.0f (%s)", bi.BCI.Score, bi.BCI.Signal))
	}
	for _, c := range sortedKeys(bi.ExportRace) {
		race := bi.ExportRace[c]
		lines = append(lines, fmt.Sprintf("Exportações %s: líder %s, Brasil %.1f%% do total", c, race.Leader, race.BRSharePct))
	}
	return strings.Join(lines, "\n")
}

func sceneDuration(narration string) int {
	secs := int(float64(len(strings.Fields(narration)))/wordsPerSec + 0.5)
	if secs < minSceneSecs {
		return minSceneSecs
	}
	return secs
}

func scene(title, narration, visual string) contracts.VideoScene {
	return contracts.VideoScene{Title: title, Narration: narration, Visual: visual, DurationS: sceneDuration(narration)}
}

func (g *TemplateGenerator) script(b *bundle.Bundle) contracts.VideoScript {
	s := contracts.VideoScript{
		Date:       b.Date,
		Title:      "AgriMacro " + b.Date,
		Disclaimer: Disclaimer,
	}
	if status, confidence, ok := QAStatus(b); ok {
		s.Verdict = fmt.Sprintf("%s (%d%%)", status, confidence)
	}

	s.Scenes = append(s.Scenes, scene("Abertura", headline(b), "cover"))
	if reading, ok := Reading(b); ok {
		for i, block := range reading.Blocks {
			if i == maxReadScenes {
				break
			}
			s.Scenes = append(s.Scenes, scene(block.Title, block.Body, block.Tag))
		}
	}
	s.Scenes = append(s.Scenes, scene("Spreads", strings.ReplaceAll(spreadsBody(b), "\n", ". "), "spreads"))
	s.Scenes = append(s.Scenes, scene("Encerramento", Disclaimer, "outro"))

	for i := range s.Scenes {
		s.Scenes[i].Index = i + 1
	}
	return s
}
