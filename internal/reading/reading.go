package reading

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/indicators"
	"github.com/agrimacro/agrimacro/internal/paths"
	"github.com/agrimacro/agrimacro/internal/store"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

// FileName is processed/daily_reading.json
const FileName = "daily_reading"

// Fixed questions of the daily reading
const (
	QuestionChanged   = "O que mudou?"
	QuestionUnchanged = "O que NÃO mudou, mas deveria?"
	QuestionExtreme   = "O que está em extremo?"
	QuestionIgnored   = "O que o mercado ignora?"
)

var (
	grainSymbols     = []string{"ZC", "ZS", "ZW", "KE", "ZM", "ZL"}
	livestockSymbols = []string{"LE", "GF", "HE"}
	macroSymbols     = []string{"GC", "SI", "DX"}

	sources = []string{"Yahoo Finance", "CFTC", "USDA", "BCB", "CEPEA", "EIA"}
)

// Thresholds (% vs seasonal average)
const (
	grainThreshold     = 15.0
	livestockThreshold = 30.0
	macroThreshold     = 50.0
	unchangedThreshold = 20.0
	extremeThreshold   = 30.0
	maxSpreadBlocks    = 2
	maxChanges         = 2
)

// Inputs are the processed artifacts the reading is written from
type Inputs struct {
	Date       string
	Spreads    contracts.SpreadsReport
	Stocks     contracts.StocksWatch
	PriceVsAvg map[string]float64 // symbol → last close vs seasonal average (%)
}

// regimeLabel translates a regime for the Portuguese prose
func regimeLabel(r contracts.Regime) string {
	switch r {
	case contracts.RegimeExtreme:
		return "EXTREMO"
	case contracts.RegimeDissonance:
		return "DISSONÂNCIA"
	case contracts.RegimeCompression:
		return "COMPRESSÃO"
	default:
		return "NORMAL"
	}
}

// Generate builds the daily reading. 출력 순서는 입력 map 순서와 무관하게 고정
func Generate(in Inputs) contracts.DailyReading {
	r := contracts.DailyReading{
		Date:      in.Date,
		Blocks:    []contracts.ReadingBlock{},
		Questions: []contracts.ReadingQuestion{},
		Sources:   sources,
	}

	r.Blocks = append(r.Blocks, grainBlocks(in.PriceVsAvg)...)
	if b, ok := thresholdBlock(in.PriceVsAvg, livestockSymbols, livestockThreshold, "PECUÁRIA EM EXTREMO", "livestock",
		"Proteína animal em níveis extremos: %s. Verificar margem do confinador, custo de reposição e demanda de exportação."); ok {
		r.Blocks = append(r.Blocks, b)
	}
	r.Blocks = append(r.Blocks, spreadBlocks(in.Spreads)...)
	if b, ok := thresholdBlock(in.PriceVsAvg, macroSymbols, macroThreshold, "METAIS/MACRO EM DESTAQUE", "metals",
		"Ativos macro em níveis atípicos: %s. Contexto: política monetária, inflação, geopolítica."); ok {
		r.Blocks = append(r.Blocks, b)
	}

	r.Questions = []contracts.ReadingQuestion{
		{Question: QuestionChanged, Answer: changed(in.Spreads)},
		{Question: QuestionUnchanged, Answer: unchanged(in.PriceVsAvg)},
		{Question: QuestionExtreme, Answer: extremes(in.PriceVsAvg)},
		{Question: QuestionIgnored, Answer: ignored(in.Spreads)},
	}
	r.Summary = summary(in)
	return r
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatDev(sym string, dev float64) string {
	return fmt.Sprintf("%s (%+.1f%%)", sym, dev)
}

func grainBlocks(dev map[string]float64) []contracts.ReadingBlock {
	var below, above []string
	for _, sym := range grainSymbols {
		d, ok := dev[sym]
		if !ok {
			continue
		}
		switch {
		case d < -grainThreshold:
			below = append(below, formatDev(sym, d))
		case d > grainThreshold:
			above = append(above, formatDev(sym, d))
		}
	}

	switch {
	case len(below) > 0:
		return []contracts.ReadingBlock{{
			Title: "GRÃOS EM COMPRESSÃO",
			Body: fmt.Sprintf("Commodities agrícolas abaixo da média 5Y: %s. Padrão histórico sugere formação de fundo sazonal ou pressão estrutural de oferta. Monitorar relatórios USDA e clima no Corn Belt.",
				strings.Join(below, ", ")),
			Tag: "grains",
		}}
	case len(above) > 0:
		return []contracts.ReadingBlock{{
			Title: "GRÃOS EM ALTA",
			Body: fmt.Sprintf("Commodities agrícolas acima da média 5Y: %s. Verificar se há suporte fundamental (estoques baixos, demanda forte) ou especulação.",
				strings.Join(above, ", ")),
			Tag: "grains",
		}}
	}
	return nil
}

func thresholdBlock(dev map[string]float64, symbols []string, threshold float64, title, tag, format string) (contracts.ReadingBlock, bool) {
	var hits []string
	for _, sym := range symbols {
		if d, ok := dev[sym]; ok && (d > threshold || d < -threshold) {
			hits = append(hits, formatDev(sym, d))
		}
	}
	if len(hits) == 0 {
		return contracts.ReadingBlock{}, false
	}
	return contracts.ReadingBlock{Title: title, Body: fmt.Sprintf(format, strings.Join(hits, ", ")), Tag: tag}, true
}

func spreadBlocks(report contracts.SpreadsReport) []contracts.ReadingBlock {
	var out []contracts.ReadingBlock
	for _, key := range sortedKeys(report.Spreads) {
		sp := report.Spreads[key]
		regime := sp.Statistics.Regime
		if regime != contracts.RegimeExtreme && regime != contracts.RegimeDissonance {
			continue
		}
		direction := "comprimido"
		if sp.Statistics.ZScore1Y > 0 {
			direction = "elevado"
		}
		out = append(out, contracts.ReadingBlock{
			Title: fmt.Sprintf("SPREAD %s EM %s", strings.ToUpper(key), regimeLabel(regime)),
			Body:  strings.TrimSpace(fmt.Sprintf("Z-score %+.2f (%s). %s", sp.Statistics.ZScore1Y, direction, sp.Description)),
			Tag:   "spread",
		})
		if len(out) == maxSpreadBlocks {
			break
		}
	}
	return out
}

func changed(report contracts.SpreadsReport) string {
	var changes []string
	for _, key := range sortedKeys(report.Spreads) {
		sp := report.Spreads[key]
		switch {
		case sp.Trend == contracts.TrendUp:
			changes = append(changes, fmt.Sprintf("%s subiu %.1f%%", key, sp.TrendPct))
		case sp.Trend == contracts.TrendDown:
			changes = append(changes, fmt.Sprintf("%s caiu %.1f%%", key, -sp.TrendPct))
		}
		if len(changes) == maxChanges {
			break
		}
	}
	if len(changes) == 0 {
		return "Spreads relativamente estáveis nas últimas sessões."
	}
	return strings.Join(changes, "; ")
}

func unchanged(dev map[string]float64) string {
	for _, sym := range sortedKeys(dev) {
		if d := dev[sym]; d > unchangedThreshold || d < -unchangedThreshold {
			return fmt.Sprintf("%s permanece %+.1f%% da média", sym, d)
		}
	}
	return "Nenhum ativo persistentemente afastado da média sazonal."
}

func extremes(dev map[string]float64) string {
	var out []string
	for _, sym := range sortedKeys(dev) {
		if d := dev[sym]; d > extremeThreshold || d < -extremeThreshold {
			out = append(out, sym)
		}
	}
	if len(out) == 0 {
		return "Nenhum ativo além de ±30% da média sazonal."
	}
	return strings.Join(out, ", ")
}

func ignored(report contracts.SpreadsReport) string {
	var out []string
	for _, key := range sortedKeys(report.Spreads) {
		if report.Spreads[key].Statistics.Regime == contracts.RegimeDissonance {
			out = append(out, key)
		}
	}
	if len(out) == 0 {
		return "Nenhum spread em dissonância."
	}
	return strings.Join(out, ", ") + " em dissonância"
}

func summary(in Inputs) contracts.ReadingSummary {
	tight, surplus := 0, 0
	for _, e := range in.Stocks.Commodities {
		state := string(e.State)
		switch {
		case strings.Contains(state, "APERTO"):
			tight++
		case strings.Contains(state, "EXCESSO"):
			surplus++
		}
	}
	neutral := len(in.Stocks.Commodities) - tight - surplus

	outside := 0
	for _, sp := range in.Spreads.Spreads {
		if sp.Statistics.Regime != contracts.RegimeNormal {
			outside++
		}
	}

	below, above := 0, 0
	for _, d := range in.PriceVsAvg {
		switch {
		case d < -grainThreshold:
			below++
		case d > grainThreshold:
			above++
		}
	}

	return contracts.ReadingSummary{
		StocksWatch:       fmt.Sprintf("%d em aperto, %d em excesso, %d neutro", tight, surplus, neutral),
		Spreads:           fmt.Sprintf("%d de %d fora do range normal", outside, len(in.Spreads.Spreads)),
		PriceVsHistorical: fmt.Sprintf("%d commodities >15%% abaixo, %d >15%% acima", below, above),
	}
}

// Write reads the processed indicators, generates the reading and writes processed/daily_reading.json
func Write(p paths.Paths, asOf time.Time, log *logger.Logger) (contracts.DailyReading, error) {
	in := Inputs{Date: asOf.Format(contracts.DateLayout), PriceVsAvg: map[string]float64{}}

	if err := store.ReadJSON(p.ProcessedFile(indicators.FileSpreads), &in.Spreads); err != nil {
		log.WithError(err).Warn("spreads unavailable for daily reading")
	}
	if err := store.ReadJSON(p.ProcessedFile(indicators.FileStocks), &in.Stocks); err != nil {
		log.WithError(err).Warn("stocks watch unavailable for daily reading")
	}

	var seas contracts.Seasonality
	var history contracts.PriceHistory
	if err := store.ReadJSON(p.ProcessedFile(indicators.FileSeasonality), &seas); err == nil {
		if err := store.ReadJSON(p.PriceHistory(), &history); err == nil {
			in.PriceVsAvg = indicators.PriceVsAverage(history, seas, asOf)
		}
	}

	r := Generate(in)
	if err := store.WriteJSON(p.ProcessedFile(FileName), r); err != nil {
		return r, fmt.Errorf("failed to write daily reading: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"blocks":    len(r.Blocks),
		"questions": len(r.Questions),
	}).Info("daily reading generated")
	return r, nil
}
