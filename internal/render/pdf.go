package render

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/agrimacro/agrimacro/internal/bundle"
	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/paths"
	"github.com/agrimacro/agrimacro/internal/store"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

const (
	fontFamily = "Helvetica"
	lineH      = 6.0
	pageW      = 190.0
)

// verdict colours (RGB)
var verdictColors = map[string][3]int{
	contracts.VerdictPass:  {22, 130, 60},
	contracts.VerdictWarn:  {200, 140, 0},
	contracts.VerdictFlag:  {215, 95, 0},
	contracts.VerdictBlock: {190, 20, 20},
}

// PDFRenderer writes reports/agrimacro_YYYY-MM-DD.pdf
type PDFRenderer struct {
	paths  paths.Paths
	logger *logger.Logger
}

// NewPDFRenderer creates a PDFRenderer
func NewPDFRenderer(p paths.Paths, log *logger.Logger) *PDFRenderer {
	return &PDFRenderer{paths: p, logger: log.WithField("module", "pdf")}
}

// Render draws the report and returns the written path
func (r *PDFRenderer) Render(b *bundle.Bundle, report contracts.ReportDaily) (string, error) {
	data, err := r.Bytes(b, report)
	if err != nil {
		return "", &contracts.RenderError{Artifact: "pdf", Err: err}
	}

	path := r.paths.ReportFile(b.Date, "pdf")
	if err := store.WriteFile(path, data); err != nil {
		return "", &contracts.RenderError{Artifact: "pdf", Err: err}
	}

	r.logger.WithFields(map[string]interface{}{
		"path":  path,
		"bytes": len(data),
	}).Info("pdf written")
	return path, nil
}

// Bytes draws the report in memory
func (r *PDFRenderer) Bytes(b *bundle.Bundle, report contracts.ReportDaily) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("AgriMacro "+b.Date, true)
	pdf.SetAuthor("AgriMacro", true)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(fontFamily, "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 8, tr(fmt.Sprintf("AgriMacro %s - %s - página %d/{nb}", b.Date, Disclaimer, pdf.PageNo())), "", 0, "C", false, 0, "")
	})

	d := &doc{pdf: pdf, tr: tr}
	d.cover(b, report)
	d.prices(b)
	d.spreads(b)
	d.stocks(b)
	d.arbitrage(b)
	d.bilateral(b)
	d.narrative(report)
	d.reading(b)
	d.qa(b)

	if err := pdf.Error(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type doc struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (d *doc) heading(title string) {
	d.pdf.Ln(4)
	d.pdf.SetFont(fontFamily, "B", 13)
	d.pdf.SetTextColor(20, 60, 40)
	d.pdf.CellFormat(pageW, 8, d.tr(title), "B", 1, "L", false, 0, "")
	d.pdf.Ln(2)
	d.pdf.SetTextColor(0, 0, 0)
}

func (d *doc) text(s string) {
	d.pdf.SetFont(fontFamily, "", 10)
	d.pdf.MultiCell(pageW, lineH-1, d.tr(s), "", "L", false)
}

// table draws a header row and body rows with the given column widths
func (d *doc) table(widths []float64, header []string, rows [][]string) {
	d.pdf.SetFont(fontFamily, "B", 9)
	d.pdf.SetFillColor(230, 238, 232)
	for i, h := range header {
		d.pdf.CellFormat(widths[i], lineH, d.tr(h), "1", 0, "C", true, 0, "")
	}
	d.pdf.Ln(-1)

	d.pdf.SetFont(fontFamily, "", 9)
	for _, row := range rows {
		for i, c := range row {
			align := "R"
			if i == 0 {
				align = "L"
			}
			d.pdf.CellFormat(widths[i], lineH, d.tr(c), "1", 0, align, false, 0, "")
		}
		d.pdf.Ln(-1)
	}
}

// ============================================================================
// sections
// ============================================================================

func (d *doc) cover(b *bundle.Bundle, report contracts.ReportDaily) {
	d.pdf.AddPage()
	d.pdf.SetFont(fontFamily, "B", 22)
	d.pdf.CellFormat(pageW, 14, "AgriMacro", "", 1, "L", false, 0, "")
	d.pdf.SetFont(fontFamily, "", 12)
	d.pdf.CellFormat(pageW, 8, d.tr("Relatório diário - "+b.Date), "", 1, "L", false, 0, "")
	d.pdf.Ln(4)

	// verdict != PASS 이면 상태와 신뢰도를 표지에 표시
	if status, confidence, ok := QAStatus(b); ok {
		c := verdictColors[status]
		d.pdf.SetFillColor(c[0], c[1], c[2])
		d.pdf.SetTextColor(255, 255, 255)
		d.pdf.SetFont(fontFamily, "B", 12)
		d.pdf.CellFormat(pageW, 10, d.tr(fmt.Sprintf("Status QA: %s  |  Confiança: %d%%", status, confidence)), "", 1, "C", true, 0, "")
		d.pdf.SetTextColor(0, 0, 0)
		if status != contracts.VerdictPass {
			d.pdf.SetFont(fontFamily, "I", 9)
			d.text("Este relatório foi publicado com achados de auditoria. Consulte a seção QA.")
		}
		d.pdf.Ln(2)
	}

	d.pdf.SetFont(fontFamily, "B", 14)
	d.pdf.MultiCell(pageW, 7, d.tr(report.Headline), "", "L", false)
}

func (d *doc) prices(b *bundle.Bundle) {
	d.heading("Preços")
	var rows [][]string
	for _, sym := range sortedKeys(b.Prices.Latest) {
		s := b.Prices.Latest[sym]
		chg := "-"
		if c, ok := b.Prices.DailyChangePct[sym]; ok {
			chg = fmt.Sprintf("%+.2f%%", c)
		}
		rows = append(rows, []string{sym, fmt.Sprintf("%.2f", s.Value), s.Unit, chg, s.AsOf})
	}
	if len(rows) == 0 {
		d.text("Sem cotações disponíveis.")
		return
	}
	d.table([]float64{30, 35, 40, 35, 50}, []string{"Símbolo", "Último", "Unidade", "Var. dia", "Data"}, rows)
}

func (d *doc) spreads(b *bundle.Bundle) {
	d.heading("Spreads")
	var rows [][]string
	for _, name := range sortedKeys(b.Spreads.Spreads) {
		sp := b.Spreads.Spreads[name]
		rows = append(rows, []string{
			name,
			fmt.Sprintf("%.4f", sp.Current),
			sp.Unit,
			fmt.Sprintf("%.2f", sp.Statistics.ZScore1Y),
			fmt.Sprintf("%.0f", sp.Statistics.Percentile),
			string(sp.Statistics.Regime),
		})
	}
	if len(rows) == 0 {
		d.text("Sem spreads calculados.")
		return
	}
	d.table([]float64{40, 30, 30, 25, 25, 40}, []string{"Spread", "Atual", "Unidade", "Z 1a", "Pct", "Regime"}, rows)
}

// stocks keeps real readings and price proxies in separate tables
func (d *doc) stocks(b *bundle.Bundle) {
	d.heading("Estoques vs média 5 anos")
	var rows [][]string
	for _, sym := range sortedKeys(b.Stocks.Entries) {
		e := b.Stocks.Entries[sym]
		dev, src := "-", "USDA PSD"
		if e.DeviationPct != nil {
			dev = fmt.Sprintf("%+.1f%%", *e.DeviationPct)
		} else if e.PriceVsAvg != nil {
			dev = fmt.Sprintf("%+.1f%%", *e.PriceVsAvg)
			src = "proxy de preço"
		}
		rows = append(rows, []string{sym, string(e.State), dev, e.Period, src})
	}
	if len(rows) == 0 {
		d.text("Sem leituras de estoque.")
	} else {
		d.table([]float64{25, 55, 30, 40, 40}, []string{"Símbolo", "Estado", "Desvio", "Período", "Fonte"}, rows)
	}

	if len(b.Stocks.PriceProxies) > 0 {
		d.pdf.Ln(2)
		d.pdf.SetFont(fontFamily, "I", 9)
		d.text("Preço vs média sazonal (não é estoque):")
		var proxies [][]string
		for _, sym := range sortedKeys(b.Stocks.PriceProxies) {
			e := b.Stocks.PriceProxies[sym]
			v := "-"
			if e.PriceVsAvg != nil {
				v = fmt.Sprintf("%+.1f%%", *e.PriceVsAvg)
			}
			proxies = append(proxies, []string{sym, string(e.State), v})
		}
		d.table([]float64{30, 80, 40}, []string{"Símbolo", "Sinal de preço", "Vs média"}, proxies)
	}
}

func (d *doc) arbitrage(b *bundle.Bundle) {
	if len(b.Arbitrage.Pairs) == 0 {
		return
	}
	d.heading("Arbitragem CBOT x físico Brasil")
	var rows [][]string
	for _, name := range sortedKeys(b.Arbitrage.Pairs) {
		a := b.Arbitrage.Pairs[name]
		rows = append(rows, []string{
			name,
			fmt.Sprintf("%.2f", a.ReferenceInBRL),
			fmt.Sprintf("%.2f", a.LocalPrice),
			a.LocalUnit,
			fmt.Sprintf("%+.2f%%", a.SpreadPct),
			a.Direction,
		})
	}
	d.table([]float64{40, 30, 30, 25, 25, 40}, []string{"Par", "Ref. BRL", "Local", "Unidade", "Spread", "Direção"}, rows)
}

func (d *doc) bilateral(b *bundle.Bundle) {
	bi, ok := Bilateral(b)
	if !ok {
		return
	}
	d.heading("Brasil x EUA")
	if bi.LandedCost != nil {
		lc := bi.LandedCost
		d.table([]float64{50, 45, 45, 50}, []string{"USD/t", "EUA", "Brasil", "Diferença"}, [][]string{
			{"FOB", fmt.Sprintf("%.2f", lc.USFOB), fmt.Sprintf("%.2f", lc.BRFOB), fmt.Sprintf("%+.2f", lc.FOBSpread)},
			{"Frete oceânico", fmt.Sprintf("%.2f", lc.USOcean), fmt.Sprintf("%.2f", lc.BROcean), fmt.Sprintf("%+.2f", lc.OceanAdvantage)},
			{"Posto China", fmt.Sprintf("%.2f", lc.USLanded), fmt.Sprintf("%.2f", lc.BRLanded), fmt.Sprintf("%+.2f", lc.Spread)},
		})
	}
	if bi.BCI != nil {
		d.pdf.Ln(2)
		var rows [][]string
		for _, c := range bi.BCI.Components {
			rows = append(rows, []string{c.Name, fmt.Sprintf("%.0f", c.Score), fmt.Sprintf("%d%%", c.WeightPct), c.Signal})
		}
		d.text(fmt.Sprintf("BCI %s: %.0f (%s)", bi.BCI.Commodity, bi.BCI.Score, bi.BCI.Signal))
		d.table([]float64{70, 35, 35, 50}, []string{"Componente", "Score", "Peso", "Sinal"}, rows)
	}
}

func (d *doc) narrative(report contracts.ReportDaily) {
	for _, s := range report.Sections {
		d.heading(s.Title)
		d.text(s.Body)
	}
}

func (d *doc) reading(b *bundle.Bundle) {
	reading, ok := Reading(b)
	if !ok {
		return
	}
	d.heading("Leitura AgriMacro")
	for _, block := range reading.Blocks {
		d.pdf.SetFont(fontFamily, "B", 10)
		d.pdf.MultiCell(pageW, lineH, d.tr(block.Title), "", "L", false)
		d.text(block.Body)
	}
	d.text(fmt.Sprintf("Estoques: %s\nSpreads: %s\nPreço vs média: %s",
		reading.Summary.StocksWatch, reading.Summary.Spreads, reading.Summary.PriceVsHistorical))
}

func (d *doc) qa(b *bundle.Bundle) {
	status, confidence, ok := QAStatus(b)
	if !ok {
		return
	}
	d.heading("Controle de qualidade")
	d.text(fmt.Sprintf("Status %s, confiança %d%%.", status, confidence))
}
