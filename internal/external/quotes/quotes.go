// Package quotes scrapes domestic cash prices and official FOB quotes.
package quotes

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/agrimacro/agrimacro/internal/collector"
	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/external"
	"github.com/agrimacro/agrimacro/pkg/httputil"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

// NameBR is the domestic cash-price adapter name
const NameBR = "physical_br"

// Page describes one CEPEA indicator page
type Page struct {
	Path     string
	Label    string
	Unit     string
	Location string
	Region   string // 비어 있지 않으면 (praça, preço, var) 형식 테이블에서 해당 지역 행만 사용
}

// BrazilPages maps registry codes to indicator pages
var BrazilPages = map[string]Page{
	"SOJA_PARANAGUA": {Path: "/cotacoes/soja/soja-indicador-cepea-esalq-porto-paranagua", Label: "Soja CEPEA Paranaguá", Unit: "BRL/sc60", Location: "Paranaguá-PR"},
	"MILHO_CAMPINAS": {Path: "/cotacoes/milho/indicador-cepea-esalq-milho", Label: "Milho CEPEA Campinas", Unit: "BRL/sc60", Location: "Campinas-SP"},
	"CAFE_ARABICA":   {Path: "/cotacoes/cafe/indicador-cepea-esalq-cafe-arabica", Label: "Café Arábica CEPEA", Unit: "BRL/sc60", Location: "São Paulo-SP"},
	"BOI_SP":         {Path: "/cotacoes/boi-gordo/boi-gordo-indicador-esalq-bmf", Label: "Boi Gordo CEPEA", Unit: "BRL/arroba", Location: "São Paulo-SP"},
	"ACUCAR_SP":      {Path: "/cotacoes/sucroenergetico/acucar-cristal-cepea", Label: "Açúcar Cristal CEPEA", Unit: "BRL/sc50", Location: "São Paulo-SP"},
	"SOJA_MT":        {Path: "/cotacoes/soja/soja-mercado-fisico-sindicatos-e-cooperativas", Label: "Soja Sorriso", Unit: "BRL/sc60", Location: "Sorriso-MT", Region: "Sorriso"},
}

var dateRe = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)

// BrazilAdapter scrapes CEPEA indicator tables
type BrazilAdapter struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	pages      map[string]Page
}

// NewBrazil creates the physical_br adapter
func NewBrazil(httpClient *httputil.Client, log *logger.Logger) *BrazilAdapter {
	return &BrazilAdapter{
		httpClient: httpClient,
		logger:     log.WithField("adapter", NameBR),
		baseURL:    "https://www.noticiasagricolas.com.br",
		pages:      BrazilPages,
	}
}

// WithBaseURL overrides the site host (tests)
func (a *BrazilAdapter) WithBaseURL(u string) *BrazilAdapter {
	a.baseURL = u
	return a
}

// Name implements collector.Adapter
func (a *BrazilAdapter) Name() string { return NameBR }

// Fetch implements collector.Adapter
func (a *BrazilAdapter) Fetch(ctx context.Context, _ collector.Window, _ collector.Options) (interface{}, error) {
	codes := make([]string, 0, len(a.pages))
	for code := range a.pages {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	data := contracts.PhysicalData{Quotes: make(map[string]contracts.PhysicalQuote)}
	var firstErr error
	for _, code := range codes {
		page := a.pages[code]
		quote, err := a.fetchPage(ctx, code, page)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if firstErr == nil {
				firstErr = err
			}
			a.logger.WithError(err).WithField("code", code).Warn("quote page failed")
			continue
		}
		data.Quotes[code] = quote
	}

	a.logger.WithFields(map[string]interface{}{
		"success": len(data.Quotes),
		"failed":  len(codes) - len(data.Quotes),
		"total":   len(codes),
	}).Info("physical quotes collected")

	if len(data.Quotes) == 0 {
		if firstErr == nil {
			firstErr = &contracts.ParseError{Source: NameBR, Err: fmt.Errorf("no quotes")}
		}
		return nil, firstErr
	}
	return data, nil
}

func (a *BrazilAdapter) fetchPage(ctx context.Context, code string, page Page) (contracts.PhysicalQuote, error) {
	body, err := external.GetBody(ctx, a.httpClient, NameBR, code, a.baseURL+page.Path)
	if err != nil {
		return contracts.PhysicalQuote{}, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return contracts.PhysicalQuote{}, &contracts.ParseError{Source: NameBR, Field: code, Err: err}
	}

	quote, err := ParseIndicatorTable(doc, page)
	if err != nil {
		return contracts.PhysicalQuote{}, &contracts.ParseError{Source: NameBR, Field: code, Err: err}
	}
	quote.Code = code
	return quote, nil
}

// ParseIndicatorTable extracts the latest quote from a cot-fisicas table.
// 기본 형식: (data, valor R$, variação %). Region 이 설정되면 (praça, valor, variação)
func ParseIndicatorTable(doc *goquery.Document, page Page) (contracts.PhysicalQuote, error) {
	quote := contracts.PhysicalQuote{
		Label:    page.Label,
		Unit:     page.Unit,
		Location: page.Location,
		Source:   "CEPEA/ESALQ",
	}

	found := false
	doc.Find("table.cot-fisicas").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		table.Find("tbody tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
			cells := row.Find("td")
			if cells.Length() < 2 {
				return true
			}
			first := strings.TrimSpace(cells.Eq(0).Text())
			if page.Region != "" && !strings.Contains(first, page.Region) {
				return true
			}

			price, err := external.ParseBRNumber(cells.Eq(1).Text())
			if err != nil {
				return true
			}
			quote.Price = price

			if page.Region == "" {
				quote.Date = first
			} else {
				quote.Date = dateRe.FindString(table.Prev().Text() + " " + table.Find("caption, thead").Text())
			}
			if cells.Length() >= 3 {
				if pct, err := external.ParseBRNumber(cells.Eq(2).Text()); err == nil {
					quote.ChangePct = &pct
				}
			}
			found = true
			return false
		})
		return !found
	})

	if !found {
		return quote, fmt.Errorf("no price row in cot-fisicas table")
	}
	return quote, nil
}
