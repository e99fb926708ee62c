package imea

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/agrimacro/agrimacro/internal/collector"
	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/external"
	"github.com/agrimacro/agrimacro/pkg/httputil"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

// Name is the adapter name
const Name = "imea"

// Bulletin is one weekly IMEA bulletin page
type Bulletin struct {
	Key  string // soja, milho
	Path string
}

// Bulletins are the weekly bulletins read each run
var Bulletins = []Bulletin{
	{Key: "soja", Path: "/relatorio-de-mercado/bs-soja"},
	{Key: "milho", Path: "/relatorio-de-mercado/bs-milho"},
}

// Rule extracts one metric from bulletin text.
// 패턴의 첫 그룹은 값 나열 (마지막 값이 최신)
type Rule struct {
	Metric   string
	Unit     string
	Pattern  *regexp.Regexp
	BRFormat bool // 1.234,56 형식
}

var numberRe = regexp.MustCompile(`-?\d+(?:[.,]\d+)+|-?\d+`)

// Rules apply to every bulletin; metric names are prefixed with the bulletin key
var Rules = []Rule{
	{Metric: "preco_mt", Unit: "BRL/sc60", BRFormat: true,
		Pattern: regexp.MustCompile(`(?i)Dispon[íi]vel\s+MT\s+R\$/sc\s+Imea\s+([\d.,\s]+)`)},
	{Metric: "dolar_ptax", Unit: "BRL/USD",
		Pattern: regexp.MustCompile(`(?i)D[óo]lar Compra PTAX\s+Brasil\s+R\$/US\$\s+B3\s+([\d.,\s]+)`)},
	{Metric: "premio_santos", Unit: "c/bu",
		Pattern: regexp.MustCompile(`(?i)Pr[êe]mio portu[áa]rio.*?Santos.*?Esalq\s+(-?[\d.,\s-]+)`)},
	{Metric: "dif_base", Unit: "BRL/sc60",
		Pattern: regexp.MustCompile(`(?i)Diferencial de base.*?MT\s+R\$/sc\s+Imea\s+(-?[\d.,\s-]+)`)},
	{Metric: "frete_sorriso_miritituba", Unit: "BRL/t", BRFormat: true,
		Pattern: regexp.MustCompile(`(?i)Frete Gr[ãa]os Sorriso.*?R\$/t\s+Imea\s+([\d.,\s]+)`)},
	{Metric: "margem_esmagamento", Unit: "BRL/t", BRFormat: true,
		Pattern: regexp.MustCompile(`(?i)Margem Bruta.*?Esmagamento.*?R\$/t\s+Imea\s+(-?[\d.,\s-]+)`)},
}

// comercializacao rows carry the crop year: "Comercialização 24/25 MT % Imea 80,1% 82,3%"
var sellingRe = regexp.MustCompile(`(?i)Comercializa[çc][ãa]o\s+(\d{2}/\d{2})\s+MT\s+%\s+Imea\s+([\d.,%\s]+)`)
var pctRe = regexp.MustCompile(`(\d+(?:,\d+)?)%`)

// Adapter scrapes IMEA weekly bulletins
type Adapter struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	bulletins  []Bulletin
}

// New creates the imea adapter
func New(httpClient *httputil.Client, log *logger.Logger) *Adapter {
	return &Adapter{
		httpClient: httpClient,
		logger:     log.WithField("adapter", Name),
		baseURL:    "https://publicacoes.imea.com.br",
		bulletins:  Bulletins,
	}
}

// WithBaseURL overrides the site host (tests)
func (a *Adapter) WithBaseURL(u string) *Adapter {
	a.baseURL = u
	return a
}

// Name implements collector.Adapter
func (a *Adapter) Name() string { return Name }

// Fetch implements collector.Adapter
func (a *Adapter) Fetch(ctx context.Context, _ collector.Window, _ collector.Options) (interface{}, error) {
	data := contracts.IMEAData{Metrics: make(map[string]contracts.IMEAMetric)}
	var titles []string
	var firstErr error

	for _, b := range a.bulletins {
		title, metrics, err := a.fetchBulletin(ctx, b)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if firstErr == nil {
				firstErr = err
			}
			a.logger.WithError(err).WithField("bulletin", b.Key).Warn("bulletin failed")
			continue
		}
		titles = append(titles, title)
		for k, m := range metrics {
			data.Metrics[k] = m
		}
	}

	if len(data.Metrics) == 0 {
		if firstErr == nil {
			firstErr = &contracts.ParseError{Source: Name, Err: fmt.Errorf("no metrics")}
		}
		return nil, firstErr
	}
	data.Bulletin = strings.Join(titles, " | ")

	a.logger.WithField("metrics", len(data.Metrics)).Info("imea collected")
	return data, nil
}

func (a *Adapter) fetchBulletin(ctx context.Context, b Bulletin) (string, map[string]contracts.IMEAMetric, error) {
	body, err := external.GetBody(ctx, a.httpClient, Name, b.Key, a.baseURL+b.Path)
	if err != nil {
		return "", nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return "", nil, &contracts.ParseError{Source: Name, Field: b.Key, Err: err}
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	// 셀 경계에 공백이 없으면 숫자가 붙어버림
	doc.Find("td, th, p, li, br").AppendHtml(" ")
	text := doc.Find("body").Text()
	metrics := Extract(b.Key, text)
	if len(metrics) == 0 {
		return "", nil, &contracts.ParseError{Source: Name, Field: b.Key, Err: fmt.Errorf("no metric matched")}
	}
	return title, metrics, nil
}

// Extract applies Rules and the selling-pace pattern to bulletin text
func Extract(key, text string) map[string]contracts.IMEAMetric {
	text = strings.Join(strings.Fields(text), " ")
	out := make(map[string]contracts.IMEAMetric)

	for _, r := range Rules {
		m := r.Pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, ok := lastNumber(m[1], r.BRFormat)
		if !ok {
			continue
		}
		name := key + "_" + r.Metric
		out[name] = contracts.IMEAMetric{Name: name, Value: v, Unit: r.Unit}
	}

	// 첫 번째 = 현재 safra, 두 번째 = 다음 safra
	for i, m := range sellingRe.FindAllStringSubmatch(text, 2) {
		pcts := pctRe.FindAllStringSubmatch(m[2], -1)
		if len(pcts) == 0 {
			continue
		}
		v, err := external.ParseBRNumber(pcts[len(pcts)-1][1])
		if err != nil {
			continue
		}
		name := key + "_comercializacao_atual"
		if i == 1 {
			name = key + "_comercializacao_futura"
		}
		out[name] = contracts.IMEAMetric{Name: name, Value: v, Unit: "pct", Period: m[1]}
	}
	return out
}

func lastNumber(s string, brFormat bool) (float64, bool) {
	nums := numberRe.FindAllString(s, -1)
	if len(nums) == 0 {
		return 0, false
	}
	last := nums[len(nums)-1]
	var v float64
	var err error
	if brFormat {
		v, err = external.ParseBRNumber(last)
	} else {
		v, err = external.ParseNumber(strings.ReplaceAll(last, ",", "."))
	}
	return v, err == nil
}
