package ibge

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/agrimacro/agrimacro/internal/collector"
	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/external"
	"github.com/agrimacro/agrimacro/pkg/httputil"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

// Name is the adapter name
const Name = "ibge"

// LSPA (Levantamento Sistemático da Produção Agrícola) SIDRA table
const lspaTable = 6588

// Variables read from the LSPA table (SIDRA variable code → key)
var Variables = map[int]string{
	35:  "producao",
	109: "area_plantada",
	36:  "rendimento",
}

// Products keeps SIDRA product labels by prefix.
// 라벨이 "(em grão)" 같은 접미사를 붙이므로 prefix 매칭
var Products = map[string]string{
	"Soja":           "soja",
	"Milho":          "milho",
	"Trigo":          "trigo",
	"Café":           "cafe",
	"Algodão":        "algodao",
	"Cana-de-açúcar": "cana",
}

// Adapter reads IBGE SIDRA crop estimates
type Adapter struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// New creates the ibge adapter
func New(httpClient *httputil.Client, log *logger.Logger) *Adapter {
	return &Adapter{
		httpClient: httpClient,
		logger:     log.WithField("adapter", Name),
		baseURL:    "https://apisidra.ibge.gov.br",
	}
}

// WithBaseURL overrides the API host (tests)
func (a *Adapter) WithBaseURL(u string) *Adapter {
	a.baseURL = u
	return a
}

// Name implements collector.Adapter
func (a *Adapter) Name() string { return Name }

// Fetch implements collector.Adapter
func (a *Adapter) Fetch(ctx context.Context, _ collector.Window, _ collector.Options) (interface{}, error) {
	nums := make([]int, 0, len(Variables))
	for code := range Variables {
		nums = append(nums, code)
	}
	// v/35,36,109 순서를 고정해서 URL 이 매번 같도록
	sort.Ints(nums)
	codes := make([]string, len(nums))
	for i, n := range nums {
		codes[i] = strconv.Itoa(n)
	}

	url := fmt.Sprintf("%s/values/t/%d/n1/all/v/%s/p/last%%201/c48/all", a.baseURL, lspaTable, strings.Join(codes, ","))

	var rows []map[string]string
	if err := external.GetJSON(ctx, a.httpClient, Name, "lspa", url, &rows); err != nil {
		return nil, err
	}

	estimates, err := ParseRows(rows)
	if err != nil {
		return nil, err
	}

	a.logger.WithFields(map[string]interface{}{
		"rows":      len(rows),
		"estimates": len(estimates),
	}).Info("lspa collected")

	return contracts.IBGEData{Estimates: estimates}, nil
}

// ParseRows converts SIDRA rows into estimates.
// 첫 행은 헤더. "..", "-" 같은 결측 표기는 건너뜀
func ParseRows(rows []map[string]string) ([]contracts.IBGEEstimate, error) {
	if len(rows) < 2 {
		return nil, &contracts.ParseError{Source: Name, Field: "lspa", Err: fmt.Errorf("no data rows")}
	}

	var out []contracts.IBGEEstimate
	for _, row := range rows[1:] {
		product := matchProduct(row["D4N"])
		if product == "" {
			continue
		}
		varCode, err := strconv.Atoi(row["D2C"])
		if err != nil {
			continue
		}
		variable, ok := Variables[varCode]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row["V"]), 64)
		if err != nil {
			continue
		}
		out = append(out, contracts.IBGEEstimate{
			Product:  product,
			Variable: variable,
			Period:   row["D3N"],
			Value:    v,
			Unit:     row["MN"],
		})
	}

	if len(out) == 0 {
		return nil, &contracts.ParseError{Source: Name, Field: "lspa", Err: fmt.Errorf("no tracked product in %d rows", len(rows)-1)}
	}
	return out, nil
}

func matchProduct(label string) string {
	for prefix, key := range Products {
		if strings.HasPrefix(label, prefix) {
			return key
		}
	}
	return ""
}
