package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/agrimacro/agrimacro/internal/collector"
	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/external"
	"github.com/agrimacro/agrimacro/pkg/httputil"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

// NameIntl is the international FOB adapter name
const NameIntl = "physical_intl"

// lookbackDays is how many weekdays back the official FOB table is searched
const lookbackDays = 10

// FOBPositions maps registry codes to NCM position prefixes
var FOBPositions = map[string]string{
	"SOY_FOB_ARG":   "1201",
	"CORN_FOB_ARG":  "1005",
	"WHEAT_FOB_ARG": "1001",
}

var fobLabels = map[string]string{
	"SOY_FOB_ARG":   "Soja FOB Argentina",
	"CORN_FOB_ARG":  "Milho FOB Argentina",
	"WHEAT_FOB_ARG": "Trigo FOB Argentina",
}

// IntlAdapter reads the official Argentine FOB price table
type IntlAdapter struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewIntl creates the physical_intl adapter
func NewIntl(httpClient *httputil.Client, log *logger.Logger) *IntlAdapter {
	return &IntlAdapter{
		httpClient: httpClient,
		logger:     log.WithField("adapter", NameIntl),
		baseURL:    "https://www.magyp.gob.ar/sitio/areas/ss_mercados_agropecuarios/ws/ssma/precios_fob.php",
	}
}

// WithBaseURL overrides the endpoint (tests)
func (a *IntlAdapter) WithBaseURL(u string) *IntlAdapter {
	a.baseURL = u
	return a
}

// Name implements collector.Adapter
func (a *IntlAdapter) Name() string { return NameIntl }

type fobResponse struct {
	Posts []fobPost `json:"posts"`
}

type fobPost struct {
	Position  string   `json:"posicion"`
	Price     *float64 `json:"precio"`
	MonthFrom int      `json:"mesDesde"`
}

// Fetch implements collector.Adapter.
// 주말은 건너뛰고 최근 영업일부터 데이터가 있는 날을 찾음
func (a *IntlAdapter) Fetch(ctx context.Context, w collector.Window, _ collector.Options) (interface{}, error) {
	var lastErr error
	for back := 0; back < lookbackDays; back++ {
		day := w.To.AddDate(0, 0, -back)
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}

		posts, err := a.fetchDay(ctx, day)
		if err != nil {
			if ctx.Err() != nil || contracts.ErrorKind(err) == "transport" {
				return nil, err
			}
			lastErr = err
			continue
		}
		if len(posts) == 0 {
			continue
		}

		data := BuildFOB(posts, day.Format(contracts.DateLayout))
		if len(data.Quotes) == 0 {
			continue
		}
		a.logger.WithFields(map[string]interface{}{
			"date":   day.Format(contracts.DateLayout),
			"quotes": len(data.Quotes),
		}).Info("fob quotes collected")
		return data, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, &contracts.ParseError{Source: NameIntl, Err: fmt.Errorf("no FOB table in the last %d days", lookbackDays)}
}

func (a *IntlAdapter) fetchDay(ctx context.Context, day time.Time) ([]fobPost, error) {
	fullURL := a.baseURL + "?Fecha=" + url.QueryEscape(day.Format("02/01/2006"))
	body, err := external.GetBody(ctx, a.httpClient, NameIntl, "precios_fob", fullURL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(body)) == "" {
		return nil, nil
	}

	var resp fobResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &contracts.ParseError{Source: NameIntl, Field: "posts", Err: err}
	}
	return resp.Posts, nil
}

// BuildFOB picks the nearest shipment month per position
func BuildFOB(posts []fobPost, date string) contracts.PhysicalData {
	data := contracts.PhysicalData{Quotes: make(map[string]contracts.PhysicalQuote)}

	codes := make([]string, 0, len(FOBPositions))
	for code := range FOBPositions {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		prefix := FOBPositions[code]
		var best *fobPost
		for i := range posts {
			p := &posts[i]
			if p.Price == nil || !strings.HasPrefix(p.Position, prefix) {
				continue
			}
			if best == nil || p.MonthFrom < best.MonthFrom {
				best = p
			}
		}
		if best == nil {
			continue
		}
		data.Quotes[code] = contracts.PhysicalQuote{
			Code:     code,
			Label:    fobLabels[code],
			Price:    *best.Price,
			Unit:     "USD/mt",
			Location: "Argentina FOB",
			Date:     date,
			Source:   "MAGyP/FOB Oficial",
		}
	}
	return data
}
