package pipeline

import (
	"sort"
	"time"

	"golang.org/x/time/rate"

	"github.com/agrimacro/agrimacro/internal/collector"
	"github.com/agrimacro/agrimacro/internal/external/ams"
	"github.com/agrimacro/agrimacro/internal/external/bcb"
	"github.com/agrimacro/agrimacro/internal/external/calendar"
	"github.com/agrimacro/agrimacro/internal/external/cftc"
	"github.com/agrimacro/agrimacro/internal/external/comexstat"
	"github.com/agrimacro/agrimacro/internal/external/eia"
	"github.com/agrimacro/agrimacro/internal/external/fas"
	"github.com/agrimacro/agrimacro/internal/external/ibge"
	"github.com/agrimacro/agrimacro/internal/external/imea"
	"github.com/agrimacro/agrimacro/internal/external/news"
	"github.com/agrimacro/agrimacro/internal/external/quotes"
	"github.com/agrimacro/agrimacro/internal/external/weather"
	"github.com/agrimacro/agrimacro/internal/external/yahoo"
	"github.com/agrimacro/agrimacro/internal/registry"
	"github.com/agrimacro/agrimacro/internal/render"
	"github.com/agrimacro/agrimacro/pkg/config"
	"github.com/agrimacro/agrimacro/pkg/httputil"
	"github.com/agrimacro/agrimacro/pkg/logger"
	"github.com/agrimacro/agrimacro/pkg/redis"
)

// downloadAdapters fetch large files (XLSX, ZIP) and get the download timeout
var downloadAdapters = map[string]bool{
	ams.NameGTR:    true,
	ams.NameBrazil: true,
	cftc.Name:      true,
}

// sourceRates are requests per second per upstream.
// 기본값 2 rps, 명시된 곳만 다름
var sourceRates = map[string]float64{
	yahoo.Name:   4,
	fas.Name:     1,
	eia.Name:     1,
	weather.Name: 1,
}

const (
	defaultSourceRate  = 2.0
	sharedPerMinuteCap = 60
)

// Factory builds the adapters of a run.
// 어댑터마다 별도의 httputil.Client (타임아웃, rate limit 분리)
type Factory struct {
	cfg     *config.Config
	reg     *registry.Registry
	limiter *redis.RateLimiter
	logger  *logger.Logger
}

// NewFactory creates a Factory. limiter may be nil (Redis disabled).
func NewFactory(cfg *config.Config, reg *registry.Registry, limiter *redis.RateLimiter, log *logger.Logger) *Factory {
	return &Factory{cfg: cfg, reg: reg, limiter: limiter, logger: log}
}

// client returns a fresh HTTP client for one adapter
func (f *Factory) client(name string) *httputil.Client {
	timeout := f.cfg.Collect.RESTTimeout
	if downloadAdapters[name] {
		timeout = f.cfg.Collect.DownloadTimeout
	}

	// 재시도는 collector.Runner 가 담당 (transport 레벨 재시도는 끔)
	c := httputil.New(f.logger, timeout).DisableRetry()

	rps, ok := sourceRates[name]
	if !ok {
		rps = defaultSourceRate
	}
	c = c.WithLimiter(rate.NewLimiter(rate.Limit(rps), 1))

	if f.limiter != nil {
		c = c.WithRateLimiter(f.limiter, redis.SourceRateLimit(name, sharedPerMinuteCap))
	}
	return c
}

// Adapters builds every adapter named in the registry's failsafe levels,
// in registry order (critical first)
func (f *Factory) Adapters() []collector.Adapter {
	all := f.all()
	out := make([]collector.Adapter, 0, len(all))
	for _, name := range f.reg.Adapters() {
		a, ok := all[name]
		if !ok {
			f.logger.WithField("adapter", name).Warn("registry names an unknown adapter")
			continue
		}
		out = append(out, a)
	}
	return out
}

func (f *Factory) all() map[string]collector.Adapter {
	keys := f.cfg.APIKeys
	adapters := []collector.Adapter{
		yahoo.New(f.client(yahoo.Name), f.reg, f.logger),
		cftc.New(f.client(cftc.Name), f.logger),
		quotes.NewBrazil(f.client(quotes.NameBR), f.logger),
		quotes.NewIntl(f.client(quotes.NameIntl), f.logger),
		bcb.New(f.client(bcb.Name), f.logger),
		fas.New(f.client(fas.Name), keys.USDAFAS, f.stocksCommodities(), f.logger),
		eia.New(f.client(eia.Name), keys.EIA, f.logger),
		weather.New(f.client(weather.Name), keys.TomorrowIO, keys.NOAA, f.logger),
		news.New(f.client(news.Name), keys.FRED, f.logger),
		calendar.New(f.cfg.CalendarPath, f.logger),
		ibge.New(f.client(ibge.Name), f.logger),
		comexstat.New(f.client(comexstat.Name), f.logger),
		imea.New(f.client(imea.Name), f.logger),
		ams.NewGTR(f.client(ams.NameGTR), f.logger),
		ams.NewBrazilTransport(f.client(ams.NameBrazil), f.logger),
	}

	out := make(map[string]collector.Adapter, len(adapters))
	for _, a := range adapters {
		out[a.Name()] = a
	}
	return out
}

// stocksCommodities returns the PSD commodity names the stocks indicator reads
func (f *Factory) stocksCommodities() []string {
	seen := map[string]bool{}
	var out []string
	for _, c := range f.reg.Stocks.Series {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// Generator returns the content generator: Anthropic when a key is
// configured (falling back to the template), otherwise the template
func (f *Factory) Generator() render.ContentGenerator {
	tmpl := render.NewTemplateGenerator()
	if f.cfg.APIKeys.Anthropic == "" {
		return tmpl
	}
	client := httputil.New(f.logger, 120*time.Second).WithRetry(1, 5*time.Second)
	return render.NewAnthropicGenerator(client, f.cfg.APIKeys.Anthropic, f.cfg.APIKeys.AnthropicModel, tmpl, f.logger)
}
