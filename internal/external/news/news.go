package news

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/agrimacro/agrimacro/internal/collector"
	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/external"
	"github.com/agrimacro/agrimacro/pkg/httputil"
	"github.com/agrimacro/agrimacro/pkg/logger"
)

// Name is the adapter name
const Name = "news"

// maxItemsPerFeed caps headlines kept from one feed
const maxItemsPerFeed = 10

// Feed is one RSS/Atom source
type Feed struct {
	URL    string
	Source string
}

// DefaultFeeds are the headline sources
var DefaultFeeds = []Feed{
	{URL: "https://www.usda.gov/rss/home.xml", Source: "USDA"},
	{URL: "https://search.ams.usda.gov/mndms/RSS", Source: "USDA Market News"},
	{URL: "https://finance.yahoo.com/rss/headline?s=ZC=F,ZS=F,ZW=F,KC=F,CT=F,SB=F,CL=F,GC=F,LE=F,HE=F", Source: "Yahoo Finance"},
}

// FREDSeries are the macro series read from FRED, keyed by series id
var FREDSeries = map[string]string{
	"DFF":          "Fed Funds Rate",
	"T10Y2Y":       "10Y-2Y Spread",
	"DTWEXBGS":     "US Dollar Index (Broad)",
	"DCOILWTICO":   "WTI Crude Oil",
	"DEXBZUS":      "BRL/USD Exchange Rate",
	"BAMLH0A0HYM2": "HY OAS Spread",
	"T10YIE":       "10Y Breakeven Inflation",
}

// Adapter collects headlines and FRED macro series
type Adapter struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	feeds      []Feed
	fredURL    string
	fredKey    string
	parser     *gofeed.Parser
}

// New creates the news adapter; FRED is skipped without a key
func New(httpClient *httputil.Client, fredKey string, log *logger.Logger) *Adapter {
	return &Adapter{
		httpClient: httpClient,
		logger:     log.WithField("adapter", Name),
		feeds:      DefaultFeeds,
		fredURL:    "https://api.stlouisfed.org",
		fredKey:    fredKey,
		parser:     gofeed.NewParser(),
	}
}

// WithFeeds overrides the feed list (tests)
func (a *Adapter) WithFeeds(feeds []Feed) *Adapter {
	a.feeds = feeds
	return a
}

// WithFREDURL overrides the FRED host (tests)
func (a *Adapter) WithFREDURL(u string) *Adapter {
	a.fredURL = u
	return a
}

// Name implements collector.Adapter
func (a *Adapter) Name() string { return Name }

// Fetch implements collector.Adapter.
// 피드 하나라도 성공하거나 FRED 가 성공하면 ok
func (a *Adapter) Fetch(ctx context.Context, _ collector.Window, _ collector.Options) (interface{}, error) {
	data := contracts.NewsData{Items: []contracts.NewsItem{}, Macro: make(map[string]contracts.MacroSeries)}

	var firstErr error
	feedsOK := 0
	for _, f := range a.feeds {
		items, err := a.fetchFeed(ctx, f)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if firstErr == nil {
				firstErr = err
			}
			a.logger.WithError(err).WithField("source", f.Source).Warn("feed failed")
			continue
		}
		feedsOK++
		data.Items = append(data.Items, items...)
	}

	if a.fredKey != "" {
		ids := make([]string, 0, len(FREDSeries))
		for id := range FREDSeries {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			ms, err := a.fetchFRED(ctx, id)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				a.logger.WithError(err).WithField("series", id).Warn("fred series failed")
				continue
			}
			data.Macro[id] = ms
		}
	}

	a.logger.WithFields(map[string]interface{}{
		"feeds_ok": feedsOK,
		"items":    len(data.Items),
		"macro":    len(data.Macro),
	}).Info("news collected")

	if feedsOK == 0 && len(data.Macro) == 0 {
		if firstErr == nil {
			firstErr = &contracts.ParseError{Source: Name, Err: fmt.Errorf("no feeds configured")}
		}
		return nil, firstErr
	}
	return data, nil
}

func (a *Adapter) fetchFeed(ctx context.Context, f Feed) ([]contracts.NewsItem, error) {
	body, err := external.GetBody(ctx, a.httpClient, Name, f.Source, f.URL)
	if err != nil {
		return nil, err
	}
	feed, err := a.parser.ParseString(string(body))
	if err != nil {
		return nil, &contracts.ParseError{Source: Name, Field: f.Source, Err: err}
	}
	return Items(feed, f.Source), nil
}

// Items converts parsed RSS/Atom entries, newest first as published
func Items(feed *gofeed.Feed, source string) []contracts.NewsItem {
	out := make([]contracts.NewsItem, 0, maxItemsPerFeed)
	for _, it := range feed.Items {
		if len(out) == maxItemsPerFeed {
			break
		}
		title := strings.TrimSpace(it.Title)
		if title == "" {
			continue
		}
		published := it.Published
		if it.PublishedParsed != nil {
			published = it.PublishedParsed.UTC().Format(time.RFC3339)
		} else if it.UpdatedParsed != nil {
			published = it.UpdatedParsed.UTC().Format(time.RFC3339)
		}
		out = append(out, contracts.NewsItem{
			Title:     title,
			Link:      strings.TrimSpace(it.Link),
			Published: published,
			Source:    source,
		})
	}
	return out
}

type fredResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

func (a *Adapter) fetchFRED(ctx context.Context, id string) (contracts.MacroSeries, error) {
	params := url.Values{}
	params.Set("series_id", id)
	params.Set("api_key", a.fredKey)
	params.Set("file_type", "json")
	params.Set("sort_order", "desc")
	params.Set("limit", "30")

	var resp fredResponse
	if err := external.GetJSON(ctx, a.httpClient, Name, "fred "+id, a.fredURL+"/fred/series/observations?"+params.Encode(), &resp); err != nil {
		return contracts.MacroSeries{}, err
	}

	// FRED 는 결측을 "." 로 표기
	var history []contracts.Point
	for i := len(resp.Observations) - 1; i >= 0; i-- {
		o := resp.Observations[i]
		v, err := strconv.ParseFloat(o.Value, 64)
		if err != nil {
			continue
		}
		history = append(history, contracts.Point{Date: o.Date, Value: v})
	}
	if len(history) == 0 {
		return contracts.MacroSeries{}, &contracts.ParseError{Source: Name, Field: "fred " + id, Err: fmt.Errorf("no observations")}
	}
	return contracts.MacroSeries{
		Code:    id,
		Name:    FREDSeries[id],
		Latest:  history[len(history)-1],
		History: history,
	}, nil
}
