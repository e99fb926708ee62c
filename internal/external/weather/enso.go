package weather

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/agrimacro/agrimacro/internal/contracts"
	"github.com/agrimacro/agrimacro/internal/external"
	"github.com/agrimacro/agrimacro/pkg/httputil"
)

// ENSO phase labels
const (
	PhaseElNino  = "EL_NINO"
	PhaseLaNina  = "LA_NINA"
	PhaseNeutral = "NEUTRAL"
)

// ENSOClient reads the NOAA CPC Oceanic Niño Index table
type ENSOClient struct {
	httpClient *httputil.Client
	url        string
	token      string
}

// NewENSOClient creates the ONI reader; token is sent when set
func NewENSOClient(httpClient *httputil.Client, token string) *ENSOClient {
	return &ENSOClient{
		httpClient: httpClient,
		url:        "https://www.cpc.ncep.noaa.gov/data/indices/oni.ascii.txt",
		token:      token,
	}
}

// WithURL overrides the table URL (tests)
func (c *ENSOClient) WithURL(u string) *ENSOClient {
	c.url = u
	return c
}

// Latest returns the most recent ONI season
func (c *ENSOClient) Latest(ctx context.Context) (*contracts.ENSOStatus, error) {
	u := c.url
	if c.token != "" {
		u += "?token=" + c.token
	}
	body, err := external.GetBody(ctx, c.httpClient, Name, "oni", u)
	if err != nil {
		return nil, err
	}
	return ParseONI(string(body))
}

// ParseONI reads "SEAS YR TOTAL ANOM" rows and returns the last one
func ParseONI(text string) (*contracts.ENSOStatus, error) {
	var last *contracts.ENSOStatus
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || fields[0] == "SEAS" {
			continue
		}
		year, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		anom, err := strconv.ParseFloat(fields[len(fields)-1], 64)
		if err != nil {
			continue
		}
		last = &contracts.ENSOStatus{Season: fields[0], Year: year, ONI: anom, Phase: Phase(anom)}
	}
	if last == nil {
		return nil, &contracts.ParseError{Source: Name, Field: "oni", Err: fmt.Errorf("no ONI rows")}
	}
	return last, nil
}

// Phase classifies an ONI anomaly (±0.5 °C)
func Phase(oni float64) string {
	switch {
	case oni >= 0.5:
		return PhaseElNino
	case oni <= -0.5:
		return PhaseLaNina
	default:
		return PhaseNeutral
	}
}
