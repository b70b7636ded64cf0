// Package weather talks to OpenWeatherMap for current conditions and to
// Nominatim for place search. Every network, timeout or status failure is
// reported as ErrUnavailable so callers can skip a cycle without inspecting
// transport details.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrUnavailable marks a transient fetch failure.
var ErrUnavailable = errors.New("weather: data unavailable")

const (
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"
	defaultTimeout = 10 * time.Second
	maxBody        = 1 << 20
)

type Config struct {
	APIKey  string
	BaseURL string
	Lang    string
	Timeout time.Duration
}

// Snapshot is the subset of a current-weather reply the badge needs.
type Snapshot struct {
	// TemperatureC is the air temperature truncated toward zero.
	TemperatureC     int
	ConditionCode    int
	UTCOffsetSeconds int
	Description      string
}

// LocalTime converts t to the observed location's wall clock.
func (s Snapshot) LocalTime(t time.Time) time.Time {
	return t.In(time.FixedZone("", s.UTCOffsetSeconds))
}

// Client fetches current conditions. The zero value is not usable; use NewClient.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config, hc *http.Client) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: hc}
}

type currentReply struct {
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"weather"`
	Timezone int `json:"timezone"`
}

// Current returns the conditions at lat/lon in metric units.
func (c *Client) Current(ctx context.Context, lat, lon float64) (Snapshot, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("appid", c.cfg.APIKey)
	q.Set("units", "metric")
	if c.cfg.Lang != "" {
		q.Set("lang", c.cfg.Lang)
	}

	var out currentReply
	if err := getJSON(ctx, c.http, c.cfg.Timeout, c.cfg.BaseURL+"/weather?"+q.Encode(), "", &out); err != nil {
		return Snapshot{}, err
	}
	if len(out.Weather) == 0 {
		return Snapshot{}, fmt.Errorf("%w: reply has no condition", ErrUnavailable)
	}
	return Snapshot{
		TemperatureC:     int(math.Trunc(out.Main.Temp)),
		ConditionCode:    out.Weather[0].ID,
		UTCOffsetSeconds: out.Timezone,
		Description:      out.Weather[0].Description,
	}, nil
}

// getJSON performs a GET bounded by timeout and decodes a 2xx body into dst.
func getJSON(ctx context.Context, hc *http.Client, timeout time.Duration, rawURL, userAgent string, dst any) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxBody)
	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, body)
		return fmt.Errorf("%w: http=%d", ErrUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	return nil
}
