package weather

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultGeocoderURL = "https://nominatim.openstreetmap.org"
	DefaultUserAgent   = "weatherbadge/1.0"
	defaultLimit       = 10
)

type GeocoderConfig struct {
	BaseURL      string
	CountryCodes string
	Lang         string
	UserAgent    string
	// RatePerSec caps outgoing searches; Nominatim's usage policy allows one per second.
	RatePerSec float64
	Timeout    time.Duration
	Limit      int
}

// Place is one search hit.
type Place struct {
	DisplayName string
	Type        string
	Class       string
	Latitude    float64
	Longitude   float64
}

type Geocoder struct {
	cfg     GeocoderConfig
	http    *http.Client
	limiter *rate.Limiter
}

func NewGeocoder(cfg GeocoderConfig, hc *http.Client) *Geocoder {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultGeocoderURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaultLimit
	}
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Geocoder{
		cfg:     cfg,
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
	}
}

type searchHit struct {
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
	Class       string `json:"class"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Search looks up query. An empty slice with a nil error means "not found".
func (g *Geocoder) Search(ctx context.Context, query string) ([]Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("limit", strconv.Itoa(g.cfg.Limit))
	if g.cfg.CountryCodes != "" {
		q.Set("countrycodes", g.cfg.CountryCodes)
	}
	if g.cfg.Lang != "" {
		q.Set("accept-language", g.cfg.Lang)
	}

	var hits []searchHit
	if err := getJSON(ctx, g.http, g.cfg.Timeout, g.cfg.BaseURL+"/search?"+q.Encode(), g.cfg.UserAgent, &hits); err != nil {
		return nil, err
	}

	out := make([]Place, 0, len(hits))
	for _, h := range hits {
		lat, err1 := strconv.ParseFloat(h.Lat, 64)
		lon, err2 := strconv.ParseFloat(h.Lon, 64)
		if err1 != nil || err2 != nil || strings.TrimSpace(h.DisplayName) == "" {
			continue
		}
		out = append(out, Place{
			DisplayName: h.DisplayName,
			Type:        h.Type,
			Class:       h.Class,
			Latitude:    lat,
			Longitude:   lon,
		})
	}
	return out, nil
}
