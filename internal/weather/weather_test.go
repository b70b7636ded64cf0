package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCurrentParsesReply(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/weather" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("units") != "metric" || q.Get("appid") != "k" || q.Get("lat") != "55.75" || q.Get("lang") != "ru" {
			t.Errorf("unexpected query %v", q)
		}
		_, _ = w.Write([]byte(`{"main":{"temp":-3.7},"weather":[{"id":601,"description":"snow"}],"timezone":10800}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIKey: "k", BaseURL: srv.URL + "/", Lang: "ru"}, srv.Client())
	got, err := c.Current(context.Background(), 55.75, 37.62)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	want := Snapshot{TemperatureC: -3, ConditionCode: 601, UTCOffsetSeconds: 10800, Description: "snow"}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	utc := time.Date(2024, 1, 1, 20, 30, 0, 0, time.UTC)
	if lt := got.LocalTime(utc); lt.Hour() != 23 || lt.Minute() != 30 {
		t.Fatalf("LocalTime = %v", lt)
	}
}

func TestCurrentFailuresAreUnavailable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) { http.Error(w, "nope", http.StatusUnauthorized) }},
		{"garbage", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("<html>")) }},
		{"no condition", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"main":{"temp":1},"weather":[]}`))
		}},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			c := NewClient(Config{BaseURL: srv.URL, Timeout: 100 * time.Millisecond}, srv.Client())
			_, err := c.Current(context.Background(), 1, 2)
			if !errors.Is(err, ErrUnavailable) {
				t.Fatalf("err = %v, want ErrUnavailable", err)
			}
		})
	}
}

func TestGeocoderSearch(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "badge-test" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		q := r.URL.Query()
		if q.Get("q") != "Kazan" || q.Get("countrycodes") != "ru" || q.Get("format") != "json" {
			t.Errorf("unexpected query %v", q)
		}
		_, _ = w.Write([]byte(`[
			{"display_name":"Kazan, Tatarstan","type":"city","class":"place","lat":"55.7887","lon":"49.1221"},
			{"display_name":"broken","type":"x","lat":"n/a","lon":"1"},
			{"display_name":"Kazan River","type":"river","class":"waterway","lat":"55.1","lon":"49.2"}
		]`))
	}))
	defer srv.Close()

	g := NewGeocoder(GeocoderConfig{BaseURL: srv.URL, CountryCodes: "ru", UserAgent: "badge-test", RatePerSec: 100}, srv.Client())
	got, err := g.Search(context.Background(), "  Kazan ")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d places, want 2", len(got))
	}
	if got[0].DisplayName != "Kazan, Tatarstan" || got[0].Type != "city" || got[0].Latitude != 55.7887 {
		t.Fatalf("first = %+v", got[0])
	}
}

func TestGeocoderEmptyQuery(t *testing.T) {
	t.Parallel()
	g := NewGeocoder(GeocoderConfig{BaseURL: "http://127.0.0.1:1"}, nil)
	got, err := g.Search(context.Background(), "   ")
	if err != nil || got != nil {
		t.Fatalf("Search(blank) = %v, %v", got, err)
	}
}

func TestGeocoderRespectsCanceledContext(t *testing.T) {
	t.Parallel()
	g := NewGeocoder(GeocoderConfig{BaseURL: "http://127.0.0.1:1", RatePerSec: 0.001}, nil)
	// Drain the single burst token.
	g.limiter.Allow()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Search(ctx, "x"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}
