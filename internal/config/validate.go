package config

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"time"
)

const (
	DriverMTProto = "mtproto"
	DriverDir     = "dir"
)

// Validate checks values that cannot be expressed by the JSON types alone.
// All problems are reported together.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		add(errors.New("telegram.token is required"))
	}
	if len(cfg.Telegram.OwnerUserIDs) == 0 {
		add(errors.New("telegram.owner_user_ids must list at least one user"))
	}
	if g := strings.TrimSpace(cfg.Telegram.GroupLog); g != "" {
		if _, err := strconv.ParseInt(g, 10, 64); err != nil {
			add(fmt.Errorf("telegram.group_log: %w", err))
		}
	}
	_, err := DurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout, 0)
	add(err)

	switch strings.ToLower(strings.TrimSpace(cfg.Publish.Driver)) {
	case "", DriverMTProto:
		if cfg.Publish.APIID == 0 || strings.TrimSpace(cfg.Publish.APIHash) == "" {
			add(errors.New("publish: mtproto driver needs api_id and api_hash"))
		}
		if strings.TrimSpace(cfg.Publish.Phone) == "" {
			add(errors.New("publish.phone is required for mtproto"))
		}
	case DriverDir:
		if strings.TrimSpace(cfg.Publish.Dir) == "" {
			add(errors.New("publish.dir is required for dir driver"))
		}
	default:
		add(fmt.Errorf("publish.driver: unknown driver %q", cfg.Publish.Driver))
	}

	if strings.TrimSpace(cfg.Weather.APIKey) == "" {
		add(errors.New("weather.api_key is required"))
	}
	_, err = DurationField("weather.timeout", cfg.Weather.Timeout, 0)
	add(err)
	_, err = DurationField("geocoder.timeout", cfg.Geocoder.Timeout, 0)
	add(err)
	if cfg.Geocoder.RatePerSec < 0 {
		add(errors.New("geocoder.rate_per_sec must be >= 0"))
	}
	if cfg.Geocoder.Limit < 0 {
		add(errors.New("geocoder.limit must be >= 0"))
	}

	if cfg.Render.FixedFontSize < 0 {
		add(errors.New("render.fixed_font_size must be >= 0"))
	}
	if r, err := DurationField("render.time_rounding", cfg.Render.TimeRounding, 0); err != nil {
		add(err)
	} else if r%time.Minute != 0 {
		add(errors.New("render.time_rounding must be a whole number of minutes"))
	}
	if _, err := ParseHexColor(cfg.Render.Background, color.White); err != nil {
		add(fmt.Errorf("render.background: %w", err))
	}
	if _, err := ParseHexColor(cfg.Render.TextColor, color.White); err != nil {
		add(fmt.Errorf("render.text_color: %w", err))
	}

	_, err = DurationField("refresh.tick", cfg.Refresh.Tick, 0)
	add(err)
	_, err = DurationField("refresh.error_backoff", cfg.Refresh.ErrorBackoff, 0)
	add(err)
	_, err = DurationField("refresh.publish_timeout", cfg.Refresh.PublishTimeout, 0)
	add(err)
	if m := cfg.Refresh.DefaultIntervalMinutes; m < 0 || m > 1440 {
		add(errors.New("refresh.default_interval_minutes must be within [0,1440]"))
	}

	if cfg.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
		case "", "none", "off", "disabled", "file", "sqlite":
		default:
			add(fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
		}
		_, err = DurationField("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
		add(err)
	}

	return errors.Join(errs...)
}

// ParseHexColor parses "#rgb" or "#rrggbb"; empty returns def.
func ParseHexColor(raw string, def color.Color) (color.Color, error) {
	s := strings.TrimPrefix(strings.TrimSpace(raw), "#")
	if s == "" {
		return def, nil
	}
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return nil, fmt.Errorf("invalid color %q", raw)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q", raw)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// GroupLogChatID returns telegram.group_log as a chat id, or 0 when unset.
func (c *Config) GroupLogChatID() int64 {
	id, _ := strconv.ParseInt(strings.TrimSpace(c.Telegram.GroupLog), 10, 64)
	return id
}

// DurationField reads a non-negative Go duration from the config value at
// path. Blank and zero values yield def.
func DurationField(path, raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: negative duration %q", path, raw)
	case d == 0:
		return def, nil
	}
	return d, nil
}
