package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"weatherbadge/internal/config"
	"weatherbadge/internal/publish"
	"weatherbadge/internal/publish/dirsink"
	"weatherbadge/internal/publish/mtproto"
	"weatherbadge/internal/refresh"
	"weatherbadge/internal/render/assets"
	"weatherbadge/internal/render/compose"
	"weatherbadge/internal/render/layout"
	"weatherbadge/internal/weather"
	logx "weatherbadge/pkg/logx"
)

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

// applyLogTarget points the chat sink at telegram.group_log; an empty value clears it.
func applyLogTarget(svc *logx.Service, cfg *config.Config) {
	svc.SetTelegramTarget(cfg.GroupLogChatID(), cfg.Logging.Telegram.ThreadID)
}

func refreshConfig(cfg *config.Config) (refresh.Config, error) {
	r := cfg.Refresh
	tick, err := config.DurationField("refresh.tick", r.Tick, refresh.DefaultTick)
	if err != nil {
		return refresh.Config{}, err
	}
	backoff, err := config.DurationField("refresh.error_backoff", r.ErrorBackoff, refresh.DefaultErrorBackoff)
	if err != nil {
		return refresh.Config{}, err
	}
	pubTimeout, err := config.DurationField("refresh.publish_timeout", r.PublishTimeout, refresh.DefaultPublishTimeout)
	if err != nil {
		return refresh.Config{}, err
	}
	rounding, err := config.DurationField("render.time_rounding", cfg.Render.TimeRounding, refresh.DefaultTimeRounding)
	if err != nil {
		return refresh.Config{}, err
	}
	fetch, err := config.DurationField("weather.timeout", cfg.Weather.Timeout, refresh.DefaultFetchTimeout)
	if err != nil {
		return refresh.Config{}, err
	}
	policy, err := refresh.PolicyFor(r.Align)
	if err != nil {
		return refresh.Config{}, fmt.Errorf("refresh.align: %w", err)
	}
	return refresh.Config{
		Tick:           tick,
		ErrorBackoff:   backoff,
		TimeRounding:   rounding,
		PublishTimeout: pubTimeout,
		FetchTimeout:   fetch,
		Policy:         policy,
	}, nil
}

func weatherConfig(cfg *config.Config) (weather.Config, error) {
	timeout, err := config.DurationField("weather.timeout", cfg.Weather.Timeout, 0)
	if err != nil {
		return weather.Config{}, err
	}
	return weather.Config{
		APIKey:  cfg.Weather.APIKey,
		BaseURL: cfg.Weather.BaseURL,
		Lang:    cfg.Weather.Lang,
		Timeout: timeout,
	}, nil
}

func geocoderConfig(cfg *config.Config) (weather.GeocoderConfig, error) {
	g := cfg.Geocoder
	timeout, err := config.DurationField("geocoder.timeout", g.Timeout, 0)
	if err != nil {
		return weather.GeocoderConfig{}, err
	}
	return weather.GeocoderConfig{
		BaseURL:      g.BaseURL,
		CountryCodes: g.CountryCodes,
		Lang:         g.Lang,
		UserAgent:    g.UserAgent,
		RatePerSec:   g.RatePerSec,
		Timeout:      timeout,
		Limit:        g.Limit,
	}, nil
}

func buildComposer(cfg *config.Config, log logx.Logger) (*compose.Composer, error) {
	r := cfg.Render
	set, err := assets.Load(r.AssetsDir)
	if err != nil {
		return nil, err
	}
	font, err := layout.LoadFont(r.FontPath)
	if err != nil {
		return nil, err
	}
	bg, err := config.ParseHexColor(r.Background, nil)
	if err != nil {
		return nil, fmt.Errorf("render.background: %w", err)
	}
	fg, err := config.ParseHexColor(r.TextColor, nil)
	if err != nil {
		return nil, fmt.Errorf("render.text_color: %w", err)
	}
	c, err := compose.New(set, font,
		compose.WithFixedSize(r.FixedFontSize),
		compose.WithBackground(bg),
		compose.WithTextColor(fg),
	)
	if err != nil {
		return nil, err
	}
	source := "builtin"
	if strings.TrimSpace(r.AssetsDir) != "" {
		source = r.AssetsDir
	}
	log.Info("renderer ready", logx.String("assets", source), logx.String("font", font.Name()))
	return c, nil
}

// openPublisher connects the configured sink. The mtproto driver may block
// on an interactive login the first time it runs.
func openPublisher(ctx context.Context, cfg *config.Config, log logx.Logger) (publish.Publisher, error) {
	p := cfg.Publish
	switch strings.ToLower(strings.TrimSpace(p.Driver)) {
	case config.DriverDir:
		sink, err := dirsink.New(p.Dir, log)
		if err != nil {
			return nil, err
		}
		return sink, nil
	case config.DriverMTProto, "":
		start := time.Now()
		pub, err := mtproto.Connect(ctx, mtproto.Config{
			AppID:       p.APIID,
			AppHash:     p.APIHash,
			Phone:       p.Phone,
			Password:    p.Password,
			SessionPath: p.SessionPath,
		}, log)
		if err != nil {
			return nil, err
		}
		log.Debug("mtproto connected", logx.Duration("took", time.Since(start)))
		return pub, nil
	default:
		return nil, fmt.Errorf("unknown publish.driver: %s", p.Driver)
	}
}
