package config

import (
	"reflect"
	"strings"

	logx "weatherbadge/pkg/logx"
)

// SummarizeConfigChange returns (1) the changed sections, (2) safe structured
// attrs for logging (never tokens, hashes or keys) and (3) the changed sections
// that only take effect after a restart.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	restart := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 16)

	if !reflect.DeepEqual(oldCfg.Telegram.OwnerUserIDs, newCfg.Telegram.OwnerUserIDs) ||
		strings.TrimSpace(oldCfg.Telegram.GroupLog) != strings.TrimSpace(newCfg.Telegram.GroupLog) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Int("telegram.owner_count", len(newCfg.Telegram.OwnerUserIDs)),
			logx.Bool("telegram.group_log_set", strings.TrimSpace(newCfg.Telegram.GroupLog) != ""),
		)
	}
	if oldCfg.Telegram.Token != newCfg.Telegram.Token ||
		strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) {
		restart = append(restart, "telegram.token/poll_timeout")
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	if oldCfg.Refresh != newCfg.Refresh {
		changed = append(changed, "refresh")
		attrs = append(attrs,
			logx.String("refresh.tick", newCfg.Refresh.Tick),
			logx.String("refresh.error_backoff", newCfg.Refresh.ErrorBackoff),
			logx.String("refresh.align", newCfg.Refresh.Align),
		)
	}
	if oldCfg.Render.TimeRounding != newCfg.Render.TimeRounding {
		changed = append(changed, "render.time_rounding")
		attrs = append(attrs, logx.String("render.time_rounding", newCfg.Render.TimeRounding))
	}

	// Sections wired once at startup.
	oldRender, newRender := oldCfg.Render, newCfg.Render
	oldRender.TimeRounding, newRender.TimeRounding = "", ""
	for _, sec := range []struct {
		name string
		same bool
	}{
		{"publish", oldCfg.Publish == newCfg.Publish},
		{"weather", oldCfg.Weather == newCfg.Weather},
		{"geocoder", oldCfg.Geocoder == newCfg.Geocoder},
		{"render", oldRender == newRender},
		{"systemd", oldCfg.Systemd == newCfg.Systemd},
		{"storage", reflect.DeepEqual(oldCfg.Storage, newCfg.Storage)},
	} {
		if !sec.same {
			changed = append(changed, sec.name)
			restart = append(restart, sec.name)
		}
	}

	return changed, attrs, restart
}
