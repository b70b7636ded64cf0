package config

// Config is the on-disk configuration. Durations are Go duration strings
// ("10s", "5m"). String values may reference environment variables as
// ${NAME}; they are expanded before decoding.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Publish  PublishConfig  `json:"publish"`
	Weather  WeatherConfig  `json:"weather"`
	Geocoder GeocoderConfig `json:"geocoder"`
	Render   RenderConfig   `json:"render"`
	Refresh  RefreshConfig  `json:"refresh"`
	Logging  LoggingConfig  `json:"logging"`
	Systemd  SystemdConfig  `json:"systemd"`
	Storage  *StorageConfig `json:"storage,omitempty"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// GroupLog is the chat id receiving log lines when logging.telegram is enabled.
	GroupLog string `json:"group_log"`
	// PollTimeout is the long-polling timeout.
	PollTimeout string `json:"poll_timeout"`
}

// PublishConfig selects where badges go.
//
//	"publish": { "driver": "mtproto", "api_id": 123, "api_hash": "${TG_API_HASH}", "phone": "+7..." }
//	"publish": { "driver": "dir", "dir": "./out" }
type PublishConfig struct {
	Driver      string `json:"driver"`
	APIID       int    `json:"api_id,omitempty"`
	APIHash     string `json:"api_hash,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Password    string `json:"password,omitempty"`
	SessionPath string `json:"session_path,omitempty"`
	Dir         string `json:"dir,omitempty"`
}

type WeatherConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url,omitempty"`
	Lang    string `json:"lang,omitempty"`
	Timeout string `json:"timeout,omitempty"`
}

type GeocoderConfig struct {
	BaseURL      string  `json:"base_url,omitempty"`
	CountryCodes string  `json:"country_codes,omitempty"`
	Lang         string  `json:"lang,omitempty"`
	UserAgent    string  `json:"user_agent,omitempty"`
	RatePerSec   float64 `json:"rate_per_sec,omitempty"`
	Timeout      string  `json:"timeout,omitempty"`
	Limit        int     `json:"limit,omitempty"`
}

type RenderConfig struct {
	// AssetsDir holds template.png, clock.png, hour_hand.png, minute_hand.png
	// and one png per weather glyph. Empty uses the built-in artwork.
	AssetsDir string `json:"assets_dir,omitempty"`
	// FontPath is a TTF file. Empty uses Go Regular.
	FontPath      string `json:"font_path,omitempty"`
	FixedFontSize int    `json:"fixed_font_size,omitempty"`
	// TimeRounding is the step the displayed time is rounded to (default "5m").
	TimeRounding string `json:"time_rounding,omitempty"`
	// Background and TextColor are hex colors ("#ffffff").
	Background string `json:"background,omitempty"`
	TextColor  string `json:"text_color,omitempty"`
}

type RefreshConfig struct {
	Tick                   string `json:"tick,omitempty"`
	ErrorBackoff           string `json:"error_backoff,omitempty"`
	DefaultIntervalMinutes int    `json:"default_interval_minutes,omitempty"`
	// Align, when set, is a cron spec whose boundaries trigger refreshes
	// instead of the elapsed interval ("*/5 * * * *").
	Align string `json:"align,omitempty"`
	// PublishTimeout bounds one upload or bulk delete.
	PublishTimeout string `json:"publish_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// SystemdConfig enables sd_notify readiness and watchdog pings.
type SystemdConfig struct {
	Notify bool `json:"notify"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./badge_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}
