package bot

import (
	"fmt"
	"time"
)

// clockDuration renders d as HH:MM:SS; hours grow past 99 when needed.
func clockDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int64(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s%3600/60, s%60)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
