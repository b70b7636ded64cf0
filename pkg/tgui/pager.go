package tgui

import "fmt"

// Cycle moves page by delta over total pages, wrapping at both ends.
// page is 0-based; total <= 0 yields 0.
func Cycle(page, delta, total int) int {
	if total <= 0 {
		return 0
	}
	p := (page + delta) % total
	if p < 0 {
		p += total
	}
	return p
}

// Counter renders a 0-based page as "i/n".
func Counter(page, total int) string {
	if total <= 0 {
		return "0/0"
	}
	return fmt.Sprintf("%d/%d", page+1, total)
}
