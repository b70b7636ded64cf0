// Package tgui holds small helpers for building Telegram UI: HTML-escaped
// message builders, inline keyboards, callback data and paging.
package tgui
