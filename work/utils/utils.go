package utils

import (
	"strings"

	"iptv-core/work/config"
)

// LogURL returns either the original URL or an obfuscated version for logging,
// depending on configuration. Playlist URLs embed account credentials, so the
// obfuscated form is the default in shipped settings.
func LogURL(cfg *config.Config, url string) string {
	if cfg.ObfuscateUrls {
		return config.ObfuscateURL(url)
	}
	return url
}

var nameReplacer = strings.NewReplacer(
	" ", "_",
	",", "_",
	"\"", "",
	"'", "",
	"/", "_",
	"\\", "_",
	"?", "_",
	"&", "_",
	"=", "_",
	":", "_",
	";", "_",
	"|", "_",
	"*", "_",
	"<", "_",
	">", "_",
)

// SanitizeChannelName converts a display name into a URL-path-safe token for
// route parameters and store keys.
func SanitizeChannelName(name string) string {
	sanitized := nameReplacer.Replace(name)

	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}

	return strings.Trim(sanitized, "_")
}
