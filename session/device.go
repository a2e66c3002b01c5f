package session

import (
	"strings"

	"github.com/mssola/useragent"
)

// DescribeUserAgent turns a raw User-Agent header into a short human-readable
// device label for session listings, e.g. "Chrome 120 on Mac OS X".
func DescribeUserAgent(rawUA string) string {
	if strings.TrimSpace(rawUA) == "" {
		return "Unknown Device"
	}

	ua := useragent.New(rawUA)
	browser, version := ua.Browser()
	os := ua.OS()

	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}

	if idx := strings.Index(version, "."); idx > 0 {
		version = version[:idx]
	}

	label := browser
	if version != "" {
		label += " " + version
	}
	return strings.TrimSpace(label + " on " + os)
}
