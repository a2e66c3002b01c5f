package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribeUserAgent(t *testing.T) {
	t.Run("empty header returns unknown device", func(t *testing.T) {
		assert.Equal(t, "Unknown Device", DescribeUserAgent(""))
		assert.Equal(t, "Unknown Device", DescribeUserAgent("   "))
	})

	t.Run("chrome on desktop includes browser and major version", func(t *testing.T) {
		ua := "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
		got := DescribeUserAgent(ua)
		assert.Contains(t, got, "Chrome 120")
		assert.Contains(t, got, " on ")
		assert.NotContains(t, got, "120.0")
	})

	t.Run("firefox on linux includes browser and os", func(t *testing.T) {
		ua := "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
		got := DescribeUserAgent(ua)
		assert.Contains(t, got, "Firefox 121")
		assert.Contains(t, got, "Linux")
	})

	t.Run("garbage input still yields a usable label", func(t *testing.T) {
		got := DescribeUserAgent("definitely-not-a-user-agent")
		assert.NotEmpty(t, got)
		assert.Contains(t, got, " on ")
	})

	t.Run("no leading or trailing whitespace", func(t *testing.T) {
		got := DescribeUserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
		assert.Equal(t, got, strings.TrimSpace(got))
	})
}
