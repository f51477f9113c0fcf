package scrape

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of block detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// smallPage is the size under which a page is treated as an interstitial
// rather than real content.
const smallPage = 8 * 1024

// DetectBlock checks an HTTP response for signs of anti-bot protection.
// Venue pages routinely embed reCAPTCHA on contact forms, so captcha markers
// only count on small interstitial pages.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("cf-cache-status") != "" ||
			strings.EqualFold(resp.Header.Get("server"), "cloudflare") {
			return true, BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))

	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") {
		return true, BlockCloudflare
	}

	if len(body) >= smallPage {
		return false, BlockNone
	}

	if strings.Contains(lower, "captcha") {
		return true, BlockCaptcha
	}
	if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
		return true, BlockJSShell
	}
	if strings.Contains(lower, `meta http-equiv="refresh"`) {
		return true, BlockJSShell
	}

	return false, BlockNone
}
