package hoard

import (
	"net/url"
	"strings"
)

// platformHosts maps hostname fragments to platform labels, checked in order.
var platformHosts = []struct {
	fragment string
	platform string
}{
	{"youtube.com", "youtube"},
	{"youtu.be", "youtube"},
	{"twitter.com", "twitter"},
	{"x.com", "twitter"},
	{"instagram.com", "instagram"},
	{"vimeo.com", "vimeo"},
	{"tiktok.com", "tiktok"},
	{"twitch.tv", "twitch"},
	{"reddit.com", "reddit"},
	{"redd.it", "reddit"},
}

// DetectPlatform derives a platform label from a source URL's hostname.
// Returns "unknown" for unrecognized hosts or unparseable URLs.
func DetectPlatform(rawURL string) string {
	if rawURL == "" {
		return "unknown"
	}

	var host string
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	} else {
		// Scheme-less URL: the hostname is everything before the first slash.
		host, _, _ = strings.Cut(rawURL, "/")
	}
	host = strings.ToLower(host)
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}

	for _, p := range platformHosts {
		// Exact or subdomain match only; substring matching would let
		// "x.com" claim hosts like dropbox.com.
		if host == p.fragment || strings.HasSuffix(host, "."+p.fragment) {
			return p.platform
		}
	}
	return "unknown"
}
