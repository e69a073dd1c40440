package util

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Site describes a validated input URL together with the site identity
// derived from it. Derivation is a pure function of the URL's scheme and
// host; it never touches the network.
type Site struct {
	Canonical string // canonical absolute form of the input URL
	HomeURL   string // scheme + host + "/"
	Domain    string // registrable domain used for link internality
}

// ParseSite validates rawURL and derives its homepage URL and registrable
// domain. Only http and https URLs with a non-empty host are accepted.
func ParseSite(rawURL string) (*Site, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, fmt.Errorf("URL is empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("URL %q has no host", rawURL)
	}

	parsed.Scheme = scheme
	parsed.Host = strings.ToLower(parsed.Host)

	return &Site{
		Canonical: parsed.String(),
		HomeURL:   scheme + "://" + parsed.Host + "/",
		Domain:    RegistrableDomain(parsed.Hostname()),
	}, nil
}

// RegistrableDomain returns the public-suffix-aware root domain of a host,
// e.g. "example.com" for "www.example.com" and "example.co.uk" for
// "news.example.co.uk". Hosts without a registrable domain (IP addresses,
// single-label names like "localhost") fall back to the host itself so that
// exact-host comparison still works for them.
func RegistrableDomain(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}
