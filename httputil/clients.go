package httputil

import (
	"crypto/tls"
	"net/http"
	"net/url"
	"time"

	"immo_scrooper/config"
	"immo_scrooper/logging"
)

type Clients struct {
	Scraping *http.Client // proxied, for portals and their image CDNs
	API      *http.Client // direct, for Overpass, Nominatim and Telegram
}

func NewClients(proxyCfg config.ProxyConfig, apiTimeout time.Duration, userAgent string) *Clients {
	transport := &http.Transport{
		ForceAttemptHTTP2: false,
		TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
	}
	if proxyCfg.URL != "" {
		if proxyURL, err := url.Parse(proxyCfg.URL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		} else {
			logging.Warnf("httputil", "ignoring invalid proxy url: %v", err)
		}
	}

	if apiTimeout <= 0 {
		apiTimeout = 30 * time.Second
	}

	return &Clients{
		Scraping: &http.Client{
			Timeout:   15 * time.Second,
			Transport: withUserAgent(transport, userAgent),
		},
		API: &http.Client{
			Timeout:   apiTimeout,
			Transport: withUserAgent(http.DefaultTransport, userAgent),
		},
	}
}

type userAgentTransport struct {
	base http.RoundTripper
	ua   string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.ua)
	}
	return t.base.RoundTrip(req)
}

func withUserAgent(base http.RoundTripper, ua string) http.RoundTripper {
	if ua == "" {
		return base
	}
	return &userAgentTransport{base: base, ua: ua}
}
