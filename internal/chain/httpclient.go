package chain

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

var (
	httpClientCacheMu sync.Mutex
	httpClientCache   = map[string]*http.Client{}
)

// ValidateProxyURL accepts an empty string (no proxy) or an http/https/socks5 URL.
func ValidateProxyURL(proxyURL string) error {
	if strings.TrimSpace(proxyURL) == "" {
		return nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("invalid proxy URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "socks5" {
		return fmt.Errorf("unsupported proxy scheme: %s (supported: http, https, socks5)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("proxy host cannot be empty")
	}
	return nil
}

// newHTTPClient returns a pooled, optionally proxy-aware client. Clients are
// cached per (proxy, timeout) pair so every endpoint of a network shares one
// connection pool.
func newHTTPClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	proxyURL = strings.TrimSpace(proxyURL)
	if err := ValidateProxyURL(proxyURL); err != nil {
		return nil, err
	}

	key := proxyURL + "|" + timeout.String()
	httpClientCacheMu.Lock()
	if cached := httpClientCache[key]; cached != nil {
		httpClientCacheMu.Unlock()
		return cached, nil
	}
	httpClientCacheMu.Unlock()

	client := &http.Client{Timeout: timeout}
	transport := &http.Transport{
		TLSHandshakeTimeout: 10 * time.Second,
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
	}
	if proxyURL != "" {
		u, _ := url.Parse(proxyURL)
		transport.Proxy = http.ProxyURL(u)
	}
	client.Transport = transport

	httpClientCacheMu.Lock()
	if len(httpClientCache) >= 32 {
		httpClientCache = map[string]*http.Client{}
	}
	httpClientCache[key] = client
	httpClientCacheMu.Unlock()

	return client, nil
}
