package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// ErrNotFound marks a clean "account/resource/module does not exist" answer
// from the fullnode, as opposed to a transport failure. Callers degrade the
// target to an empty record on this error instead of treating the source as
// unreachable.
var ErrNotFound = errors.New("not found on chain")

const moduleCacheSize = 256

type ClientConfig struct {
	Label   string // source label used in claims, e.g. "primary"
	BaseURL string
	Timeout time.Duration
	Retries int
	Backoff time.Duration
	Proxy   string
}

// Client reads resources, modules and transactions from one fullnode REST
// endpoint. Each configured endpoint gets its own Client so the corroboration
// engine can treat them as independent sources.
type Client struct {
	label   string
	baseURL string
	http    *http.Client
	retries int
	backoff time.Duration

	moduleCache *lru.Cache[string, *MoveModule]
	sf          singleflight.Group
}

func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("empty fullnode url")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid fullnode url %q: %w", cfg.BaseURL, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	httpClient, err := newHTTPClient(cfg.Proxy, timeout)
	if err != nil {
		return nil, err
	}

	cache, err := lru.New[string, *MoveModule](moduleCacheSize)
	if err != nil {
		return nil, err
	}

	retries := cfg.Retries
	if retries < 0 {
		retries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	label := cfg.Label
	if label == "" {
		label = base
	}

	return &Client{
		label:       label,
		baseURL:     base,
		http:        httpClient,
		retries:     retries,
		backoff:     backoff,
		moduleCache: cache,
	}, nil
}

func (c *Client) Label() string {
	return c.label
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Healthy probes the ledger info endpoint.
func (c *Client) Healthy(ctx context.Context) bool {
	var out map[string]any
	return c.get(ctx, "/v1", &out) == nil
}

func (c *Client) GetResources(ctx context.Context, address string) ([]Resource, error) {
	var out []Resource
	path := fmt.Sprintf("/v1/accounts/%s/resources", url.PathEscape(address))
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetResource(ctx context.Context, address, resourceType string) (*Resource, error) {
	var out Resource
	path := fmt.Sprintf("/v1/accounts/%s/resource/%s", url.PathEscape(address), url.PathEscape(resourceType))
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetModule fetches one module's bytecode and ABI. Results are cached and
// concurrent fetches of the same module are collapsed into one request.
func (c *Client) GetModule(ctx context.Context, address, name string) (*MoveModule, error) {
	key := strings.ToLower(address) + "::" + name
	if mod, ok := c.moduleCache.Get(key); ok {
		return mod, nil
	}

	v, err, _ := c.sf.Do(key, func() (any, error) {
		var out MoveModule
		path := fmt.Sprintf("/v1/accounts/%s/module/%s", url.PathEscape(address), url.PathEscape(name))
		if err := c.get(ctx, path, &out); err != nil {
			return nil, err
		}
		c.moduleCache.Add(key, &out)
		return &out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*MoveModule), nil
}

// GetModules fetches every module published at an address.
func (c *Client) GetModules(ctx context.Context, address string) ([]MoveModule, error) {
	var out []MoveModule
	path := fmt.Sprintf("/v1/accounts/%s/modules", url.PathEscape(address))
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	for i := range out {
		if abi := out[i].ABI; abi != nil {
			key := strings.ToLower(abi.Address) + "::" + abi.Name
			c.moduleCache.Add(key, &out[i])
		}
	}
	return out, nil
}

func (c *Client) GetAccountTransactions(ctx context.Context, address string, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 25
	}
	var out []Transaction
	path := fmt.Sprintf("/v1/accounts/%s/transactions?limit=%d", url.PathEscape(address), limit)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// get performs a GET with the configured retry budget. A 404 is returned as
// ErrNotFound immediately; transport errors and 5xx answers are retried with
// a fixed backoff.
func (c *Client) get(ctx context.Context, path string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff):
			}
		}

		err := c.getOnce(ctx, path, out)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (c *Client) getOnce(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fullnode request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("fullnode response read failed: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", c.label, path, ErrNotFound)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%s %s: unexpected status %d: %s", c.label, path, resp.StatusCode, truncate(string(body), 200))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s %s: malformed response: %w", c.label, path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
