package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wasmerio/wapm-cli-sub000/pkg/buildinfo"
	"github.com/wasmerio/wapm-cli-sub000/pkg/cache"
	"github.com/wasmerio/wapm-cli-sub000/pkg/httputil"
	"github.com/wasmerio/wapm-cli-sub000/pkg/observability"
)

// DefaultURL is the public registry GraphQL endpoint.
const DefaultURL = "https://registry.wapm.io/graphql"

const httpTimeout = 30 * time.Second

// Client provides GraphQL access to a registry. It handles caching, retry
// logic, and authentication.
type Client struct {
	http     *http.Client
	endpoint string
	token    string
	cache    cache.Cache
	ttl      time.Duration
}

// NewClient creates a client for the GraphQL endpoint. A nil cache disables
// caching. An empty token sends unauthenticated requests.
func NewClient(endpoint string, c cache.Cache, ttl time.Duration, token string) *Client {
	if c == nil {
		c = cache.NewNullCache()
	}
	return &Client{
		http:     &http.Client{Timeout: httpTimeout},
		endpoint: endpoint,
		token:    token,
		cache:    c,
		ttl:      ttl,
	}
}

// Cached retrieves a value from cache or executes fetch and caches the result.
// If refresh is true, the cache is bypassed and fetch is always called.
// The fetch function should populate v; on success, v is stored in the cache.
func (c *Client) Cached(ctx context.Context, key string, refresh bool, v any, fetch func() error) error {
	if !refresh {
		data, ok, err := c.cache.Get(ctx, key)
		if err == nil && ok && json.Unmarshal(data, v) == nil {
			observability.Cache().OnCacheHit(ctx, "registry")
			return nil
		}
		observability.Cache().OnCacheMiss(ctx, "registry")
	}
	if err := httputil.RetryWithBackoff(ctx, fetch); err != nil {
		return err
	}
	if data, err := json.Marshal(v); err == nil {
		if c.cache.Set(ctx, key, data, c.ttl) == nil {
			observability.Cache().OnCacheSet(ctx, "registry", len(data))
		}
	}
	return nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// Query posts a GraphQL query and decodes the "data" member into v. GraphQL
// errors in the response are returned as one error.
func (c *Client) Query(ctx context.Context, query string, vars map[string]any, v any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	host, path := endpointParts(c.endpoint)
	hooks := observability.HTTP()
	hooks.OnRequest(ctx, http.MethodPost, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, http.MethodPost, host, path, err)
		return httputil.Retryable(fmt.Errorf("%w: %v", httputil.ErrNetwork, err))
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, http.MethodPost, host, path, resp.StatusCode, time.Since(start))

	if err := httputil.CheckStatus(resp.StatusCode); err != nil {
		return err
	}

	var out graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode registry response: %w", err)
	}
	if len(out.Errors) > 0 {
		msgs := make([]string, len(out.Errors))
		for i, e := range out.Errors {
			msgs[i] = e.Message
		}
		return fmt.Errorf("registry: %s", strings.Join(msgs, "; "))
	}
	if len(out.Data) == 0 {
		return fmt.Errorf("registry: empty response")
	}
	return json.Unmarshal(out.Data, v)
}

func endpointParts(endpoint string) (host, path string) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", endpoint
	}
	return u.Host, u.Path
}
