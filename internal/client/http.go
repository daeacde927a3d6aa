package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"bento-indexer/internal/types"
)

// HTTPProvider is the default BlockProvider: a plain REST/JSON client over a
// single node, with exponential-backoff retries on transient failures
// (100ms..1s, max 3 retries) and optional client-side rate limiting.
type HTTPProvider struct {
	baseURL string
	http    *retryablehttp.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// Option configures an HTTPProvider.
type Option func(*HTTPProvider)

// WithRateLimit bounds outgoing requests to rps requests/second. A zero or
// negative rps disables limiting.
func WithRateLimit(rps float64) Option {
	return func(p *HTTPProvider) {
		if rps > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithLogger attaches a logger used for retry diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(p *HTTPProvider) { p.log = log }
}

// NewHTTPProvider constructs a provider talking to baseURL.
func NewHTTPProvider(baseURL string, opts ...Option) *HTTPProvider {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 1 * time.Second
	rc.Logger = nil // silence go-retryablehttp's default stdlib logger; we log via zap below

	p := &HTTPProvider{
		baseURL: baseURL,
		http:    rc,
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(p)
	}
	rc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			p.log.Warn("retrying node request", zap.String("url", req.URL.String()), zap.Int("attempt", attempt))
		}
	}
	return p
}

func (p *HTTPProvider) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

func (p *HTTPProvider) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	if err := p.wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	u := p.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("node request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("node returned status %d for %s: %s", resp.StatusCode, path, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response %s: %w", path, err)
	}
	return nil
}

type richBlocksResponse struct {
	BlocksAndEvents [][]types.BlockAndEvents `json:"blocksAndEvents"`
}

// ListBlocksWithEvents implements BlockProvider.
func (p *HTTPProvider) ListBlocksWithEvents(ctx context.Context, fromTs, toTs int64) ([]types.BlockAndEvents, error) {
	var resp richBlocksResponse
	q := url.Values{
		"fromTs": {strconv.FormatInt(fromTs, 10)},
		"toTs":   {strconv.FormatInt(toTs, 10)},
	}
	if err := p.getJSON(ctx, "/blockflow/rich-blocks", q, &resp); err != nil {
		return nil, err
	}
	out := make([]types.BlockAndEvents, 0)
	for _, shardList := range resp.BlocksAndEvents {
		out = append(out, shardList...)
	}
	return out, nil
}

// BlockAndEventsByHash implements BlockProvider.
func (p *HTTPProvider) BlockAndEventsByHash(ctx context.Context, hash string) (types.BlockAndEvents, error) {
	var out types.BlockAndEvents
	if err := p.getJSON(ctx, "/blockflow/rich-blocks/"+url.PathEscape(hash), nil, &out); err != nil {
		return types.BlockAndEvents{}, err
	}
	return out, nil
}

type hashesResponse struct {
	Headers []string `json:"headers"`
}

// BlockHashesAtHeight implements BlockProvider.
func (p *HTTPProvider) BlockHashesAtHeight(ctx context.Context, height int64, fromGroup, toGroup int32) ([]string, error) {
	var resp hashesResponse
	q := url.Values{
		"height":    {strconv.FormatInt(height, 10)},
		"fromGroup": {strconv.FormatInt(int64(fromGroup), 10)},
		"toGroup":   {strconv.FormatInt(int64(toGroup), 10)},
	}
	if err := p.getJSON(ctx, "/blockflow/hashes", q, &resp); err != nil {
		return nil, err
	}
	return resp.Headers, nil
}

// ChainInfo implements BlockProvider.
func (p *HTTPProvider) ChainInfo(ctx context.Context, fromGroup, toGroup int32) (types.ChainInfo, error) {
	var out types.ChainInfo
	q := url.Values{
		"fromGroup": {strconv.FormatInt(int64(fromGroup), 10)},
		"toGroup":   {strconv.FormatInt(int64(toGroup), 10)},
	}
	if err := p.getJSON(ctx, "/blockflow/chain-info", q, &out); err != nil {
		return types.ChainInfo{}, err
	}
	return out, nil
}
