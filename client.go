package prefetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is the request executor: it resolves URLs against a base, runs the
// interceptor chains, consults the cache for GETs and dispatches through the
// retry/timeout controller, producing a normalized Response or RequestError.
// Construct one Client per request/render cycle; it is safe for concurrent
// use within that cycle. Register interceptors before issuing requests.
type Client struct {
	httpClient           *http.Client
	baseURL              string
	headers              map[string]string
	timeout              time.Duration
	retryCount           int
	retryDelay           time.Duration
	cache                Cache
	cacheTTL             time.Duration
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor
	inflight             *inflightTracker
	metrics              *MetricsCollector
	debug                *DebugConfig
	logger               Logger
	validationError      error
}

// New constructs a Client from functional options. A best effort validation
// is performed; call IsValid / ValidationError for errors.
func New(options ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{},
		headers:    map[string]string{},
		timeout:    30 * time.Second,
		retryCount: 3,
		retryDelay: 100 * time.Millisecond,
		cache:      NewMemoryCache(),
		cacheTTL:   5 * time.Minute,
		debug:      DefaultDebugConfig(),
	}

	for _, option := range options {
		option(client)
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	if client.debug != nil && client.debug.Enabled && client.logger != nil {
		client.logger.Debug("client configured", versionFields()...)
	}

	return client
}

// Get issues a GET for path.
func (c *Client) Get(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return c.Request(ctx, http.MethodGet, path, opts)
}

// Post issues a POST for path with the given body.
func (c *Client) Post(ctx context.Context, path string, body any, opts *RequestOptions) (*Response, error) {
	return c.Request(ctx, http.MethodPost, path, withBody(opts, body))
}

// Put issues a PUT for path with the given body.
func (c *Client) Put(ctx context.Context, path string, body any, opts *RequestOptions) (*Response, error) {
	return c.Request(ctx, http.MethodPut, path, withBody(opts, body))
}

// Delete issues a DELETE for path.
func (c *Client) Delete(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return c.Request(ctx, http.MethodDelete, path, opts)
}

// Request executes one call through the full pipeline: request interceptors,
// cache lookup (GET only), retry/timeout dispatch, body decoding, response
// interceptors and cache write. Every failure surfaces as a *RequestError.
func (c *Client) Request(ctx context.Context, method, path string, opts *RequestOptions) (*Response, error) {
	start := time.Now()
	cfg := c.buildConfig(method, path, opts)
	endpoint := endpointFromURL(cfg.URL)

	var requestID string
	if c.debug != nil && c.debug.Enabled && c.debug.RequestIDGen != nil {
		requestID = c.debug.RequestIDGen()
	}
	if c.debug != nil && c.debug.Enabled && c.debug.LogRequests && c.logger != nil {
		c.logger.Debug("starting request", "requestID", requestID, "method", cfg.Method, "url", cfg.URL)
	}

	if c.metrics != nil {
		c.metrics.RecordRequestStart(cfg.Method, endpoint)
	}

	resp, err := c.do(ctx, cfg, requestID)

	if c.metrics != nil {
		c.metrics.RecordRequestEnd(cfg.Method, endpoint)
		statusCode := 0
		if resp != nil {
			statusCode = resp.Status
		}
		c.metrics.RecordRequest(cfg.Method, endpoint, statusCode, time.Since(start))
	}

	return resp, err
}

// AddRequestInterceptor appends a stage to the request chain.
func (c *Client) AddRequestInterceptor(onSuccess RequestHandler, onError RequestRecovery) {
	c.requestInterceptors = append(c.requestInterceptors, RequestInterceptor{OnSuccess: onSuccess, OnError: onError})
}

// AddResponseInterceptor appends a stage to the response chain.
func (c *Client) AddResponseInterceptor(onSuccess ResponseHandler, onError ResponseRecovery) {
	c.responseInterceptors = append(c.responseInterceptors, ResponseInterceptor{OnSuccess: onSuccess, OnError: onError})
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

func (c *Client) do(ctx context.Context, cfg *RequestConfig, requestID string) (*Response, error) {
	endpoint := endpointFromURL(cfg.URL)

	chained, err := c.runRequestChain(cfg)
	if err != nil {
		return nil, c.fail(normalizeError(err, cfg, ErrorTypeInterceptor), endpoint)
	}
	cfg = chained

	body, err := encodeBody(cfg)
	if err != nil {
		reqErr := &RequestError{Type: ErrorTypeValidation, Message: "encode request body", Config: cfg, Cause: err}
		return nil, c.fail(reqErr, endpoint)
	}

	cacheable := cfg.Method == http.MethodGet && cfg.Cache && c.cache != nil
	var key string
	if cacheable {
		key = CacheKey(cfg.Method, cfg.URL, body)
		if cached, ok := c.cache.Get(key); ok {
			if c.metrics != nil {
				c.metrics.RecordCacheHit(cfg.Method, endpoint)
			}
			if c.debug != nil && c.debug.Enabled && c.debug.LogCache && c.logger != nil {
				c.logger.Debug("cache hit", "requestID", requestID, "cacheKey", key)
			}
			return cached, nil
		}
		if c.metrics != nil {
			c.metrics.RecordCacheMiss(cfg.Method, endpoint)
		}
		if c.debug != nil && c.debug.Enabled && c.debug.LogCache && c.logger != nil {
			c.logger.Debug("cache miss", "requestID", requestID, "cacheKey", key)
		}

		if c.inflight != nil {
			call, owner := c.inflight.getOrCreate(key)
			if !owner {
				if c.metrics != nil {
					c.metrics.RecordDeduplicationHit(cfg.Method, endpoint)
				}
				return call.wait(ctx)
			}
			// Re-check after winning ownership: a prior owner may have
			// written the cache between our miss and its complete.
			if cached, ok := c.cache.Get(key); ok {
				c.inflight.complete(key, cached, nil)
				if c.metrics != nil {
					c.metrics.RecordCacheHit(cfg.Method, endpoint)
				}
				return cached, nil
			}
			resp, err := c.fetch(ctx, cfg, body, key, cacheable, requestID)
			c.inflight.complete(key, resp, err)
			return resp, err
		}
	}

	return c.fetch(ctx, cfg, body, key, cacheable, requestID)
}

// fetch dispatches through the retry controller, runs the response chain and
// writes the cache on cacheable success.
func (c *Client) fetch(ctx context.Context, cfg *RequestConfig, body []byte, key string, cacheable bool, requestID string) (*Response, error) {
	endpoint := endpointFromURL(cfg.URL)

	resp, err := c.executeWithRetry(ctx, cfg, requestID, func(attemptCtx context.Context) (*Response, error) {
		return c.dispatch(attemptCtx, cfg, body)
	})
	if err != nil {
		return nil, c.fail(normalizeError(err, cfg, ErrorTypeNetwork), endpoint)
	}

	resp, err = c.runResponseChain(resp)
	if err != nil {
		reqErr := normalizeError(err, cfg, ErrorTypeInterceptor)
		if c.metrics != nil {
			c.metrics.RecordError(reqErr.Type, cfg.Method, endpoint)
		}
		return nil, reqErr
	}

	if cacheable {
		c.cache.Set(key, resp, c.cacheTTLFor(cfg))
		if c.metrics != nil {
			c.metrics.RecordCacheSize(c.cache.Len())
		}
		if c.debug != nil && c.debug.Enabled && c.debug.LogCache && c.logger != nil {
			c.logger.Debug("response cached", "requestID", requestID, "cacheKey", key, "ttl", c.cacheTTLFor(cfg))
		}
	}

	return resp, nil
}

// fail records the error metric and runs the response error chain so
// interceptors can react to the failure before it surfaces.
func (c *Client) fail(reqErr *RequestError, endpoint string) error {
	if c.metrics != nil {
		c.metrics.RecordError(reqErr.Type, reqErr.configMethod(), endpoint)
	}
	return c.runResponseErrorChain(reqErr, 0)
}

func (e *RequestError) configMethod() string {
	if e.Config == nil {
		return "unknown"
	}
	return e.Config.Method
}

// dispatch performs a single attempt under its own deadline. A canceled or
// timed-out attempt returns before any cache write can happen.
func (c *Client) dispatch(ctx context.Context, cfg *RequestConfig, body []byte) (*Response, error) {
	attemptCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, cfg.Method, cfg.URL, reader)
	if err != nil {
		return nil, &RequestError{Type: ErrorTypeValidation, Message: "build request", Config: cfg, Cause: err}
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent())
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(attemptCtx, err, cfg)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, classifyTransportError(attemptCtx, err, cfg)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &RequestError{
			Type:       ErrorTypeHTTPStatus,
			Message:    fmt.Sprintf("request failed with status %s", httpResp.Status),
			StatusCode: httpResp.StatusCode,
			Config:     cfg,
		}
	}

	return buildResponse(cfg, httpResp, raw)
}

// classifyTransportError separates deadline/abort failures from other
// transport failures; both carry status 0.
func classifyTransportError(ctx context.Context, err error, cfg *RequestConfig) *RequestError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &RequestError{Type: ErrorTypeTimeout, Message: "attempt deadline exceeded", Config: cfg, Cause: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return &RequestError{Type: ErrorTypeTimeout, Message: "attempt aborted", Config: cfg, Cause: err}
	}
	return &RequestError{Type: ErrorTypeNetwork, Message: "network request failed", Config: cfg, Cause: err}
}

// buildResponse decodes the body by content type and assembles the
// normalized result.
func buildResponse(cfg *RequestConfig, httpResp *http.Response, raw []byte) (*Response, error) {
	resp := &Response{
		Body:       raw,
		Status:     httpResp.StatusCode,
		StatusText: http.StatusText(httpResp.StatusCode),
		Headers:    httpResp.Header.Clone(),
		Config:     cfg,
	}
	contentType := httpResp.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") && len(raw) > 0 {
		var data any
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, &RequestError{Type: ErrorTypeValidation, Message: "decode response body", StatusCode: httpResp.StatusCode, Config: cfg, Cause: err}
		}
		resp.Data = data
	} else {
		resp.Data = string(raw)
	}
	return resp, nil
}

// buildConfig resolves the full URL, merges default and per-call headers
// (per-call wins) and applies per-call overrides.
func (c *Client) buildConfig(method, path string, opts *RequestOptions) *RequestConfig {
	cfg := &RequestConfig{
		Method:   method,
		URL:      c.resolveURL(path),
		Headers:  c.mergeHeaders(opts),
		Cache:    method == http.MethodGet,
		CacheTTL: c.cacheTTL,
		Timeout:  c.timeout,
	}
	if opts != nil {
		cfg.Body = opts.Body
		if opts.Cache != nil {
			cfg.Cache = *opts.Cache
		}
		if opts.CacheTTL > 0 {
			cfg.CacheTTL = opts.CacheTTL
		}
		if opts.Timeout > 0 {
			cfg.Timeout = opts.Timeout
		}
	}
	return cfg
}

// resolveURL passes absolute URLs through and prefixes everything else with
// the configured base URL.
func (c *Client) resolveURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	base := strings.TrimSuffix(c.baseURL, "/")
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

func (c *Client) mergeHeaders(opts *RequestOptions) map[string]string {
	merged := make(map[string]string, len(c.headers)+4)
	for k, v := range c.headers {
		merged[k] = v
	}
	if opts != nil {
		for k, v := range opts.Headers {
			merged[k] = v
		}
	}
	return merged
}

func (c *Client) cacheTTLFor(cfg *RequestConfig) time.Duration {
	if cfg.CacheTTL > 0 {
		return cfg.CacheTTL
	}
	return c.cacheTTL
}

// encodeBody serializes cfg.Body. Strings and byte slices pass through raw;
// anything else is marshaled as JSON and the content type defaulted.
func encodeBody(cfg *RequestConfig) ([]byte, error) {
	switch body := cfg.Body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return body, nil
	case string:
		return []byte(body), nil
	case json.RawMessage:
		return body, nil
	default:
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		if !hasHeader(cfg.Headers, "Content-Type") {
			if cfg.Headers == nil {
				cfg.Headers = map[string]string{}
			}
			cfg.Headers["Content-Type"] = "application/json"
		}
		return raw, nil
	}
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

func withBody(opts *RequestOptions, body any) *RequestOptions {
	if opts == nil {
		return &RequestOptions{Body: body}
	}
	dup := *opts
	dup.Body = body
	return &dup
}

// endpointFromURL reduces a URL to host+path for metric labels.
func endpointFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	if u.Path == "" || u.Path == "/" {
		return u.Host + "/"
	}
	return u.Host + u.Path
}
