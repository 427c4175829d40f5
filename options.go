package prefetch

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// WithBaseURL sets the prefix applied to relative request paths.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the default per-attempt deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHeaders merges default headers applied to every request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

// WithHeader sets one default header.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithRetryCount sets the number of extra attempts after the first.
func WithRetryCount(n int) Option {
	return func(c *Client) {
		c.retryCount = n
	}
}

// WithRetryDelay sets the fixed delay between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithCacheTTL sets the default cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.cacheTTL = ttl
	}
}

// WithCache sets a custom cache implementation.
func WithCache(cache Cache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithoutCache disables response caching entirely.
func WithoutCache() Option {
	return func(c *Client) {
		c.cache = nil
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRequestInterceptor appends a stage to the request chain.
func WithRequestInterceptor(onSuccess RequestHandler, onError RequestRecovery) Option {
	return func(c *Client) {
		c.AddRequestInterceptor(onSuccess, onError)
	}
}

// WithResponseInterceptor appends a stage to the response chain.
func WithResponseInterceptor(onSuccess ResponseHandler, onError ResponseRecovery) Option {
	return func(c *Client) {
		c.AddResponseInterceptor(onSuccess, onError)
	}
}

// WithDeduplication coalesces concurrent identical cacheable GETs into one
// dispatch.
func WithDeduplication() Option {
	return func(c *Client) {
		c.inflight = newInflightTracker()
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithLogger sets a custom logger for debug output.
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithSimpleLogger enables debug logging with a simple console logger.
func WithSimpleLogger() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
		c.logger = NewSimpleLogger()
	}
}

// WithDebug enables debug logging with the current debug configuration.
func WithDebug() Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.Enabled = true
	}
}

// WithDebugConfig sets a custom debug configuration.
func WithDebugConfig(config *DebugConfig) Option {
	return func(c *Client) {
		c.debug = config
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs.
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		if c.debug == nil {
			c.debug = DefaultDebugConfig()
		}
		c.debug.RequestIDGen = gen
	}
}

// WithConfig applies a host application's integration configuration.
// Zero-valued fields keep the client defaults.
func WithConfig(cfg Config) Option {
	return func(c *Client) {
		if cfg.BaseURL != "" {
			c.baseURL = cfg.BaseURL
		}
		if cfg.Timeout > 0 {
			c.timeout = cfg.Timeout
		}
		for k, v := range cfg.Headers {
			c.headers[k] = v
		}
		if cfg.CacheTimeout > 0 {
			c.cacheTTL = cfg.CacheTimeout
		}
		if cfg.RetryCount > 0 {
			c.retryCount = cfg.RetryCount
		}
		if cfg.RetryDelay > 0 {
			c.retryDelay = cfg.RetryDelay
		}
	}
}

// ValidateConfiguration validates the client configuration and returns an
// error if invalid.
func (c *Client) ValidateConfiguration() error {
	var problems []string

	if c.retryCount < 0 {
		problems = append(problems, "retryCount must be non-negative")
	}
	if c.retryDelay < 0 {
		problems = append(problems, "retryDelay must be non-negative")
	}
	if c.timeout <= 0 {
		problems = append(problems, "timeout must be positive")
	}
	if c.cache != nil && c.cacheTTL <= 0 {
		problems = append(problems, "cacheTTL must be positive when caching is enabled")
	}
	if c.httpClient == nil {
		problems = append(problems, "HTTP client cannot be nil")
	}
	if c.baseURL != "" {
		if _, err := url.Parse(c.baseURL); err != nil {
			problems = append(problems, fmt.Sprintf("baseURL is not a valid URL: %v", err))
		}
	}
	if c.debug != nil && c.debug.Enabled {
		if c.logger == nil {
			problems = append(problems, "logger must be set when debug is enabled")
		}
		if c.debug.RequestIDGen == nil {
			problems = append(problems, "debug RequestIDGen must be set when debug is enabled")
		}
	}
	for i, stage := range c.requestInterceptors {
		if stage.OnSuccess == nil && stage.OnError == nil {
			problems = append(problems, fmt.Sprintf("requestInterceptors[%d] has no handlers", i))
		}
	}
	for i, stage := range c.responseInterceptors {
		if stage.OnSuccess == nil && stage.OnError == nil {
			problems = append(problems, fmt.Sprintf("responseInterceptors[%d] has no handlers", i))
		}
	}

	if len(problems) > 0 {
		return &RequestError{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", problems),
		}
	}
	return nil
}
