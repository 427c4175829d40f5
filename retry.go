package prefetch

import (
	"context"
	"time"
)

// attemptFunc performs one dispatch attempt. The per-attempt deadline is
// applied inside the attempt so each try gets a fresh budget.
type attemptFunc func(ctx context.Context) (*Response, error)

// executeWithRetry runs fn up to 1+retryCount times. Attempts are strictly
// sequential with a fixed delay between them. Non-retryable failures surface
// immediately without consuming budget; once the budget is spent the last
// error surfaces as-is.
func (c *Client) executeWithRetry(ctx context.Context, cfg *RequestConfig, requestID string, fn attemptFunc) (*Response, error) {
	endpoint := endpointFromURL(cfg.URL)
	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			if err := c.waitRetryDelay(ctx, cfg); err != nil {
				return nil, err
			}
			if c.metrics != nil {
				c.metrics.RecordRetry(cfg.Method, endpoint, attempt)
			}
			if c.debug != nil && c.debug.Enabled && c.debug.LogRetries && c.logger != nil {
				c.logger.Info("retry attempt", "requestID", requestID, "attempt", attempt, "maxRetries", c.retryCount, "endpoint", endpoint)
			}
		}
		resp, err := fn(ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// waitRetryDelay sleeps the fixed retry delay, aborting early when the
// caller's context ends.
func (c *Client) waitRetryDelay(ctx context.Context, cfg *RequestConfig) error {
	if c.retryDelay <= 0 {
		if err := ctx.Err(); err != nil {
			return &RequestError{
				Type:    ErrorTypeTimeout,
				Message: "canceled while waiting to retry",
				Config:  cfg,
				Cause:   err,
			}
		}
		return nil
	}
	timer := time.NewTimer(c.retryDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return &RequestError{
			Type:    ErrorTypeTimeout,
			Message: "canceled while waiting to retry",
			Config:  cfg,
			Cause:   ctx.Err(),
		}
	}
}
