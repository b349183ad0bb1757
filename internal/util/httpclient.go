package util

import (
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// NewRetryableClient returns a client that retries connection errors and 5xx
// responses with exponential backoff. A nil logger silences request logs.
func NewRetryableClient(timeout time.Duration, retryMax int, logger retryablehttp.LeveledLogger) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.HTTPClient.Timeout = timeout
	c.RetryMax = retryMax
	c.RetryWaitMin = 250 * time.Millisecond
	c.RetryWaitMax = 5 * time.Second
	c.Logger = nil
	if logger != nil {
		c.Logger = logger
	}
	return c
}
