package gitlab

import "golang.org/x/time/rate"

// Option adjusts client construction.
type Option func(*Client)

// WithRateLimit overrides the default request rate, in requests per
// second. Self-hosted instances often allow far more than gitlab.com.
func WithRateLimit(requestsPerSecond float64) Option {
	return func(c *Client) {
		c.rateLimiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
}
