package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry operations.
var (
	sumapiRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sumapi_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	sumapiRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sumapi_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 5, 30, 60, 300, 600, 1200},
	}, []string{"error_class"})

	sumapiRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sumapi_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// gatewayPage is the nginx page served when the inference backend is down.
const gatewayPage = `<html>
<head><title>502 Bad Gateway</title></head>
<body>
<center><h1>502 Bad Gateway</h1></center>
<hr><center>nginx</center>
</body>
</html>`

var normalizedGatewayPage = strings.Join(strings.Fields(gatewayPage), " ")

// RetryPolicy bounds the recovery of a single request.
type RetryPolicy struct {
	// MaxGatewayRetries is the number of resends after a connectivity or
	// gateway failure.
	MaxGatewayRetries int

	// MaxAuthRetries is the number of token refreshes, each followed by a
	// resend, after an expiry sentinel.
	MaxAuthRetries int

	// Backoff is the fixed wait before a gateway resend.
	Backoff time.Duration
}

// DefaultRetryPolicy returns one gateway retry after 600s and one refresh.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxGatewayRetries: 1,
		MaxAuthRetries:    1,
		Backoff:           600 * time.Second,
	}
}

// isGatewayFailure reports whether resp is a 502 or the nginx 502 page.
func isGatewayFailure(resp *Response) bool {
	if resp.StatusCode == http.StatusBadGateway {
		return true
	}
	return strings.Join(strings.Fields(string(resp.Body)), " ") == normalizedGatewayPage
}

// sendResilient posts payload to path and recovers from transient
// failures, in this order:
//
//   - transport error or gateway failure: wait Backoff, resend, at most
//     MaxGatewayRetries times, then fail with ErrNetwork
//   - expiry sentinel: refresh the session, resend, at most
//     MaxAuthRetries times, then fail with ErrTokenExpired
//
// Any other response, including bodies that are not JSON, is returned
// as is.
func (c *Client) sendResilient(ctx context.Context, path string, payload []byte, policy RetryPolicy) (*Response, error) {
	for refreshes := 0; ; refreshes++ {
		resp, err := c.sendWithGatewayRetry(ctx, path, payload, policy)
		if err != nil {
			return nil, err
		}

		if !IsExpiredResponse(resp.Body) {
			return resp, nil
		}

		sumapiErrorsTotal.WithLabelValues(string(ErrorClassTokenExpired)).Inc()
		if refreshes >= policy.MaxAuthRetries {
			sumapiRetryExhaustedTotal.WithLabelValues(string(ErrorClassTokenExpired)).Inc()
			c.logger.Error().
				Str("endpoint", path).
				Int("refreshes", refreshes).
				Msg("Token still rejected after refresh")
			return nil, &APIError{
				StatusCode: resp.StatusCode,
				ErrorClass: ErrorClassTokenExpired,
				Message:    DetailCouldNotValidate,
			}
		}

		sumapiRetriesTotal.WithLabelValues(string(ErrorClassTokenExpired)).Inc()
		c.logger.Warn().
			Str("endpoint", path).
			Msg("Token expired, refreshing session")

		if err := c.session.Refresh(ctx); err != nil {
			return nil, fmt.Errorf("refresh session: %w", err)
		}
	}
}

// sendWithGatewayRetry resends on connectivity and gateway failures with a
// fixed delay.
func (c *Client) sendWithGatewayRetry(ctx context.Context, path string, payload []byte, policy RetryPolicy) (*Response, error) {
	var resp *Response
	var lastStatus int

	err := retry.Do(func() error {
		lastStatus = 0
		r, err := c.post(ctx, path, payload)
		if err != nil {
			sumapiErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return &APIError{
				ErrorClass: ErrorClassNetwork,
				Message:    "request failed",
				Err:        err,
			}
		}

		if isGatewayFailure(r) {
			lastStatus = r.StatusCode
			sumapiErrorsTotal.WithLabelValues(string(ErrorClassGateway)).Inc()
			c.logger.Warn().
				Str("endpoint", path).
				Int("status", r.StatusCode).
				Str("error_class", string(ErrorClassGateway)).
				Msg("Gateway failure")
			return &APIError{
				StatusCode: r.StatusCode,
				ErrorClass: ErrorClassGateway,
				Message:    "502 Bad Gateway",
			}
		}

		resp = r
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(uint(policy.MaxGatewayRetries)+1),
		retry.Delay(policy.Backoff),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && shouldRetry(classOf(err))
		}),
		retry.OnRetry(func(n uint, err error) {
			class := classOf(err)
			sumapiRetriesTotal.WithLabelValues(string(class)).Inc()
			sumapiRetryBackoffSeconds.WithLabelValues(string(class)).Observe(policy.Backoff.Seconds())
			c.logger.Warn().
				Err(err).
				Str("endpoint", path).
				Str("error_class", string(class)).
				Uint("attempt", n+1).
				Dur("backoff", policy.Backoff).
				Msg("Retrying request after backoff")
		}),
	)
	if err == nil {
		return resp, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		c.logger.Warn().Str("endpoint", path).Msg("Context cancelled during request")
		return nil, fmt.Errorf("%w: %v", ErrContextCancelled, ctxErr)
	}

	class := classOf(err)
	sumapiRetryExhaustedTotal.WithLabelValues(string(class)).Inc()
	c.logger.Error().
		Err(err).
		Str("endpoint", path).
		Str("error_class", string(class)).
		Int("max_retries", policy.MaxGatewayRetries).
		Msg("Retry attempts exhausted")

	// keep the transport error rather than its intermediate wrapper
	cause := err
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.ErrorClass == ErrorClassNetwork && apiErr.Err != nil {
		cause = apiErr.Err
	}
	return nil, &APIError{
		StatusCode: lastStatus,
		ErrorClass: ErrorClassNetwork,
		Message:    StatusPageMessage,
		Err:        cause,
	}
}
