// Package client provides the SumAPI HTTP client with session renewal,
// gateway retry, pacing and optional response caching.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/summarify/sumapi-go/pkg/cache"
	"github.com/summarify/sumapi-go/pkg/logging"
	"github.com/summarify/sumapi-go/pkg/ratelimit"
)

// Prometheus metrics for SumAPI client operations.
var (
	sumapiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sumapi_requests_total",
		Help: "Total SumAPI requests by endpoint and status",
	}, []string{"endpoint", "status"})

	sumapiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sumapi_request_duration_seconds",
		Help:    "SumAPI request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 5, 30, 120, 600, 3600},
	}, []string{"endpoint"})

	sumapiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sumapi_errors_total",
		Help: "Total SumAPI errors by class",
	}, []string{"class"})
)

// Client is the main SumAPI client. It owns exactly one Session.
type Client struct {
	httpClient *http.Client
	session    *Session
	limiter    *ratelimit.Limiter
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// New validates cfg, authenticates and returns a ready client.
// Rejected credentials fail with ErrAuth.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	logger := logging.NewLogger("sumapi-client")

	var transport http.RoundTripper = http.DefaultTransport
	if cfg.Tracing {
		transport = otelhttp.NewTransport(transport)
	}
	httpClient := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
	}

	session, err := NewSession(ctx, httpClient, cfg.BaseURL, cfg.Credentials, logger)
	if err != nil {
		return nil, err
	}

	c := &Client{
		httpClient: httpClient,
		session:    session,
		limiter:    ratelimit.NewLimiter(cfg.RateLimit, cfg.RateBurst, logging.NewLogger("sumapi-ratelimit")),
		config:     cfg,
		logger:     logger,
	}
	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis, cfg.CacheTTL)
	}
	return c, nil
}

// post performs one authorized POST and reads the whole body.
func (c *Client) post(ctx context.Context, path string, payload []byte) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header = c.session.Headers()
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	c.logger.Debug().
		Str("endpoint", path).
		Int("payload_bytes", len(payload)).
		Msg("Executing SumAPI request")

	startTime := time.Now()
	defer func() {
		sumapiRequestDuration.WithLabelValues(path).Observe(time.Since(startTime).Seconds())
	}()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", path).Msg("HTTP request failed")
		sumapiRequestsTotal.WithLabelValues(path, "network_error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		sumapiRequestsTotal.WithLabelValues(path, "network_error").Inc()
		return nil, fmt.Errorf("read response body: %w", err)
	}

	sumapiRequestsTotal.WithLabelValues(path, strconv.Itoa(resp.StatusCode)).Inc()
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// Do sends env to the endpoint of kind using the configured retry policy.
// Single item responses are served from and stored in the cache when one
// is configured.
func (c *Client) Do(ctx context.Context, kind OperationKind, env Envelope) (*Response, error) {
	path, err := validateKind(kind)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", kind, err)
	}

	useCache := c.cache != nil && kind != Batch
	cacheKey := cache.CacheKey{Endpoint: path, Payload: payload}
	if useCache {
		entry, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			c.logger.Debug().Str("endpoint", path).Msg("Cache hit")
			return &Response{StatusCode: entry.StatusCode, Body: entry.Data, Cached: true}, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("endpoint", path).Msg("Cache get error")
		}
	}

	resp, err := c.sendResilient(ctx, path, payload, c.config.RetryPolicy())
	if err != nil {
		return nil, err
	}

	if useCache && cacheable(resp) {
		if err := c.cache.Set(ctx, cacheKey, cache.NewEntry(resp.StatusCode, resp.Body, c.config.CacheTTL)); err != nil {
			c.logger.Warn().Err(err).Str("endpoint", path).Msg("Failed to cache response")
		}
	}
	return resp, nil
}

// cacheable reports whether resp is a successful JSON evaluation.
func cacheable(resp *Response) bool {
	return resp.StatusCode == http.StatusOK && !resp.Malformed() && !IsExpiredResponse(resp.Body)
}

// Call builds the envelope for p and sends it to the endpoint of kind.
// ErrInvalidRequest is returned before any network call when p selects
// no envelope.
func (c *Client) Call(ctx context.Context, kind OperationKind, p Params) (*Response, error) {
	env, err := BuildEnvelope(p)
	if err != nil {
		sumapiErrorsTotal.WithLabelValues(string(ErrorClassInvalidRequest)).Inc()
		return nil, err
	}
	return c.Do(ctx, kind, env)
}

// SendBatch posts one packet of arguments to the batch endpoint. Batch
// responses are never cached.
func (c *Client) SendBatch(ctx context.Context, args []Argument) (*Response, error) {
	return c.Do(ctx, Batch, BatchEnvelope{ArgList: args})
}

// Sentiment predicts the sentiment of text.
func (c *Client) Sentiment(ctx context.Context, text, domain string) (*Response, error) {
	return c.Do(ctx, Sentiment, DomainEnvelope{Body: text, Domain: orDefault(domain)})
}

// NamedEntityRecognition tags the entities in text.
func (c *Client) NamedEntityRecognition(ctx context.Context, text, domain string) (*Response, error) {
	return c.Do(ctx, NER, DomainEnvelope{Body: text, Domain: orDefault(domain)})
}

// Classification predicts the class of text within domain, e.g. "finance".
func (c *Client) Classification(ctx context.Context, text, domain string) (*Response, error) {
	return c.Do(ctx, Classification, DomainEnvelope{Body: text, Domain: orDefault(domain)})
}

// ZeroShot picks one of the comma separated categories for text.
func (c *Client) ZeroShot(ctx context.Context, text, categories string) (*Response, error) {
	if categories == "" {
		return nil, &APIError{ErrorClass: ErrorClassInvalidRequest, Message: "categories are required"}
	}
	return c.Do(ctx, ZeroShot, ZeroShotEnvelope{Body: text, Categories: categories})
}

// QuestionAnswering extracts the answer to question from passage.
func (c *Client) QuestionAnswering(ctx context.Context, passage, question string) (*Response, error) {
	if question == "" {
		return nil, &APIError{ErrorClass: ErrorClassInvalidRequest, Message: "question is required"}
	}
	return c.Do(ctx, QuestionAnswering, QuestionEnvelope{Context: passage, Question: question})
}

// SummarizeOptions size a summary. At least one of Percentage and
// WordCount must be set.
type SummarizeOptions struct {
	Percentage *float64
	WordCount  *int
	Domain     string
}

// Summarize shortens text.
func (c *Client) Summarize(ctx context.Context, text string, opts SummarizeOptions) (*Response, error) {
	if opts.Percentage == nil && opts.WordCount == nil {
		return nil, &APIError{ErrorClass: ErrorClassInvalidRequest, Message: "percentage or word_count is required"}
	}
	return c.Do(ctx, Summarization, SummarizationEnvelope{
		Body:       text,
		Percentage: opts.Percentage,
		Domain:     orDefault(opts.Domain),
		WordCount:  opts.WordCount,
	})
}

// SpellCheck corrects the spelling of text.
func (c *Client) SpellCheck(ctx context.Context, text, domain string) (*Response, error) {
	return c.Do(ctx, SpellCheck, DomainEnvelope{Body: text, Domain: orDefault(domain)})
}

func orDefault(domain string) string {
	if domain == "" {
		return DefaultDomain
	}
	return domain
}

// Session returns the client's session.
func (c *Client) Session() *Session {
	return c.session
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
	c.session.httpClient = client
}

// GetCache returns the cache manager, nil when caching is disabled.
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}
