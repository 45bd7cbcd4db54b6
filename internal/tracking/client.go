package tracking

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"runmatrix/internal/config"
	apperrors "runmatrix/internal/errors"
)

const (
	graphQLPath = "/graphql"
	userAgent   = "runmatrix/" + config.AppVersion
	// maxErrorBody bounds how much of an error response ends up in messages
	maxErrorBody = 512
)

// Client implements Service over the GraphQL API
type Client struct {
	http         *http.Client
	baseURL      string
	authHeader   string
	pageSize     int
	scanPageSize int
	limiter      *rate.Limiter
	logger       *slog.Logger

	tracerProvider trace.TracerProvider
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the client logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTracerProvider traces requests with tp instead of the global provider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracerProvider = tp
	}
}

// NewClient creates a client from the API settings. One timeout applies to
// every request; RequestsPerSecond > 0 paces requests.
func NewClient(cfg config.APIConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		pageSize:     cfg.PageSize,
		scanPageSize: cfg.ScanPageSize,
		logger:       slog.Default(),
	}
	if cfg.Key != "" {
		c.authHeader = "Basic " + base64.StdEncoding.EncodeToString([]byte("api:"+cfg.Key))
	}
	if c.pageSize <= 0 {
		c.pageSize = config.DefaultPageSize
	}
	if c.scanPageSize <= 0 {
		c.scanPageSize = config.DefaultScanPageSize
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.http == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = config.DefaultHTTPTimeout
		}
		var transportOpts []otelhttp.Option
		if c.tracerProvider != nil {
			transportOpts = append(transportOpts, otelhttp.WithTracerProvider(c.tracerProvider))
		}
		c.http = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport.(*http.Transport).Clone(), transportOpts...),
		}
	}
	return c
}

// Close releases idle connections
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// do posts one GraphQL operation and decodes its data into result
func (c *Client) do(ctx context.Context, operation, q string, vars map[string]interface{}, result interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return apperrors.NewRemoteServiceError(operation, 0, err)
		}
	}

	body, err := json.Marshal(graphQLRequest{Query: q, Variables: vars})
	if err != nil {
		return apperrors.NewRemoteServiceError(operation, 0, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+graphQLPath, bytes.NewReader(body))
	if err != nil {
		return apperrors.NewRemoteServiceError(operation, 0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.authHeader != "" {
		req.Header.Set("Authorization", c.authHeader)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.NewRemoteServiceError(operation, 0, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.NewRemoteServiceError(operation, resp.StatusCode, fmt.Errorf("failed to read response: %w", err))
	}

	c.logger.DebugContext(ctx, "tracking request completed",
		slog.String("operation", operation),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))

	if resp.StatusCode >= 400 {
		return apperrors.NewRemoteServiceError(operation, resp.StatusCode, fmt.Errorf("%s", truncate(respBody)))
	}

	var gr graphQLResponse
	if err := json.Unmarshal(sanitizeJSON(respBody), &gr); err != nil {
		return apperrors.NewRemoteServiceError(operation, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
	}
	if len(gr.Errors) > 0 {
		msgs := make([]string, len(gr.Errors))
		for i, e := range gr.Errors {
			msgs[i] = e.Message
		}
		return apperrors.NewRemoteServiceError(operation, 0, fmt.Errorf("%s", strings.Join(msgs, "; ")))
	}
	if result != nil {
		if err := json.Unmarshal(gr.Data, result); err != nil {
			return apperrors.NewRemoteServiceError(operation, 0, fmt.Errorf("failed to decode data: %w", err))
		}
	}

	return nil
}

func truncate(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
