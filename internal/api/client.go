package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pders01/restodash/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultURL is the default restaurant API endpoint
	DefaultURL = "http://localhost:3333"
	// DefaultTimeout bounds every request
	DefaultTimeout = 10 * time.Second
	// RequestIDHeader carries the per-request id
	RequestIDHeader = "X-Request-Id"

	tracerName = "github.com/pders01/restodash/internal/api"
)

// Options configures a Client
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Token      string
	UserAgent  string
	Headers    map[string]string
	HTTPClient *http.Client

	// TracerProvider creates the span of every request.
	// Default: the global provider
	TracerProvider trace.TracerProvider
}

// Client talks to the restaurant API
type Client struct {
	baseURL   string
	token     string
	userAgent string
	headers   map[string]string
	http      *http.Client
	tracer    trace.Tracer
}

// StatusError is returned when the API answers with a non-2xx status
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// NewClient creates a new API client
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "restodash"
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		token:     opts.Token,
		userAgent: opts.UserAgent,
		headers:   opts.Headers,
		http:      httpClient,
		tracer:    tp.Tracer(tracerName),
	}
}

// BaseURL returns the API endpoint in use
func (c *Client) BaseURL() string {
	return c.baseURL
}

// IsAvailable checks if the API is running and accessible
func (c *Client) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	err := c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	return err == nil
}

// GetManagedRestaurant reads the restaurant managed by the caller
func (c *Client) GetManagedRestaurant(ctx context.Context) (*models.ManagedRestaurant, error) {
	var restaurant models.ManagedRestaurant
	if err := c.do(ctx, http.MethodGet, "/managed-restaurant", nil, &restaurant); err != nil {
		return nil, fmt.Errorf("failed to get managed restaurant: %w", err)
	}
	return &restaurant, nil
}

// UpdateProfile replaces the name and description of the managed restaurant
func (c *Client) UpdateProfile(ctx context.Context, req models.UpdateProfileRequest) error {
	if err := c.do(ctx, http.MethodPut, "/profile", req, nil); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

// RegisterRestaurant creates a new restaurant and its manager
func (c *Client) RegisterRestaurant(ctx context.Context, req models.RegisterRestaurantRequest) error {
	if err := c.do(ctx, http.MethodPost, "/restaurants", req, nil); err != nil {
		return fmt.Errorf("failed to register restaurant: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) (err error) {
	requestID := uuid.NewString()

	ctx, span := c.tracer.Start(ctx, method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
			attribute.String("restodash.request_id", requestID),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(RequestIDHeader, requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
