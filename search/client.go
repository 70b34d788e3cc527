package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/imkonsowa/taste-finder/config"
	"github.com/imkonsowa/taste-finder/models"
	"github.com/imkonsowa/taste-finder/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

const maxErrorBody = 64 << 10

var (
	ErrMissingCredential = errors.New("yelp API key is not configured")
	ErrMissingParams     = errors.New("food preference and location are required")
	ErrInvalidPrice      = errors.New("price must be between one and four '$' characters")
	ErrSearchFailed      = errors.New("search failed")
	ErrInvalidResponse   = errors.New("invalid response format")
)

// StatusError is returned when the provider answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("search failed: provider responded with status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrSearchFailed
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limit      int
	sortBy     string
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

func WithLimit(limit int) Option {
	return func(client *Client) {
		client.limit = limit
	}
}

func WithSortBy(sortBy string) Option {
	return func(client *Client) {
		client.sortBy = sortBy
	}
}

func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		limit:      DefaultLimit,
		sortBy:     DefaultSortBy,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func NewClientFromConfig(cfg config.Yelp) *Client {
	return NewClient(cfg.BaseURL, cfg.APIKey,
		WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		WithLimit(cfg.Limit),
		WithSortBy(cfg.SortBy),
	)
}

// Configured reports whether the provider credential is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Search runs one businesses/search request. An empty businesses array is a valid result.
func (c *Client) Search(ctx context.Context, params models.QueryParams) (_ *models.SearchResponse, err error) {
	query, err := BuildQuery(params, c.limit, c.sortBy)
	if err != nil {
		return nil, err
	}

	if !c.Configured() {
		return nil, ErrMissingCredential
	}

	ctx, span := telemetry.StartUpstreamSpan(ctx, "yelp.search",
		attribute.String("search.term", params.Food),
		attribute.String("search.location", params.Location),
	)
	start := time.Now()
	defer func() {
		telemetry.EndUpstreamSpan(ctx, span, "yelp", start, err)
	}()

	endpoint := c.baseURL + "/businesses/search?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	slog.Debug("calling search provider", "term", params.Food, "location", params.Location, "query", query.Encode())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		slog.Error("search provider error", "status", resp.StatusCode, "body", string(body))

		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrSearchFailed, err)
	}

	result, err := decodeResponse(body)
	if err != nil {
		return nil, err
	}

	slog.Info("search provider response received", "businesses", len(result.Businesses), "total", result.Total)

	return result, nil
}

func decodeResponse(body []byte) (*models.SearchResponse, error) {
	var envelope struct {
		Businesses json.RawMessage `json:"businesses"`
		Total      int             `json:"total"`
		Region     models.Region   `json:"region"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	raw := bytes.TrimSpace(envelope.Businesses)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, fmt.Errorf("%w: businesses array is missing", ErrInvalidResponse)
	}

	var businesses []models.Restaurant
	if err := json.Unmarshal(raw, &businesses); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	return &models.SearchResponse{
		Businesses: businesses,
		Total:      envelope.Total,
		Region:     envelope.Region,
		Raw:        body,
	}, nil
}
