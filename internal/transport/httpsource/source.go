package httpsource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pricefeed/internal/quote"
)

const (
	defaultName        = "http"
	defaultPath        = "/price"
	defaultSymbolParam = "symbol"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=httpsource_test -destination=mock_http_client_test.go -source=source.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Source fetches quotes from an HTTP price endpoint. It hands status and
// body back verbatim; payload inspection happens in the validator, never
// here.
type Source struct {
	// name identifies the source in logs and cached records.
	name string
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient performs the requests.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
	// query contains additional query parameters to be sent with each request.
	query url.Values
	// path is the endpoint path appended to baseURL.
	path string
	// symbolParam is the query parameter carrying the requested symbol.
	symbolParam string
	// buildBody, when set, switches the request to POST with a JSON body.
	buildBody func(symbol string) any
}

// Option is a configuration option for the source.
type Option func(*Source)

// WithName sets the source name reported to callers.
func WithName(name string) Option {
	return func(s *Source) {
		s.name = name
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(s *Source) {
		s.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) Option {
	return func(s *Source) {
		for key, values := range header {
			for _, value := range values {
				s.header.Add(key, value)
			}
		}
	}
}

// WithQueryParam sets an additional query parameter to be sent with each
// request.
func WithQueryParam(key, value string) Option {
	return func(s *Source) {
		s.query.Add(key, value)
	}
}

// WithPath sets the endpoint path.
func WithPath(path string) Option {
	return func(s *Source) {
		s.path = path
	}
}

// WithSymbolParam sets the query parameter name carrying the symbol.
func WithSymbolParam(param string) Option {
	return func(s *Source) {
		s.symbolParam = param
	}
}

// WithRequestBody switches the source to POST requests, sending the JSON
// encoding of build(symbol) as the body.
func WithRequestBody(build func(symbol string) any) Option {
	return func(s *Source) {
		s.buildBody = build
	}
}

// New creates a quote source for the given base URL.
func New(baseURL string, options ...Option) (*Source, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL must not be empty")
	}
	var source = &Source{
		name:        defaultName,
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  http.DefaultClient,
		header:      http.Header{},
		query:       url.Values{},
		path:        defaultPath,
		symbolParam: defaultSymbolParam,
	}
	for _, option := range options {
		option(source)
	}
	return source, nil
}

// Name returns the source name.
func (s *Source) Name() string {
	return s.name
}

// RequestQuote performs one request for the symbol and returns the raw
// response. Rate-limit responses carry the parsed Retry-After hint.
func (s *Source) RequestQuote(ctx context.Context, symbol string) (*quote.RawResult, error) {
	req, err := s.newRequest(ctx, symbol)
	if err != nil {
		return nil, err
	}

	res, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	raw := &quote.RawResult{
		StatusCode: res.StatusCode,
		Body:       body,
	}
	if res.StatusCode == http.StatusTooManyRequests {
		raw.RateLimit = &quote.RateLimitSignal{
			RetryAfter: parseRetryAfter(res.Header.Get("Retry-After")),
		}
	}
	return raw, nil
}

func (s *Source) newRequest(ctx context.Context, symbol string) (*http.Request, error) {
	if s.buildBody != nil {
		payload, err := json.Marshal(s.buildBody(symbol))
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(s.query), bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header = s.header.Clone()
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	query := maps.Clone(s.query)
	query.Set(s.symbolParam, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint(query), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = s.header.Clone()
	return req, nil
}

func (s *Source) endpoint(query url.Values) string {
	if len(query) == 0 {
		return s.baseURL + s.path
	}
	return fmt.Sprintf("%s%s?%s", s.baseURL, s.path, query.Encode())
}

// parseRetryAfter reads an integer-seconds Retry-After value. A missing or
// unparseable header yields zero; the caller's default wait applies then.
func parseRetryAfter(value string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
