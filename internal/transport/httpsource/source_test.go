package httpsource_test

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"pricefeed/internal/transport/httpsource"
)

func TestNew(t *testing.T) {
	t.Parallel()

	// Assert: a valid base URL should return a source.
	source, err := httpsource.New("http://localhost:8080")
	require.NoError(t, err)
	require.NotNil(t, source)
	require.Equal(t, "http", source.Name())

	// Assert: an empty base URL is rejected.
	_, err = httpsource.New("")
	require.Error(t, err)

	// Assert: the name option overrides the default.
	source, err = httpsource.New("http://localhost:8080", httpsource.WithName("quoted"))
	require.NoError(t, err)
	require.Equal(t, "quoted", source.Name())
}

func TestRequestQuoteBuildsGetRequest(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock http client
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: stub the Do method and check the request shape
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodGet, req.Method)
			require.Equal(t, "http://localhost:8080/price?symbol=BTC", req.URL.String())

			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(`{"symbol":"BTC","price":"45000.50"}`)),
			}, nil
		}).
		Times(1)

	// Arrange: create a source with the mock client.
	source, err := httpsource.New("http://localhost:8080/", httpsource.WithHTTPClient(httpClient))
	require.NoError(t, err)

	// Act
	res, err := source.RequestQuote(t.Context(), "BTC")

	// Assert: status and body pass through untouched
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `{"symbol":"BTC","price":"45000.50"}`, string(res.Body))
	require.Nil(t, res.RateLimit)
}

func TestRequestQuoteCustomShape(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock http client
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: stub the Do method and check path, params and headers
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "/v1/quote", req.URL.Path)
			require.Equal(t, "ETH", req.URL.Query().Get("coin"))
			require.Equal(t, "test-key", req.URL.Query().Get("api_key"))
			require.Equal(t, "bar", req.Header.Get("foo"))

			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(`{"price":"3000.10"}`)),
			}, nil
		}).
		Times(1)

	// Arrange: create a source with a custom request shape.
	source, err := httpsource.New("http://localhost:8080",
		httpsource.WithHTTPClient(httpClient),
		httpsource.WithPath("/v1/quote"),
		httpsource.WithSymbolParam("coin"),
		httpsource.WithQueryParam("api_key", "test-key"),
		httpsource.WithHeader(http.Header{
			"foo": []string{"bar"},
		}),
	)
	require.NoError(t, err)

	// Act
	_, err = source.RequestQuote(t.Context(), "ETH")

	// Assert
	require.NoError(t, err)
}

func TestRequestQuotePostBody(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock controller
	ctrl := gomock.NewController(t)

	// Arrange: create a mock http client
	httpClient := NewMockHTTPClient(ctrl)

	// Assert: stub the Do method and check the POST body
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodPost, req.Method)
			require.Equal(t, "application/json", req.Header.Get("Content-Type"))

			body, err := io.ReadAll(req.Body)
			require.NoError(t, err)
			require.JSONEq(t, `{"type":"quote","symbol":"BTC"}`, string(body))

			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(`{"symbol":"BTC","price":"45000.50"}`)),
			}, nil
		}).
		Times(1)

	// Arrange: create a source in POST mode.
	source, err := httpsource.New("http://localhost:8080",
		httpsource.WithHTTPClient(httpClient),
		httpsource.WithPath("/info"),
		httpsource.WithRequestBody(func(symbol string) any {
			return map[string]string{"type": "quote", "symbol": symbol}
		}),
	)
	require.NoError(t, err)

	// Act
	res, err := source.RequestQuote(t.Context(), "BTC")

	// Assert
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestRequestQuoteRetryAfter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		want   time.Duration
	}{
		{name: "integer seconds", header: "60", want: 60 * time.Second},
		{name: "padded integer", header: " 30 ", want: 30 * time.Second},
		{name: "missing header", header: "", want: 0},
		{name: "http date ignored", header: "Wed, 21 Oct 2026 07:28:00 GMT", want: 0},
		{name: "garbage ignored", header: "soon", want: 0},
		{name: "negative ignored", header: "-5", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// Arrange
			ctrl := gomock.NewController(t)
			httpClient := NewMockHTTPClient(ctrl)
			httpClient.EXPECT().
				Do(gomock.Any()).
				DoAndReturn(func(*http.Request) (*http.Response, error) {
					header := http.Header{}
					if tt.header != "" {
						header.Set("Retry-After", tt.header)
					}
					return &http.Response{
						StatusCode: http.StatusTooManyRequests,
						Header:     header,
						Body:       io.NopCloser(strings.NewReader(`rate limited`)),
					}, nil
				}).
				Times(1)

			source, err := httpsource.New("http://localhost:8080", httpsource.WithHTTPClient(httpClient))
			require.NoError(t, err)

			// Act
			res, err := source.RequestQuote(t.Context(), "BTC")

			// Assert: the signal is always attached on 429
			require.NoError(t, err)
			require.Equal(t, http.StatusTooManyRequests, res.StatusCode)
			require.NotNil(t, res.RateLimit)
			require.Equal(t, tt.want, res.RateLimit.RetryAfter)
		})
	}
}

func TestRequestQuoteServerError(t *testing.T) {
	t.Parallel()

	// Arrange
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(*http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusInternalServerError,
				Body:       io.NopCloser(strings.NewReader(`upstream exploded`)),
			}, nil
		}).
		Times(1)

	source, err := httpsource.New("http://localhost:8080", httpsource.WithHTTPClient(httpClient))
	require.NoError(t, err)

	// Act
	res, err := source.RequestQuote(t.Context(), "BTC")

	// Assert: no signal on non-429 statuses
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, res.StatusCode)
	require.Equal(t, "upstream exploded", string(res.Body))
	require.Nil(t, res.RateLimit)
}

func TestRequestQuoteNetworkError(t *testing.T) {
	t.Parallel()

	// Arrange
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		Return(nil, errors.New("connection refused")).
		Times(1)

	source, err := httpsource.New("http://localhost:8080", httpsource.WithHTTPClient(httpClient))
	require.NoError(t, err)

	// Act
	res, err := source.RequestQuote(t.Context(), "BTC")

	// Assert: transport failures are errors, not results
	require.Error(t, err)
	require.Nil(t, res)
	require.Contains(t, err.Error(), "connection refused")
}
