// Package google provides a client for the Google Places Nearby Search API.
package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/locus/internal/resilience"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/place"

// PageSize is the maximum number of results a single nearby search returns.
const PageSize = 20

// Client performs Google Places API operations.
type Client interface {
	NearbySearch(ctx context.Context, req NearbySearchRequest) (*NearbySearchResponse, error)
}

// LatLng is a WGS84 coordinate.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NearbySearchRequest searches for places within Radius meters of Location.
// APIKey overrides the client's default key when set.
type NearbySearchRequest struct {
	Location LatLng
	Radius   int
	Keyword  string
	APIKey   string
}

// NearbySearchResponse is the response from Places Nearby Search.
type NearbySearchResponse struct {
	Results       []Place `json:"results"`
	Status        string  `json:"status"`
	ErrorMessage  string  `json:"error_message,omitempty"`
	NextPageToken string  `json:"next_page_token,omitempty"`
}

// Place represents a place returned by the API. Rating and
// UserRatingsTotal are nil when the provider omits them.
type Place struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name"`
	Vicinity         string   `json:"vicinity"`
	Rating           *float64 `json:"rating,omitempty"`
	UserRatingsTotal *int     `json:"user_ratings_total,omitempty"`
	BusinessStatus   string   `json:"business_status,omitempty"`
	Types            []string `json:"types,omitempty"`
	Geometry         Geometry `json:"geometry"`
}

// Geometry holds the place's coordinate.
type Geometry struct {
	Location LatLng `json:"location"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets the requests-per-second limit shared by all calls.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a Google Places API client. apiKey is used when a
// request carries no key of its own and may be empty.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(10, 10),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) NearbySearch(ctx context.Context, in NearbySearchRequest) (*NearbySearchResponse, error) {
	key := in.APIKey
	if key == "" {
		key = c.apiKey
	}
	if key == "" {
		return nil, eris.New("google: api key not configured")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "google: rate limit")
	}

	params := url.Values{
		"location": {strconv.FormatFloat(in.Location.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(in.Location.Lng, 'f', -1, 64)},
		"radius":   {strconv.Itoa(in.Radius)},
		"key":      {key},
	}
	if in.Keyword != "" {
		params.Set("keyword", in.Keyword)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/nearbysearch/json?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "google: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "google: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "google: read response")
	}

	if err := CheckHTTP("nearby search", resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	var result NearbySearchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "google: unmarshal response")
	}

	if err := CheckStatus("nearby search", result.Status, result.ErrorMessage); err != nil {
		return nil, err
	}

	if len(result.Results) > PageSize {
		result.Results = result.Results[:PageSize]
	}

	return &result, nil
}

// CheckHTTP classifies a non-200 HTTP response from a Maps endpoint.
func CheckHTTP(op string, statusCode int, body []byte) error {
	if statusCode == http.StatusOK {
		return nil
	}
	err := eris.Errorf("google: %s: unexpected status %d: %s", op, statusCode, truncate(string(body), 256))
	if resilience.IsTransientHTTPStatus(statusCode) {
		return resilience.NewTransientError(err, statusCode)
	}
	return &StatusError{Op: op, Status: strconv.Itoa(statusCode), Message: truncate(string(body), 256)}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
