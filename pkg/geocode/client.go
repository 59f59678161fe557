// Package geocode resolves free-form location text to coordinates via the
// Google Geocoding API.
package geocode

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Client geocodes free-form location text.
type Client interface {
	// Geocode returns candidates in provider rank order. Zero candidates is
	// not an error.
	Geocode(ctx context.Context, req Request) ([]Candidate, error)
}

// Request is a location to geocode. APIKey overrides the client's default.
type Request struct {
	Address string
	APIKey  string
}

// Candidate is one geocoding match.
type Candidate struct {
	Latitude         float64
	Longitude        float64
	FormattedAddress string
	PlaceID          string
	Quality          string // "rooftop", "range", "centroid", "approximate"
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithGoogleAPIKey sets the key used when a request carries none.
func WithGoogleAPIKey(key string) Option {
	return func(g *geocoder) {
		g.googleKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithBaseURL overrides the Geocoding API endpoint.
func WithBaseURL(u string) Option {
	return func(g *geocoder) {
		g.baseURL = u
	}
}

// WithRateLimit sets the requests-per-second rate limit.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

type geocoder struct {
	httpClient *http.Client
	baseURL    string
	googleKey  string
	limiter    *rate.Limiter
}

// NewClient creates a new geocoding Client with the given options.
func NewClient(opts ...Option) Client {
	g := &geocoder{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    googleGeocodeURL,
		limiter:    rate.NewLimiter(10, 10),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *geocoder) Geocode(ctx context.Context, req Request) ([]Candidate, error) {
	return g.geocodeGoogle(ctx, req)
}
