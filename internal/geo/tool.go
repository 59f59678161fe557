package geo

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/locus/internal/fault"
	"github.com/sells-group/locus/internal/resilience"
	"github.com/sells-group/locus/pkg/geocode"
	"github.com/sells-group/locus/pkg/google"
)

// DefaultRadiusMeters is the nearby search radius when none is given.
const DefaultRadiusMeters = 5000

// SearchRequest describes one competitor lookup. APIKey is the per-run
// credential and takes precedence over the configured key.
type SearchRequest struct {
	Location     string
	BusinessType string
	RadiusMeters int
	APIKey       string
}

// SearchResult is the outcome of a successful lookup.
type SearchResult struct {
	Location      string     `json:"location"`
	BusinessType  string     `json:"business_type"`
	Center        Coordinate `json:"center"`
	CenterAddress string     `json:"center_address"`
	RadiusMeters  int        `json:"radius_meters"`
	Places        []Place    `json:"places"`
}

// CenterPoint returns the resolved center as an XY point.
func (r *SearchResult) CenterPoint() *geom.Point {
	return r.Center.Point()
}

// Option configures a Tool.
type Option func(*Tool)

// WithAPIKey sets the configured maps credential used when a request has none.
func WithAPIKey(key string) Option {
	return func(t *Tool) {
		t.apiKey = key
	}
}

// WithRadius sets the default search radius in meters.
func WithRadius(meters int) Option {
	return func(t *Tool) {
		if meters > 0 {
			t.radius = meters
		}
	}
}

// Tool geocodes a location then searches for nearby businesses around the
// first candidate. The two calls are sequential.
type Tool struct {
	geocoder geocode.Client
	places   google.Client
	apiKey   string
	radius   int
}

// NewTool creates a geo lookup tool.
func NewTool(g geocode.Client, p google.Client, opts ...Option) *Tool {
	t := &Tool{geocoder: g, places: p, radius: DefaultRadiusMeters}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Search resolves req.Location and returns nearby places of req.BusinessType.
// Zero geocode candidates yields a LocationNotFound error without a nearby call.
func (t *Tool) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	const op = "geo search"

	key := strings.TrimSpace(req.APIKey)
	if key == "" {
		key = t.apiKey
	}
	if key == "" {
		return nil, fault.Configuration(op, "maps api key not configured")
	}
	radius := req.RadiusMeters
	if radius <= 0 {
		radius = t.radius
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	candidates, err := t.geocoder.Geocode(ctx, geocode.Request{Address: req.Location, APIKey: key})
	if err != nil {
		return nil, classify(op+": geocode", err)
	}
	if len(candidates) == 0 {
		return nil, fault.LocationNotFound(op, req.Location)
	}
	first := candidates[0]
	center := NewPoint(first.Latitude, first.Longitude)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := t.places.NearbySearch(ctx, google.NearbySearchRequest{
		Location: google.LatLng{Lat: first.Latitude, Lng: first.Longitude},
		Radius:   radius,
		Keyword:  req.BusinessType,
		APIKey:   key,
	})
	if err != nil {
		return nil, classify(op+": nearby search", err)
	}

	results := resp.Results
	if len(results) > google.PageSize {
		results = results[:google.PageSize]
	}
	places := make([]Place, 0, len(results))
	for _, p := range results {
		places = append(places, fromGoogle(p, center))
	}

	zap.L().Debug("geo: search complete",
		zap.String("location", req.Location),
		zap.String("business_type", req.BusinessType),
		zap.Int("candidates", len(candidates)),
		zap.Int("places", len(places)),
	)

	return &SearchResult{
		Location:      req.Location,
		BusinessType:  req.BusinessType,
		Center:        Coordinate{Lat: first.Latitude, Lng: first.Longitude},
		CenterAddress: first.FormattedAddress,
		RadiusMeters:  radius,
		Places:        places,
	}, nil
}

// classify maps provider status payloads to provider errors and leaves
// transient and other errors wrapped for the retry policy.
func classify(op string, err error) error {
	var se *google.StatusError
	if !resilience.IsTransient(err) && errors.As(err, &se) {
		return fault.Provider(op, se)
	}
	return eris.Wrap(err, op)
}
