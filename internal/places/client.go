// Package places is a small client for the HERE geocode and discover APIs.
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultRadius is the search radius around the coordinates, in meters.
	DefaultRadius = 15000
	// DefaultLimit caps the number of places returned by Discover.
	DefaultLimit = 10
	// DefaultQuery is the free-text category sent to discover.
	DefaultQuery = "restaurant"
)

var (
	// ErrNoResults is returned when geocoding a city yields no items.
	ErrNoResults = errors.New("places: no results")
	// ErrUpstream wraps non-2xx responses and undecodable bodies.
	ErrUpstream = errors.New("places: upstream error")
)

// Coordinates is a WGS84 position.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c Coordinates) String() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lon, 'f', -1, 64)
}

type Config struct {
	APIKey      string
	GeocodeURL  string
	DiscoverURL string
	Timeout     time.Duration
	// RatePerSecond throttles outgoing calls to stay within the API key quota.
	// Zero disables throttling.
	RatePerSecond float64
	HTTPClient    *http.Client
}

// Client calls HERE. It is safe for concurrent use.
type Client struct {
	apiKey      string
	geocodeURL  string
	discoverURL string
	http        *http.Client
	limiter     *rate.Limiter
}

func NewClient(c Config) *Client {
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: c.Timeout}
	}
	var limiter *rate.Limiter
	if c.RatePerSecond > 0 {
		burst := int(c.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(c.RatePerSecond), burst)
	}
	return &Client{
		apiKey:      c.APIKey,
		geocodeURL:  c.GeocodeURL,
		discoverURL: c.DiscoverURL,
		http:        hc,
		limiter:     limiter,
	}
}

type geocodeResponse struct {
	Items []struct {
		Position struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"position"`
	} `json:"items"`
}

type discoverResponse struct {
	Items []json.RawMessage `json:"items"`
}

// Geocode resolves a city name to the position of the first geocode result.
func (c *Client) Geocode(ctx context.Context, city string) (Coordinates, error) {
	q := url.Values{}
	q.Set("q", city)
	q.Set("apiKey", c.apiKey)

	var out geocodeResponse
	if err := c.get(ctx, c.geocodeURL, q, &out); err != nil {
		return Coordinates{}, err
	}
	if len(out.Items) == 0 {
		return Coordinates{}, ErrNoResults
	}
	p := out.Items[0].Position
	return Coordinates{Lat: p.Lat, Lon: p.Lng}, nil
}

// Discover returns up to DefaultLimit restaurants within DefaultRadius of at.
// Items are passed through verbatim.
func (c *Client) Discover(ctx context.Context, at Coordinates) ([]json.RawMessage, error) {
	q := url.Values{}
	q.Set("q", DefaultQuery)
	q.Set("limit", strconv.Itoa(DefaultLimit))
	q.Set("in", fmt.Sprintf("circle:%s;r=%d", at, DefaultRadius))
	q.Set("apiKey", c.apiKey)

	var out discoverResponse
	if err := c.get(ctx, c.discoverURL, q, &out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = []json.RawMessage{}
	}
	return out.Items, nil
}

func (c *Client) get(ctx context.Context, base string, q url.Values, v any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s returned %d: %s", ErrUpstream, req.URL.Host, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrUpstream, err)
	}
	return nil
}
