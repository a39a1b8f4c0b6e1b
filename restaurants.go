package main

import (
	"context"
	"encoding/json"

	"github.com/example/placesauth/internal/logging"
	"github.com/example/placesauth/internal/places"
)

// PlaceFinder is the subset of the places client used by RestaurantService.
type PlaceFinder interface {
	Geocode(ctx context.Context, city string) (places.Coordinates, error)
	Discover(ctx context.Context, at places.Coordinates) ([]json.RawMessage, error)
}

// LocationQuery selects where to search. City wins when both are set.
type LocationQuery struct {
	City        string
	Coordinates *places.Coordinates
}

type RestaurantService struct {
	finder PlaceFinder
	txlog  *TransactionLogger
	log    logging.Logger
}

func NewRestaurantService(finder PlaceFinder, txlog *TransactionLogger, log logging.Logger) *RestaurantService {
	return &RestaurantService{finder: finder, txlog: txlog, log: log}
}

// Find returns the places near q, proxied verbatim from the upstream API,
// and records a restaurant_query transaction for userID.
func (s *RestaurantService) Find(ctx context.Context, q LocationQuery, userID *string) ([]json.RawMessage, error) {
	var at places.Coordinates
	switch {
	case q.City != "":
		c, err := s.finder.Geocode(ctx, q.City)
		if err != nil {
			return nil, &UpstreamError{Message: "Error fetching city coordinates", Err: err}
		}
		at = c
	case q.Coordinates != nil:
		at = *q.Coordinates
	default:
		return nil, &ValidationError{Message: msgNoLocation}
	}

	items, err := s.finder.Discover(ctx, at)
	if err != nil {
		return nil, &UpstreamError{Message: "Failed to fetch restaurants", Err: err}
	}

	details := "Query for city: " + q.City + " or coordinates: " + at.String()
	if _, err := s.txlog.Record(ctx, TransactionRestaurantQuery, &details, userID); err != nil {
		return nil, err
	}
	s.log.Debug(ctx, "restaurants found", "at", at.String(), "count", len(items))
	return items, nil
}
