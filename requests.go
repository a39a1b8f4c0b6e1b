package main

import (
	"errors"
	"fmt"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/example/placesauth/internal/places"
)

// maxPasswordBytes is the bcrypt input limit.
const maxPasswordBytes = 72

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

// Validate will validate the payload
func (r registerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Password, validation.Required, validation.By(maxBytes(maxPasswordBytes))),
		validation.Field(&r.Username, validation.Required, validation.Length(1, 100)),
	)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

type introspectRequest struct {
	Token string `json:"token"`
}

func (r introspectRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

// locationParams is the raw restaurants query string.
type locationParams struct {
	City string `json:"city"`
	Lat  string `json:"lat"`
	Lon  string `json:"lon"`
}

func (p locationParams) Validate() error {
	if p.City != "" {
		return nil
	}
	if p.Lat == "" || p.Lon == "" {
		return &ValidationError{Message: msgNoLocation}
	}
	return validation.ValidateStruct(&p,
		validation.Field(&p.Lat, is.Float),
		validation.Field(&p.Lon, is.Float),
	)
}

// Query validates p and converts it. City wins over coordinates.
func (p locationParams) Query() (LocationQuery, error) {
	if err := p.Validate(); err != nil {
		return LocationQuery{}, err
	}
	if p.City != "" {
		return LocationQuery{City: p.City}, nil
	}
	// is.Float admits a few shapes ParseFloat does not, such as "."
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return LocationQuery{}, &ValidationError{Message: "lat: must be a floating point number."}
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return LocationQuery{}, &ValidationError{Message: "lon: must be a floating point number."}
	}
	return LocationQuery{Coordinates: &places.Coordinates{Lat: lat, Lon: lon}}, nil
}

// maxBytes limits the encoded length of a string, unlike validation.Length
// which counts runes.
func maxBytes(n int) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if len(s) > n {
			return fmt.Errorf("must be at most %d bytes", n)
		}
		return nil
	}
}

// asValidationError flattens ozzo field errors into a ValidationError.
func asValidationError(err error) (*ValidationError, bool) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr, true
	}
	var fields validation.Errors
	if errors.As(err, &fields) {
		return &ValidationError{Message: fields.Error()}, true
	}
	return nil, false
}
