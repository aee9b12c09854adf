// Package destination manages the travel destination catalog. Destinations
// are scoped to an organization and soft deleted so references from past
// agent runs stay resolvable.
package destination

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates no destination matches the identifier.
	ErrNotFound = errors.New("destination not found")

	// ErrDuplicateName indicates another active destination in the
	// organization already uses the name.
	ErrDuplicateName = errors.New("destination name already exists")

	// ErrInvalid indicates a field failed validation.
	ErrInvalid = errors.New("invalid destination")
)

// Destination is a place the agent can plan trips to.
type Destination struct {
	ID          uuid.UUID  `json:"id"`
	OrgID       uuid.UUID  `json:"org_id"`
	Name        string     `json:"name"`
	Country     string     `json:"country"`
	Description string     `json:"description"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
	Tags        []string   `json:"tags"`
	CreatedBy   *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Input carries the writable fields for create and update operations.
type Input struct {
	Name        string   `json:"name"`
	Country     string   `json:"country"`
	Description string   `json:"description"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Tags        []string `json:"tags"`
}

// Validate checks the input fields and normalizes whitespace in place.
func (in *Input) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Country = strings.TrimSpace(in.Country)

	if in.Name == "" {
		return errors.Join(ErrInvalid, errors.New("name is required"))
	}
	if len(in.Name) > 200 {
		return errors.Join(ErrInvalid, errors.New("name exceeds 200 characters"))
	}
	if in.Country == "" {
		return errors.Join(ErrInvalid, errors.New("country is required"))
	}
	if in.Latitude != nil && (*in.Latitude < -90 || *in.Latitude > 90) {
		return errors.Join(ErrInvalid, errors.New("latitude out of range"))
	}
	if in.Longitude != nil && (*in.Longitude < -180 || *in.Longitude > 180) {
		return errors.Join(ErrInvalid, errors.New("longitude out of range"))
	}
	if len(in.Tags) > 20 {
		return errors.Join(ErrInvalid, errors.New("too many tags"))
	}
	for i, tag := range in.Tags {
		in.Tags[i] = strings.TrimSpace(tag)
		if in.Tags[i] == "" {
			return errors.Join(ErrInvalid, errors.New("empty tag"))
		}
	}
	if in.Tags == nil {
		in.Tags = []string{}
	}
	return nil
}
