package feed

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
)

// Domain is the category of tracked object.
type Domain string

const (
	DomainTransit Domain = "TRANSIT"
	DomainTrain   Domain = "TRAIN"
	DomainVessel  Domain = "VESSEL"
)

// Valid reports whether d is one of the known domains.
func (d Domain) Valid() bool {
	switch d {
	case DomainTransit, DomainTrain, DomainVessel:
		return true
	}
	return false
}

// ObjectKey is the globally unique identity of a tracked object.
type ObjectKey struct {
	Domain   Domain `json:"domain"`
	PublicID string `json:"public_id"`
}

func (k ObjectKey) String() string {
	return string(k.Domain) + ":" + k.PublicID
}

// PositionEvent is a normalized, immutable position fact produced by exactly
// one adapter and consumed exactly once by the tracker.
//
// Speed is meters per second; Heading is degrees clockwise from true north in
// [0,360). Both are nil when the source did not report them: adapters must not
// fabricate motion.
type PositionEvent struct {
	Domain      Domain            `json:"domain" validate:"required"`
	PublicID    string            `json:"public_id" validate:"required"`
	DisplayName string            `json:"display_name,omitempty"`
	Source      string            `json:"source" validate:"required"`
	Timestamp   time.Time         `json:"timestamp" validate:"required"`
	Latitude    float64           `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude   float64           `json:"longitude" validate:"gte=-180,lte=180"`
	Speed       *float64          `json:"speed,omitempty" validate:"omitempty,gte=0"`
	Heading     *float64          `json:"heading,omitempty" validate:"omitempty,gte=0,lt=360"`
	Operator    string            `json:"operator,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Key returns the event's object identity.
func (e *PositionEvent) Key() ObjectKey {
	return ObjectKey{Domain: e.Domain, PublicID: e.PublicID}
}

var validate = validator.New()

// Validation errors surfaced to adapters. Adapters drop and count; they never
// crash the process over a bad event.
var (
	ErrUnknownDomain   = errors.New("unknown domain")
	ErrBadCoordinates  = errors.New("coordinates out of range")
	ErrZeroTimestamp   = errors.New("timestamp missing or zero")
	ErrFutureTimestamp = errors.New("timestamp too far in the future")
)

// Validate checks the event against the normalization contract. maxFutureSkew
// bounds how far ahead of the local clock an event timestamp may be.
func (e *PositionEvent) Validate(maxFutureSkew time.Duration) error {
	if !e.Domain.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownDomain, e.Domain)
	}
	// NaN fails every comparison, so check finiteness explicitly before the
	// struct tags get a chance to produce a less specific error.
	if math.IsNaN(e.Latitude) || math.IsInf(e.Latitude, 0) ||
		math.IsNaN(e.Longitude) || math.IsInf(e.Longitude, 0) {
		return fmt.Errorf("%w: non-finite", ErrBadCoordinates)
	}
	if e.Latitude < -90 || e.Latitude > 90 || e.Longitude < -180 || e.Longitude > 180 {
		return fmt.Errorf("%w: lat=%v lon=%v", ErrBadCoordinates, e.Latitude, e.Longitude)
	}
	if e.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}
	if maxFutureSkew > 0 && e.Timestamp.After(time.Now().Add(maxFutureSkew)) {
		return fmt.Errorf("%w: %s", ErrFutureTimestamp, e.Timestamp.UTC().Format(time.RFC3339))
	}
	if e.Speed != nil && (math.IsNaN(*e.Speed) || *e.Speed < 0) {
		return fmt.Errorf("invalid speed %v", *e.Speed)
	}
	if e.Heading != nil && (math.IsNaN(*e.Heading) || *e.Heading < 0 || *e.Heading >= 360) {
		return fmt.Errorf("invalid heading %v", *e.Heading)
	}
	if err := validate.Struct(e); err != nil {
		return err
	}
	return nil
}

// Float64 returns a pointer to v. Convenience for building events from
// decoded feeds where optional fields are value types.
func Float64(v float64) *float64 { return &v }
