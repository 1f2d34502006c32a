package models

import (
	"time"
)

// LocationSample is one position fix from the device watch or from the peer's
// tracked stream.
type LocationSample struct {
	Latitude    float64   `json:"latitude" bson:"latitude"`
	Longitude   float64   `json:"longitude" bson:"longitude"`
	Address     string    `json:"address,omitempty" bson:"address,omitempty"`
	Heading     *float64  `json:"heading,omitempty" bson:"heading,omitempty"`
	Approximate bool      `json:"approximate" bson:"approximate"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
}

func (s LocationSample) HasHeading() bool {
	return s.Heading != nil
}
