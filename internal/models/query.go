package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidQuery is returned when a search request has an empty query or out-of-range parameters.
var ErrInvalidQuery = errors.New("invalid query")

// SearchQuery is a retrieval request. Threshold is a pointer so an explicit 0 is distinguishable from unset.
type SearchQuery struct {
	Query     string   `json:"query"`
	K         int      `json:"k,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// QueryDefaults holds the values applied to unset query fields.
type QueryDefaults struct {
	K         int
	MaxK      int
	Threshold float64
}

// Validate trims the query, applies defaults and caps K at MaxK.
// Returns an error wrapping ErrInvalidQuery if the query is blank or the threshold is outside [0,1].
func (q *SearchQuery) Validate(d QueryDefaults) error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrInvalidQuery)
	}
	if q.K <= 0 {
		q.K = d.K
	}
	if d.MaxK > 0 && q.K > d.MaxK {
		q.K = d.MaxK
	}
	if q.K <= 0 {
		return fmt.Errorf("%w: k must be positive", ErrInvalidQuery)
	}
	if q.Threshold == nil {
		t := d.Threshold
		q.Threshold = &t
	}
	if t := *q.Threshold; !(t >= 0 && t <= 1) {
		return fmt.Errorf("%w: threshold %v outside [0,1]", ErrInvalidQuery, *q.Threshold)
	}
	return nil
}

// ThresholdValue returns the threshold, or 0 when unset.
func (q *SearchQuery) ThresholdValue() float64 {
	if q.Threshold == nil {
		return 0
	}
	return *q.Threshold
}
