package timeline

import "errors"

var (
	// ErrUnrecognizedEncoding means a position matched none of the known
	// coordinate encodings. The point is dropped.
	ErrUnrecognizedEncoding = errors.New("unrecognized coordinate encoding")

	// ErrMissingTimestamp means a record had no parseable timestamp in any
	// of its timestamp fields. The point is dropped.
	ErrMissingTimestamp = errors.New("missing or unparseable timestamp")

	// ErrEmptyDateResult means a document produced no dates at all.
	ErrEmptyDateResult = errors.New("no location data found")

	// ErrNoDataForDate means the selected date produced no points.
	ErrNoDataForDate = errors.New("no location data for date")

	// ErrUnrecognizedShape means the top-level JSON was neither an array of
	// segments nor an object with semanticSegments/rawSignals.
	ErrUnrecognizedShape = errors.New("unrecognized timeline document shape")
)

// Skipped tallies records dropped during extraction.
type Skipped struct {
	Encoding    int `json:"encoding"`
	Timestamp   int `json:"timestamp"`
	Overlapping int `json:"overlapping"`
}

// Add accumulates o into s.
func (s *Skipped) Add(o Skipped) {
	s.Encoding += o.Encoding
	s.Timestamp += o.Timestamp
	s.Overlapping += o.Overlapping
}

// Count records err against the matching counter.
func (s *Skipped) Count(err error) {
	switch {
	case errors.Is(err, ErrUnrecognizedEncoding):
		s.Encoding++
	case errors.Is(err, ErrMissingTimestamp):
		s.Timestamp++
	}
}

// Total is the number of dropped records.
func (s Skipped) Total() int {
	return s.Encoding + s.Timestamp + s.Overlapping
}
