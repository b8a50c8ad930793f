package domain

import "fmt"

// TransportError reports a failed fetch from the catalog source:
// a network failure or a non-2xx response.
type TransportError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport error fetching %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport error fetching %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError reports an expected markup element that is absent or malformed.
type ParseError struct {
	Element string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse error at %q: %v", e.Element, e.Err)
	}
	return fmt.Sprintf("parse error: element %q not found", e.Element)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FormatError reports a value that is present but cannot be interpreted,
// e.g. an unknown relative-time unit.
type FormatError struct {
	Value  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format error in %q: %s", e.Value, e.Reason)
}
