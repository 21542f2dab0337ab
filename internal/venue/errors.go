package venue

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies venue client failures.
type Kind int

const (
	// KindUnsupported means the venue does not list the asset against the
	// reference fiat. Expected during normal operation, not an error to log.
	KindUnsupported Kind = iota + 1
	// KindUpstream is a non-success transport or HTTP response.
	KindUpstream
	// KindMalformed is an unexpected payload shape, including non-positive
	// or unparsable prices.
	KindMalformed
	// KindTimeout means the venue did not answer within the bounded duration.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindUnsupported:
		return "unsupported asset"
	case KindUpstream:
		return "upstream error"
	case KindMalformed:
		return "malformed response"
	case KindTimeout:
		return "timeout"
	}
	return "unknown"
}

// Error is the typed failure every Client method returns. Venue is always
// set; Asset is empty for listing failures.
type Error struct {
	Venue string
	Asset string
	Kind  Kind
	Err   error
}

func (e *Error) Error() string {
	if e.Asset != "" {
		return fmt.Sprintf("%s %s: %s: %v", e.Venue, e.Asset, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Venue, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Errf builds a *Error, mapping context deadline expiry to KindTimeout so
// callers never have to inspect context errors themselves.
func Errf(venueName, asset string, kind Kind, format string, args ...any) *Error {
	err := fmt.Errorf(format, args...)
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		kind = KindTimeout
	}
	return &Error{Venue: venueName, Asset: asset, Kind: kind, Err: err}
}

// KindOf extracts the failure kind, or 0 when err is not a venue error.
func KindOf(err error) Kind {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return 0
}

// IsUnsupported reports whether err is an UnsupportedAsset failure.
func IsUnsupported(err error) bool { return KindOf(err) == KindUnsupported }
