package request

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a failed remote call so callers can branch without string matching.
type ErrorKind int

const (
	KindUnreachable ErrorKind = iota
	KindTimeout
	KindHTTP
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindHTTP:
		return "http"
	case KindMalformed:
		return "malformed"
	default:
		return "unreachable"
	}
}

// NetworkError is returned for every failed remote call.
type NetworkError struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int // Only set for KindHTTP
	Err        error
}

func (e *NetworkError) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("%s: http status %d", e.Provider, e.StatusCode)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Malformed wraps a decoding failure of an otherwise successful response.
func Malformed(provider string, err error) error {
	return &NetworkError{Kind: KindMalformed, Provider: provider, Err: err}
}

// KindOf returns the kind of err, or false if err is not a NetworkError.
func KindOf(err error) (ErrorKind, bool) {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Kind, true
	}
	return 0, false
}

// IsTimeout reports whether err is a timeout NetworkError.
func IsTimeout(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindTimeout
}

// IsUnreachable reports whether err is a transport-level NetworkError.
func IsUnreachable(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindUnreachable
}

// classify wraps a transport error from http.Client.Do.
func classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return err
	}
	kind := KindUnreachable
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}
	return &NetworkError{Kind: kind, Provider: provider, Err: err}
}
