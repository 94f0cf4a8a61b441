package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// DeliveryTransportError is a failed call to a campaign endpoint: either a
// non-2xx status or a transport failure.
type DeliveryTransportError struct {
	StatusCode int
	Message    string
	Body       string
	Transient  bool
	Cause      error
}

func (e *DeliveryTransportError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "delivery error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *DeliveryTransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsTransient reports whether an error looks temporary. Every failure is
// retried regardless; the flag only annotates logs and metrics.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var transportErr *DeliveryTransportError
	if errors.As(err, &transportErr) {
		return transportErr.Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

// StatusCode extracts the HTTP status from a delivery error, if any.
func StatusCode(err error) (int, bool) {
	var transportErr *DeliveryTransportError
	if errors.As(err, &transportErr) && transportErr.StatusCode > 0 {
		return transportErr.StatusCode, true
	}
	return 0, false
}
