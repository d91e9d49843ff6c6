// Package notify delivers digest text to people: a WeCom group robot
// webhook for the digest itself and an OS-native desktop notification for
// local reminders.
package notify

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDelivery is wrapped by every delivery failure.
	ErrDelivery = errors.New("delivery failed")

	// ErrEmptyMessage is returned when asked to deliver empty text.
	ErrEmptyMessage = errors.New("empty message")

	// ErrUnsupported is returned when the platform has no notification command.
	ErrUnsupported = errors.New("notifications not supported on this platform")
)

// Notifier delivers a finished text to its destination. Implementations do
// not retry; the caller decides what a failure means.
type Notifier interface {
	Deliver(ctx context.Context, text string) error
}

// DeliveryError describes a rejected or failed webhook delivery.
type DeliveryError struct {
	StatusCode int    // HTTP status, 0 if no response
	ErrCode    int    // robot API errcode, 0 if not reported
	ErrMsg     string // robot API errmsg or response body
	Err        error  // transport error, if any
}

func (e *DeliveryError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("delivery failed: %v", e.Err)
	case e.ErrCode != 0:
		return fmt.Sprintf("delivery rejected: errcode %d: %s", e.ErrCode, e.ErrMsg)
	default:
		return fmt.Sprintf("delivery failed: status %d: %s", e.StatusCode, e.ErrMsg)
	}
}

// Unwrap lets errors.Is match ErrDelivery and the transport cause.
func (e *DeliveryError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrDelivery, e.Err}
	}
	return []error{ErrDelivery}
}

// Fanout delivers to every notifier in order and joins their errors.
type Fanout []Notifier

// Deliver sends text to all notifiers, continuing past failures.
func (f Fanout) Deliver(ctx context.Context, text string) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Deliver(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, text string) error

// Deliver calls f.
func (f NotifierFunc) Deliver(ctx context.Context, text string) error {
	return f(ctx, text)
}
