package connector

import (
	"context"
	"errors"
	"fmt"
)

// Reason classifies a backend failure
type Reason string

// Failure reasons. Every backend error maps to exactly one of these; raw
// transport errors never escape the connector boundary.
const (
	ReasonUnreachable       Reason = "unreachable"        // Backend not reachable
	ReasonRejected          Reason = "rejected"           // Backend refused the payment
	ReasonInsufficientFunds Reason = "insufficient-funds" // Backend wallet lacks funds
	ReasonInvalidInvoice    Reason = "invalid-invoice"    // Invoice failed to decode or verify
	ReasonTimeout           Reason = "timeout"            // Call exceeded its deadline
)

// ConnectorError is the typed failure every backend operation returns
type ConnectorError struct {
	Reason  Reason // Machine-readable reason code
	Message string // Human-readable detail for the requesting page
}

func (e *ConnectorError) Error() string {
	return fmt.Sprintf("connector: %s: %s", e.Reason, e.Message)
}

// NewError builds a ConnectorError with a formatted message
func NewError(reason Reason, format string, args ...any) *ConnectorError {
	return &ConnectorError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// AsConnectorError normalizes an arbitrary backend error into a
// *ConnectorError. Context deadline and cancellation map to the timeout
// reason; anything else is treated as the backend being unreachable.
func AsConnectorError(err error) *ConnectorError {
	var cerr *ConnectorError
	if errors.As(err, &cerr) {
		return cerr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &ConnectorError{Reason: ReasonTimeout, Message: "payment backend did not respond in time"}
	}
	return &ConnectorError{Reason: ReasonUnreachable, Message: "payment backend unreachable"}
}
