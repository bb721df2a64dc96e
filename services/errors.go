package services

import (
	"context"
	"errors"
	"fmt"
)

// Messages shown when the API gives no better explanation
const (
	MsgNetworkError     = "Network error. Please check your connection and try again."
	MsgAnalysisFailed   = "Analysis failed. Please try again."
	MsgFeedbackFailed   = "Failed to submit feedback"
	MsgHistoryFailed    = "Failed to load history"
	MsgAnalyticsFailed  = "Failed to load analytics data"
	MsgContactFailed    = "Failed to send message. Please try again."
	MsgAnalyticsNetwork = "Network error loading analytics"
	MsgHistoryNetwork   = "Network error loading history"
)

var (
	// ErrUnavailable wraps transport failures talking to the inference API
	ErrUnavailable = errors.New("inference API unavailable")
	// ErrSuperseded is returned when a newer request of the same kind replaced this one
	ErrSuperseded = errors.New("request superseded by a newer one")
)

// APIError is a non-2xx response from the inference API
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s returned status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// ValidationError is a client-side input problem; no request is sent
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// UserMessage maps an error from the API layer to the text shown in an
// alert. Server-reported messages win; transport failures get networkMsg and
// everything else gets fallback.
func UserMessage(err error, fallback, networkMsg string) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return fallback
	}
	if errors.Is(err, ErrUnavailable) {
		return networkMsg
	}
	return fallback
}

// IsCanceled reports whether err comes from a canceled or superseded request
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, ErrSuperseded)
}
