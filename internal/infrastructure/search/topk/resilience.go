package topk

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gfaraujo/normabot/internal/infrastructure/resilience"
)

func classifySearchError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	var statusErr *statusError
	if errors.As(err, &statusErr) {
		retryable := statusErr.code == http.StatusTooManyRequests || statusErr.code >= 500
		return resilience.ErrorClassification{
			Retryable:     retryable,
			RecordFailure: statusErr.code >= 500,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}
