// Package reliability classifies backend failures for logs and metrics.
package reliability

import (
	"context"
	"errors"
	"net"

	"github.com/davidealbano/aria/internal/textgen"
)

// Classify maps a text-generation error to a low-cardinality label.
func Classify(err error) string {
	if err == nil {
		return "none"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return "timeout"
	}
	var se *textgen.StatusError
	if errors.As(err, &se) {
		switch {
		case se.Status == 429:
			return "rate_limited"
		case se.Status >= 500:
			return "upstream_5xx"
		case se.Status >= 400:
			return "upstream_4xx"
		}
	}
	return "network"
}
