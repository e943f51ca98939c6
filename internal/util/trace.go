package util

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateRequestID returns a fresh opaque request identifier.
func GenerateRequestID() string {
	return uuid.NewString()
}

// GenerateCorrelationID returns a fresh correlation identifier.
func GenerateCorrelationID() string {
	return uuid.NewString()
}

// GenerateTraceParent synthesises a W3C Trace Context traceparent header,
// format 00-{32 hex trace id}-{16 hex span id}-01.
func GenerateTraceParent() string {
	traceID := strings.ReplaceAll(uuid.NewString(), "-", "")
	spanID := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	return "00-" + traceID + "-" + spanID + "-01"
}

// TraceIDFromParent extracts the 32-hex trace id from a traceparent value.
// Returns the input unchanged when it does not look like a traceparent.
func TraceIDFromParent(traceparent string) string {
	parts := strings.Split(traceparent, "-")
	if len(parts) == 4 && len(parts[1]) == 32 {
		return parts[1]
	}
	return traceparent
}
