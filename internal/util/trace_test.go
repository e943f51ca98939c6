package util

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var traceParentPattern = regexp.MustCompile(`^00-[0-9a-f]{32}-[0-9a-f]{16}-01$`)

func TestGenerateTraceParent_Format(t *testing.T) {
	for range 10 {
		assert.Regexp(t, traceParentPattern, GenerateTraceParent())
	}
}

func TestTraceIDFromParent(t *testing.T) {
	traceID := "4bf92f3577b34da6a3ce929d0e0e4736"
	assert.Equal(t, traceID, TraceIDFromParent("00-"+traceID+"-00f067aa0ba902b7-01"))

	// non-traceparent values pass through unchanged
	assert.Equal(t, "some-opaque-id", TraceIDFromParent("some-opaque-id"))
}

func TestGenerateIDs_Unique(t *testing.T) {
	assert.NotEqual(t, GenerateRequestID(), GenerateRequestID())
	assert.NotEqual(t, GenerateCorrelationID(), GenerateCorrelationID())
}
