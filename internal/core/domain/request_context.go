package domain

import "github.com/xregistry/bridge/internal/util"

// RequestContext carries per-request identity and tracing state. Created
// once per inbound request, propagated to the upstream on egress.
type RequestContext struct {
	RequestID     string
	CorrelationID string
	TraceParent   string
	Principal     *Principal
}

// NewRequestContext builds a context from inbound header values, minting
// fresh identifiers for anything absent.
func NewRequestContext(correlationID, traceparent string) *RequestContext {
	if correlationID == "" {
		correlationID = util.GenerateCorrelationID()
	}
	if traceparent == "" {
		traceparent = util.GenerateTraceParent()
	}
	return &RequestContext{
		RequestID:     util.GenerateRequestID(),
		CorrelationID: correlationID,
		TraceParent:   traceparent,
	}
}

// TraceID returns the trace id component of the traceparent.
func (rc *RequestContext) TraceID() string {
	return util.TraceIDFromParent(rc.TraceParent)
}
