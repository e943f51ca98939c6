package domain

import "encoding/json"

// ProbeResult is a successful health-and-metadata fetch from one upstream.
// Model already includes any aggregate counts lifted from the root document.
type ProbeResult struct {
	Model        json.RawMessage
	Capabilities json.RawMessage
	Root         json.RawMessage
}
