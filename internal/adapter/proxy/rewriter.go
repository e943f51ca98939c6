package proxy

import (
	"bytes"
	"encoding/json"
	"strings"
)

// xidKey marks canonical registry identifiers. Values under this key are
// registry-relative paths and must survive proxying byte for byte.
const xidKey = "xid"

// RewriteJSON replaces every occurrence of from with to in the string
// values of a JSON document, leaving anything under an "xid" key untouched.
// Upstream self links become bridge links; canonical ids stay canonical.
func RewriteJSON(body []byte, from, to string) ([]byte, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var doc any
	if err := decoder.Decode(&doc); err != nil {
		return nil, err
	}

	rewritten := rewriteValue(doc, from, to)
	return json.Marshal(rewritten)
}

func rewriteValue(value any, from, to string) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, child := range typed {
			if key == xidKey {
				out[key] = child
				continue
			}
			out[key] = rewriteValue(child, from, to)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, child := range typed {
			out[i] = rewriteValue(child, from, to)
		}
		return out
	case string:
		if strings.Contains(typed, from) {
			return strings.ReplaceAll(typed, from, to)
		}
		return typed
	default:
		return typed
	}
}
