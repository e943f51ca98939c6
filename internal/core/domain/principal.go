package domain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

const GroupsClaimType = "groups"

// Principal is the decoded identity carried in the platform principal
// header.
type Principal struct {
	UserID string  `json:"userId,omitempty"`
	Claims []Claim `json:"claims,omitempty"`
}

// Claim is a single typ/val pair from the principal document.
type Claim struct {
	Typ string `json:"typ"`
	Val string `json:"val"`
}

// DecodePrincipal parses a base64-encoded JSON principal header value.
func DecodePrincipal(headerValue string) (*Principal, error) {
	decoded, err := base64.StdEncoding.DecodeString(headerValue)
	if err != nil {
		return nil, fmt.Errorf("principal header is not valid base64: %w", err)
	}

	var p Principal
	if err := json.Unmarshal(decoded, &p); err != nil {
		return nil, fmt.Errorf("principal header is not valid JSON: %w", err)
	}
	return &p, nil
}

// HasAnyGroup reports whether the principal carries a groups claim matching
// any of the required group names.
func (p *Principal) HasAnyGroup(required []string) bool {
	if p == nil || len(required) == 0 {
		return false
	}

	for _, claim := range p.Claims {
		if claim.Typ != GroupsClaimType {
			continue
		}
		for _, group := range required {
			if claim.Val == group {
				return true
			}
		}
	}
	return false
}
