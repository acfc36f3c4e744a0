// Package metadata decodes the free-form operator metadata blob. The blob is
// externally supplied and untrusted, so parsing never fails hard.
package metadata

import (
	"encoding/json"
	"fmt"
)

type OperatorMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
}

type rawMetadata struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	ImageIpfsCid string `json:"imageIpfsCid"`
}

// Parse extracts display metadata from the raw JSON blob. Malformed or empty
// input yields zero-valued fields, never an error.
func Parse(metadataJSON string, gatewayFormat string) OperatorMetadata {
	out := OperatorMetadata{}

	if metadataJSON == "" {
		return out
	}

	raw := rawMetadata{}
	if err := json.Unmarshal([]byte(metadataJSON), &raw); err != nil {
		return out
	}

	out.Name = raw.Name
	out.Description = raw.Description

	if raw.ImageIpfsCid != "" && gatewayFormat != "" {
		out.ImageURL = fmt.Sprintf(gatewayFormat, raw.ImageIpfsCid)
	}

	return out
}

// DisplayName returns the parsed name or a shortened form of the operator id.
func (m OperatorMetadata) DisplayName(operatorID string) string {
	if m.Name != "" {
		return m.Name
	}

	if len(operatorID) > 10 {
		return operatorID[:6] + "..." + operatorID[len(operatorID)-4:]
	}

	return operatorID
}
