// Package ai holds the LLM client and the response normalization shared by
// every external automation integration. Third-party flow endpoints have
// answered with several envelope shapes over time; the normalizer folds all
// of them into one canonical result instead of letting callers probe with
// nested decode attempts.
package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnrecognizedEnvelope is returned when a response matches none of the
// known envelope variants.
var ErrUnrecognizedEnvelope = errors.New("response format not recognized")

// envelopeKind tags the known envelope variants.
type envelopeKind int

const (
	envelopeBare       envelopeKind = iota // {"sucesso": true, "output": …}
	envelopeArray                          // [{…}] single object wrapped in an array
	envelopeNestedJSON                     // string-encoded JSON inside "output"
)

// FlowResult is the canonical shape every envelope variant normalizes to.
type FlowResult struct {
	Success bool                   `json:"success"`
	Output  string                 `json:"output"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

// classify decides which envelope variant a payload is, without fully
// decoding it.
func classify(data []byte) (envelopeKind, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return 0, fmt.Errorf("empty payload: %w", ErrUnrecognizedEnvelope)
	}
	switch trimmed[0] {
	case '[':
		return envelopeArray, nil
	case '{':
		var probe struct {
			Output json.RawMessage `json:"output"`
		}
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return 0, fmt.Errorf("%v: %w", err, ErrUnrecognizedEnvelope)
		}
		if len(probe.Output) > 0 && probe.Output[0] == '"' {
			var inner string
			if json.Unmarshal(probe.Output, &inner) == nil && looksLikeJSON(inner) {
				return envelopeNestedJSON, nil
			}
		}
		return envelopeBare, nil
	default:
		return 0, ErrUnrecognizedEnvelope
	}
}

func looksLikeJSON(s string) bool {
	trimmed := bytes.TrimSpace([]byte(s))
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

// NormalizeEnvelope pattern-matches a raw response into a FlowResult. All
// three historical shapes are accepted; anything else fails with
// ErrUnrecognizedEnvelope rather than a panic or a silent zero value.
func NormalizeEnvelope(data []byte) (*FlowResult, error) {
	kind, err := classify(data)
	if err != nil {
		return nil, err
	}

	switch kind {
	case envelopeArray:
		var elements []json.RawMessage
		if err := json.Unmarshal(bytes.TrimSpace(data), &elements); err != nil {
			return nil, fmt.Errorf("%v: %w", err, ErrUnrecognizedEnvelope)
		}
		if len(elements) == 0 {
			return nil, fmt.Errorf("empty array envelope: %w", ErrUnrecognizedEnvelope)
		}
		return NormalizeEnvelope(elements[0])

	case envelopeNestedJSON:
		var outer struct {
			Sucesso *bool  `json:"sucesso"`
			Output  string `json:"output"`
		}
		if err := json.Unmarshal(bytes.TrimSpace(data), &outer); err != nil {
			return nil, fmt.Errorf("%v: %w", err, ErrUnrecognizedEnvelope)
		}
		result, err := NormalizeEnvelope([]byte(outer.Output))
		if err != nil {
			return nil, err
		}
		if outer.Sucesso != nil {
			result.Success = *outer.Sucesso
		}
		return result, nil

	default: // envelopeBare
		var fields map[string]interface{}
		if err := json.Unmarshal(bytes.TrimSpace(data), &fields); err != nil {
			return nil, fmt.Errorf("%v: %w", err, ErrUnrecognizedEnvelope)
		}
		result := &FlowResult{Success: true, Fields: fields}
		if v, ok := fields["sucesso"].(bool); ok {
			result.Success = v
		} else if v, ok := fields["success"].(bool); ok {
			result.Success = v
		}
		if v, ok := fields["output"].(string); ok {
			result.Output = v
		} else if v, ok := fields["resposta"].(string); ok {
			result.Output = v
		}
		return result, nil
	}
}
