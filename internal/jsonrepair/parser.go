package jsonrepair

import (
	"encoding/json"
	"strings"
)

// Warnings emitted by the recovery cascade.
const (
	WarnTruncated     = "truncated to last complete object"
	WarnPaddedBraces  = "appended missing closing braces"
	WarnUnrecoverable = "could not repair; returning empty structure"
)

// ParseResult is the outcome of the recovery cascade. Data is always a
// usable object; WasRepaired is true when any step beyond the strict
// decode was needed.
type ParseResult struct {
	Data        map[string]interface{}
	Warnings    []string
	WasRepaired bool
}

// ParseWithRecovery decodes model output into a JSON object, applying the
// repair cascade on failure:
//
//  1. strict decode
//  2. Sanitize, then decode
//  3. truncate to the last balanced top-level object, then decode
//  4. append missing closing braces, then decode
//  5. fall back to an empty decomposition object
//
// It is total: every input yields a result, never an error.
func ParseWithRecovery(raw string) ParseResult {
	if data, ok := decodeObject(raw); ok {
		return ParseResult{Data: data, Warnings: []string{}}
	}

	cleaned, notes := Sanitize(raw)
	if data, ok := decodeObject(cleaned); ok {
		return ParseResult{Data: data, Warnings: notes, WasRepaired: true}
	}

	// Token-limit truncation usually leaves a valid prefix: find the last
	// offset where brace depth returns to zero.
	if end := lastBalancedOffset(cleaned); end > 0 {
		if data, ok := decodeObject(cleaned[:end]); ok {
			return ParseResult{
				Data:        data,
				Warnings:    append(notes, WarnTruncated),
				WasRepaired: true,
			}
		}
	}

	// Otherwise try closing whatever was left open.
	if missing := strings.Count(cleaned, "{") - strings.Count(cleaned, "}"); missing > 0 {
		padded := cleaned + strings.Repeat("}", missing)
		if data, ok := decodeObject(padded); ok {
			return ParseResult{
				Data:        data,
				Warnings:    append(notes, WarnPaddedBraces),
				WasRepaired: true,
			}
		}
	}

	return ParseResult{
		Data: map[string]interface{}{
			"epics":                 []interface{}{},
			"total_estimated_hours": 0,
			"timeline_weeks":        0,
		},
		Warnings:    append(notes, WarnUnrecoverable),
		WasRepaired: false,
	}
}

func decodeObject(text string) (map[string]interface{}, bool) {
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, false
	}
	if data == nil {
		return nil, false
	}
	return data, true
}

// lastBalancedOffset returns the offset just past the last position where
// the {/} nesting depth returns to zero, or 0 if the text never balances.
func lastBalancedOffset(text string) int {
	depth := 0
	last := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				last = i + 1
			}
		}
	}
	return last
}
