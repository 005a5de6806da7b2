// Package normalize turns loosely-typed decoded JSON from the model into
// the strongly-typed domain structures, fixing field types, filling
// defaults, and reporting every structural defect it papers over.
package normalize

import (
	"fmt"
	"strconv"
	"strings"

	"brd-decomposer/internal/models"
)

// CoercePriority maps any value onto a valid priority, defaulting to
// Medium when the value is missing or unrecognized.
func CoercePriority(v interface{}) models.Priority {
	if p, ok := v.(models.Priority); ok && p.Valid() {
		return p
	}
	switch strings.ToLower(strings.TrimSpace(stringify(v))) {
	case "low":
		return models.PriorityLow
	case "medium":
		return models.PriorityMedium
	case "high":
		return models.PriorityHigh
	case "critical":
		return models.PriorityCritical
	default:
		return models.PriorityMedium
	}
}

// CoerceStatus maps any value onto a valid task status, defaulting to
// "To Do" when the value is missing or unrecognized.
func CoerceStatus(v interface{}) models.TaskStatus {
	if s, ok := v.(models.TaskStatus); ok && s.Valid() {
		return s
	}
	switch strings.ToLower(strings.TrimSpace(stringify(v))) {
	case "todo", "to do", "to_do":
		return models.StatusToDo
	case "in progress", "in_progress", "inprogress":
		return models.StatusInProgress
	case "done":
		return models.StatusDone
	default:
		return models.StatusToDo
	}
}

// CoerceInt extracts an integer from numbers, numeric strings, and strings
// with an hour suffix ("16h"). Anything else yields def.
func CoerceInt(v interface{}, def int) int {
	switch n := v.(type) {
	case nil:
		return def
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		s := strings.TrimSpace(strings.ToLower(n))
		s = strings.TrimSuffix(s, "h")
		s = strings.TrimSpace(s)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f)
		}
		return def
	default:
		return def
	}
}

// CoerceStringList turns a value into a list of strings: lists are
// stringified element-wise (nil elements dropped), scalars become a
// single-element list, and nil becomes an empty list. The result is never
// nil.
func CoerceStringList(v interface{}) []string {
	switch items := v.(type) {
	case nil:
		return []string{}
	case []string:
		out := make([]string, len(items))
		copy(out, items)
		return out
	case []interface{}:
		out := make([]string, 0, len(items))
		for _, item := range items {
			if item == nil {
				continue
			}
			out = append(out, stringify(item))
		}
		return out
	default:
		return []string{stringify(v)}
	}
}

func stringify(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

// stringField returns the first non-empty string among the named keys.
func stringField(m map[string]interface{}, keys ...string) string {
	return stringFieldOr(m, "", keys...)
}

func stringFieldOr(m map[string]interface{}, def string, keys ...string) string {
	for _, key := range keys {
		if v, ok := m[key]; ok && v != nil {
			if s := stringify(v); s != "" {
				return s
			}
		}
	}
	return def
}
