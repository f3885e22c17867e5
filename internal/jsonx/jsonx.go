// Package jsonx centralizes defensive traversal of free-form JSON and
// extraction of JSON documents embedded in model output.
package jsonx

import (
	"encoding/json"
	"strings"
)

// String returns m[key] when it is a non-empty string, else fallback.
func String(m map[string]any, key, fallback string) string {
	if m == nil {
		return fallback
	}
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// FirstString returns the first non-empty string found probing each
// map in order for each key in order. Used for aliased argument names
// like thread_id/threadId that may live in params or arguments.
func FirstString(maps []map[string]any, keys ...string) string {
	for _, m := range maps {
		if m == nil {
			continue
		}
		for _, k := range keys {
			if v, ok := m[k].(string); ok && v != "" {
				return v
			}
		}
	}
	return ""
}

// Int returns m[key] as an int when it is a JSON number, else fallback.
func Int(m map[string]any, key string, fallback int) int {
	if m == nil {
		return fallback
	}
	if v, ok := m[key].(float64); ok {
		return int(v)
	}
	return fallback
}

// Bool returns m[key] when it is a bool, else fallback.
func Bool(m map[string]any, key string, fallback bool) bool {
	if m == nil {
		return fallback
	}
	if v, ok := m[key].(bool); ok {
		return v
	}
	return fallback
}

// Object returns m[key] when it is an object, else nil.
func Object(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return nil
}

// ExtractArray slices text from the first '[' to the last ']' and
// parses the result into out. Model replies wrap JSON in prose and
// code fences often enough that a direct parse is hopeless.
func ExtractArray(text string, out any) error {
	start := strings.IndexByte(text, '[')
	end := strings.LastIndexByte(text, ']')
	if start < 0 || end < start {
		return &ExtractError{Text: text, Reason: "no JSON array found"}
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), out); err != nil {
		return &ExtractError{Text: text, Reason: err.Error()}
	}
	return nil
}

// ExtractObject slices text from the first '{' to the last '}' and
// parses the result into out.
func ExtractObject(text string, out any) error {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return &ExtractError{Text: text, Reason: "no JSON object found"}
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), out); err != nil {
		return &ExtractError{Text: text, Reason: err.Error()}
	}
	return nil
}

// ExtractError reports a failed extraction with a preview of the text
// that defeated it.
type ExtractError struct {
	Text   string
	Reason string
}

func (e *ExtractError) Error() string {
	preview := e.Text
	if len(preview) > 120 {
		preview = preview[:120] + "..."
	}
	return "extract JSON: " + e.Reason + " in " + strings.ReplaceAll(preview, "\n", " ")
}
