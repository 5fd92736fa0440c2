package utils

import (
	"encoding/json"
)

// Marshal generic struct to JSON
func MarshalToJSON[T any](input T) (string, error) {
	jsonData, err := json.Marshal(input)
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

// MustRawJSON marshals v and falls back to null on failure.
func MustRawJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}
