package server

import (
	"bytes"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/inference-gateway/menu-agents/types"
)

// GenerateTaskID generates a unique task ID using UUID v4
func GenerateTaskID() string {
	return uuid.New().String()
}

// DecodeParams decodes raw method params into T. Missing or null params and
// malformed params both fail with an invalid params error.
func DecodeParams[T any](params json.RawMessage) (T, error) {
	var out T
	if len(bytes.TrimSpace(params)) == 0 || bytes.Equal(bytes.TrimSpace(params), []byte("null")) {
		return out, types.NewError(int(types.ErrInvalidParams), "params are required")
	}
	if err := json.Unmarshal(params, &out); err != nil {
		return out, types.NewErrorf(int(types.ErrInvalidParams), "invalid params: %v", err)
	}
	return out, nil
}
