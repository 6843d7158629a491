package promotions

import (
	types "github.com/inference-gateway/menu-agents/types"
)

// Error codes returned by the promotions agent
const (
	CodeUnsupportedEvent   = 3001
	CodeInvalidCallbackURL = 3002
	CodeInvalidPromotion   = 3003
	CodeTaskNotFound       = 3004
)

func errUnsupportedEvent(event string) *types.JSONRPCError {
	return types.NewErrorf(CodeUnsupportedEvent, "unsupported subscription event name: %q", event)
}

func errInvalidCallbackURL(reason string) *types.JSONRPCError {
	return types.NewErrorf(CodeInvalidCallbackURL, "invalid callback url: %s", reason)
}

func errInvalidPromotion(reason string) *types.JSONRPCError {
	return types.NewErrorf(CodeInvalidPromotion, "invalid promotion: %s", reason)
}

func errTaskNotFound(taskID string) *types.JSONRPCError {
	return types.NewErrorf(CodeTaskNotFound, "task not found: %s", taskID)
}
