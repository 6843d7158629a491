package whatsapp

import (
	types "github.com/inference-gateway/menu-agents/types"
)

// Error codes returned by the whatsapp agent
const (
	CodeMissingRecipient = 4001
	CodeEmptyMessage     = 4002
	CodeTaskNotFound     = 4003
)

func errMissingRecipient(recipient string) *types.JSONRPCError {
	if recipient == "" {
		return types.NewError(CodeMissingRecipient, "recipient is required")
	}
	return types.NewErrorf(CodeMissingRecipient, "invalid recipient %q, expected an E.164 number", recipient)
}

func errEmptyMessage() *types.JSONRPCError {
	return types.NewError(CodeEmptyMessage, "message has no content")
}

func errTaskNotFound(taskID string) *types.JSONRPCError {
	return types.NewErrorf(CodeTaskNotFound, "task not found: %s", taskID)
}

func errTaskClosed(taskID string) *types.JSONRPCError {
	return types.NewErrorf(CodeTaskNotFound, "task %s is closed", taskID)
}
