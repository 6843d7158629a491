package menu

import (
	types "github.com/inference-gateway/menu-agents/types"
)

// Error codes returned by the menu agent
const (
	CodeItemNotFound = 1001
	CodeInvalidItem  = 1002
	CodeUploadFailed = 1003
	CodeTaskNotFound = 1004
	CodeEmptyMessage = 1005
)

func errItemNotFound(itemID string) *types.JSONRPCError {
	return types.NewErrorf(CodeItemNotFound, "menu item not found: %s", itemID)
}

func errInvalidItem(reason string) *types.JSONRPCError {
	return types.NewErrorf(CodeInvalidItem, "invalid menu item: %s", reason)
}

func errUploadFailed(reason string) *types.JSONRPCError {
	return types.NewErrorf(CodeUploadFailed, "upload failed: %s", reason)
}

func errTaskNotFound(taskID string) *types.JSONRPCError {
	return types.NewErrorf(CodeTaskNotFound, "task not found: %s", taskID)
}

func errTaskClosed(taskID string) *types.JSONRPCError {
	return types.NewErrorf(CodeTaskNotFound, "task %s is closed", taskID)
}

func errEmptyMessage() *types.JSONRPCError {
	return types.NewError(CodeEmptyMessage, "message has no text")
}
