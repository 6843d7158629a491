package server

import (
	"net/http"

	gin "github.com/gin-gonic/gin"
	types "github.com/inference-gateway/menu-agents/types"
	zap "go.uber.org/zap"
)

// ResponseSender defines how to send JSON-RPC responses
type ResponseSender interface {
	// SendResponse writes a routed response envelope
	SendResponse(c *gin.Context, resp *types.JSONRPCResponse)

	// SendError writes an error envelope; a nil id is sent as JSON null
	SendError(c *gin.Context, id any, code int, message string)
}

// DefaultResponseSender implements the ResponseSender interface
type DefaultResponseSender struct {
	logger *zap.Logger
}

// NewDefaultResponseSender creates a new default response sender
func NewDefaultResponseSender(logger *zap.Logger) *DefaultResponseSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultResponseSender{
		logger: logger,
	}
}

// errorEnvelope allows a null id, which JSONRPCResponse cannot carry
type errorEnvelope struct {
	JSONRPC string              `json:"jsonrpc"`
	ID      any                 `json:"id"`
	Error   *types.JSONRPCError `json:"error"`
}

// SendResponse sends the envelope produced by the router
func (rs *DefaultResponseSender) SendResponse(c *gin.Context, resp *types.JSONRPCResponse) {
	// JSON-RPC always returns 200 OK, errors are in the response body
	c.JSON(http.StatusOK, resp)
	if resp.Error != nil {
		rs.logger.Debug("sending error response",
			zap.String("id", resp.ID),
			zap.Int("code", resp.Error.Code),
			zap.String("message", resp.Error.Message))
		return
	}
	rs.logger.Debug("sending success response", zap.String("id", resp.ID))
}

// SendError sends a JSON-RPC error response
func (rs *DefaultResponseSender) SendError(c *gin.Context, id any, code int, message string) {
	c.JSON(http.StatusOK, errorEnvelope{
		JSONRPC: types.JSONRPCVersion,
		ID:      id,
		Error:   types.NewError(code, message),
	})
	rs.logger.Warn("sending error response", zap.Any("id", id), zap.Int("code", code), zap.String("message", message))
}
