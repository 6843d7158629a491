package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JSONRPCVersion is the only protocol version accepted on the wire
const JSONRPCVersion = "2.0"

// JRPCErrorCode represents JSON-RPC error codes reserved by the protocol.
// Business codes are defined per agent and never collide with this range.
type JRPCErrorCode int

const (
	ErrParseError     JRPCErrorCode = -32700
	ErrInvalidRequest JRPCErrorCode = -32600
	ErrMethodNotFound JRPCErrorCode = -32601
	ErrInvalidParams  JRPCErrorCode = -32602
	ErrInternalError  JRPCErrorCode = -32603
	ErrAgentNotFound  JRPCErrorCode = -32001
)

// ErrEmptyMethod is returned when building a request without a method name
var ErrEmptyMethod = errors.New("method cannot be empty")

// JSONRPCRequest is the request envelope. Params stay raw so the routing
// layer never has to inspect them.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCError is the error object of a response envelope. It doubles as the
// structured failure value returned by method handlers.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *JSONRPCError) Error() string {
	return fmt.Sprintf("%s (code: %d)", e.Message, e.Code)
}

// NewError creates a structured JSON-RPC error
func NewError(code int, message string) *JSONRPCError {
	return &JSONRPCError{Code: code, Message: message}
}

// NewErrorf creates a structured JSON-RPC error with a formatted message
func NewErrorf(code int, format string, args ...any) *JSONRPCError {
	return &JSONRPCError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// JSONRPCResponse is the response envelope. A well-formed response carries
// exactly one of Result or Error.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// HasResult reports whether the result member was present on the wire.
// A literal null result counts as present.
func (r *JSONRPCResponse) HasResult() bool {
	return len(r.Result) > 0
}

// NewRequestID generates a client-side correlation id of the form req-<ts>-<rand>
func NewRequestID() string {
	random := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	return fmt.Sprintf("req-%d-%s", time.Now().UnixMilli(), random)
}

// NewRequest builds a request envelope with a freshly generated id
func NewRequest(method string, params any) (*JSONRPCRequest, error) {
	if strings.TrimSpace(method) == "" {
		return nil, ErrEmptyMethod
	}

	req := &JSONRPCRequest{
		JSONRPC: JSONRPCVersion,
		ID:      NewRequestID(),
		Method:  method,
	}

	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		req.Params = raw
	}

	return req, nil
}

// Validate checks the envelope fields the router depends on
func (r *JSONRPCRequest) Validate() error {
	if r.JSONRPC != JSONRPCVersion {
		return fmt.Errorf("unsupported jsonrpc version %q", r.JSONRPC)
	}
	if strings.TrimSpace(r.Method) == "" {
		return ErrEmptyMethod
	}
	return nil
}

// EncodeRequest serializes a request envelope
func EncodeRequest(req *JSONRPCRequest) ([]byte, error) {
	if req == nil {
		return nil, fmt.Errorf("request cannot be nil")
	}
	if req.Method == "" {
		return nil, ErrEmptyMethod
	}
	return json.Marshal(req)
}

// DecodeRequest deserializes a request envelope without validating it
func DecodeRequest(data []byte) (*JSONRPCRequest, error) {
	var req JSONRPCRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	return &req, nil
}

// NewSuccessResponse wraps a handler result. A nil result encodes as JSON null.
func NewSuccessResponse(id string, result any) (*JSONRPCResponse, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  raw,
	}, nil
}

// NewErrorResponse wraps a structured error
func NewErrorResponse(id string, rpcErr *JSONRPCError) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   rpcErr,
	}
}

// EncodeResponse serializes a response envelope
func EncodeResponse(resp *JSONRPCResponse) ([]byte, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}
	return json.Marshal(resp)
}

// DecodeResponse deserializes a response envelope. A payload with neither
// result nor error decodes successfully; callers check HasResult and Error.
func DecodeResponse(data []byte) (*JSONRPCResponse, error) {
	var resp JSONRPCResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}
