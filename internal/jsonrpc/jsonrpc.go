// Package jsonrpc holds the JSON-RPC 2.0 envelope shared by the HTTP
// server and the Go client, so both sides agree on one wire format.
package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the protocol version tag carried by every envelope.
const Version = "2.0"

// Standard JSON-RPC 2.0 error codes, plus the first server-defined
// code used for application errors (not found, bad config, ...).
const (
	CodeParse          = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternal       = -32603
	CodeServer         = -32000
)

// Request is a single JSON-RPC call. The id is kept raw so that
// string and numeric ids round-trip byte for byte.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// Valid reports whether the envelope is a well-formed 2.0 call.
func (r *Request) Valid() bool {
	return r.JSONRPC == Version && r.Method != ""
}

// ErrInvalidParams marks a params member that does not decode into
// the method's parameter struct. Servers map it to CodeInvalidParams.
var ErrInvalidParams = errors.New("invalid params")

// UnmarshalParams decodes the params member into dst. Absent, null
// and empty-array params all decode as "no parameters", since clients
// in the wild send any of the three for parameterless methods.
func (r *Request) UnmarshalParams(dst any) error {
	p := bytes.TrimSpace(r.Params)
	if len(p) == 0 || bytes.Equal(p, []byte("null")) || bytes.Equal(p, []byte("[]")) || bytes.Equal(p, []byte("{}")) {
		return nil
	}
	if err := json.Unmarshal(p, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

// Error is the error member of a response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Response is the reply to one Request. Exactly one of Result and
// Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// NewResponse builds a success response for id, marshaling result.
func NewResponse(id json.RawMessage, result any) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return &Response{JSONRPC: Version, Result: raw, ID: id}, nil
}

// NewError builds an error response for id.
func NewError(id json.RawMessage, code int, message string) *Response {
	return &Response{
		JSONRPC: Version,
		Error:   &Error{Code: code, Message: message},
		ID:      id,
	}
}
