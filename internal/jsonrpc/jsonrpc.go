// Package jsonrpc implements the JSON-RPC 2.0 framing used on the podium
// wire: one request document in, one response document out, per invocation.
package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Version is the only protocol version accepted on the wire.
const Version = "2.0"

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Implementation-defined error codes. These are wire-exact: conductors match
// on them, so they must never change.
const (
	CodeSessionNotFound = -32000
	CodeSessionExists   = -32001
	CodeLockTimeout     = -32002
	CodeInvalidName     = -32003
	CodeExecutionFailed = -32004
)

// Request is a single JSON-RPC 2.0 call. Params stay raw until the
// dispatcher knows which method's parameter shape to decode into. ID stays
// raw for its whole lifetime so string, number and null ids are echoed back
// without type coercion.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// Error is a JSON-RPC 2.0 error object. It implements the error interface so
// handlers can return it directly and dispatch can surface it verbatim.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewError creates an Error with the given code and message.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates an Error with a formatted message.
func Errorf(code int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithData returns a copy of the error carrying supplemental data.
func (e *Error) WithData(data any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Data: data}
}

// Response is a single JSON-RPC 2.0 response. Exactly one of Result or Err
// is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  any             `json:"result,omitempty"`
	Err     *Error          `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// NewResult builds a success response echoing the request id.
func NewResult(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: Version, Result: result, ID: normalizeID(id)}
}

// NewErrorResponse builds an error response echoing the request id. A nil id
// (the id could not be determined, e.g. the request did not parse) encodes
// as null per the JSON-RPC 2.0 spec.
func NewErrorResponse(id json.RawMessage, rpcErr *Error) *Response {
	return &Response{JSONRPC: Version, Err: rpcErr, ID: normalizeID(id)}
}

func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

// Decode reads exactly one request document from r. A malformed document
// yields CodeParseError; a well-formed document that is not a valid JSON-RPC
// 2.0 call yields CodeInvalidRequest, preserving whatever id was present so
// the error response can still correlate.
func Decode(r io.Reader) (*Request, *Error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, Errorf(CodeParseError, "read request: %v", err)
	}
	return DecodeBytes(data)
}

// DecodeBytes decodes one request document from a byte slice. Members are
// probed as raw JSON first so that a structurally valid document with wrong
// member types is an invalid request, not a parse error, and keeps its id.
// The parse-error code is reserved for input that is not well-formed JSON at
// all; a well-formed document that is not an object (an array, a string, a
// bare number) is an invalid request.
func DecodeBytes(data []byte) (*Request, *Error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &Request{JSONRPC: Version}, NewError(CodeInvalidRequest, "request must be a JSON object")
		}
		return nil, Errorf(CodeParseError, "parse error: %v", err)
	}

	req := &Request{JSONRPC: Version, Params: doc["params"], ID: doc["id"]}
	if string(doc["jsonrpc"]) != `"`+Version+`"` {
		return req, Errorf(CodeInvalidRequest, "jsonrpc must be %q", Version)
	}
	method := doc["method"]
	if len(method) == 0 || json.Unmarshal(method, &req.Method) != nil || req.Method == "" {
		return req, NewError(CodeInvalidRequest, "method is required")
	}
	return req, nil
}

// Encode writes one response document to w, newline-terminated.
func Encode(w io.Writer, resp *Response) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return nil
}
