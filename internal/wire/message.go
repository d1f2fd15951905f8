// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/json"
	"fmt"
)

const protocolVersion = "2.0"

// WireError is a JSON-RPC 2.0 error object.
type WireError struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *WireError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request is a JSON-RPC call (ID.IsValid()) or notification (!ID.IsValid()).
type Request struct {
	ID     ID              `json:"id,omitzero"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// IsCall reports whether the request expects a response.
func (r *Request) IsCall() bool { return r.ID.IsValid() }

// Response is a reply to a Request with the same ID.
type Response struct {
	ID     ID              `json:"id,omitzero"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *WireError      `json:"error,omitempty"`
}

// wireEnvelope is the on-the-wire shape shared by requests and responses;
// decoding into this struct lets classify() distinguish the two without
// double-parsing (mirrors jsonrpc2_v2's wireCombined).
type wireEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *WireError      `json:"error,omitempty"`
}

// NewRequest builds a call (non-nil id) or notification (nil id).
func NewRequest(id ID, method string, params any) (*Request, error) {
	raw, err := marshalToRaw(params)
	if err != nil {
		return nil, err
	}
	return &Request{ID: id, Method: method, Params: raw}, nil
}

// NewResponse builds a reply. If rerr is non-nil, result is ignored.
func NewResponse(id ID, result any, rerr error) (*Response, error) {
	if rerr != nil {
		return &Response{ID: id, Error: toWireError(rerr)}, nil
	}
	raw, err := marshalToRaw(result)
	if err != nil {
		return nil, err
	}
	return &Response{ID: id, Result: raw}, nil
}

func toWireError(err error) *WireError {
	if err == nil {
		return nil
	}
	if we, ok := err.(*WireError); ok {
		return we
	}
	return &WireError{Code: CodeInternalError, Message: err.Error()}
}

func marshalToRaw(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// EncodeRequest renders r as a single compact JSON line (no trailing newline).
func EncodeRequest(r *Request) ([]byte, error) {
	return json.Marshal(struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      *ID             `json:"id,omitempty"`
		Method  string          `json:"method"`
		Params  json.RawMessage `json:"params,omitempty"`
	}{
		JSONRPC: protocolVersion,
		ID:      idPtrOrNil(r.ID),
		Method:  r.Method,
		Params:  r.Params,
	})
}

// EncodeResponse renders r as a single compact JSON line (no trailing newline).
func EncodeResponse(r *Response) ([]byte, error) {
	return json.Marshal(struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      ID              `json:"id"`
		Result  json.RawMessage `json:"result,omitempty"`
		Error   *WireError      `json:"error,omitempty"`
	}{
		JSONRPC: protocolVersion,
		ID:      r.ID,
		Result:  r.Result,
		Error:   r.Error,
	})
}

func idPtrOrNil(id ID) *ID {
	if !id.IsValid() {
		return nil
	}
	return &id
}
