// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"

	"github.com/sourcegraph/jsonrpc2"
)

// Server dispatches both transports named in spec §6.1 against the same
// method table.
type Server struct {
	methods map[string]MethodFunc
}

func NewServer(methods map[string]MethodFunc) *Server {
	return &Server{methods: methods}
}

func (s *Server) call(ctx context.Context, method string, params json.RawMessage) (interface{}, *Error) {
	fn, ok := s.methods[method]
	if !ok {
		return nil, NewError(CodeMethodNotFound, "unknown method: "+method)
	}
	result, err := fn(ctx, params)
	if err != nil {
		if rpcErr, ok := err.(*Error); ok {
			return nil, rpcErr
		}
		return nil, NewError(CodeInternal, err.Error())
	}
	return result, nil
}

// stdioStream adapts stdin/stdout into the io.ReadWriteCloser jsonrpc2
// expects for a stdio transport; closing it is a no-op since the process
// owns its own std handles.
type stdioStream struct {
	in  io.Reader
	out io.Writer
}

func (s stdioStream) Read(p []byte) (int, error)  { return s.in.Read(p) }
func (s stdioStream) Write(p []byte) (int, error) { return s.out.Write(p) }
func (s stdioStream) Close() error                { return nil }

// Handle implements jsonrpc2.Handler, bridging stdio JSON-RPC requests
// into the same method table the HTTP leg uses.
func (s *Server) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params json.RawMessage
	if req.Params != nil {
		params = *req.Params
	}
	result, rpcErr := s.call(ctx, req.Method, params)
	if req.Notif {
		return
	}
	if rpcErr != nil {
		_ = conn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{
			Code: int64(rpcErr.Code), Message: rpcErr.Message,
		})
		return
	}
	_ = conn.Reply(ctx, req.ID, result)
}

// ServeStdio runs the JSON-RPC 2.0 server over stdin/stdout until the
// connection is closed or ctx is canceled, generalizing the teacher's
// `cie --mcp` stdio dispatch loop onto the sourcegraph/jsonrpc2 transport.
func (s *Server) ServeStdio(ctx context.Context) error {
	stream := jsonrpc2.NewBufferedStream(stdioStream{in: os.Stdin, out: os.Stdout}, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, s)
	select {
	case <-conn.DisconnectNotify():
		return nil
	case <-ctx.Done():
		_ = conn.Close()
		return ctx.Err()
	}
}

// ServeHTTP implements POST /mcp: a plain JSON-RPC 2.0 request/response
// exchange (no persistent connection), sharing the method table with the
// stdio leg.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResponse(w, Response{JSONRPC: "2.0", Error: NewError(CodeParseError, err.Error())})
		return
	}

	result, rpcErr := s.call(r.Context(), req.Method, req.Params)
	resp := Response{JSONRPC: "2.0", ID: req.ID}
	if rpcErr != nil {
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}
	writeResponse(w, resp)
}

func writeResponse(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	if resp.Error != nil {
		w.WriteHeader(http.StatusOK) // JSON-RPC errors are still HTTP 200
	}
	_ = json.NewEncoder(w).Encode(resp)
}
