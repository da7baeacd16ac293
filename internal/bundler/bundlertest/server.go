// Package bundlertest 提供测试用的 JSON-RPC 服务（bundler 或链节点）
package bundlertest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
)

// Error JSON-RPC 错误
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// HandlerFunc 处理单个方法，返回 result 或 error
type HandlerFunc func(params []json.RawMessage) (interface{}, *Error)

// Call 记录的调用
type Call struct {
	Method string
	Params []json.RawMessage
}

type request struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result"`
	Error   *Error          `json:"error,omitempty"`
}

// Server 可编程的 bundler
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]HandlerFunc
	calls    []Call
}

// NewServer 启动测试 bundler，调用方负责 Close
func NewServer() *Server {
	s := &Server{handlers: make(map[string]HandlerFunc)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	return s
}

// Handle 注册方法处理函数
func (s *Server) Handle(method string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = fn
}

// Reply 方法固定返回 result
func (s *Server) Reply(method string, result interface{}) {
	s.Handle(method, func([]json.RawMessage) (interface{}, *Error) {
		return result, nil
	})
}

// Fail 方法固定返回错误
func (s *Server) Fail(method string, code int, message string) {
	s.Handle(method, func([]json.RawMessage) (interface{}, *Error) {
		return nil, &Error{Code: code, Message: message}
	})
}

// Calls 已收到的调用
func (s *Server) Calls(method string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if method == "" || c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: req.Method, Params: req.Params})
	fn, ok := s.handlers[req.Method]
	s.mu.Unlock()

	resp := response{JSONRPC: "2.0", ID: req.ID}
	if !ok {
		resp.Error = &Error{Code: -32601, Message: "method " + req.Method + " not found"}
	} else {
		resp.Result, resp.Error = fn(req.Params)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
