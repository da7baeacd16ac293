package rpc

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/SafeMPC/aa-keyring/internal/api"
	"github.com/SafeMPC/aa-keyring/internal/api/httperrors"
	"github.com/SafeMPC/aa-keyring/internal/util"
	"github.com/labstack/echo/v4"
)

const jsonrpcVersion = "2.0"

// Request JSON-RPC 2.0 请求
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response JSON-RPC 2.0 响应；Result 与 Error 互斥
type Response struct {
	JSONRPC string               `json:"jsonrpc"`
	ID      json.RawMessage      `json:"id"`
	Result  interface{}          `json:"result,omitempty"`
	Error   *httperrors.RPCError `json:"error,omitempty"`
}

// MarshalJSON 成功时 result 为 null 也要输出
func (r Response) MarshalJSON() ([]byte, error) {
	id := r.ID
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	if r.Error != nil {
		return json.Marshal(struct {
			JSONRPC string               `json:"jsonrpc"`
			ID      json.RawMessage      `json:"id"`
			Error   *httperrors.RPCError `json:"error"`
		}{r.JSONRPC, id, r.Error})
	}
	return json.Marshal(struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Result  interface{}     `json:"result"`
	}{r.JSONRPC, id, r.Result})
}

func PostRPCRoute(s *api.Server) *echo.Route {
	return s.Router.Root.POST("/rpc", postRPCHandler(s))
}

// 单个请求或批量请求；协议层错误也以 200 + error 对象返回
func postRPCHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return c.JSON(http.StatusOK, errorResponse(nil, httperrors.ErrParse))
		}
		body = bytes.TrimSpace(body)

		if len(body) > 0 && body[0] == '[' {
			var batch []Request
			if err := json.Unmarshal(body, &batch); err != nil {
				return c.JSON(http.StatusOK, errorResponse(nil, httperrors.ErrParse))
			}
			if len(batch) == 0 {
				return c.JSON(http.StatusOK, errorResponse(nil, httperrors.ErrInvalidRequest))
			}
			out := make([]Response, 0, len(batch))
			for _, req := range batch {
				out = append(out, handle(c, s, req))
			}
			return c.JSON(http.StatusOK, out)
		}

		var req Request
		if err := json.Unmarshal(body, &req); err != nil {
			return c.JSON(http.StatusOK, errorResponse(nil, httperrors.ErrParse))
		}
		return c.JSON(http.StatusOK, handle(c, s, req))
	}
}

func handle(c echo.Context, s *api.Server, req Request) Response {
	log := util.LogFromContext(c.Request().Context())

	if req.Method == "" || (req.JSONRPC != "" && req.JSONRPC != jsonrpcVersion) {
		return errorResponse(req.ID, httperrors.ErrInvalidRequest)
	}

	method, ok := s.Router.RPC.Lookup(req.Method)
	if !ok {
		return errorResponse(req.ID, httperrors.ErrMethodNotFound.WithMessage("The method %q does not exist / is not available", req.Method))
	}

	origin := c.Request().Header.Get(echo.HeaderOrigin)
	if !s.OriginAllowed(method.Scope, origin) {
		log.Warn().Str("rpc_method", req.Method).Str("origin", origin).Str("scope", method.Scope.String()).Msg("Rejected RPC call from disallowed origin")
		return errorResponse(req.ID, httperrors.ErrForbiddenOrigin)
	}

	start := time.Now()
	result, err := method.Handler(c, req.Method, req.Params)
	if s.Metrics != nil {
		label := method.Name
		s.Metrics.RPCDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		rpcErr := httperrors.FromError(err)
		log.Debug().Err(err).Str("rpc_method", req.Method).Int("code", rpcErr.Code).Msg("RPC call failed")
		return errorResponse(req.ID, rpcErr)
	}

	return Response{JSONRPC: jsonrpcVersion, ID: req.ID, Result: result}
}

func errorResponse(id json.RawMessage, err *httperrors.RPCError) Response {
	return Response{JSONRPC: jsonrpcVersion, ID: id, Error: err}
}
