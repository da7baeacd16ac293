package httperrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// RPCError JSON-RPC 错误对象
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewRPCError 创建 JSON-RPC 错误
func NewRPCError(code int, message string) *RPCError {
	return &RPCError{Code: code, Message: message}
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error: %s (code: %d)", e.Message, e.Code)
}

// WithData 返回带 data 的副本
func (e *RPCError) WithData(data interface{}) *RPCError {
	out := *e
	out.Data = data
	return &out
}

// WithMessage 返回替换 message 的副本
func (e *RPCError) WithMessage(format string, args ...interface{}) *RPCError {
	out := *e
	out.Message = fmt.Sprintf(format, args...)
	return &out
}

// FromError 将内部错误映射为 JSON-RPC 错误，保留原始错误信息
func FromError(err error) *RPCError {
	if err == nil {
		return nil
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	for _, s := range sentinelCodes {
		if errors.Is(err, s.err) {
			return NewRPCError(s.code, err.Error())
		}
	}
	return NewRPCError(CodeInternalError, err.Error())
}
