package httperrors

import (
	"github.com/SafeMPC/aa-keyring/internal/chain"
	"github.com/SafeMPC/aa-keyring/internal/types"
)

// JSON-RPC 2.0 标准错误码
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// EIP-1193 provider 错误码
const (
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
)

// 业务错误码
const (
	CodeAccountNotFound         = -32001
	CodeRequestNotFound         = -32002
	CodeWalletNotFound          = -32003
	CodeDuplicateAccountName    = -32004
	CodeSignatureVerification   = -32005
	CodeBundlerNotConfigured    = -32006
	CodeBundlerSubmissionFailed = -32007
	CodeEntropyUnavailable      = -32008
	CodeInsufficientFunds       = -32009
	CodeInsufficientDeposit     = -32010
	CodeNodeNotConfigured       = -32011
	CodeDuplicateRequestID      = -32012
)

// sentinelCodes 按顺序匹配，越具体的错误越靠前
var sentinelCodes = []struct {
	err  error
	code int
}{
	{types.ErrBundlerSubmissionFailed, CodeBundlerSubmissionFailed},
	{types.ErrBundlerNotConfigured, CodeBundlerNotConfigured},
	{types.ErrAccountNotFound, CodeAccountNotFound},
	{types.ErrRequestNotFound, CodeRequestNotFound},
	{types.ErrDuplicateRequestID, CodeDuplicateRequestID},
	{types.ErrWalletNotFound, CodeWalletNotFound},
	{types.ErrDuplicateAccountName, CodeDuplicateAccountName},
	{types.ErrUnsupportedSigningMethod, CodeUnsupportedMethod},
	{types.ErrSignatureVerificationFailed, CodeSignatureVerification},
	{types.ErrEntropyUnavailable, CodeEntropyUnavailable},
	{types.ErrInsufficientFunds, CodeInsufficientFunds},
	{types.ErrInsufficientDeposit, CodeInsufficientDeposit},
	{chain.ErrNodeNotConfigured, CodeNodeNotConfigured},
	{types.ErrInvalidRequestID, CodeInvalidParams},
	{types.ErrInvalidParams, CodeInvalidParams},
}

var (
	ErrMethodNotFound  = NewRPCError(CodeMethodNotFound, "Method not found")
	ErrParse           = NewRPCError(CodeParseError, "Parse error")
	ErrInvalidRequest  = NewRPCError(CodeInvalidRequest, "Invalid request")
	ErrForbiddenOrigin = NewRPCError(CodeUnauthorized, "Origin is not allowed to call this method")
)
