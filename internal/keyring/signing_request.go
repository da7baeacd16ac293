package keyring

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/SafeMPC/aa-keyring/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

// TypedDataVersion eth_signTypedData 的版本
type TypedDataVersion string

const (
	TypedDataV1 TypedDataVersion = "V1"
	TypedDataV3 TypedDataVersion = "V3"
	TypedDataV4 TypedDataVersion = "V4"
)

// SigningRequest 已解析的签名请求，只能是本文件中定义的几种类型之一
type SigningRequest interface {
	Method() string
	Signer() common.Address
	isSigningRequest()
}

// PersonalSignRequest personal_sign：EIP-191 前缀后签名
type PersonalSignRequest struct {
	From    common.Address
	Message []byte
}

// EthSignRequest eth_sign：直接签 32 字节哈希
type EthSignRequest struct {
	From common.Address
	Hash common.Hash
}

// SignTypedDataRequest eth_signTypedData*
type SignTypedDataRequest struct {
	From    common.Address
	Version TypedDataVersion
	Data    json.RawMessage
	method  string
}

// SignTransactionRequest eth_signTransaction
type SignTransactionRequest struct {
	From common.Address
	Tx   TransactionArgs
}

// SendUserOperationRequest eth_sendTransaction：签名 user operation 并提交给 bundler
type SendUserOperationRequest struct {
	From   common.Address
	UserOp *types.UserOperation
}

func (r *PersonalSignRequest) Method() string { return types.MethodPersonalSign }
func (r *EthSignRequest) Method() string { return types.MethodEthSign }
func (r *SignTypedDataRequest) Method() string { return r.method }
func (r *SignTransactionRequest) Method() string { return types.MethodSignTransaction }
func (r *SendUserOperationRequest) Method() string { return types.MethodSendTransaction }

func (r *PersonalSignRequest) Signer() common.Address { return r.From }
func (r *EthSignRequest) Signer() common.Address { return r.From }
func (r *SignTypedDataRequest) Signer() common.Address { return r.From }
func (r *SignTransactionRequest) Signer() common.Address { return r.From }
func (r *SendUserOperationRequest) Signer() common.Address { return r.From }

func (*PersonalSignRequest) isSigningRequest() {}
func (*EthSignRequest) isSigningRequest() {}
func (*SignTypedDataRequest) isSigningRequest() {}
func (*SignTransactionRequest) isSigningRequest() {}
func (*SendUserOperationRequest) isSigningRequest() {}

// TransactionArgs eth_signTransaction 的交易参数
type TransactionArgs struct {
	From                 *common.Address  `json:"from,omitempty"`
	To                   *common.Address  `json:"to,omitempty"`
	Nonce                *types.HexBig    `json:"nonce,omitempty"`
	Gas                  *types.HexBig    `json:"gas,omitempty"`
	GasLimit             *types.HexBig    `json:"gasLimit,omitempty"`
	GasPrice             *types.HexBig    `json:"gasPrice,omitempty"`
	MaxFeePerGas         *types.HexBig    `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *types.HexBig    `json:"maxPriorityFeePerGas,omitempty"`
	Value                *types.HexBig    `json:"value,omitempty"`
	Data                 *hexutil.Bytes   `json:"data,omitempty"`
	Input                *hexutil.Bytes   `json:"input,omitempty"`
	ChainID              *types.HexBig    `json:"chainId,omitempty"`
	AccessList           *json.RawMessage `json:"accessList,omitempty"`
}

// IsFeeMarket 是否携带 EIP-1559 费用字段
func (a *TransactionArgs) IsFeeMarket() bool {
	return a.MaxFeePerGas != nil || a.MaxPriorityFeePerGas != nil
}

// GasLimitValue gas 与 gasLimit 二选一
func (a *TransactionArgs) GasLimitValue() uint64 {
	if a.Gas != nil {
		return a.Gas.ToInt().Uint64()
	}
	if a.GasLimit != nil {
		return a.GasLimit.ToInt().Uint64()
	}
	return 0
}

// Payload input 优先于 data
func (a *TransactionArgs) Payload() []byte {
	if a.Input != nil {
		return *a.Input
	}
	if a.Data != nil {
		return *a.Data
	}
	return nil
}

// ParseSigningRequest 将 (method, params) 解析为具体的请求类型；不支持的方法在这里就被拒绝
func ParseSigningRequest(m types.SigningMethod) (SigningRequest, error) {
	var params []json.RawMessage
	if len(bytes.TrimSpace(m.Params)) > 0 {
		if err := json.Unmarshal(m.Params, &params); err != nil {
			return nil, errors.Wrapf(types.ErrInvalidParams, "%s params must be an array: %v", m.Method, err)
		}
	}

	switch m.Method {
	case types.MethodPersonalSign:
		return parsePersonalSign(params)
	case types.MethodEthSign:
		return parseEthSign(params)
	case types.MethodSignTypedData:
		return parseSignTypedData(m.Method, "", params)
	case types.MethodSignTypedDataV1:
		return parseSignTypedData(m.Method, TypedDataV1, params)
	case types.MethodSignTypedDataV3:
		return parseSignTypedData(m.Method, TypedDataV3, params)
	case types.MethodSignTypedDataV4:
		return parseSignTypedData(m.Method, TypedDataV4, params)
	case types.MethodSignTransaction:
		return parseSignTransaction(params)
	case types.MethodSendTransaction:
		return parseSendUserOperation(params)
	default:
		return nil, errors.Wrapf(types.ErrUnsupportedSigningMethod, "%q", m.Method)
	}
}

func paramString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func paramAddress(raw json.RawMessage) (common.Address, bool) {
	s, ok := paramString(raw)
	if !ok || !common.IsHexAddress(s) || !strings.HasPrefix(s, "0x") {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

// splitFromParam 在前两个参数中找出签名地址；地址优先取第一个参数，
// 也接受 personal_sign / eth_signTypedData_v1 常见的 [payload, address] 顺序
func splitFromParam(method string, params []json.RawMessage) (common.Address, json.RawMessage, error) {
	if len(params) < 2 {
		return common.Address{}, nil, errors.Wrapf(types.ErrInvalidParams, "%s expects [from, payload]", method)
	}
	if addr, ok := paramAddress(params[0]); ok {
		return addr, params[1], nil
	}
	if addr, ok := paramAddress(params[1]); ok {
		return addr, params[0], nil
	}
	return common.Address{}, nil, errors.Wrapf(types.ErrInvalidParams, "%s: no signer address in params", method)
}

func parsePersonalSign(params []json.RawMessage) (SigningRequest, error) {
	from, payload, err := splitFromParam(types.MethodPersonalSign, params)
	if err != nil {
		return nil, err
	}
	s, ok := paramString(payload)
	if !ok {
		return nil, errors.Wrap(types.ErrInvalidParams, "personal_sign message must be a string")
	}
	return &PersonalSignRequest{From: from, Message: decodeMessage(s)}, nil
}

// decodeMessage 合法 0x hex 按字节处理，其他按 UTF-8 文本处理
func decodeMessage(s string) []byte {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if b, err := hexutil.Decode("0x" + s[2:]); err == nil {
			return b
		}
	}
	return []byte(s)
}

func parseEthSign(params []json.RawMessage) (SigningRequest, error) {
	if len(params) < 2 {
		return nil, errors.Wrap(types.ErrInvalidParams, "eth_sign expects [from, data]")
	}
	from, ok := paramAddress(params[0])
	if !ok {
		return nil, errors.Wrap(types.ErrInvalidParams, "eth_sign: invalid from address")
	}
	s, ok := paramString(params[1])
	if !ok {
		return nil, errors.Wrap(types.ErrInvalidParams, "eth_sign data must be a hex string")
	}
	data, err := hexutil.Decode(s)
	if err != nil || len(data) != common.HashLength {
		return nil, errors.Wrap(types.ErrInvalidParams, "eth_sign data must be a 32-byte hex hash")
	}
	return &EthSignRequest{From: from, Hash: common.BytesToHash(data)}, nil
}

type typedDataOptions struct {
	Version string `json:"version"`
}

func parseSignTypedData(method string, version TypedDataVersion, params []json.RawMessage) (SigningRequest, error) {
	from, payload, err := splitFromParam(method, params)
	if err != nil {
		return nil, err
	}

	if version == "" {
		version = TypedDataV1
		if len(params) > 2 {
			var opts typedDataOptions
			if err := json.Unmarshal(params[2], &opts); err != nil {
				return nil, errors.Wrapf(types.ErrInvalidParams, "%s options: %v", method, err)
			}
			if opts.Version != "" {
				version = TypedDataVersion(strings.ToUpper(opts.Version))
			}
		}
	}
	switch version {
	case TypedDataV1, TypedDataV3, TypedDataV4:
	default:
		return nil, errors.Wrapf(types.ErrInvalidParams, "unknown typed data version %q", version)
	}

	// 数据可能是 JSON 字符串，也可能直接是对象/数组
	data := payload
	if s, ok := paramString(payload); ok {
		data = json.RawMessage(s)
	}
	if !json.Valid(data) {
		return nil, errors.Wrapf(types.ErrInvalidParams, "%s data is not valid JSON", method)
	}

	return &SignTypedDataRequest{From: from, Version: version, Data: data, method: method}, nil
}

func parseSignTransaction(params []json.RawMessage) (SigningRequest, error) {
	var (
		from  common.Address
		rawTx json.RawMessage
	)
	switch {
	case len(params) >= 2:
		addr, ok := paramAddress(params[0])
		if !ok {
			return nil, errors.Wrap(types.ErrInvalidParams, "eth_signTransaction: invalid from address")
		}
		from, rawTx = addr, params[1]
	case len(params) == 1:
		rawTx = params[0]
	default:
		return nil, errors.Wrap(types.ErrInvalidParams, "eth_signTransaction expects [from, tx]")
	}

	var tx TransactionArgs
	if err := json.Unmarshal(rawTx, &tx); err != nil {
		return nil, errors.Wrapf(types.ErrInvalidParams, "eth_signTransaction tx: %v", err)
	}
	if len(params) == 1 {
		if tx.From == nil {
			return nil, errors.Wrap(types.ErrInvalidParams, "eth_signTransaction: missing from")
		}
		from = *tx.From
	}
	if tx.ChainID == nil || tx.ChainID.ToInt().Sign() <= 0 {
		return nil, errors.Wrap(types.ErrInvalidParams, "eth_signTransaction: chainId is required")
	}
	return &SignTransactionRequest{From: from, Tx: tx}, nil
}

func parseSendUserOperation(params []json.RawMessage) (SigningRequest, error) {
	if len(params) < 2 {
		return nil, errors.Wrap(types.ErrInvalidParams, "eth_sendTransaction expects [from, userOperation]")
	}
	from, ok := paramAddress(params[0])
	if !ok {
		return nil, errors.Wrap(types.ErrInvalidParams, "eth_sendTransaction: invalid from address")
	}
	var op types.UserOperation
	if err := json.Unmarshal(params[1], &op); err != nil {
		return nil, errors.Wrapf(types.ErrInvalidParams, "eth_sendTransaction user operation: %v", err)
	}
	if op.IsSigned() {
		return nil, errors.Wrap(types.ErrInvalidParams, "user operation is already signed")
	}
	return &SendUserOperationRequest{From: from, UserOp: &op}, nil
}
