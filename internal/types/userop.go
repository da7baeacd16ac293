package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// UserOperation ERC-4337 (EntryPoint v0.6) 用户操作，边界上所有数值均为十六进制字符串
type UserOperation struct {
	Sender               common.Address `json:"sender"`
	Nonce                *HexBig        `json:"nonce"`
	InitCode             hexutil.Bytes  `json:"initCode"`
	CallData             hexutil.Bytes  `json:"callData"`
	CallGasLimit         *HexBig        `json:"callGasLimit"`
	VerificationGasLimit *HexBig        `json:"verificationGasLimit"`
	PreVerificationGas   *HexBig        `json:"preVerificationGas"`
	MaxFeePerGas         *HexBig        `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *HexBig        `json:"maxPriorityFeePerGas"`
	PaymasterAndData     hexutil.Bytes  `json:"paymasterAndData"`
	Signature            hexutil.Bytes  `json:"signature"`
}

// BigOrZero 将可能为空的 HexBig 转为 *big.Int
func BigOrZero(v *HexBig) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToInt()
}

// IsSigned 签名是否已经填充
func (op *UserOperation) IsSigned() bool {
	return len(op.Signature) > 0
}

// TotalGas callGasLimit + verificationGasLimit + preVerificationGas
func (op *UserOperation) TotalGas() *big.Int {
	total := new(big.Int).Set(BigOrZero(op.CallGasLimit))
	total.Add(total, BigOrZero(op.VerificationGasLimit))
	total.Add(total, BigOrZero(op.PreVerificationGas))
	return total
}

// RequiredPrefund 按 maxFeePerGas 计算的最大预付费用
func (op *UserOperation) RequiredPrefund() *big.Int {
	return new(big.Int).Mul(op.TotalGas(), BigOrZero(op.MaxFeePerGas))
}

// Copy 深拷贝
func (op *UserOperation) Copy() *UserOperation {
	cp := *op
	cp.InitCode = common.CopyBytes(op.InitCode)
	cp.CallData = common.CopyBytes(op.CallData)
	cp.PaymasterAndData = common.CopyBytes(op.PaymasterAndData)
	cp.Signature = common.CopyBytes(op.Signature)
	return &cp
}
