package smartaccount

import (
	"math/big"

	"github.com/SafeMPC/aa-keyring/internal/types"
)

const (
	// CreationGasBufferPercent 部署（factory 调用）估算的安全余量
	CreationGasBufferPercent = 10
	// CallGasBufferPercent 普通调用估算的安全余量
	CallGasBufferPercent = 50

	// 验证阶段基础 gas，部署时再叠加 creation gas
	baseVerificationGas = 100000
	txBaseGas           = 21000
)

// AddGasBuffer 返回 g + floor(g*percent/100)；先乘后除并截断，不使用浮点或乘数
func AddGasBuffer(g *big.Int, percent int64) *big.Int {
	if g == nil {
		return new(big.Int)
	}
	buffer := new(big.Int).Mul(g, big.NewInt(percent))
	buffer.Quo(buffer, big.NewInt(100))
	return buffer.Add(buffer, g)
}

// BufferHexEstimate 对十六进制 gas 估算值加余量
func BufferHexEstimate(hexEstimate string, percent int64) (*big.Int, error) {
	g, err := types.ParseBigString(hexEstimate)
	if err != nil {
		return nil, err
	}
	return AddGasBuffer(g, percent), nil
}
