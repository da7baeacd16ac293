package keyring

import (
	"context"
	"crypto/ecdsa"

	"github.com/SafeMPC/aa-keyring/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// KeyDeriver 按账户名派生确定性密钥对
type KeyDeriver struct {
	source EntropySource
}

// NewKeyDeriver 创建密钥派生器
func NewKeyDeriver(source EntropySource) *KeyDeriver {
	return &KeyDeriver{source: source}
}

// Derive 相同熵来源与相同 name 总是得到相同的私钥与地址
func (d *KeyDeriver) Derive(ctx context.Context, name string) (*ecdsa.PrivateKey, common.Address, error) {
	entropy, err := d.source.Entropy(ctx, name)
	if err != nil {
		if errors.Is(err, types.ErrEntropyUnavailable) {
			return nil, common.Address{}, err
		}
		return nil, common.Address{}, errors.Wrap(types.ErrEntropyUnavailable, err.Error())
	}
	defer zeroBytes(entropy)

	key, err := crypto.ToECDSA(entropy)
	if err != nil {
		return nil, common.Address{}, errors.Wrap(types.ErrEntropyUnavailable, err.Error())
	}
	return key, crypto.PubkeyToAddress(key.PublicKey), nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// zeroKey 清除私钥标量
func zeroKey(key *ecdsa.PrivateKey) {
	if key == nil || key.D == nil {
		return
	}
	key.D.SetInt64(0)
}
