package keyring

import (
	"context"
	"encoding/binary"

	"github.com/SafeMPC/aa-keyring/internal/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
)

// 派生路径 m/1399742832'/0'/<8 个由 salt 决定的 hardened 索引>
const (
	entropyPurpose = bip32.FirstHardenedChild + 1399742832
	entropyAccount = bip32.FirstHardenedChild + 0
	saltIndexCount = 8
)

// EntropySource 按 salt 返回 32 字节确定性熵
type EntropySource interface {
	Entropy(ctx context.Context, salt string) ([]byte, error)
}

// MnemonicEntropySource 基于 BIP-39 助记词的熵来源
type MnemonicEntropySource struct {
	master *bip32.Key
}

// NewMnemonicEntropySource 从助记词创建熵来源
func NewMnemonicEntropySource(mnemonic, passphrase string) (*MnemonicEntropySource, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.Wrap(types.ErrEntropyUnavailable, "invalid mnemonic")
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, errors.Wrap(types.ErrEntropyUnavailable, err.Error())
	}
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, errors.Wrap(types.ErrEntropyUnavailable, err.Error())
	}
	return &MnemonicEntropySource{master: master}, nil
}

// NewMnemonic 生成 24 词助记词
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", errors.Wrap(err, "failed to generate entropy")
	}
	return bip39.NewMnemonic(entropy)
}

// Entropy 派生 salt 对应的 32 字节私钥材料
func (s *MnemonicEntropySource) Entropy(ctx context.Context, salt string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(types.ErrEntropyUnavailable, err.Error())
	}

	path := make([]uint32, 0, 2+saltIndexCount)
	path = append(path, entropyPurpose, entropyAccount)

	digest := crypto.Keccak256([]byte(salt))
	for i := 0; i < saltIndexCount; i++ {
		idx := binary.BigEndian.Uint32(digest[i*4:]) & 0x7fffffff
		path = append(path, bip32.FirstHardenedChild+idx)
	}

	key := s.master
	for _, idx := range path {
		child, err := key.NewChildKey(idx)
		if err != nil {
			return nil, errors.Wrapf(types.ErrEntropyUnavailable, "derive child %d: %v", idx, err)
		}
		key = child
	}

	// bip32 私钥带一个 0x00 前缀
	raw := key.Key
	if len(raw) == 33 && raw[0] == 0 {
		raw = raw[1:]
	}
	out := make([]byte, 32)
	copy(out[32-len(raw):], raw)
	return out, nil
}
