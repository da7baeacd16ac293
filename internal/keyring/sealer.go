package keyring

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const sealedPrefix = "sealed:"

// 口令形式的加密密钥通过 Argon2id 拉伸
var sealerKDFSalt = []byte("aa-keyring/private-key-sealer/v1")

// Sealer 私钥落盘前的 XChaCha20-Poly1305 加密
type Sealer struct {
	key []byte
}

// NewSealer secret 为 64 位 hex 时直接作为密钥，否则按口令处理；空 secret 返回 nil（不加密）
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, nil
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(secret, "0x"))
	if err == nil && len(raw) == chacha20poly1305.KeySize {
		return &Sealer{key: raw}, nil
	}
	key := argon2.IDKey([]byte(secret), sealerKDFSalt, 3, 64*1024, 4, chacha20poly1305.KeySize)
	return &Sealer{key: key}, nil
}

// Seal 加密私钥，输出 "sealed:" + hex(nonce ‖ ciphertext)
func (s *Sealer) Seal(privateKey []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", errors.Wrap(err, "failed to create cipher")
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.Wrap(err, "failed to generate nonce")
	}
	out := aead.Seal(nonce, nonce, privateKey, nil)
	return sealedPrefix + hex.EncodeToString(out), nil
}

// Open 解密 Seal 的输出
func (s *Sealer) Open(sealed string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	if err != nil {
		return nil, errors.Wrap(err, "malformed sealed key")
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create cipher")
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return nil, errors.New("sealed key too short")
	}
	plain, err := aead.Open(nil, raw[:aead.NonceSize()], raw[aead.NonceSize():], nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decrypt private key")
	}
	return plain, nil
}

// encodeKey 按是否配置 sealer 决定落盘形式
func encodeKey(s *Sealer, privateKey []byte) (string, error) {
	if s == nil {
		return hexutil.Encode(privateKey), nil
	}
	return s.Seal(privateKey)
}

// decodeKey encodeKey 的逆操作
func decodeKey(s *Sealer, stored string) ([]byte, error) {
	if strings.HasPrefix(stored, sealedPrefix) {
		if s == nil {
			return nil, errors.New("private key is sealed but no encryption key is configured")
		}
		return s.Open(stored)
	}
	raw, err := hexutil.Decode(stored)
	if err != nil {
		return nil, errors.Wrap(err, "malformed private key")
	}
	return raw, nil
}
