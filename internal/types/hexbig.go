package types

import (
	"encoding/json"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

// HexBig 非负大整数，序列化为最短 0x 十六进制；反序列化兼容带前导零的十六进制、十进制字符串与 JSON 数字
type HexBig big.Int

// NewHexBig 由 *big.Int 构造
func NewHexBig(v *big.Int) *HexBig {
	if v == nil {
		v = new(big.Int)
	}
	return (*HexBig)(new(big.Int).Set(v))
}

// HexUint64 由 uint64 构造
func HexUint64(v uint64) *HexBig {
	return NewHexBig(new(big.Int).SetUint64(v))
}

// ToInt 返回 *big.Int 视图
func (b *HexBig) ToInt() *big.Int {
	return (*big.Int)(b)
}

func (b *HexBig) String() string {
	return hexutil.EncodeBig(b.ToInt())
}

func (b HexBig) MarshalJSON() ([]byte, error) {
	v := big.Int(b)
	return json.Marshal(hexutil.EncodeBig(&v))
}

func (b *HexBig) UnmarshalJSON(input []byte) error {
	v, err := ParseBigValue(input)
	if err != nil {
		return err
	}
	*b = HexBig(*v)
	return nil
}

// ParseBigValue 解析 JSON 中的数值（字符串或数字）
func ParseBigValue(input []byte) (*big.Int, error) {
	raw := strings.TrimSpace(string(input))
	if raw == "" || raw == "null" {
		return nil, errors.Wrap(ErrInvalidParams, "empty numeric value")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(input, &s); err != nil {
			return nil, errors.Wrap(ErrInvalidParams, err.Error())
		}
		return ParseBigString(s)
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidParams, "invalid number %s", raw)
	}
	if v.Sign() < 0 {
		return nil, errors.Wrapf(ErrInvalidParams, "negative number %s", raw)
	}
	return v, nil
}

// ParseBigString 解析 0x 十六进制或十进制字符串
func ParseBigString(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	var (
		v  *big.Int
		ok bool
	)
	switch {
	case s == "0x" || s == "0X":
		return new(big.Int), nil
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		v, ok = new(big.Int).SetString(s[2:], 16)
	default:
		v, ok = new(big.Int).SetString(s, 10)
	}
	if !ok {
		return nil, errors.Wrapf(ErrInvalidParams, "invalid number %q", s)
	}
	if v.Sign() < 0 {
		return nil, errors.Wrapf(ErrInvalidParams, "negative number %q", s)
	}
	return v, nil
}
