package keyring

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strconv"
	"strings"

	"github.com/SafeMPC/aa-keyring/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/pkg/errors"
)

// typedFieldV1 旧版 eth_signTypedData 的一个字段
type typedFieldV1 struct {
	Type  string          `json:"type"`
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// TypedDataHash 按版本计算待签名哈希
func TypedDataHash(version TypedDataVersion, data json.RawMessage) ([]byte, error) {
	switch version {
	case TypedDataV1:
		return typedDataHashV1(data)
	case TypedDataV3, TypedDataV4:
		var td apitypes.TypedData
		if err := json.Unmarshal(data, &td); err != nil {
			return nil, errors.Wrapf(types.ErrInvalidParams, "typed data: %v", err)
		}
		hash, _, err := apitypes.TypedDataAndHash(td)
		if err != nil {
			return nil, errors.Wrapf(types.ErrInvalidParams, "typed data: %v", err)
		}
		return hash, nil
	default:
		return nil, errors.Wrapf(types.ErrInvalidParams, "unknown typed data version %q", version)
	}
}

// typedDataHashV1 keccak256(keccak256(schema) ‖ keccak256(solidityPack(types, values)))，
// schema 为各字段 "type name" 的拼接
func typedDataHashV1(data json.RawMessage) ([]byte, error) {
	var fields []typedFieldV1
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, errors.Wrapf(types.ErrInvalidParams, "typed data v1 must be an array of {type,name,value}: %v", err)
	}
	if len(fields) == 0 {
		return nil, errors.Wrap(types.ErrInvalidParams, "typed data v1 is empty")
	}

	var schema, packed bytes.Buffer
	for _, f := range fields {
		schema.WriteString(f.Type + " " + f.Name)
		b, err := solidityPackValue(f.Type, f.Value)
		if err != nil {
			return nil, errors.Wrapf(types.ErrInvalidParams, "field %q: %v", f.Name, err)
		}
		packed.Write(b)
	}
	return crypto.Keccak256(crypto.Keccak256(schema.Bytes()), crypto.Keccak256(packed.Bytes())), nil
}

// solidityPackValue 非填充编码（abi.encodePacked）单个值
func solidityPackValue(typ string, raw json.RawMessage) ([]byte, error) {
	switch {
	case typ == "string":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return []byte(s), nil

	case typ == "bytes":
		return decodeHexValue(raw)

	case typ == "address":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if !common.IsHexAddress(s) {
			return nil, errors.Errorf("invalid address %q", s)
		}
		return common.HexToAddress(s).Bytes(), nil

	case typ == "bool":
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		if b {
			return []byte{1}, nil
		}
		return []byte{0}, nil

	case strings.HasPrefix(typ, "bytes"):
		size, err := strconv.Atoi(strings.TrimPrefix(typ, "bytes"))
		if err != nil || size < 1 || size > 32 {
			return nil, errors.Errorf("invalid type %q", typ)
		}
		b, err := decodeHexValue(raw)
		if err != nil {
			return nil, err
		}
		if len(b) > size {
			return nil, errors.Errorf("value too long for %s", typ)
		}
		return common.RightPadBytes(b, size), nil

	case strings.HasPrefix(typ, "uint"), strings.HasPrefix(typ, "int"):
		return packInteger(typ, raw)

	default:
		return nil, errors.Errorf("unsupported type %q", typ)
	}
}

func decodeHexValue(raw json.RawMessage) ([]byte, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	if s == "" {
		return []byte{}, nil
	}
	return hexutil.Decode(s)
}

func packInteger(typ string, raw json.RawMessage) ([]byte, error) {
	signed := strings.HasPrefix(typ, "int")
	bits := 256
	if suffix := strings.TrimPrefix(strings.TrimPrefix(typ, "u"), "int"); suffix != "" {
		n, err := strconv.Atoi(suffix)
		if err != nil || n < 8 || n > 256 || n%8 != 0 {
			return nil, errors.Errorf("invalid type %q", typ)
		}
		bits = n
	}

	v, err := parseInteger(raw)
	if err != nil {
		return nil, err
	}
	if !signed && v.Sign() < 0 {
		return nil, errors.Errorf("negative value for %s", typ)
	}
	if signed {
		limit := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
		if v.Cmp(limit) >= 0 || v.Cmp(new(big.Int).Neg(limit)) < 0 {
			return nil, errors.Errorf("value overflows %s", typ)
		}
	} else if v.BitLen() > bits {
		return nil, errors.Errorf("value overflows %s", typ)
	}
	if signed {
		v = math.U256(new(big.Int).Set(v))
	}
	return math.PaddedBigBytes(v, 32)[32-bits/8:], nil
}

func parseInteger(raw json.RawMessage) (*big.Int, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var n json.Number
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&n); err != nil {
			return nil, errors.Errorf("invalid integer %s", string(raw))
		}
		s = n.String()
	}
	neg := strings.HasPrefix(s, "-")
	v, err := types.ParseBigString(strings.TrimPrefix(s, "-"))
	if err != nil {
		return nil, err
	}
	if neg {
		v.Neg(v)
	}
	return v, nil
}
