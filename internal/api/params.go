package api

import (
	"bytes"
	"encoding/json"

	"github.com/SafeMPC/aa-keyring/internal/types"
	"github.com/pkg/errors"
)

// BindParams 将命名参数解码到 out；同时接受 {..} 与 [{..}] 两种写法
func BindParams(params json.RawMessage, out interface{}) error {
	raw := bytes.TrimSpace(params)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}
	if raw[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return errors.Wrap(types.ErrInvalidParams, err.Error())
		}
		switch len(list) {
		case 0:
			raw = []byte("{}")
		case 1:
			raw = list[0]
		default:
			return errors.Wrap(types.ErrInvalidParams, "expected a single params object")
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(types.ErrInvalidParams, err.Error())
	}
	return nil
}

// PositionalParams 按位置拆分参数；对象参数视为单个位置参数
func PositionalParams(params json.RawMessage) ([]json.RawMessage, error) {
	raw := bytes.TrimSpace(params)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] != '[' {
		return []json.RawMessage{raw}, nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, errors.Wrap(types.ErrInvalidParams, err.Error())
	}
	return list, nil
}

// StringParam 取第 i 个字符串参数；缺失或为 null 时返回空串
func StringParam(params []json.RawMessage, i int) (string, error) {
	if i >= len(params) || bytes.Equal(bytes.TrimSpace(params[i]), []byte("null")) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(params[i], &s); err != nil {
		return "", errors.Wrapf(types.ErrInvalidParams, "param %d must be a string", i)
	}
	return s, nil
}

// RequiredStringParam 同 StringParam，但空值报错
func RequiredStringParam(params []json.RawMessage, i int, name string) (string, error) {
	s, err := StringParam(params, i)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", errors.Wrapf(types.ErrInvalidParams, "%s is required", name)
	}
	return s, nil
}
