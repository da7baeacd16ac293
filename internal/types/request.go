package types

import "encoding/json"

// KeyringRequest 宿主提交的待签名请求
type KeyringRequest struct {
	ID      string        `json:"id"`
	Scope   string        `json:"scope"`
	Account string        `json:"account"`
	Request SigningMethod `json:"request"`
}

// SigningMethod 方法名与原始参数
type SigningMethod struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// SubmitRequestResponse submitRequest 的返回值
type SubmitRequestResponse struct {
	Pending bool        `json:"pending"`
	Result  interface{} `json:"result,omitempty"`
}
