package types

// AccountType 账户类型标签
type AccountType string

const (
	AccountTypeEOA     AccountType = "eip155:eoa"
	AccountTypeERC4337 AccountType = "eip155:erc4337"
)

// 支持的签名方法
const (
	MethodPersonalSign    = "personal_sign"
	MethodEthSign         = "eth_sign"
	MethodSignTransaction = "eth_signTransaction"
	MethodSendTransaction = "eth_sendTransaction"
	MethodSignTypedData   = "eth_signTypedData"
	MethodSignTypedDataV1 = "eth_signTypedData_v1"
	MethodSignTypedDataV3 = "eth_signTypedData_v3"
	MethodSignTypedDataV4 = "eth_signTypedData_v4"
)

// SupportedMethods 返回账户类型对应的完整签名方法集合
func SupportedMethods(accountType AccountType) []string {
	methods := []string{
		MethodPersonalSign,
		MethodEthSign,
		MethodSignTransaction,
		MethodSignTypedData,
		MethodSignTypedDataV1,
		MethodSignTypedDataV3,
		MethodSignTypedDataV4,
	}
	if accountType == AccountTypeERC4337 {
		methods = append(methods, MethodSendTransaction)
	}
	return methods
}

// KeyringAccount 对外暴露的账户记录
type KeyringAccount struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	Address          string                 `json:"address"`
	Options          map[string]interface{} `json:"options"`
	SupportedMethods []string               `json:"supportedMethods"`
	Type             AccountType            `json:"type"`
}

// Wallet 账户与私钥材料，只由 keyring 持有
type Wallet struct {
	Account    KeyringAccount `json:"account"`
	PrivateKey string         `json:"privateKey"`
}

// Clone 返回账户的浅拷贝（Options 与 SupportedMethods 独立）
func (a KeyringAccount) Clone() KeyringAccount {
	out := a
	if a.SupportedMethods != nil {
		out.SupportedMethods = append([]string(nil), a.SupportedMethods...)
	}
	if a.Options != nil {
		out.Options = make(map[string]interface{}, len(a.Options))
		for k, v := range a.Options {
			out.Options[k] = v
		}
	}
	return out
}
