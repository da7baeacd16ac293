package smartaccounts

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/SafeMPC/aa-keyring/internal/api"
	"github.com/SafeMPC/aa-keyring/internal/chain"
	"github.com/SafeMPC/aa-keyring/internal/smartaccount"
	"github.com/SafeMPC/aa-keyring/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

// CallArgs 智能账户 execute 的目标调用
type CallArgs struct {
	To    *common.Address `json:"to"`
	Value *types.HexBig   `json:"value,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
}

func (a CallArgs) value() *big.Int {
	return types.BigOrZero(a.Value)
}

func decodeCallArgs(params []json.RawMessage, i int) (CallArgs, error) {
	var args CallArgs
	if i >= len(params) {
		return args, errors.Wrap(types.ErrInvalidParams, "call arguments are required")
	}
	if err := json.Unmarshal(params[i], &args); err != nil {
		return args, errors.Wrap(types.ErrInvalidParams, err.Error())
	}
	if args.To == nil {
		return args, errors.Wrap(types.ErrInvalidParams, "call target is required")
	}
	return args, nil
}

// resolveOwner 参数可以是 owner 地址或账户 ID
func resolveOwner(ctx context.Context, s *api.Server, ref string) (common.Address, error) {
	if common.IsHexAddress(ref) {
		return common.HexToAddress(ref), nil
	}
	w, err := s.Keyring.FindByID(ctx, ref)
	if err != nil {
		return common.Address{}, err
	}
	return common.HexToAddress(w.Account.Address), nil
}

// chainAPI 第 i 个参数为可选链 ID，缺省为默认链
func chainAPI(ctx context.Context, s *api.Server, params []json.RawMessage, i int) (*smartaccount.API, string, error) {
	chainID, err := api.StringParam(params, i)
	if err != nil {
		return nil, "", err
	}
	if chainID == "" {
		chainID = s.Keyring.DefaultChainID()
	}
	chainID = chain.NormalizeChainID(chainID)
	sa, err := s.SmartAccounts.For(ctx, chainID)
	if err != nil {
		return nil, "", err
	}
	return sa, chainID, nil
}
