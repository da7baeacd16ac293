package smartaccounts

import (
	"encoding/json"

	"github.com/SafeMPC/aa-keyring/internal/api"
	"github.com/SafeMPC/aa-keyring/internal/chain"
	"github.com/SafeMPC/aa-keyring/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// UserOpsHashes 账户在某条链上的 user operation 哈希
type UserOpsHashes struct {
	ChainID   string   `json:"chainId"`
	Pending   []string `json:"pending"`
	Confirmed []string `json:"confirmed"`
}

// BuiltUserOperation 待签名的 user operation 与其哈希
type BuiltUserOperation struct {
	UserOp     *types.UserOperation `json:"userOp"`
	UserOpHash common.Hash          `json:"userOpHash"`
	ChainID    string               `json:"chainId"`
}

// params: [accountId, chainId?]
func GetUserOpsHashesMethod(s *api.Server) *api.Method {
	return s.Router.RPC.Register("get_user_ops_hashes", api.ScopeInternal, getUserOpsHashesHandler(s))
}

// params: [{to, value, data}, chainId?]
func GetUserOpCallDataMethod(s *api.Server) *api.Method {
	return s.Router.RPC.Register("get_user_op_call_data", api.ScopeInternal, getUserOpCallDataHandler(s))
}

// params: [ownerOrAccountId, chainId?]
func EstimateCreationGasMethod(s *api.Server) *api.Method {
	return s.Router.RPC.Register("estimate_creation_gas", api.ScopeInternal, estimateCreationGasHandler(s))
}

// params: [ownerOrAccountId, {to, value, data}, chainId?]
func BuildUserOperationMethod(s *api.Server) *api.Method {
	return s.Router.RPC.Register("sc_build_user_operation", api.ScopeInternal, buildUserOperationHandler(s))
}

// params: [accountId]
func ClearActivityDataMethod(s *api.Server) *api.Method {
	return s.Router.RPC.Register("clear_activity_data", api.ScopeInternal, clearActivityDataHandler(s))
}

func getUserOpsHashesHandler(s *api.Server) api.MethodHandler {
	return func(c echo.Context, _ string, raw json.RawMessage) (interface{}, error) {
		ctx := c.Request().Context()
		params, err := api.PositionalParams(raw)
		if err != nil {
			return nil, err
		}
		accountID, err := api.RequiredStringParam(params, 0, "account id")
		if err != nil {
			return nil, err
		}
		chainID, err := api.StringParam(params, 1)
		if err != nil {
			return nil, err
		}
		if chainID == "" {
			chainID = s.Keyring.DefaultChainID()
		}
		chainID = chain.NormalizeChainID(chainID)

		confirmed, err := s.Activity.ListConfirmed(ctx, accountID, chainID)
		if err != nil {
			return nil, err
		}
		records, err := s.Activity.ListPending(ctx)
		if err != nil {
			return nil, err
		}
		pending := make([]string, 0)
		for _, r := range records {
			if r.AccountID == accountID && r.ChainID == chainID {
				pending = append(pending, r.UserOpHash)
			}
		}
		if confirmed == nil {
			confirmed = []string{}
		}
		return UserOpsHashes{ChainID: chainID, Pending: pending, Confirmed: confirmed}, nil
	}
}

func getUserOpCallDataHandler(s *api.Server) api.MethodHandler {
	return func(c echo.Context, _ string, raw json.RawMessage) (interface{}, error) {
		params, err := api.PositionalParams(raw)
		if err != nil {
			return nil, err
		}
		args, err := decodeCallArgs(params, 0)
		if err != nil {
			return nil, err
		}
		sa, _, err := chainAPI(c.Request().Context(), s, params, 1)
		if err != nil {
			return nil, err
		}
		return sa.GetUserOpCallData(*args.To, args.value(), args.Data)
	}
}

// 已部署账户无需创建，返回 0x0
func estimateCreationGasHandler(s *api.Server) api.MethodHandler {
	return func(c echo.Context, _ string, raw json.RawMessage) (interface{}, error) {
		ctx := c.Request().Context()
		params, err := api.PositionalParams(raw)
		if err != nil {
			return nil, err
		}
		ref, err := api.RequiredStringParam(params, 0, "owner")
		if err != nil {
			return nil, err
		}
		owner, err := resolveOwner(ctx, s, ref)
		if err != nil {
			return nil, err
		}
		sa, _, err := chainAPI(ctx, s, params, 1)
		if err != nil {
			return nil, err
		}

		initCode, err := sa.GetAccountInitCode(ctx, owner)
		if err != nil {
			return nil, err
		}
		if len(initCode) == 0 {
			return types.HexUint64(0), nil
		}
		gas, err := sa.EstimateCreationGas(ctx, initCode)
		if err != nil {
			return nil, err
		}
		return types.NewHexBig(gas), nil
	}
}

func buildUserOperationHandler(s *api.Server) api.MethodHandler {
	return func(c echo.Context, _ string, raw json.RawMessage) (interface{}, error) {
		ctx := c.Request().Context()
		params, err := api.PositionalParams(raw)
		if err != nil {
			return nil, err
		}
		ref, err := api.RequiredStringParam(params, 0, "owner")
		if err != nil {
			return nil, err
		}
		owner, err := resolveOwner(ctx, s, ref)
		if err != nil {
			return nil, err
		}
		args, err := decodeCallArgs(params, 1)
		if err != nil {
			return nil, err
		}
		sa, chainID, err := chainAPI(ctx, s, params, 2)
		if err != nil {
			return nil, err
		}

		op, err := sa.BuildUserOperation(ctx, owner, *args.To, args.value(), args.Data)
		if err != nil {
			return nil, err
		}
		if err := sa.CheckPrefund(ctx, op); err != nil {
			return nil, err
		}
		hash, err := sa.UserOperationHash(op)
		if err != nil {
			return nil, err
		}
		return BuiltUserOperation{UserOp: op, UserOpHash: hash, ChainID: chainID}, nil
	}
}

func clearActivityDataHandler(s *api.Server) api.MethodHandler {
	return func(c echo.Context, _ string, raw json.RawMessage) (interface{}, error) {
		params, err := api.PositionalParams(raw)
		if err != nil {
			return nil, err
		}
		accountID, err := api.RequiredStringParam(params, 0, "account id")
		if err != nil {
			return nil, err
		}
		if err := s.Activity.Clear(c.Request().Context(), accountID); err != nil {
			return nil, errors.Wrapf(err, "failed to clear activity for %s", accountID)
		}
		return true, nil
	}
}
