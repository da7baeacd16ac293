package smartaccounts

import (
	"encoding/json"

	"github.com/SafeMPC/aa-keyring/internal/api"
	"github.com/SafeMPC/aa-keyring/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/labstack/echo/v4"
)

// AccountInfo owner 对应的智能账户在某条链上的状态
type AccountInfo struct {
	Address    common.Address `json:"address"`
	Owner      common.Address `json:"owner"`
	ChainID    string         `json:"chainId"`
	EntryPoint common.Address `json:"entryPoint"`
	Factory    common.Address `json:"factory"`
	Deployed   bool           `json:"deployed"`
	InitCode   hexutil.Bytes  `json:"initCode"`
	Nonce      *types.HexBig  `json:"nonce"`
	Deposit    *types.HexBig  `json:"deposit"`
}

// params: [ownerOrAccountId, chainId?]
func SCAccountMethod(s *api.Server) *api.Method {
	return s.Router.RPC.Register("sc_account", api.ScopeInternal, scAccountHandler(s))
}

func scAccountHandler(s *api.Server) api.MethodHandler {
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
		sa, chainID, err := chainAPI(ctx, s, params, 1)
		if err != nil {
			return nil, err
		}

		addr, err := sa.GetSmartAccountAddress(ctx, owner)
		if err != nil {
			return nil, err
		}
		initCode, err := sa.GetAccountInitCode(ctx, owner)
		if err != nil {
			return nil, err
		}
		nonce, err := sa.GetNonce(ctx, addr)
		if err != nil {
			return nil, err
		}
		deposit, err := sa.GetDeposit(ctx, addr)
		if err != nil {
			return nil, err
		}

		return AccountInfo{
			Address:    addr,
			Owner:      owner,
			ChainID:    chainID,
			EntryPoint: sa.EntryPoint(),
			Factory:    sa.Factory(),
			Deployed:   len(initCode) == 0,
			InitCode:   initCode,
			Nonce:      types.NewHexBig(nonce),
			Deposit:    types.NewHexBig(deposit),
		}, nil
	}
}
