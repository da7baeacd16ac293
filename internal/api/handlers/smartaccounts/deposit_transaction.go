package smartaccounts

import (
	"encoding/json"

	"github.com/SafeMPC/aa-keyring/internal/api"
	"github.com/SafeMPC/aa-keyring/internal/types"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// params: [ownerOrAccountId, amount, chainId?]
func DepositTransactionMethod(s *api.Server) *api.Method {
	return s.Router.RPC.Register("sc_deposit_transaction", api.ScopeInternal, depositTransactionHandler(s))
}

func depositTransactionHandler(s *api.Server) api.MethodHandler {
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
		if len(params) < 2 {
			return nil, errors.Wrap(types.ErrInvalidParams, "deposit amount is required")
		}
		amount, err := types.ParseBigValue(params[1])
		if err != nil {
			return nil, err
		}
		owner, err := resolveOwner(ctx, s, ref)
		if err != nil {
			return nil, err
		}
		sa, _, err := chainAPI(ctx, s, params, 2)
		if err != nil {
			return nil, err
		}
		return sa.BuildDepositTransaction(ctx, owner, amount)
	}
}
