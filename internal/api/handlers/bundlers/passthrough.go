package bundlers

import (
	"encoding/json"

	"github.com/SafeMPC/aa-keyring/internal/api"
	"github.com/SafeMPC/aa-keyring/internal/api/httperrors"
	"github.com/SafeMPC/aa-keyring/internal/chain"
	"github.com/labstack/echo/v4"
)

// BundlerErrorData bundler 原始错误码，放在 error.data 中
type BundlerErrorData struct {
	Code int `json:"code"`
}

// PassthroughMethods eth_* 与 debug_bundler_* 原样转发给链对应的 bundler
func PassthroughMethods(s *api.Server) []*api.Method {
	return []*api.Method{
		s.Router.RPC.RegisterPrefix("eth_", api.ScopeInternal, passthroughHandler(s)),
		s.Router.RPC.RegisterPrefix("debug_bundler_", api.ScopeInternal, passthroughHandler(s)),
	}
}

func passthroughHandler(s *api.Server) api.MethodHandler {
	return func(c echo.Context, method string, raw json.RawMessage) (interface{}, error) {
		ctx := c.Request().Context()

		chainID := c.Request().Header.Get(api.HeaderChainID)
		if chainID == "" {
			chainID = s.Keyring.DefaultChainID()
		}

		params, err := api.PositionalParams(raw)
		if err != nil {
			return nil, err
		}
		args := make([]interface{}, len(params))
		for i, p := range params {
			args[i] = p
		}

		client, err := s.Bundlers.ClientFor(ctx, chain.NormalizeChainID(chainID))
		if err != nil {
			return nil, err
		}
		defer client.Close()

		res := client.Send(ctx, method, args...)
		if !res.Success {
			rpcErr := httperrors.NewRPCError(httperrors.CodeInternalError, res.Error())
			if res.Code != 0 {
				rpcErr = rpcErr.WithData(BundlerErrorData{Code: res.Code})
			}
			return nil, rpcErr
		}
		return res.Data, nil
	}
}
