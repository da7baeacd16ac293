package bundlers

import (
	"encoding/json"

	"github.com/SafeMPC/aa-keyring/internal/api"
	"github.com/labstack/echo/v4"
)

func GetBundlerURLsMethod(s *api.Server) *api.Method {
	return s.Router.RPC.Register("get_bundler_urls", api.ScopeInternal, getBundlerURLsHandler(s))
}

// params: [chainId, url]
func AddBundlerURLMethod(s *api.Server) *api.Method {
	return s.Router.RPC.Register("add_bundler_url", api.ScopeInternal, addBundlerURLHandler(s))
}

func getBundlerURLsHandler(s *api.Server) api.MethodHandler {
	return func(c echo.Context, _ string, _ json.RawMessage) (interface{}, error) {
		return s.Bundlers.GetURLs(c.Request().Context())
	}
}

func addBundlerURLHandler(s *api.Server) api.MethodHandler {
	return func(c echo.Context, _ string, raw json.RawMessage) (interface{}, error) {
		params, err := api.PositionalParams(raw)
		if err != nil {
			return nil, err
		}
		chainID, err := api.RequiredStringParam(params, 0, "chain id")
		if err != nil {
			return nil, err
		}
		url, err := api.StringParam(params, 1)
		if err != nil {
			return nil, err
		}
		if err := s.Bundlers.StoreURL(c.Request().Context(), chainID, url); err != nil {
			return nil, err
		}
		return true, nil
	}
}
