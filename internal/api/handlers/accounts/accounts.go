package accounts

import (
	"encoding/json"

	"github.com/SafeMPC/aa-keyring/internal/api"
	"github.com/SafeMPC/aa-keyring/internal/types"
	"github.com/SafeMPC/aa-keyring/internal/util"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type idParams struct {
	ID string `json:"id"`
}

func (p idParams) validate() error {
	if p.ID == "" {
		return errors.Wrap(types.ErrInvalidParams, "id is required")
	}
	return nil
}

type createAccountParams struct {
	Name    string                 `json:"name"`
	Options map[string]interface{} `json:"options"`
}

type updateAccountParams struct {
	Account *types.KeyringAccount `json:"account"`
}

type filterAccountChainsParams struct {
	ID     string   `json:"id"`
	Chains []string `json:"chains"`
}

func ListAccountsMethod(s *api.Server) *api.Method {
	return s.Router.RPC.Register("keyring_listAccounts", api.ScopeKeyring, listAccountsHandler(s))
}

func GetAccountMethod(s *api.Server) *api.Method {
	return s.Router.RPC.Register("keyring_getAccount", api.ScopeKeyring, getAccountHandler(s))
}

func CreateAccountMethod(s *api.Server) *api.Method {
	return s.Router.RPC.Register("keyring_createAccount", api.ScopeKeyring, createAccountHandler(s))
}

func UpdateAccountMethod(s *api.Server) *api.Method {
	return s.Router.RPC.Register("keyring_updateAccount", api.ScopeKeyring, updateAccountHandler(s))
}

func DeleteAccountMethod(s *api.Server) *api.Method {
	return s.Router.RPC.Register("keyring_deleteAccount", api.ScopeKeyring, deleteAccountHandler(s))
}

func FilterAccountChainsMethod(s *api.Server) *api.Method {
	return s.Router.RPC.Register("keyring_filterAccountChains", api.ScopeKeyring, filterAccountChainsHandler(s))
}

func listAccountsHandler(s *api.Server) api.MethodHandler {
	return func(c echo.Context, _ string, _ json.RawMessage) (interface{}, error) {
		return s.Keyring.ListAccounts(c.Request().Context())
	}
}

func getAccountHandler(s *api.Server) api.MethodHandler {
	return func(c echo.Context, _ string, params json.RawMessage) (interface{}, error) {
		var p idParams
		if err := api.BindParams(params, &p); err != nil {
			return nil, err
		}
		if err := p.validate(); err != nil {
			return nil, err
		}
		return s.Keyring.GetAccount(c.Request().Context(), p.ID)
	}
}

// name 缺省时从 options.name 读取
func createAccountHandler(s *api.Server) api.MethodHandler {
	return func(c echo.Context, _ string, params json.RawMessage) (interface{}, error) {
		ctx := c.Request().Context()
		var p createAccountParams
		if err := api.BindParams(params, &p); err != nil {
			return nil, err
		}
		if p.Name == "" && p.Options != nil {
			if name, ok := p.Options["name"].(string); ok {
				p.Name = name
			}
		}

		account, err := s.Keyring.CreateAccount(ctx, p.Name, p.Options)
		if err != nil {
			return nil, err
		}
		util.LogFromContext(ctx).Info().Str("accountId", account.ID).Str("address", account.Address).Msg("Account created via RPC")
		return account, nil
	}
}

func updateAccountHandler(s *api.Server) api.MethodHandler {
	return func(c echo.Context, _ string, params json.RawMessage) (interface{}, error) {
		var p updateAccountParams
		if err := api.BindParams(params, &p); err != nil {
			return nil, err
		}
		if p.Account == nil {
			return nil, errors.Wrap(types.ErrInvalidParams, "account is required")
		}
		return nil, s.Keyring.UpdateAccount(c.Request().Context(), *p.Account)
	}
}

func deleteAccountHandler(s *api.Server) api.MethodHandler {
	return func(c echo.Context, _ string, params json.RawMessage) (interface{}, error) {
		var p idParams
		if err := api.BindParams(params, &p); err != nil {
			return nil, err
		}
		if err := p.validate(); err != nil {
			return nil, err
		}
		return nil, s.Keyring.DeleteAccount(c.Request().Context(), p.ID)
	}
}

func filterAccountChainsHandler(s *api.Server) api.MethodHandler {
	return func(c echo.Context, _ string, params json.RawMessage) (interface{}, error) {
		var p filterAccountChainsParams
		if err := api.BindParams(params, &p); err != nil {
			return nil, err
		}
		if p.ID == "" {
			return nil, errors.Wrap(types.ErrInvalidParams, "id is required")
		}
		return s.Keyring.FilterAccountChains(c.Request().Context(), p.ID, p.Chains)
	}
}
