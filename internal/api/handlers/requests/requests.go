package requests

import (
	"encoding/json"

	"github.com/SafeMPC/aa-keyring/internal/api"
	"github.com/SafeMPC/aa-keyring/internal/api/httperrors"
	"github.com/SafeMPC/aa-keyring/internal/types"
	"github.com/labstack/echo/v4"
)

type idParams struct {
	ID string `json:"id"`
}

func bindID(params json.RawMessage) (string, error) {
	var p idParams
	if err := api.BindParams(params, &p); err != nil {
		return "", err
	}
	if p.ID == "" {
		return "", types.ErrInvalidRequestID
	}
	return p.ID, nil
}

// SignatureData 签名已产生但后续步骤失败时附带在 error.data 中
type SignatureData struct {
	Signature string `json:"signature"`
}

// withSignature 签名成功但 bundler 提交失败时，把签名放进错误数据
func withSignature(err error, signature string) error {
	if err == nil || signature == "" {
		return err
	}
	return httperrors.FromError(err).WithData(SignatureData{Signature: signature})
}

func ListRequestsMethod(s *api.Server) *api.Method {
	return s.Router.RPC.Register("keyring_listRequests", api.ScopeKeyring, listRequestsHandler(s))
}

func GetRequestMethod(s *api.Server) *api.Method {
	return s.Router.RPC.Register("keyring_getRequest", api.ScopeKeyring, getRequestHandler(s))
}

func SubmitRequestMethod(s *api.Server) *api.Method {
	return s.Router.RPC.Register("keyring_submitRequest", api.ScopeKeyring, submitRequestHandler(s))
}

func ApproveRequestMethod(s *api.Server) *api.Method {
	return s.Router.RPC.Register("keyring_approveRequest", api.ScopeKeyring, approveRequestHandler(s))
}

func RejectRequestMethod(s *api.Server) *api.Method {
	return s.Router.RPC.Register("keyring_rejectRequest", api.ScopeKeyring, rejectRequestHandler(s))
}

func listRequestsHandler(s *api.Server) api.MethodHandler {
	return func(c echo.Context, _ string, _ json.RawMessage) (interface{}, error) {
		return s.Keyring.ListRequests(c.Request().Context())
	}
}

func getRequestHandler(s *api.Server) api.MethodHandler {
	return func(c echo.Context, _ string, params json.RawMessage) (interface{}, error) {
		id, err := bindID(params)
		if err != nil {
			return nil, err
		}
		return s.Keyring.GetRequest(c.Request().Context(), id)
	}
}

func submitRequestHandler(s *api.Server) api.MethodHandler {
	return func(c echo.Context, _ string, params json.RawMessage) (interface{}, error) {
		ctx := c.Request().Context()
		var req types.KeyringRequest
		if err := api.BindParams(params, &req); err != nil {
			return nil, err
		}

		res, err := s.Keyring.SubmitRequest(ctx, req)
		if err != nil {
			sig, _ := res.Result.(string)
			return nil, withSignature(err, sig)
		}
		return res, nil
	}
}

func approveRequestHandler(s *api.Server) api.MethodHandler {
	return func(c echo.Context, _ string, params json.RawMessage) (interface{}, error) {
		id, err := bindID(params)
		if err != nil {
			return nil, err
		}
		result, err := s.Keyring.ApproveRequest(c.Request().Context(), id)
		if err != nil {
			return nil, withSignature(err, result)
		}
		return result, nil
	}
}

func rejectRequestHandler(s *api.Server) api.MethodHandler {
	return func(c echo.Context, _ string, params json.RawMessage) (interface{}, error) {
		id, err := bindID(params)
		if err != nil {
			return nil, err
		}
		return nil, s.Keyring.RejectRequest(c.Request().Context(), id)
	}
}
