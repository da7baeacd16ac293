package handlers

import (
	"github.com/SafeMPC/aa-keyring/internal/api"
	"github.com/SafeMPC/aa-keyring/internal/api/handlers/accounts"
	"github.com/SafeMPC/aa-keyring/internal/api/handlers/bundlers"
	"github.com/SafeMPC/aa-keyring/internal/api/handlers/common"
	"github.com/SafeMPC/aa-keyring/internal/api/handlers/requests"
	"github.com/SafeMPC/aa-keyring/internal/api/handlers/rpc"
	"github.com/SafeMPC/aa-keyring/internal/api/handlers/smartaccounts"
	"github.com/labstack/echo/v4"
)

// AttachAllRoutes 注册 HTTP 路由与 JSON-RPC 方法
func AttachAllRoutes(s *api.Server) {
	s.Router.Routes = []*echo.Route{
		common.GetHealthRoute(s),
		common.GetHealthLiveRoute(s),
		common.GetHealthReadyRoute(s),
		common.GetMetricsRoute(s),
		rpc.PostRPCRoute(s),
	}

	// keyring_*
	accounts.ListAccountsMethod(s)
	accounts.GetAccountMethod(s)
	accounts.CreateAccountMethod(s)
	accounts.UpdateAccountMethod(s)
	accounts.DeleteAccountMethod(s)
	accounts.FilterAccountChainsMethod(s)
	requests.ListRequestsMethod(s)
	requests.GetRequestMethod(s)
	requests.SubmitRequestMethod(s)
	requests.ApproveRequestMethod(s)
	requests.RejectRequestMethod(s)

	// 内部智能账户方法
	smartaccounts.SCAccountMethod(s)
	smartaccounts.GetUserOpsHashesMethod(s)
	smartaccounts.GetUserOpCallDataMethod(s)
	smartaccounts.EstimateCreationGasMethod(s)
	smartaccounts.BuildUserOperationMethod(s)
	smartaccounts.DepositTransactionMethod(s)
	smartaccounts.ClearActivityDataMethod(s)
	bundlers.GetBundlerURLsMethod(s)
	bundlers.AddBundlerURLMethod(s)
	bundlers.PassthroughMethods(s)
}
