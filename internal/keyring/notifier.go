package keyring

import (
	"context"

	"github.com/SafeMPC/aa-keyring/internal/types"
	"github.com/SafeMPC/aa-keyring/internal/util"
)

// HostNotifier 账户与请求事件回报给宿主
type HostNotifier interface {
	AccountCreated(ctx context.Context, account types.KeyringAccount) error
	AccountUpdated(ctx context.Context, account types.KeyringAccount) error
	AccountDeleted(ctx context.Context, id string) error
	RequestApproved(ctx context.Context, id string, result interface{}) error
	RequestRejected(ctx context.Context, id string) error
}

// LogNotifier 只记录日志的通知器
type LogNotifier struct{}

// NewLogNotifier 创建日志通知器
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (LogNotifier) AccountCreated(ctx context.Context, account types.KeyringAccount) error {
	util.LogFromContext(ctx).Info().
		Str("accountId", account.ID).
		Str("address", account.Address).
		Str("type", string(account.Type)).
		Msg("Account created")
	return nil
}

func (LogNotifier) AccountUpdated(ctx context.Context, account types.KeyringAccount) error {
	util.LogFromContext(ctx).Info().Str("accountId", account.ID).Str("name", account.Name).Msg("Account updated")
	return nil
}

func (LogNotifier) AccountDeleted(ctx context.Context, id string) error {
	util.LogFromContext(ctx).Info().Str("accountId", id).Msg("Account deleted")
	return nil
}

func (LogNotifier) RequestApproved(ctx context.Context, id string, _ interface{}) error {
	util.LogFromContext(ctx).Info().Str("requestId", id).Msg("Request approved")
	return nil
}

func (LogNotifier) RequestRejected(ctx context.Context, id string) error {
	util.LogFromContext(ctx).Info().Str("requestId", id).Msg("Request rejected")
	return nil
}
