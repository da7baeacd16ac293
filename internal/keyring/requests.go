package keyring

import (
	"context"
	"sort"

	"github.com/SafeMPC/aa-keyring/internal/state"
	"github.com/SafeMPC/aa-keyring/internal/types"
	"github.com/SafeMPC/aa-keyring/internal/util"
	"github.com/pkg/errors"
)

// ListRequests 所有待处理请求，按 ID 排序
func (k *Keyring) ListRequests(ctx context.Context) ([]types.KeyringRequest, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.state.Get(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.KeyringRequest, 0, len(doc.KeyringState.PendingRequests))
	for _, r := range doc.KeyringState.PendingRequests {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetRequest 不存在时返回 ErrRequestNotFound
func (k *Keyring) GetRequest(ctx context.Context, id string) (types.KeyringRequest, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.state.Get(ctx)
	if err != nil {
		return types.KeyringRequest{}, err
	}
	r, ok := doc.KeyringState.PendingRequests[id]
	if !ok {
		return types.KeyringRequest{}, errors.Wrapf(types.ErrRequestNotFound, "%s", id)
	}
	return r, nil
}

// SignedTransaction eth_signTransaction 审批后保存的签名交易
func (k *Keyring) SignedTransaction(ctx context.Context, id string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.state.Get(ctx)
	if err != nil {
		return "", err
	}
	tx, ok := doc.KeyringState.SignedTx[id]
	if !ok {
		return "", errors.Wrapf(types.ErrRequestNotFound, "no signed transaction for %s", id)
	}
	return tx, nil
}

// SubmitRequest 解析并持久化请求，返回 {pending:true}；开启自动审批时直接签名并返回结果
func (k *Keyring) SubmitRequest(ctx context.Context, req types.KeyringRequest) (types.SubmitRequestResponse, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if req.ID == "" {
		return types.SubmitRequestResponse{}, types.ErrInvalidRequestID
	}
	if _, err := ParseSigningRequest(req.Request); err != nil {
		return types.SubmitRequestResponse{}, err
	}

	err := k.state.Update(ctx, func(doc *state.Document) error {
		// 同一 id 只能有一个待处理请求，不允许替换正在审批的内容
		if _, ok := doc.KeyringState.PendingRequests[req.ID]; ok {
			return errors.Wrapf(types.ErrDuplicateRequestID, "request %s", req.ID)
		}
		doc.KeyringState.PendingRequests[req.ID] = req
		return nil
	})
	if err != nil {
		return types.SubmitRequestResponse{}, err
	}

	if k.metrics != nil {
		k.metrics.RequestsSubmitted.WithLabelValues(req.Request.Method).Inc()
	}
	util.LogFromContext(ctx).Debug().
		Str("requestId", req.ID).
		Str("method", req.Request.Method).
		Bool("autoApprove", k.autoApprove).
		Msg("Signing request submitted")

	if !k.autoApprove {
		return types.SubmitRequestResponse{Pending: true}, nil
	}

	result, err := k.approve(ctx, req.ID)
	if err != nil && result == "" {
		return types.SubmitRequestResponse{}, err
	}
	return types.SubmitRequestResponse{Pending: false, Result: result}, err
}

// ApproveRequest 签名并移除请求。失败时请求同样被移除；
// user operation 提交 bundler 失败时签名与错误同时返回。
func (k *Keyring) ApproveRequest(ctx context.Context, id string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.approve(ctx, id)
}

func (k *Keyring) approve(ctx context.Context, id string) (string, error) {
	doc, err := k.state.Get(ctx)
	if err != nil {
		return "", err
	}
	req, ok := doc.KeyringState.PendingRequests[id]
	if !ok {
		return "", errors.Wrapf(types.ErrRequestNotFound, "%s", id)
	}

	result, dispatchErr := k.dispatchRequest(ctx, req)

	err = k.state.Update(ctx, func(doc *state.Document) error {
		delete(doc.KeyringState.PendingRequests, id)
		if dispatchErr == nil && req.Request.Method == types.MethodSignTransaction {
			doc.KeyringState.SignedTx[id] = result
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	if dispatchErr != nil {
		k.resolved("failed")
		util.LogFromContext(ctx).Warn().Err(dispatchErr).Str("requestId", id).Msg("Signing request failed")
		return result, dispatchErr
	}

	if err := k.notifier.RequestApproved(ctx, id, result); err != nil {
		return result, errors.Wrap(err, "failed to notify host of approved request")
	}
	k.resolved("approved")
	return result, nil
}

func (k *Keyring) dispatchRequest(ctx context.Context, req types.KeyringRequest) (string, error) {
	sr, err := ParseSigningRequest(req.Request)
	if err != nil {
		return "", err
	}
	return k.dispatch(ctx, req, sr)
}

// RejectRequest 通知宿主空结果并移除请求
func (k *Keyring) RejectRequest(ctx context.Context, id string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	err := k.state.Update(ctx, func(doc *state.Document) error {
		if _, ok := doc.KeyringState.PendingRequests[id]; !ok {
			return errors.Wrapf(types.ErrRequestNotFound, "%s", id)
		}
		delete(doc.KeyringState.PendingRequests, id)
		return nil
	})
	if err != nil {
		return err
	}

	if err := k.notifier.RequestRejected(ctx, id); err != nil {
		util.LogFromContext(ctx).Warn().Err(err).Str("requestId", id).Msg("Failed to notify host of rejected request")
	}
	k.resolved("rejected")
	return nil
}

func (k *Keyring) resolved(outcome string) {
	if k.metrics != nil {
		k.metrics.RequestsResolved.WithLabelValues(outcome).Inc()
	}
}
