package activity

import (
	"context"
	"time"

	"github.com/SafeMPC/aa-keyring/internal/bundler"
	"github.com/SafeMPC/aa-keyring/internal/metrics"
	"github.com/SafeMPC/aa-keyring/internal/util"
	"github.com/pkg/errors"
)

// BundlerProvider 按链提供 bundler 客户端
type BundlerProvider interface {
	ClientFor(ctx context.Context, chainID string) (*bundler.Client, error)
}

// Outcome 单次对账的结果
type Outcome struct {
	Record    Record      `json:"record"`
	Confirmed bool        `json:"confirmed"`
	Receipt   interface{} `json:"receipt,omitempty"`
}

// Reconciler 定时对账：每次只处理一个 pending 哈希
type Reconciler struct {
	store    *Store
	bundlers BundlerProvider
	metrics  *metrics.Metrics
}

// NewReconciler 创建对账任务；m 可为 nil
func NewReconciler(store *Store, bundlers BundlerProvider, m *metrics.Metrics) *Reconciler {
	return &Reconciler{store: store, bundlers: bundlers, metrics: m}
}

// Tick 取最早提交的 pending 哈希查询 receipt。
// 没有 pending、链未配置 bundler 或查询失败时返回 nil，不向调用方报错；
// 只有成功且非空的 receipt 才会推进状态。
func (r *Reconciler) Tick(ctx context.Context) *Outcome {
	logger := util.LogFromContext(ctx).With().Str("component", "reconciler").Logger()

	pending, err := r.store.ListPending(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list pending user operations")
		r.count("error")
		return nil
	}
	r.gauge(len(pending))
	if len(pending) == 0 {
		r.count("idle")
		return nil
	}

	rec := pending[0]
	client, err := r.bundlers.ClientFor(ctx, rec.ChainID)
	if err != nil {
		logger.Debug().Err(err).Str("chainId", rec.ChainID).Msg("Skipping user operation, bundler unavailable")
		r.count("unconfigured")
		return nil
	}
	defer client.Close()

	res := client.GetUserOperationReceipt(ctx, rec.UserOpHash)
	if !res.Success {
		logger.Warn().Str("userOpHash", rec.UserOpHash).Str("error", res.Error()).Msg("Receipt query failed, keeping pending")
		r.count("error")
		return nil
	}
	if res.Data == nil {
		r.count("pending")
		return &Outcome{Record: rec}
	}

	if err := r.store.RecordConfirmed(ctx, rec); err != nil {
		logger.Error().Err(err).Str("userOpHash", rec.UserOpHash).Msg("Failed to record confirmed user operation")
		r.count("error")
		return nil
	}

	logger.Info().
		Str("accountId", rec.AccountID).
		Str("chainId", rec.ChainID).
		Str("userOpHash", rec.UserOpHash).
		Msg("User operation confirmed")
	r.count("confirmed")
	if r.metrics != nil {
		r.metrics.UserOpsConfirmed.WithLabelValues(rec.ChainID).Inc()
		r.metrics.PendingUserOps.Dec()
	}
	return &Outcome{Record: rec, Confirmed: true, Receipt: res.Data}
}

// Run 每隔 interval 调用一次 Tick，直到 ctx 结束；onTick 可为 nil
func (r *Reconciler) Run(ctx context.Context, interval time.Duration, onTick func(*Outcome)) error {
	if interval <= 0 {
		return errors.Errorf("invalid reconcile interval %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			outcome := r.Tick(ctx)
			if onTick != nil {
				onTick(outcome)
			}
		}
	}
}

func (r *Reconciler) count(outcome string) {
	if r.metrics != nil {
		r.metrics.ReconcileTicks.WithLabelValues(outcome).Inc()
	}
}

func (r *Reconciler) gauge(n int) {
	if r.metrics != nil {
		r.metrics.PendingUserOps.Set(float64(n))
	}
}
