package activity_test

import (
	"context"
	"testing"
	"time"

	"github.com/SafeMPC/aa-keyring/internal/activity"
	"github.com/SafeMPC/aa-keyring/internal/bundler"
	"github.com/SafeMPC/aa-keyring/internal/bundler/bundlertest"
	"github.com/SafeMPC/aa-keyring/internal/metrics"
	"github.com/SafeMPC/aa-keyring/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	accountA = "5b1d6c4e-0d5a-4c1e-9a7e-6f1c2d3e4f50"
	accountB = "9f8e7d6c-5b4a-4321-8fed-cba987654321"
	hash1    = "0x1111111111111111111111111111111111111111111111111111111111111111"
	hash2    = "0x2222222222222222222222222222222222222222222222222222222222222222"
)

func TestParseKey(t *testing.T) {
	r := activity.Record{AccountID: accountA, ChainID: "0x539", UserOpHash: hash1}
	parsed, err := activity.ParseKey(r.Key())
	require.NoError(t, err)
	assert.Equal(t, r, parsed)

	for _, bad := range []string{"", "nohyphen", "-0x1-0xab", "acc--0xab", "acc-0x1-"} {
		_, err := activity.ParseKey(bad)
		assert.Error(t, err, bad)
	}
}

func TestPendingToConfirmed(t *testing.T) {
	ctx := context.Background()
	store := activity.NewStore(state.NewManager(state.NewMemoryStore()))

	rec := activity.Record{AccountID: accountA, ChainID: "1337", UserOpHash: hash1}
	require.NoError(t, store.RecordPending(ctx, rec))

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "0x539", pending[0].ChainID)

	require.NoError(t, store.RecordConfirmed(ctx, rec))

	pending, err = store.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	confirmed, err := store.ListConfirmed(ctx, accountA, "0x539")
	require.NoError(t, err)
	assert.Equal(t, []string{hash1}, confirmed)

	// 重复确认不会产生重复记录，已确认的哈希也不会回到 pending
	require.NoError(t, store.RecordConfirmed(ctx, rec))
	require.NoError(t, store.RecordPending(ctx, rec))
	confirmed, err = store.ListConfirmed(ctx, accountA, "0x539")
	require.NoError(t, err)
	assert.Len(t, confirmed, 1)
	pending, err = store.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	store := activity.NewStore(state.NewManager(state.NewMemoryStore()))

	require.NoError(t, store.RecordPending(ctx, activity.Record{AccountID: accountA, ChainID: "0x539", UserOpHash: hash1}))
	require.NoError(t, store.RecordConfirmed(ctx, activity.Record{AccountID: accountA, ChainID: "0x539", UserOpHash: hash2}))
	require.NoError(t, store.RecordPending(ctx, activity.Record{AccountID: accountB, ChainID: "0x539", UserOpHash: hash1}))

	require.NoError(t, store.Clear(ctx, accountA))

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, accountB, pending[0].AccountID)

	confirmed, err := store.ListConfirmed(ctx, accountA, "0x539")
	require.NoError(t, err)
	assert.Empty(t, confirmed)
}

func newReconciler(t *testing.T, urls map[string]string) (*activity.Store, *activity.Reconciler) {
	t.Helper()
	ctx := context.Background()
	manager := state.NewManager(state.NewMemoryStore())
	provider := bundler.NewProvider(manager, bundler.DefaultEntryPoint, time.Second)
	for id, url := range urls {
		require.NoError(t, provider.StoreURL(ctx, id, url))
	}
	store := activity.NewStore(manager)
	return store, activity.NewReconciler(store, provider, metrics.New())
}

func TestReconcilerIdle(t *testing.T) {
	_, r := newReconciler(t, nil)
	assert.Nil(t, r.Tick(context.Background()))
}

func TestReconcilerConfirmsOnePerTick(t *testing.T) {
	srv := bundlertest.NewServer()
	defer srv.Close()
	srv.Reply("eth_getUserOperationReceipt", map[string]interface{}{"success": true})

	ctx := context.Background()
	store, r := newReconciler(t, map[string]string{"0x539": srv.URL})
	require.NoError(t, store.RecordPending(ctx, activity.Record{AccountID: accountA, ChainID: "0x539", UserOpHash: hash1}))
	require.NoError(t, store.RecordPending(ctx, activity.Record{AccountID: accountA, ChainID: "0x539", UserOpHash: hash2}))

	out := r.Tick(ctx)
	require.NotNil(t, out)
	assert.True(t, out.Confirmed)
	assert.Equal(t, hash1, out.Record.UserOpHash)

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, hash2, pending[0].UserOpHash)
	assert.Len(t, srv.Calls("eth_getUserOperationReceipt"), 1)
}

func TestReconcilerOldestFirst(t *testing.T) {
	srv := bundlertest.NewServer()
	defer srv.Close()
	srv.Reply("eth_getUserOperationReceipt", map[string]interface{}{"success": true})

	ctx := context.Background()
	store, r := newReconciler(t, map[string]string{"0x539": srv.URL})
	require.NoError(t, store.RecordPending(ctx, activity.Record{AccountID: accountB, ChainID: "0x539", UserOpHash: hash2}))
	require.NoError(t, store.RecordPending(ctx, activity.Record{AccountID: accountA, ChainID: "0x539", UserOpHash: hash1}))
	// 重复记录不改变先后
	require.NoError(t, store.RecordPending(ctx, activity.Record{AccountID: accountB, ChainID: "0x539", UserOpHash: hash2}))

	out := r.Tick(ctx)
	require.NotNil(t, out)
	assert.Equal(t, accountB, out.Record.AccountID)
	assert.Equal(t, hash2, out.Record.UserOpHash)

	out = r.Tick(ctx)
	require.NotNil(t, out)
	assert.Equal(t, accountA, out.Record.AccountID)
	assert.Equal(t, hash1, out.Record.UserOpHash)
}

func TestListPendingWithoutOrder(t *testing.T) {
	ctx := context.Background()
	manager := state.NewManager(state.NewMemoryStore())
	store := activity.NewStore(manager)

	legacyB := activity.Record{AccountID: accountB, ChainID: "0x539", UserOpHash: hash1}
	legacyA := activity.Record{AccountID: accountA, ChainID: "0x539", UserOpHash: hash2}
	require.NoError(t, manager.Update(ctx, func(doc *state.Document) error {
		doc.UserOpHashesPending[legacyB.Key()] = legacyB.UserOpHash
		doc.UserOpHashesPending[legacyA.Key()] = legacyA.UserOpHash
		return nil
	}))
	fresh := activity.Record{AccountID: accountB, ChainID: "0x539", UserOpHash: hash2}
	require.NoError(t, store.RecordPending(ctx, fresh))

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []activity.Record{fresh, legacyA, legacyB}, pending)
}

func TestReconcilerNullReceiptStaysPending(t *testing.T) {
	srv := bundlertest.NewServer()
	defer srv.Close()
	srv.Reply("eth_getUserOperationReceipt", nil)

	ctx := context.Background()
	store, r := newReconciler(t, map[string]string{"0x539": srv.URL})
	require.NoError(t, store.RecordPending(ctx, activity.Record{AccountID: accountA, ChainID: "0x539", UserOpHash: hash1}))

	out := r.Tick(ctx)
	require.NotNil(t, out)
	assert.False(t, out.Confirmed)

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestReconcilerErrorStaysPending(t *testing.T) {
	srv := bundlertest.NewServer()
	defer srv.Close()
	srv.Fail("eth_getUserOperationReceipt", -32000, "boom")

	ctx := context.Background()
	store, r := newReconciler(t, map[string]string{"0x539": srv.URL})
	require.NoError(t, store.RecordPending(ctx, activity.Record{AccountID: accountA, ChainID: "0x539", UserOpHash: hash1}))

	assert.Nil(t, r.Tick(ctx))
	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestReconcilerUnconfiguredChain(t *testing.T) {
	ctx := context.Background()
	store, r := newReconciler(t, nil)
	require.NoError(t, store.RecordPending(ctx, activity.Record{AccountID: accountA, ChainID: "0x1", UserOpHash: hash1}))

	assert.Nil(t, r.Tick(ctx))
	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestReconcilerRun(t *testing.T) {
	srv := bundlertest.NewServer()
	defer srv.Close()
	srv.Reply("eth_getUserOperationReceipt", map[string]interface{}{"success": true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, r := newReconciler(t, map[string]string{"0x539": srv.URL})
	require.NoError(t, store.RecordPending(ctx, activity.Record{AccountID: accountA, ChainID: "0x539", UserOpHash: hash1}))
	require.NoError(t, store.RecordPending(ctx, activity.Record{AccountID: accountB, ChainID: "0x539", UserOpHash: hash2}))

	confirmed := make(chan activity.Record, 4)
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx, 10*time.Millisecond, func(out *activity.Outcome) {
			if out != nil && out.Confirmed {
				confirmed <- out.Record
			}
		})
	}()

	for i := 0; i < 2; i++ {
		select {
		case <-confirmed:
		case <-time.After(5 * time.Second):
			t.Fatal("reconciler did not confirm pending user operations in time")
		}
	}
	cancel()
	require.NoError(t, <-done)

	pending, err := store.ListPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReconcilerRunInvalidInterval(t *testing.T) {
	_, r := newReconciler(t, nil)
	assert.Error(t, r.Run(context.Background(), 0, nil))
}
