package state_test

import (
	"context"
	"os"
	"testing"

	"github.com/SafeMPC/aa-keyring/internal/state"
	"github.com/SafeMPC/aa-keyring/internal/types"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocumentDefaults(t *testing.T) {
	doc := state.NewDocument()

	assert.Empty(t, doc.KeyringState.Wallets)
	assert.Empty(t, doc.KeyringState.PendingRequests)
	assert.Empty(t, doc.UserOpHashesPending)
	require.Len(t, doc.BundlerURLs, len(state.KnownChainIDs))
	for _, chainID := range state.KnownChainIDs {
		if chainID == state.LocalChainID {
			assert.Equal(t, state.DefaultLocalBundlerURL, doc.BundlerURLs[chainID])
			continue
		}
		assert.Equal(t, "", doc.BundlerURLs[chainID], chainID)
	}
}

func TestManagerInitializesDocument(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	m := state.NewManager(store)

	raw, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, raw)

	doc, err := m.Get(ctx)
	require.NoError(t, err)
	assert.NotNil(t, doc.KeyringState.Wallets)

	raw, err = store.Load(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
}

func TestManagerUpdate(t *testing.T) {
	ctx := context.Background()
	m := state.NewManager(state.NewMemoryStore())

	require.NoError(t, m.Update(ctx, func(doc *state.Document) error {
		doc.KeyringState.Wallets["a"] = types.Wallet{Account: types.KeyringAccount{ID: "a", Name: "first"}}
		doc.UserOpHashesPending["0xhash"] = "a"
		return nil
	}))

	doc, err := m.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", doc.KeyringState.Wallets["a"].Account.Name)
	assert.Equal(t, "a", doc.UserOpHashesPending["0xhash"])

	// fn 失败时不写回
	boom := errors.New("boom")
	err = m.Update(ctx, func(doc *state.Document) error {
		delete(doc.KeyringState.Wallets, "a")
		return boom
	})
	require.ErrorIs(t, err, boom)

	doc, err = m.Get(ctx)
	require.NoError(t, err)
	assert.Contains(t, doc.KeyringState.Wallets, "a")
}

func TestManagerClear(t *testing.T) {
	ctx := context.Background()
	m := state.NewManager(state.NewMemoryStore())

	require.NoError(t, m.Update(ctx, func(doc *state.Document) error {
		doc.BundlerURLs["0x1"] = "http://bundler"
		return nil
	}))
	require.NoError(t, m.Clear(ctx))

	doc, err := m.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", doc.BundlerURLs["0x1"])
}

func TestManagerNormalizesPartialDocument(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	require.NoError(t, store.Save(ctx, []byte(`{"keyringState":{}}`)))

	doc, err := state.NewManager(store).Get(ctx)
	require.NoError(t, err)
	assert.NotNil(t, doc.KeyringState.Wallets)
	assert.NotNil(t, doc.KeyringState.PendingRequests)
	assert.NotNil(t, doc.KeyringState.SignedTx)
	assert.NotNil(t, doc.SmartAccountActivity)
	assert.Equal(t, state.DefaultLocalBundlerURL, doc.BundlerURLs[state.LocalChainID])
}

func TestManagerCorruptDocument(t *testing.T) {
	ctx := context.Background()
	store := state.NewMemoryStore()
	require.NoError(t, store.Save(ctx, []byte(`{not json`)))

	_, err := state.NewManager(store).Get(ctx)
	require.Error(t, err)
}

// storeContract 各后端共享的 get/set/clear 契约
func storeContract(t *testing.T, store state.Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.Clear(ctx))
	raw, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, raw)

	require.NoError(t, store.Save(ctx, []byte(`{"bundlerUrls":{"0x1":"a"}}`)))
	raw, err = store.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"bundlerUrls":{"0x1":"a"}}`, string(raw))

	require.NoError(t, store.Save(ctx, []byte(`{"bundlerUrls":{"0x1":"b"}}`)))
	raw, err = store.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"bundlerUrls":{"0x1":"b"}}`, string(raw))

	require.NoError(t, store.Clear(ctx))
	raw, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestMemoryStore(t *testing.T) {
	store := state.NewMemoryStore()
	defer store.Close()
	storeContract(t, store)
}

func TestBadgerStoreInMemory(t *testing.T) {
	store, err := state.NewBadgerStore("", "test-state")
	require.NoError(t, err)
	defer store.Close()
	storeContract(t, store)
}

func TestBadgerStorePersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := state.NewBadgerStore(dir, "test-state")
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, []byte(`{"a":1}`)))
	require.NoError(t, store.Close())

	store, err = state.NewBadgerStore(dir, "test-state")
	require.NoError(t, err)
	defer store.Close()
	raw, err := store.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("AAK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("AAK_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	store := state.NewRedisStore(client, "aa-keyring-test-state")
	defer store.Close()
	storeContract(t, store)
}

func TestPostgreSQLStore(t *testing.T) {
	dsn := os.Getenv("AAK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("AAK_TEST_POSTGRES_DSN not set")
	}
	store, err := state.NewPostgreSQLStore(context.Background(), dsn, "aa-keyring-test-state")
	require.NoError(t, err)
	defer store.Close()
	storeContract(t, store)
}
