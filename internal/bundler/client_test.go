package bundler_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/SafeMPC/aa-keyring/internal/bundler"
	"github.com/SafeMPC/aa-keyring/internal/bundler/bundlertest"
	"github.com/SafeMPC/aa-keyring/internal/state"
	"github.com/SafeMPC/aa-keyring/internal/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientNotConfigured(t *testing.T) {
	_, err := bundler.NewClient(context.Background(), "0x1", state.DefaultBundlerURLs(), common.Address{}, time.Second)
	assert.ErrorIs(t, err, types.ErrBundlerNotConfigured)

	_, err = bundler.NewClient(context.Background(), "0x999", state.DefaultBundlerURLs(), common.Address{}, time.Second)
	assert.ErrorIs(t, err, types.ErrBundlerNotConfigured)
}

func TestClientSend(t *testing.T) {
	srv := bundlertest.NewServer()
	defer srv.Close()
	srv.Reply("eth_supportedEntryPoints", []string{bundler.DefaultEntryPoint.Hex()})
	srv.Fail("eth_sendUserOperation", -32602, "AA21 didn't pay prefund")

	client, err := bundler.NewClient(context.Background(), "1337", map[string]string{"0x539": srv.URL}, common.Address{}, time.Second)
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, "0x539", client.ChainID())
	assert.Equal(t, common.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789"), client.EntryPoint())

	res := client.SupportedEntryPoints(context.Background())
	require.True(t, res.Success)
	var eps []common.Address
	require.NoError(t, res.Decode(&eps))
	assert.Equal(t, []common.Address{bundler.DefaultEntryPoint}, eps)

	res = client.SendUserOperation(context.Background(), &types.UserOperation{})
	assert.False(t, res.Success)
	assert.Equal(t, "AA21 didn't pay prefund", res.Data)
	assert.Equal(t, -32602, res.Code)
	assert.Equal(t, "AA21 didn't pay prefund", res.Error())
	assert.ErrorIs(t, res.Decode(new(string)), types.ErrBundlerSubmissionFailed)

	calls := srv.Calls("eth_sendUserOperation")
	require.Len(t, calls, 1)
	require.Len(t, calls[0].Params, 2)
	var ep common.Address
	require.NoError(t, json.Unmarshal(calls[0].Params[1], &ep))
	assert.Equal(t, bundler.DefaultEntryPoint, ep)
}

func TestClientCustomEntryPoint(t *testing.T) {
	customEntryPoint := common.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032")

	srv := bundlertest.NewServer()
	defer srv.Close()
	srv.Reply("eth_sendUserOperation", "0x01")

	ctx := context.Background()
	p := bundler.NewProvider(state.NewManager(state.NewMemoryStore()), customEntryPoint, time.Second)
	require.NoError(t, p.StoreURL(ctx, "0x539", srv.URL))

	client, err := p.ClientFor(ctx, "0x539")
	require.NoError(t, err)
	defer client.Close()
	assert.Equal(t, customEntryPoint, client.EntryPoint())

	require.True(t, client.SendUserOperation(ctx, &types.UserOperation{}).Success)
	calls := srv.Calls("eth_sendUserOperation")
	require.Len(t, calls, 1)
	var ep common.Address
	require.NoError(t, json.Unmarshal(calls[0].Params[1], &ep))
	assert.Equal(t, customEntryPoint, ep)
}

func TestParseEntryPoint(t *testing.T) {
	ep, err := bundler.ParseEntryPoint("")
	require.NoError(t, err)
	assert.Equal(t, bundler.DefaultEntryPoint, ep)

	ep, err = bundler.ParseEntryPoint("0x0000000071727De22E5E9d8BAf0edAc6f37da032")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032"), ep)

	_, err = bundler.ParseEntryPoint("entrypoint")
	assert.Error(t, err)
}

func TestClientReceiptNull(t *testing.T) {
	srv := bundlertest.NewServer()
	defer srv.Close()
	srv.Reply("eth_getUserOperationReceipt", nil)

	client, err := bundler.NewClient(context.Background(), "0x539", map[string]string{"0x539": srv.URL}, common.Address{}, time.Second)
	require.NoError(t, err)

	res := client.GetUserOperationReceipt(context.Background(), "0xabc")
	assert.True(t, res.Success)
	assert.Nil(t, res.Data)
}

func TestClientTransportErrorIsSoft(t *testing.T) {
	srv := bundlertest.NewServer()
	url := srv.URL
	srv.Close()

	client, err := bundler.NewClient(context.Background(), "0x539", map[string]string{"0x539": url}, common.Address{}, time.Second)
	require.NoError(t, err)

	res := client.Send(context.Background(), "eth_chainId")
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error())
}

func TestProviderURLs(t *testing.T) {
	ctx := context.Background()
	p := bundler.NewProvider(state.NewManager(state.NewMemoryStore()), bundler.DefaultEntryPoint, time.Second)

	urls, err := p.GetURLs(ctx)
	require.NoError(t, err)
	assert.Equal(t, state.DefaultBundlerURLs(), urls)
	assert.Equal(t, "http://localhost:4337/rpc", urls["0x539"])
	assert.Equal(t, "", urls["0x1"])

	require.NoError(t, p.StoreURL(ctx, "0x1", "https://bundler.example/rpc"))
	urls, err = p.GetURLs(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://bundler.example/rpc", urls["0x1"])
	assert.Equal(t, "http://localhost:4337/rpc", urls["0x539"])
	assert.Equal(t, "", urls["0x5"])

	assert.ErrorIs(t, p.StoreURL(ctx, "nope", "x"), types.ErrInvalidParams)

	_, err = p.ClientFor(ctx, "0x5")
	assert.ErrorIs(t, err, types.ErrBundlerNotConfigured)
}

func TestProviderSeedURLs(t *testing.T) {
	ctx := context.Background()
	p := bundler.NewProvider(state.NewManager(state.NewMemoryStore()), bundler.DefaultEntryPoint, time.Second)

	require.NoError(t, p.StoreURL(ctx, "0x1", "https://mine"))
	require.NoError(t, p.SeedURLs(ctx, map[string]string{"1": "https://seed", "5": "https://goerli"}))

	urls, err := p.GetURLs(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://mine", urls["0x1"])
	assert.Equal(t, "https://goerli", urls["0x5"])
}
