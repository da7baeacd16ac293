package smartaccount

import (
	"bytes"
	"context"
	"math/big"
	"testing"

	"github.com/SafeMPC/aa-keyring/internal/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	testEntryPoint = common.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")
	testFactory    = common.HexToAddress("0x9406Cc6185a346906296840746125a0E44976454")
	testOwner      = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testSender     = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testChainID    = big.NewInt(1337)
)

// MockChainReader for testing
type MockChainReader struct {
	mock.Mock
}

func (m *MockChainReader) ChainID(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *MockChainReader) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	args := m.Called(ctx, account, blockNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockChainReader) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	args := m.Called(ctx, account, blockNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *MockChainReader) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	args := m.Called(ctx, call, blockNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockChainReader) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	args := m.Called(ctx, call)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockChainReader) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *MockChainReader) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *MockChainReader) HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gethtypes.Header), args.Error(1)
}

// revertError 模拟节点返回的 execution reverted 错误
type revertError struct {
	data string
}

func (e *revertError) Error() string          { return "execution reverted" }
func (e *revertError) ErrorData() interface{} { return e.data }

func senderAddressRevert(addr common.Address) *revertError {
	id := entryPointABI.Errors["SenderAddressResult"].ID
	data := append(append([]byte{}, id[:4]...), common.LeftPadBytes(addr.Bytes(), 32)...)
	return &revertError{data: hexutil.Encode(data)}
}

func callsMethod(method string) interface{} {
	id := entryPointABI.Methods[method].ID
	return mock.MatchedBy(func(call ethereum.CallMsg) bool {
		return len(call.Data) >= 4 && bytes.Equal(call.Data[:4], id[:4])
	})
}

func newTestAPI(reader ChainReader) *API {
	cache, _ := lru.New[common.Address, common.Address](16)
	return NewAPI(reader, testChainID, testEntryPoint, testFactory, cache)
}

func TestGetSmartAccountAddressRevertIsSuccess(t *testing.T) {
	reader := new(MockChainReader)
	reader.On("CallContract", mock.Anything, callsMethod("getSenderAddress"), (*big.Int)(nil)).
		Return(nil, senderAddressRevert(testSender)).Once()

	api := newTestAPI(reader)
	addr, err := api.GetSmartAccountAddress(context.Background(), testOwner)
	require.NoError(t, err)
	assert.Equal(t, testSender, addr)

	// 第二次命中缓存
	addr, err = api.GetSmartAccountAddress(context.Background(), testOwner)
	require.NoError(t, err)
	assert.Equal(t, testSender, addr)
	reader.AssertExpectations(t)
}

func TestGetSmartAccountAddressNoRevert(t *testing.T) {
	reader := new(MockChainReader)
	reader.On("CallContract", mock.Anything, callsMethod("getSenderAddress"), (*big.Int)(nil)).
		Return([]byte{}, nil)

	_, err := newTestAPI(reader).GetSmartAccountAddress(context.Background(), testOwner)
	assert.ErrorIs(t, err, ErrSenderAddressNotReverted)
}

func TestGetSmartAccountAddressUndecodableRevert(t *testing.T) {
	reader := new(MockChainReader)
	reader.On("CallContract", mock.Anything, callsMethod("getSenderAddress"), (*big.Int)(nil)).
		Return(nil, &revertError{data: "0xdeadbeef"})

	_, err := newTestAPI(reader).GetSmartAccountAddress(context.Background(), testOwner)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SenderAddressResult")
}

func TestGetSmartAccountAddressTransportError(t *testing.T) {
	reader := new(MockChainReader)
	reader.On("CallContract", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))

	_, err := newTestAPI(reader).GetSmartAccountAddress(context.Background(), testOwner)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestGetAccountInitCode(t *testing.T) {
	reader := new(MockChainReader)
	reader.On("CallContract", mock.Anything, callsMethod("getSenderAddress"), (*big.Int)(nil)).
		Return(nil, senderAddressRevert(testSender))
	reader.On("CodeAt", mock.Anything, testSender, (*big.Int)(nil)).Return([]byte{}, nil)

	api := newTestAPI(reader)
	first, err := api.GetAccountInitCode(context.Background(), testOwner)
	require.NoError(t, err)
	second, err := api.GetAccountInitCode(context.Background(), testOwner)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, testFactory.Bytes(), []byte(first[:20]))

	expected, err := factoryABI.Pack("createAccount", testOwner, big.NewInt(0))
	require.NoError(t, err)
	assert.Equal(t, expected, []byte(first[20:]))
}

func TestGetAccountInitCodeDeployed(t *testing.T) {
	reader := new(MockChainReader)
	reader.On("CallContract", mock.Anything, callsMethod("getSenderAddress"), (*big.Int)(nil)).
		Return(nil, senderAddressRevert(testSender))
	reader.On("CodeAt", mock.Anything, testSender, (*big.Int)(nil)).Return([]byte{0x60, 0x80}, nil)

	initCode, err := newTestAPI(reader).GetAccountInitCode(context.Background(), testOwner)
	require.NoError(t, err)
	assert.Equal(t, "0x", initCode.String())
}

func TestGetNonce(t *testing.T) {
	reader := new(MockChainReader)
	reader.On("CodeAt", mock.Anything, testSender, (*big.Int)(nil)).Return([]byte{}, nil).Once()

	api := newTestAPI(reader)
	nonce, err := api.GetNonce(context.Background(), testSender)
	require.NoError(t, err)
	assert.Equal(t, int64(0), nonce.Int64())

	reader.On("CodeAt", mock.Anything, testSender, (*big.Int)(nil)).Return([]byte{0x60}, nil)
	reader.On("CallContract", mock.Anything, callsMethod("getNonce"), (*big.Int)(nil)).
		Return(common.LeftPadBytes([]byte{7}, 32), nil)

	nonce, err = api.GetNonce(context.Background(), testSender)
	require.NoError(t, err)
	assert.Equal(t, int64(7), nonce.Int64())
}

func TestGetDeposit(t *testing.T) {
	reader := new(MockChainReader)
	reader.On("CallContract", mock.Anything, callsMethod("balanceOf"), (*big.Int)(nil)).
		Return(common.LeftPadBytes(big.NewInt(1e15).Bytes(), 32), nil)

	deposit, err := newTestAPI(reader).GetDeposit(context.Background(), testSender)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1e15), deposit)
}

func TestGetUserOpCallData(t *testing.T) {
	api := newTestAPI(new(MockChainReader))
	to := common.HexToAddress("0x3333333333333333333333333333333333333333")

	callData, err := api.GetUserOpCallData(to, big.NewInt(5), []byte{0xab})
	require.NoError(t, err)

	method := accountABI.Methods["execute"]
	assert.Equal(t, method.ID, []byte(callData[:4]))

	values, err := method.Inputs.Unpack(callData[4:])
	require.NoError(t, err)
	assert.Equal(t, to, values[0])
	assert.Equal(t, big.NewInt(5), values[1])
	assert.Equal(t, []byte{0xab}, values[2])
}

func TestEstimateCreationGas(t *testing.T) {
	reader := new(MockChainReader)
	api := newTestAPI(reader)

	gas, err := api.EstimateCreationGas(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), gas.Int64())

	initCode, err := api.factoryInitCode(testOwner)
	require.NoError(t, err)

	reader.On("EstimateGas", mock.Anything, mock.MatchedBy(func(call ethereum.CallMsg) bool {
		return call.To != nil && *call.To == testFactory && bytes.Equal(call.Data, initCode[20:])
	})).Return(uint64(123457), nil)

	gas, err = api.EstimateCreationGas(context.Background(), initCode)
	require.NoError(t, err)
	assert.Equal(t, int64(123457+12345), gas.Int64())
}

func TestEstimateCallGas(t *testing.T) {
	reader := new(MockChainReader)
	reader.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(21001), nil)

	gas, err := newTestAPI(reader).EstimateCallGas(context.Background(), testSender, testOwner, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(21001+10500), gas.Int64())
}

func TestCheckPrefund(t *testing.T) {
	reader := new(MockChainReader)
	reader.On("CallContract", mock.Anything, callsMethod("balanceOf"), (*big.Int)(nil)).
		Return(common.LeftPadBytes(big.NewInt(100).Bytes(), 32), nil)
	reader.On("BalanceAt", mock.Anything, testSender, (*big.Int)(nil)).Return(big.NewInt(50), nil)

	op := &types.UserOperation{
		Sender:               testSender,
		CallGasLimit:         types.HexUint64(10),
		VerificationGasLimit: types.HexUint64(5),
		PreVerificationGas:   types.HexUint64(0),
		MaxFeePerGas:         types.HexUint64(10),
	}
	api := newTestAPI(reader)
	assert.NoError(t, api.CheckPrefund(context.Background(), op))

	op.MaxFeePerGas = types.HexUint64(11)
	assert.ErrorIs(t, api.CheckPrefund(context.Background(), op), types.ErrInsufficientDeposit)

	op.PaymasterAndData = hexutil.Bytes{0x01}
	assert.NoError(t, api.CheckPrefund(context.Background(), op))
}

func TestBuildDepositTransaction(t *testing.T) {
	reader := new(MockChainReader)
	reader.On("CallContract", mock.Anything, callsMethod("getSenderAddress"), (*big.Int)(nil)).
		Return(nil, senderAddressRevert(testSender))
	reader.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(40000), nil)
	reader.On("SuggestGasPrice", mock.Anything).Return(big.NewInt(2), nil)
	reader.On("BalanceAt", mock.Anything, testOwner, (*big.Int)(nil)).Return(big.NewInt(1000000), nil).Once()

	api := newTestAPI(reader)
	tx, err := api.BuildDepositTransaction(context.Background(), testOwner, big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, testEntryPoint, tx.To)
	assert.Equal(t, "0x539", tx.ChainID)
	assert.Equal(t, int64(60000), tx.Gas.ToInt().Int64())

	values, err := entryPointABI.Methods["depositTo"].Inputs.Unpack(tx.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, testSender, values[0])

	reader.On("BalanceAt", mock.Anything, testOwner, (*big.Int)(nil)).Return(big.NewInt(1000), nil)
	_, err = api.BuildDepositTransaction(context.Background(), testOwner, big.NewInt(1000))
	assert.ErrorIs(t, err, types.ErrInsufficientFunds)

	_, err = api.BuildDepositTransaction(context.Background(), testOwner, big.NewInt(0))
	assert.ErrorIs(t, err, types.ErrInvalidParams)
}

func TestBuildUserOperation(t *testing.T) {
	reader := new(MockChainReader)
	to := common.HexToAddress("0x3333333333333333333333333333333333333333")
	reader.On("CallContract", mock.Anything, callsMethod("getSenderAddress"), (*big.Int)(nil)).
		Return(nil, senderAddressRevert(testSender))
	reader.On("CodeAt", mock.Anything, testSender, (*big.Int)(nil)).Return([]byte{}, nil)
	reader.On("EstimateGas", mock.Anything, mock.MatchedBy(func(call ethereum.CallMsg) bool {
		return call.To != nil && *call.To == to
	})).Return(uint64(30000), nil)
	reader.On("EstimateGas", mock.Anything, mock.MatchedBy(func(call ethereum.CallMsg) bool {
		return call.To != nil && *call.To == testFactory
	})).Return(uint64(200000), nil)
	reader.On("HeaderByNumber", mock.Anything, (*big.Int)(nil)).
		Return(&gethtypes.Header{BaseFee: big.NewInt(100)}, nil)
	reader.On("SuggestGasTipCap", mock.Anything).Return(big.NewInt(3), nil)

	op, err := newTestAPI(reader).BuildUserOperation(context.Background(), testOwner, to, big.NewInt(1), nil)
	require.NoError(t, err)

	assert.Equal(t, testSender, op.Sender)
	assert.Equal(t, int64(0), op.Nonce.ToInt().Int64())
	assert.NotEmpty(t, op.InitCode)
	assert.Equal(t, int64(45000), op.CallGasLimit.ToInt().Int64())
	assert.Equal(t, int64(100000+220000), op.VerificationGasLimit.ToInt().Int64())
	assert.Equal(t, int64(203), op.MaxFeePerGas.ToInt().Int64())
	assert.Equal(t, int64(3), op.MaxPriorityFeePerGas.ToInt().Int64())
	assert.Greater(t, op.PreVerificationGas.ToInt().Int64(), int64(21000))
	assert.False(t, op.IsSigned())
}

func TestSuggestFeesLegacyChain(t *testing.T) {
	reader := new(MockChainReader)
	reader.On("HeaderByNumber", mock.Anything, (*big.Int)(nil)).Return(&gethtypes.Header{}, nil)
	reader.On("SuggestGasPrice", mock.Anything).Return(big.NewInt(9), nil)

	maxFee, tip, err := newTestAPI(reader).SuggestFees(context.Background())
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(9), maxFee)
	assert.Equal(t, big.NewInt(9), tip)
}
