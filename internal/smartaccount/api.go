package smartaccount

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/SafeMPC/aa-keyring/internal/types"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrSenderAddressNotReverted getSenderAddress 没有 revert（正常返回反而是错误）
var ErrSenderAddressNotReverted = errors.New("getSenderAddress did not revert with SenderAddressResult")

// API 单条链上的 SimpleAccount 协议逻辑
type API struct {
	reader     ChainReader
	chainID    *big.Int
	entryPoint common.Address
	factory    common.Address
	cache      *lru.Cache[common.Address, common.Address]
}

// NewAPI 创建智能账户 API；cache 可为 nil
func NewAPI(reader ChainReader, chainID *big.Int, entryPoint, factory common.Address, cache *lru.Cache[common.Address, common.Address]) *API {
	return &API{
		reader:     reader,
		chainID:    chainID,
		entryPoint: entryPoint,
		factory:    factory,
		cache:      cache,
	}
}

// ChainID 目标链 ID
func (a *API) ChainID() *big.Int {
	return new(big.Int).Set(a.chainID)
}

// EntryPoint 使用的 EntryPoint 地址
func (a *API) EntryPoint() common.Address {
	return a.entryPoint
}

// Factory 使用的 SimpleAccountFactory 地址
func (a *API) Factory() common.Address {
	return a.factory
}

// factoryInitCode factory ‖ createAccount(owner, 0)
func (a *API) factoryInitCode(owner common.Address) ([]byte, error) {
	callData, err := factoryABI.Pack("createAccount", owner, big.NewInt(0))
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack createAccount")
	}
	return append(a.factory.Bytes(), callData...), nil
}

// GetSmartAccountAddress 计算 owner 对应的确定性智能账户地址。
//
// NOTE: EntryPoint.getSenderAddress 总是 revert，地址通过
// SenderAddressResult(address) 的 revert data 返回。这里 revert 是成功路径，
// 调用正常返回或 revert data 无法解码才是错误，不要当成 bug 去“修复”。
func (a *API) GetSmartAccountAddress(ctx context.Context, owner common.Address) (common.Address, error) {
	if a.cache != nil {
		if addr, ok := a.cache.Get(owner); ok {
			return addr, nil
		}
	}

	initCode, err := a.factoryInitCode(owner)
	if err != nil {
		return common.Address{}, err
	}
	callData, err := entryPointABI.Pack("getSenderAddress", initCode)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to pack getSenderAddress")
	}

	_, callErr := a.reader.CallContract(ctx, ethereum.CallMsg{To: &a.entryPoint, Data: callData}, nil)
	if callErr == nil {
		return common.Address{}, ErrSenderAddressNotReverted
	}

	revertData, err := revertDataFromError(callErr)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "getSenderAddress call failed")
	}

	addr, err := decodeSenderAddressResult(revertData)
	if err != nil {
		return common.Address{}, err
	}

	if a.cache != nil {
		a.cache.Add(owner, addr)
	}
	return addr, nil
}

// revertDataFromError 从 JSON-RPC 错误中取出 revert data
func revertDataFromError(err error) ([]byte, error) {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return nil, err
	}
	switch data := dataErr.ErrorData().(type) {
	case string:
		decoded, decodeErr := hexutil.Decode(data)
		if decodeErr != nil {
			return nil, errors.Wrapf(decodeErr, "invalid revert data %q", data)
		}
		return decoded, nil
	case []byte:
		return data, nil
	default:
		return nil, errors.Errorf("unexpected revert data type %T: %v", data, err)
	}
}

func decodeSenderAddressResult(data []byte) (common.Address, error) {
	senderErr := entryPointABI.Errors["SenderAddressResult"]
	if len(data) < 4 || !bytes.Equal(data[:4], senderErr.ID[:4]) {
		return common.Address{}, errors.Errorf("revert data is not SenderAddressResult: %s", hexutil.Encode(data))
	}
	values, err := senderErr.Inputs.Unpack(data[4:])
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to decode SenderAddressResult")
	}
	if len(values) != 1 {
		return common.Address{}, errors.New("SenderAddressResult has unexpected arity")
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, errors.Errorf("SenderAddressResult has unexpected type %T", values[0])
	}
	return addr, nil
}

// IsDeployed 地址上是否已有合约代码
func (a *API) IsDeployed(ctx context.Context, addr common.Address) (bool, error) {
	code, err := a.reader.CodeAt(ctx, addr, nil)
	if err != nil {
		return false, errors.Wrap(err, "failed to get code")
	}
	return len(code) > 0, nil
}

// GetAccountInitCode 已部署返回空（0x），否则返回 factory ‖ createAccount(owner, 0)
func (a *API) GetAccountInitCode(ctx context.Context, owner common.Address) (hexutil.Bytes, error) {
	sender, err := a.GetSmartAccountAddress(ctx, owner)
	if err != nil {
		return nil, err
	}
	deployed, err := a.IsDeployed(ctx, sender)
	if err != nil {
		return nil, err
	}
	if deployed {
		return hexutil.Bytes{}, nil
	}
	return a.factoryInitCode(owner)
}

// GetNonce 未部署的账户返回 0，否则读取 EntryPoint.getNonce(sender, 0)
func (a *API) GetNonce(ctx context.Context, sender common.Address) (*big.Int, error) {
	deployed, err := a.IsDeployed(ctx, sender)
	if err != nil {
		return nil, err
	}
	if !deployed {
		return new(big.Int), nil
	}
	return a.callUint256(ctx, "getNonce", sender, big.NewInt(0))
}

// GetDeposit EntryPoint 中账户的押金
func (a *API) GetDeposit(ctx context.Context, account common.Address) (*big.Int, error) {
	return a.callUint256(ctx, "balanceOf", account)
}

func (a *API) callUint256(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	callData, err := entryPointABI.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to pack %s", method)
	}
	out, err := a.reader.CallContract(ctx, ethereum.CallMsg{To: &a.entryPoint, Data: callData}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to call %s", method)
	}
	values, err := entryPointABI.Unpack(method, out)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to unpack %s", method)
	}
	if len(values) != 1 {
		return nil, errors.Errorf("%s returned %d values", method, len(values))
	}
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, errors.Errorf("%s returned %T", method, values[0])
	}
	return v, nil
}

// GetUserOpCallData 编码 execute(to, value, data)，不涉及签名
func (a *API) GetUserOpCallData(to common.Address, value *big.Int, data []byte) (hexutil.Bytes, error) {
	if value == nil {
		value = new(big.Int)
	}
	if data == nil {
		data = []byte{}
	}
	callData, err := accountABI.Pack("execute", to, value, data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack execute")
	}
	return callData, nil
}

// EstimateCreationGas initCode 为空返回 0，否则估算 factory 调用并加 10% 余量
func (a *API) EstimateCreationGas(ctx context.Context, initCode []byte) (*big.Int, error) {
	if len(initCode) == 0 {
		return new(big.Int), nil
	}
	if len(initCode) < common.AddressLength {
		return nil, errors.Wrapf(types.ErrInvalidParams, "init code too short: %d bytes", len(initCode))
	}
	factory := common.BytesToAddress(initCode[:common.AddressLength])
	gas, err := a.reader.EstimateGas(ctx, ethereum.CallMsg{
		To:   &factory,
		Data: initCode[common.AddressLength:],
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to estimate creation gas")
	}
	return AddGasBuffer(new(big.Int).SetUint64(gas), CreationGasBufferPercent), nil
}

// EstimateCallGas 估算普通调用并加 50% 余量
func (a *API) EstimateCallGas(ctx context.Context, from, to common.Address, value *big.Int, data []byte) (*big.Int, error) {
	gas, err := a.reader.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to estimate call gas")
	}
	return AddGasBuffer(new(big.Int).SetUint64(gas), CallGasBufferPercent), nil
}

// SuggestFees 返回 (maxFeePerGas, maxPriorityFeePerGas)；不支持 EIP-1559 的链回退到 gasPrice
func (a *API) SuggestFees(ctx context.Context) (*big.Int, *big.Int, error) {
	head, err := a.reader.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to get latest header")
	}
	if head.BaseFee == nil {
		gasPrice, err := a.reader.SuggestGasPrice(ctx)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to suggest gas price")
		}
		return gasPrice, gasPrice, nil
	}
	tip, err := a.reader.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to suggest gas tip cap")
	}
	maxFee := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
	maxFee.Add(maxFee, tip)
	return maxFee, tip, nil
}

// BuildUserOperation 为 owner 的智能账户组装一个未签名的 UserOperation（signature 为 0x）
func (a *API) BuildUserOperation(ctx context.Context, owner, to common.Address, value *big.Int, data []byte) (*types.UserOperation, error) {
	if value == nil {
		value = new(big.Int)
	}
	sender, err := a.GetSmartAccountAddress(ctx, owner)
	if err != nil {
		return nil, err
	}
	initCode, err := a.GetAccountInitCode(ctx, owner)
	if err != nil {
		return nil, err
	}
	nonce, err := a.GetNonce(ctx, sender)
	if err != nil {
		return nil, err
	}
	callData, err := a.GetUserOpCallData(to, value, data)
	if err != nil {
		return nil, err
	}
	callGas, err := a.EstimateCallGas(ctx, sender, to, value, data)
	if err != nil {
		return nil, err
	}
	creationGas, err := a.EstimateCreationGas(ctx, initCode)
	if err != nil {
		return nil, err
	}
	maxFee, tip, err := a.SuggestFees(ctx)
	if err != nil {
		return nil, err
	}

	op := &types.UserOperation{
		Sender:               sender,
		Nonce:                types.NewHexBig(nonce),
		InitCode:             initCode,
		CallData:             callData,
		CallGasLimit:         types.NewHexBig(callGas),
		VerificationGasLimit: types.NewHexBig(new(big.Int).Add(big.NewInt(baseVerificationGas), creationGas)),
		MaxFeePerGas:         types.NewHexBig(maxFee),
		MaxPriorityFeePerGas: types.NewHexBig(tip),
		PaymasterAndData:     hexutil.Bytes{},
		Signature:            hexutil.Bytes{},
	}
	preVerificationGas, err := estimatePreVerificationGas(op)
	if err != nil {
		return nil, err
	}
	op.PreVerificationGas = types.HexUint64(preVerificationGas)

	log.Debug().
		Str("owner", owner.Hex()).
		Str("sender", sender.Hex()).
		Bool("deploy", len(initCode) > 0).
		Str("nonce", nonce.String()).
		Msg("Built user operation")
	return op, nil
}

// estimatePreVerificationGas 21000 + 打包后 calldata 成本（使用 65 字节占位签名）
func estimatePreVerificationGas(op *types.UserOperation) (uint64, error) {
	dummy := op.Copy()
	dummy.PreVerificationGas = types.HexUint64(0)
	dummy.Signature = bytes.Repeat([]byte{0xff}, 65)
	packed, err := PackUserOperation(dummy)
	if err != nil {
		return 0, err
	}
	// 签名本身也随 handleOps 上链
	return txBaseGas + calldataCost(packed) + calldataCost(dummy.Signature), nil
}

// UserOperationHash 当前链与 EntryPoint 下的 userOpHash
func (a *API) UserOperationHash(op *types.UserOperation) (common.Hash, error) {
	return UserOperationHash(op, a.entryPoint, a.chainID)
}

// CheckPrefund 构建交易前检查 EntryPoint 押金与账户余额是否足够支付最大预付费
func (a *API) CheckPrefund(ctx context.Context, op *types.UserOperation) error {
	if len(op.PaymasterAndData) > 0 {
		return nil
	}
	deposit, err := a.GetDeposit(ctx, op.Sender)
	if err != nil {
		return err
	}
	balance, err := a.reader.BalanceAt(ctx, op.Sender, nil)
	if err != nil {
		return errors.Wrap(err, "failed to get smart account balance")
	}
	required := op.RequiredPrefund()
	available := new(big.Int).Add(deposit, balance)
	if available.Cmp(required) < 0 {
		return errors.Wrapf(types.ErrInsufficientDeposit, "required %s wei, available %s wei", required, available)
	}
	return nil
}

// DepositTransaction 给 EntryPoint 充值押金的未签名交易
type DepositTransaction struct {
	From     common.Address `json:"from"`
	To       common.Address `json:"to"`
	Value    *types.HexBig  `json:"value"`
	Data     hexutil.Bytes  `json:"data"`
	Gas      *types.HexBig  `json:"gas"`
	GasPrice *types.HexBig  `json:"gasPrice"`
	ChainID  string         `json:"chainId"`
}

// BuildDepositTransaction 组装 depositTo(smartAccount)，owner EOA 余额不足以支付 value+gas 时返回 ErrInsufficientFunds
func (a *API) BuildDepositTransaction(ctx context.Context, owner common.Address, amount *big.Int) (*DepositTransaction, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, errors.Wrap(types.ErrInvalidParams, "deposit amount must be positive")
	}
	sender, err := a.GetSmartAccountAddress(ctx, owner)
	if err != nil {
		return nil, err
	}
	data, err := entryPointABI.Pack("depositTo", sender)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack depositTo")
	}
	gas, err := a.EstimateCallGas(ctx, owner, a.entryPoint, amount, data)
	if err != nil {
		return nil, err
	}
	gasPrice, err := a.reader.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to suggest gas price")
	}
	balance, err := a.reader.BalanceAt(ctx, owner, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get owner balance")
	}

	cost := new(big.Int).Mul(gas, gasPrice)
	cost.Add(cost, amount)
	if balance.Cmp(cost) < 0 {
		return nil, errors.Wrapf(types.ErrInsufficientFunds, "owner %s has %s wei, needs %s wei", owner.Hex(), balance, cost)
	}

	return &DepositTransaction{
		From:     owner,
		To:       a.entryPoint,
		Value:    types.NewHexBig(amount),
		Data:     data,
		Gas:      types.NewHexBig(gas),
		GasPrice: types.NewHexBig(gasPrice),
		ChainID:  hexutil.EncodeBig(a.chainID),
	}, nil
}

// String 便于日志输出
func (a *API) String() string {
	return fmt.Sprintf("smartaccount(chain=%s entryPoint=%s factory=%s)", a.chainID, a.entryPoint.Hex(), a.factory.Hex())
}
