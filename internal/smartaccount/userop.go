package smartaccount

import (
	"math/big"

	"github.com/SafeMPC/aa-keyring/internal/types"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

var (
	addressTy = mustNewType("address")
	uint256Ty = mustNewType("uint256")
	bytes32Ty = mustNewType("bytes32")

	// abi.encode(sender, nonce, keccak(initCode), keccak(callData), callGasLimit,
	// verificationGasLimit, preVerificationGas, maxFeePerGas, maxPriorityFeePerGas, keccak(paymasterAndData))
	userOpPackArgs = abi.Arguments{
		{Type: addressTy}, {Type: uint256Ty}, {Type: bytes32Ty}, {Type: bytes32Ty},
		{Type: uint256Ty}, {Type: uint256Ty}, {Type: uint256Ty}, {Type: uint256Ty}, {Type: uint256Ty},
		{Type: bytes32Ty},
	}
	userOpHashArgs = abi.Arguments{{Type: bytes32Ty}, {Type: addressTy}, {Type: uint256Ty}}
)

func mustNewType(t string) abi.Type {
	ty, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return ty
}

// PackUserOperation 按 EntryPoint v0.6 规则打包（不含签名）
func PackUserOperation(op *types.UserOperation) ([]byte, error) {
	if op == nil {
		return nil, errors.New("user operation is nil")
	}
	packed, err := userOpPackArgs.Pack(
		op.Sender,
		types.BigOrZero(op.Nonce),
		[32]byte(crypto.Keccak256Hash(op.InitCode)),
		[32]byte(crypto.Keccak256Hash(op.CallData)),
		types.BigOrZero(op.CallGasLimit),
		types.BigOrZero(op.VerificationGasLimit),
		types.BigOrZero(op.PreVerificationGas),
		types.BigOrZero(op.MaxFeePerGas),
		types.BigOrZero(op.MaxPriorityFeePerGas),
		[32]byte(crypto.Keccak256Hash(op.PaymasterAndData)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to pack user operation")
	}
	return packed, nil
}

// UserOperationHash keccak256(abi.encode(keccak256(pack(op)), entryPoint, chainId))
func UserOperationHash(op *types.UserOperation, entryPoint common.Address, chainID *big.Int) (common.Hash, error) {
	if chainID == nil {
		return common.Hash{}, errors.New("chain id is required")
	}
	packed, err := PackUserOperation(op)
	if err != nil {
		return common.Hash{}, err
	}
	encoded, err := userOpHashArgs.Pack([32]byte(crypto.Keccak256Hash(packed)), entryPoint, chainID)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "failed to encode user operation hash")
	}
	return crypto.Keccak256Hash(encoded), nil
}

// calldataCost 以太坊 calldata 计价：零字节 4，非零字节 16
func calldataCost(data []byte) uint64 {
	var gas uint64
	for _, b := range data {
		if b == 0 {
			gas += 4
		} else {
			gas += 16
		}
	}
	return gas
}
