package keyring

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"strings"

	"github.com/SafeMPC/aa-keyring/internal/activity"
	"github.com/SafeMPC/aa-keyring/internal/bundler"
	"github.com/SafeMPC/aa-keyring/internal/chain"
	"github.com/SafeMPC/aa-keyring/internal/smartaccount"
	"github.com/SafeMPC/aa-keyring/internal/types"
	"github.com/SafeMPC/aa-keyring/internal/util"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// dispatch 解出签名钥匙并按请求类型签名；私钥在返回前清零
func (k *Keyring) dispatch(ctx context.Context, req types.KeyringRequest, sr SigningRequest) (string, error) {
	wallet, err := k.findByAddress(ctx, sr.Signer().Hex())
	if err != nil {
		return "", err
	}
	if !methodSupported(wallet.Account, sr.Method()) {
		return "", errors.Wrapf(types.ErrUnsupportedSigningMethod, "%s is not supported by account %s", sr.Method(), wallet.Account.ID)
	}

	key, err := k.walletKey(wallet)
	if err != nil {
		return "", err
	}
	defer zeroKey(key)

	var result string
	switch r := sr.(type) {
	case *PersonalSignRequest:
		result, err = signPersonal(key, r.Message)
	case *EthSignRequest:
		result, err = signHash(key, r.Hash.Bytes())
	case *SignTypedDataRequest:
		result, err = signTypedData(key, r)
	case *SignTransactionRequest:
		result, err = signTransaction(key, r)
	case *SendUserOperationRequest:
		result, err = k.sendUserOperation(ctx, key, wallet.Account, k.requestChainID(req), r)
	default:
		err = errors.Wrapf(types.ErrUnsupportedSigningMethod, "%q", sr.Method())
	}

	if k.metrics != nil && result != "" {
		k.metrics.Signatures.WithLabelValues(sr.Method()).Inc()
	}
	return result, err
}

func methodSupported(account types.KeyringAccount, method string) bool {
	for _, m := range account.SupportedMethods {
		if m == method {
			return true
		}
	}
	return false
}

// requestChainID scope 形如 "eip155:<十进制>"，缺省时使用默认链
func (k *Keyring) requestChainID(req types.KeyringRequest) string {
	if strings.HasPrefix(req.Scope, "eip155:") {
		if _, err := chain.ParseChainID(req.Scope); err == nil {
			return chain.NormalizeChainID(req.Scope)
		}
	}
	return k.defaultChainID
}

// signHash 对 32 字节哈希签名，返回 r‖s‖v（v 为 27/28）
func signHash(key *ecdsa.PrivateKey, hash []byte) (string, error) {
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign")
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// signPersonal EIP-191 签名，并通过恢复公钥校验签名者
func signPersonal(key *ecdsa.PrivateKey, message []byte) (string, error) {
	hash := accounts.TextHash(message)
	sig, err := signHash(key, hash)
	if err != nil {
		return "", err
	}

	signer, err := RecoverPersonalSigner(message, sig)
	if err != nil || signer != crypto.PubkeyToAddress(key.PublicKey) {
		return "", errors.Wrap(types.ErrSignatureVerificationFailed, "recovered signer does not match account")
	}
	return sig, nil
}

// RecoverPersonalSigner 从 personal_sign 签名恢复地址
func RecoverPersonalSigner(message []byte, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "malformed signature")
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, errors.Errorf("signature must be %d bytes", crypto.SignatureLength)
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash(message), sig)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to recover public key")
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func signTypedData(key *ecdsa.PrivateKey, r *SignTypedDataRequest) (string, error) {
	hash, err := TypedDataHash(r.Version, r.Data)
	if err != nil {
		return "", err
	}
	return signHash(key, hash)
}

// signTransaction 携带 EIP-1559 字段时签 type-2 交易，否则签 EIP-155 legacy 交易
func signTransaction(key *ecdsa.PrivateKey, r *SignTransactionRequest) (string, error) {
	args := r.Tx
	chainID := args.ChainID.ToInt()

	var (
		tx     *gethtypes.Transaction
		signer gethtypes.Signer
	)
	if args.IsFeeMarket() {
		var accessList gethtypes.AccessList
		if args.AccessList != nil {
			if err := json.Unmarshal(*args.AccessList, &accessList); err != nil {
				return "", errors.Wrapf(types.ErrInvalidParams, "accessList: %v", err)
			}
		}
		tx = gethtypes.NewTx(&gethtypes.DynamicFeeTx{
			ChainID:    chainID,
			Nonce:      types.BigOrZero(args.Nonce).Uint64(),
			GasTipCap:  types.BigOrZero(args.MaxPriorityFeePerGas),
			GasFeeCap:  types.BigOrZero(args.MaxFeePerGas),
			Gas:        args.GasLimitValue(),
			To:         args.To,
			Value:      types.BigOrZero(args.Value),
			Data:       args.Payload(),
			AccessList: accessList,
		})
		signer = gethtypes.NewLondonSigner(chainID)
	} else {
		tx = gethtypes.NewTx(&gethtypes.LegacyTx{
			Nonce:    types.BigOrZero(args.Nonce).Uint64(),
			GasPrice: types.BigOrZero(args.GasPrice),
			Gas:      args.GasLimitValue(),
			To:       args.To,
			Value:    types.BigOrZero(args.Value),
			Data:     args.Payload(),
		})
		signer = gethtypes.NewEIP155Signer(chainID)
	}

	signed, err := gethtypes.SignTx(tx, signer, key)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign transaction")
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return "", errors.Wrap(err, "failed to encode signed transaction")
	}
	return hexutil.Encode(raw), nil
}

// sendUserOperation 签名 user operation 并提交 bundler。
// 提交失败时仍返回签名，同时返回包装了 ErrBundlerSubmissionFailed 的错误，且不记录 pending。
func (k *Keyring) sendUserOperation(ctx context.Context, key *ecdsa.PrivateKey, account types.KeyringAccount, chainID string, r *SendUserOperationRequest) (string, error) {
	id, err := chain.ParseChainID(chainID)
	if err != nil {
		return "", errors.Wrap(types.ErrInvalidParams, err.Error())
	}

	// 先取 bundler 客户端：哈希必须基于实际提交的 EntryPoint
	var client *bundler.Client
	clientErr := types.ErrBundlerNotConfigured
	if k.bundlers != nil {
		client, clientErr = k.bundlers.ClientFor(ctx, chainID)
	}
	entryPoint := k.entryPoint
	if client != nil {
		defer client.Close()
		entryPoint = client.EntryPoint()
	}

	op := r.UserOp.Copy()
	hash, err := smartaccount.UserOperationHash(op, entryPoint, id)
	if err != nil {
		return "", err
	}

	sig, err := signPersonal(key, hash.Bytes())
	if err != nil {
		return "", err
	}
	op.Signature = hexutil.MustDecode(sig)

	logger := util.LogFromContext(ctx).With().
		Str("accountId", account.ID).
		Str("chainId", chainID).
		Str("entryPoint", entryPoint.Hex()).
		Str("userOpHash", hash.Hex()).
		Logger()

	if client == nil {
		logger.Warn().Err(clientErr).Msg("User operation signed but bundler unavailable")
		k.countUserOp(chainID, "unconfigured")
		return sig, errors.Wrap(types.ErrBundlerSubmissionFailed, clientErr.Error())
	}

	res := client.SendUserOperation(ctx, op)
	if !res.Success {
		logger.Warn().Str("error", res.Error()).Msg("Bundler rejected user operation")
		k.countUserOp(chainID, "failed")
		return sig, errors.Wrap(types.ErrBundlerSubmissionFailed, res.Error())
	}

	var submitted string
	if err := res.Decode(&submitted); err != nil || submitted == "" {
		submitted = hash.Hex()
	}
	if err := k.activity.RecordPending(ctx, activity.Record{
		AccountID:  account.ID,
		ChainID:    chainID,
		UserOpHash: submitted,
	}); err != nil {
		return sig, errors.Wrap(err, "user operation submitted but failed to record activity")
	}

	logger.Info().Msg("User operation submitted to bundler")
	k.countUserOp(chainID, "submitted")
	return sig, nil
}

func (k *Keyring) countUserOp(chainID, result string) {
	if k.metrics != nil {
		k.metrics.UserOpsSubmitted.WithLabelValues(chainID, result).Inc()
	}
}

// UserOperationHash 当前 EntryPoint 下的 user operation 哈希
func (k *Keyring) UserOperationHash(op *types.UserOperation, chainID string) (common.Hash, error) {
	id, err := chain.ParseChainID(chainID)
	if err != nil {
		return common.Hash{}, errors.Wrap(types.ErrInvalidParams, err.Error())
	}
	return smartaccount.UserOperationHash(op, k.entryPoint, id)
}
