package keyring

import (
	"context"
	"crypto/ecdsa"
	"sort"
	"strings"

	"github.com/SafeMPC/aa-keyring/internal/state"
	"github.com/SafeMPC/aa-keyring/internal/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// optionAccountType 创建账户时可通过 options.type 指定 EOA
const optionAccountType = "type"

// ListAccounts 所有账户，按名称排序
func (k *Keyring) ListAccounts(ctx context.Context) ([]types.KeyringAccount, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	doc, err := k.state.Get(ctx)
	if err != nil {
		return nil, err
	}
	accounts := make([]types.KeyringAccount, 0, len(doc.KeyringState.Wallets))
	for _, w := range doc.KeyringState.Wallets {
		accounts = append(accounts, w.Account.Clone())
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].Name == accounts[j].Name {
			return accounts[i].ID < accounts[j].ID
		}
		return accounts[i].Name < accounts[j].Name
	})
	return accounts, nil
}

// GetAccount 不存在时返回 ErrAccountNotFound
func (k *Keyring) GetAccount(ctx context.Context, id string) (types.KeyringAccount, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	w, err := k.findByID(ctx, id)
	if err != nil {
		return types.KeyringAccount{}, err
	}
	return w.Account.Clone(), nil
}

// CreateAccount 派生新密钥并创建账户，名称必须唯一
func (k *Keyring) CreateAccount(ctx context.Context, name string, options map[string]interface{}) (types.KeyringAccount, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if strings.TrimSpace(name) == "" {
		return types.KeyringAccount{}, errors.Wrap(types.ErrInvalidParams, "account name is required")
	}

	doc, err := k.state.Get(ctx)
	if err != nil {
		return types.KeyringAccount{}, err
	}
	if nameTaken(doc, name, "") {
		return types.KeyringAccount{}, errors.Wrapf(types.ErrDuplicateAccountName, "%q", name)
	}

	accountType := types.AccountTypeERC4337
	if t, ok := options[optionAccountType].(string); ok && types.AccountType(t) == types.AccountTypeEOA {
		accountType = types.AccountTypeEOA
	}

	key, address, err := k.deriver.Derive(ctx, name)
	if err != nil {
		return types.KeyringAccount{}, err
	}
	raw := crypto.FromECDSA(key)
	zeroKey(key)
	stored, err := encodeKey(k.sealer, raw)
	zeroBytes(raw)
	if err != nil {
		return types.KeyringAccount{}, err
	}

	account := types.KeyringAccount{
		ID:               uuid.NewString(),
		Name:             name,
		Address:          address.Hex(),
		Options:          options,
		SupportedMethods: types.SupportedMethods(accountType),
		Type:             accountType,
	}

	err = k.state.Update(ctx, func(doc *state.Document) error {
		// 读-改-写之间名称可能已被占用
		if nameTaken(doc, name, "") {
			return errors.Wrapf(types.ErrDuplicateAccountName, "%q", name)
		}
		doc.KeyringState.Wallets[account.ID] = types.Wallet{Account: account, PrivateKey: stored}
		return nil
	})
	if err != nil {
		return types.KeyringAccount{}, err
	}

	if err := k.notifier.AccountCreated(ctx, account.Clone()); err != nil {
		return types.KeyringAccount{}, errors.Wrap(err, "failed to notify host of created account")
	}
	return account.Clone(), nil
}

// UpdateAccount 只允许修改名称；地址、类型、方法与 options 保持创建时的值
func (k *Keyring) UpdateAccount(ctx context.Context, account types.KeyringAccount) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	var updated types.KeyringAccount
	err := k.state.Update(ctx, func(doc *state.Document) error {
		w, ok := doc.KeyringState.Wallets[account.ID]
		if !ok {
			return errors.Wrapf(types.ErrAccountNotFound, "%s", account.ID)
		}
		if account.Name != "" && account.Name != w.Account.Name {
			if nameTaken(doc, account.Name, account.ID) {
				return errors.Wrapf(types.ErrDuplicateAccountName, "%q", account.Name)
			}
			w.Account.Name = account.Name
		}
		doc.KeyringState.Wallets[account.ID] = w
		updated = w.Account.Clone()
		return nil
	})
	if err != nil {
		return err
	}
	return k.notifier.AccountUpdated(ctx, updated)
}

// DeleteAccount 删除账户及其私钥，账户不存在时也不报错
func (k *Keyring) DeleteAccount(ctx context.Context, id string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	err := k.state.Update(ctx, func(doc *state.Document) error {
		delete(doc.KeyringState.Wallets, id)
		return nil
	})
	if err != nil {
		return err
	}
	return k.notifier.AccountDeleted(ctx, id)
}

// FilterAccountChains 所有链都是 EVM 链，对 eip155 链 ID 原样返回
func (k *Keyring) FilterAccountChains(ctx context.Context, id string, chains []string) ([]string, error) {
	if _, err := k.GetAccount(ctx, id); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(chains))
	for _, c := range chains {
		if strings.HasPrefix(c, "eip155:") {
			out = append(out, c)
		}
	}
	return out, nil
}

// FindByAddress 按地址（大小写不敏感）查找钱包
func (k *Keyring) FindByAddress(ctx context.Context, address string) (types.Wallet, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.findByAddress(ctx, address)
}

// FindByID 按账户 ID 查找钱包
func (k *Keyring) FindByID(ctx context.Context, id string) (types.Wallet, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.findByID(ctx, id)
}

func (k *Keyring) findByID(ctx context.Context, id string) (types.Wallet, error) {
	doc, err := k.state.Get(ctx)
	if err != nil {
		return types.Wallet{}, err
	}
	w, ok := doc.KeyringState.Wallets[id]
	if !ok {
		return types.Wallet{}, errors.Wrapf(types.ErrAccountNotFound, "%s", id)
	}
	return w, nil
}

func (k *Keyring) findByAddress(ctx context.Context, address string) (types.Wallet, error) {
	doc, err := k.state.Get(ctx)
	if err != nil {
		return types.Wallet{}, err
	}
	for _, w := range doc.KeyringState.Wallets {
		if strings.EqualFold(w.Account.Address, address) {
			return w, nil
		}
	}
	return types.Wallet{}, errors.Wrapf(types.ErrWalletNotFound, "%s", address)
}

func nameTaken(doc *state.Document, name, exceptID string) bool {
	for id, w := range doc.KeyringState.Wallets {
		if id != exceptID && w.Account.Name == name {
			return true
		}
	}
	return false
}

// walletKey 解出签名私钥，调用方用完后必须 zeroKey
func (k *Keyring) walletKey(w types.Wallet) (*ecdsa.PrivateKey, error) {
	raw, err := decodeKey(k.sealer, w.PrivateKey)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(raw)

	key, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, errors.Wrap(err, "invalid stored private key")
	}
	if !strings.EqualFold(crypto.PubkeyToAddress(key.PublicKey).Hex(), w.Account.Address) {
		zeroKey(key)
		return nil, errors.Errorf("stored key does not match account %s", w.Account.ID)
	}
	return key, nil
}
