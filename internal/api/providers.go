package api

import (
	"context"
	"fmt"
	"time"

	"github.com/SafeMPC/aa-keyring/internal/activity"
	"github.com/SafeMPC/aa-keyring/internal/bundler"
	"github.com/SafeMPC/aa-keyring/internal/chain"
	"github.com/SafeMPC/aa-keyring/internal/config"
	"github.com/SafeMPC/aa-keyring/internal/keyring"
	"github.com/SafeMPC/aa-keyring/internal/metrics"
	"github.com/SafeMPC/aa-keyring/internal/smartaccount"
	"github.com/SafeMPC/aa-keyring/internal/state"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// PROVIDERS - define here only providers that for various reasons (e.g. cyclic dependency) can't live in their corresponding packages
// or for wrapping providers that only accept sub-configs to prevent the requirements for defining providers for sub-configs.
// https://github.com/google/wire/blob/main/docs/guide.md#defining-providers

const storeConnectTimeout = 5 * time.Second

// NewStateStore 按 state.driver 选择持久化后端
func NewStateStore(cfg config.Server) (state.Store, error) {
	switch cfg.State.Driver {
	case "", "memory":
		log.Warn().Msg("Using in-memory state store, keyring state is lost on restart")
		return state.NewMemoryStore(), nil
	case "badger":
		return state.NewBadgerStore(cfg.State.Path, cfg.State.Key)
	case "redis":
		client, err := NewRedisClient(cfg)
		if err != nil {
			return nil, err
		}
		return state.NewRedisStore(client, cfg.State.Key), nil
	case "postgres", "postgresql":
		ctx, cancel := context.WithTimeout(context.Background(), storeConnectTimeout)
		defer cancel()
		return state.NewPostgreSQLStore(ctx, cfg.State.PostgresDSN, cfg.State.Key)
	default:
		return nil, fmt.Errorf("unsupported state driver %q", cfg.State.Driver)
	}
}

func NewRedisClient(cfg config.Server) (*redis.Client, error) {
	if cfg.State.RedisAddr == "" {
		return nil, fmt.Errorf("state RedisAddr is not configured")
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.State.RedisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), storeConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// NewEntropySource 未配置助记词时生成临时助记词，重启后派生结果会变化
func NewEntropySource(cfg config.Server) (keyring.EntropySource, error) {
	mnemonic := cfg.Keyring.Mnemonic
	if mnemonic == "" {
		generated, err := keyring.NewMnemonic()
		if err != nil {
			return nil, err
		}
		log.Warn().Msg("No keyring mnemonic configured, generated an ephemeral one; set AAK_KEYRING_MNEMONIC to keep accounts across restarts")
		mnemonic = generated
	}
	return keyring.NewMnemonicEntropySource(mnemonic, cfg.Keyring.Passphrase)
}

func NewSealer(cfg config.Server) (*keyring.Sealer, error) {
	if cfg.Keyring.EncryptionKey == "" {
		log.Warn().Msg("No keyring encryption key configured, private keys are stored unencrypted")
	}
	return keyring.NewSealer(cfg.Keyring.EncryptionKey)
}

func NewHostNotifier() keyring.HostNotifier {
	return keyring.NewLogNotifier()
}

func NewChainRegistry(cfg config.Server) *chain.Registry {
	return chain.NewRegistry(cfg.Chain)
}

func NewSmartAccountProvider(cfg config.Server, registry *chain.Registry) (*smartaccount.Provider, error) {
	return smartaccount.NewProvider(smartaccount.NewRegistrySource(registry), cfg.Chain)
}

// NewBundlerProvider 创建 bundler 提供者并写入配置中的 bundler 地址
func NewBundlerProvider(cfg config.Server, manager *state.Manager) (*bundler.Provider, error) {
	entryPoint, err := bundler.ParseEntryPoint(cfg.Chain.EntryPointAddress)
	if err != nil {
		return nil, err
	}
	p := bundler.NewProvider(manager, entryPoint, cfg.Bundler.Timeout)

	ctx, cancel := context.WithTimeout(context.Background(), storeConnectTimeout)
	defer cancel()
	if err := p.SeedURLs(ctx, cfg.Bundler.URLs); err != nil {
		return nil, fmt.Errorf("failed to seed bundler urls: %w", err)
	}
	return p, nil
}

func NewReconciler(store *activity.Store, bundlers *bundler.Provider, m *metrics.Metrics) *activity.Reconciler {
	return activity.NewReconciler(store, bundlers, m)
}

func NewKeyring(
	cfg config.Server,
	manager *state.Manager,
	deriver *keyring.KeyDeriver,
	sealer *keyring.Sealer,
	notifier keyring.HostNotifier,
	bundlers *bundler.Provider,
	activityStore *activity.Store,
	m *metrics.Metrics,
) (*keyring.Keyring, error) {
	return keyring.New(cfg, keyring.Options{
		State:    manager,
		Deriver:  deriver,
		Sealer:   sealer,
		Notifier: notifier,
		Bundlers: bundlers,
		Activity: activityStore,
		Metrics:  m,
	})
}
