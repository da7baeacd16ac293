package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const envPrefix = "AAK"

// EchoServer HTTP 服务配置
type EchoServer struct {
	ListenAddress string
	// AllowedOrigins 允许调用 keyring_* 方法的来源，空表示不限制
	AllowedOrigins []string
	// InternalOrigins 允许调用内部智能账户 RPC 的来源
	InternalOrigins []string
	BodyLimit       string
}

// LoggerServer 日志配置
type LoggerServer struct {
	Level              zerolog.Level
	RequestLevel       zerolog.Level
	PrettyPrintConsole bool
	LogRequests        bool
}

// Keyring 密钥派生与请求队列配置
type Keyring struct {
	Mnemonic   string
	Passphrase string
	// EncryptionKey 32 字节 hex，非空时私钥以密文形式落盘
	EncryptionKey string
	AutoApprove   bool
}

// Chain 链节点与 ERC-4337 合约配置
type Chain struct {
	DefaultChainID    string
	NodeURLs          map[string]string
	EntryPointAddress string
	FactoryAddress    string
	AddressCacheSize  int
	RequestTimeout    time.Duration
}

// Bundler bundler 客户端配置
type Bundler struct {
	// URLs 启动时写入状态文档（仅覆盖未配置的链）
	URLs    map[string]string
	Timeout time.Duration
}

// StateStore 持久化后端
type StateStore struct {
	Driver      string // memory, badger, redis, postgres
	Path        string
	RedisAddr   string
	PostgresDSN string
	Key         string
}

// Cron 定时对账配置
type Cron struct {
	Interval time.Duration
}

// Management 探针配置
type Management struct {
	ProbeBaseURL string
	ProbeTimeout time.Duration
}

// Server 服务整体配置
type Server struct {
	Echo       EchoServer
	Logger     LoggerServer
	Keyring    Keyring
	Chain      Chain
	Bundler    Bundler
	State      StateStore
	Cron       Cron
	Management Management
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("echo.listen_address", ":8080")
	v.SetDefault("echo.allowed_origins", []string{})
	v.SetDefault("echo.internal_origins", []string{})
	v.SetDefault("echo.body_limit", "1M")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.request_level", "debug")
	v.SetDefault("logger.pretty_print_console", false)
	v.SetDefault("logger.log_requests", true)

	v.SetDefault("keyring.mnemonic", "")
	v.SetDefault("keyring.passphrase", "")
	v.SetDefault("keyring.encryption_key", "")
	v.SetDefault("keyring.auto_approve", false)

	v.SetDefault("chain.default_chain_id", "0x539")
	v.SetDefault("chain.node_urls", map[string]string{"0x539": "http://localhost:8545"})
	v.SetDefault("chain.entry_point_address", "0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")
	v.SetDefault("chain.factory_address", "0x9406Cc6185a346906296840746125a0E44976454")
	v.SetDefault("chain.address_cache_size", 1024)
	v.SetDefault("chain.request_timeout", 30*time.Second)

	v.SetDefault("bundler.urls", map[string]string{})
	v.SetDefault("bundler.timeout", 30*time.Second)

	v.SetDefault("state.driver", "memory")
	v.SetDefault("state.path", "./data/keyring")
	v.SetDefault("state.redis_addr", "localhost:6379")
	v.SetDefault("state.postgres_dsn", "")
	v.SetDefault("state.key", "aa-keyring-state")

	v.SetDefault("cron.interval", 10*time.Second)

	v.SetDefault("management.probe_base_url", "http://127.0.0.1:8080")
	v.SetDefault("management.probe_timeout", 5*time.Second)
}

// NewViper 返回带默认值、环境变量绑定的 viper 实例
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// DefaultServiceConfigFromEnv 从环境变量读取配置（AAK_ 前缀，如 AAK_STATE_DRIVER）
func DefaultServiceConfigFromEnv() Server {
	return FromViper(NewViper())
}

// LoadServiceConfig 读取可选配置文件（yaml/json/toml），环境变量优先于文件
func LoadServiceConfig(path string) (Server, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Server{}, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}
	return FromViper(v), nil
}

// FromViper 将 viper 中的值映射为 Server 配置
func FromViper(v *viper.Viper) Server {
	return Server{
		Echo: EchoServer{
			ListenAddress:   v.GetString("echo.listen_address"),
			AllowedOrigins:  splitList(v.GetStringSlice("echo.allowed_origins")),
			InternalOrigins: splitList(v.GetStringSlice("echo.internal_origins")),
			BodyLimit:       v.GetString("echo.body_limit"),
		},
		Logger: LoggerServer{
			Level:              parseLevel(v.GetString("logger.level"), zerolog.InfoLevel),
			RequestLevel:       parseLevel(v.GetString("logger.request_level"), zerolog.DebugLevel),
			PrettyPrintConsole: v.GetBool("logger.pretty_print_console"),
			LogRequests:        v.GetBool("logger.log_requests"),
		},
		Keyring: Keyring{
			Mnemonic:      v.GetString("keyring.mnemonic"),
			Passphrase:    v.GetString("keyring.passphrase"),
			EncryptionKey: v.GetString("keyring.encryption_key"),
			AutoApprove:   v.GetBool("keyring.auto_approve"),
		},
		Chain: Chain{
			DefaultChainID:    strings.ToLower(v.GetString("chain.default_chain_id")),
			NodeURLs:          lowerKeys(v.GetStringMapString("chain.node_urls")),
			EntryPointAddress: v.GetString("chain.entry_point_address"),
			FactoryAddress:    v.GetString("chain.factory_address"),
			AddressCacheSize:  v.GetInt("chain.address_cache_size"),
			RequestTimeout:    v.GetDuration("chain.request_timeout"),
		},
		Bundler: Bundler{
			URLs:    lowerKeys(v.GetStringMapString("bundler.urls")),
			Timeout: v.GetDuration("bundler.timeout"),
		},
		State: StateStore{
			Driver:      strings.ToLower(v.GetString("state.driver")),
			Path:        v.GetString("state.path"),
			RedisAddr:   v.GetString("state.redis_addr"),
			PostgresDSN: v.GetString("state.postgres_dsn"),
			Key:         v.GetString("state.key"),
		},
		Cron: Cron{
			Interval: v.GetDuration("cron.interval"),
		},
		Management: Management{
			ProbeBaseURL: v.GetString("management.probe_base_url"),
			ProbeTimeout: v.GetDuration("management.probe_timeout"),
		},
	}
}

func parseLevel(s string, fallback zerolog.Level) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || s == "" {
		return fallback
	}
	return lvl
}

// 环境变量中的列表按逗号分隔
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func lowerKeys(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strings.ToLower(k)] = v
	}
	return out
}
