//go:build wireinject

//go:generate wire

package api

import (
	"github.com/SafeMPC/aa-keyring/internal/activity"
	"github.com/SafeMPC/aa-keyring/internal/config"
	"github.com/SafeMPC/aa-keyring/internal/keyring"
	"github.com/SafeMPC/aa-keyring/internal/metrics"
	"github.com/SafeMPC/aa-keyring/internal/state"
	"github.com/google/wire"
)

// INJECTORS - https://github.com/google/wire/blob/main/docs/guide.md#injectors

// serviceSet groups the default set of providers that are required for initing a server
var serviceSet = wire.NewSet(
	newServerWithComponents,
	state.NewManager,
	metrics.New,
	keyringSet,
	smartAccountSet,
)

var keyringSet = wire.NewSet(
	NewEntropySource,
	keyring.NewKeyDeriver,
	NewSealer,
	NewHostNotifier,
	NewKeyring,
)

var smartAccountSet = wire.NewSet(
	NewChainRegistry,
	NewSmartAccountProvider,
	NewBundlerProvider,
	activity.NewStore,
	NewReconciler,
)

// InitNewServer returns a new Server instance.
func InitNewServer(
	_ config.Server,
) (*Server, error) {
	wire.Build(serviceSet, NewStateStore)
	return new(Server), nil
}

// InitNewServerWithStore returns a new Server instance backed by the given state store.
// All the other components are initialized via go wire according to the configuration.
func InitNewServerWithStore(
	_ config.Server,
	_ state.Store,
) (*Server, error) {
	wire.Build(serviceSet)
	return new(Server), nil
}
