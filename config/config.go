// Package config ties together configuration for every package in the
// synchronizer, loadable from a TOML file and overridable by CLI flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"code.chainsync.io/sync/config/encoding"
	"code.chainsync.io/sync/ethchain"
	"code.chainsync.io/sync/logging"
	"code.chainsync.io/sync/orchestrator"
	"code.chainsync.io/sync/snapshot"

	"github.com/BurntSushi/toml"
)

const (
	configFileName         = "chainsync.toml"
	defaultPollingInterval = 4 * time.Second
)

// ProviderOptions holds tunables for the out-of-scope RPC log-subscription
// driver that feeds the LiveStream.
type ProviderOptions struct {
	PollingInterval  encoding.Duration `long:"provider-polling-interval"`
	Batch            bool              `long:"provider-batch"`
	SkipNetworkCheck bool              `long:"provider-skip-network-check"`
}

func newDefaultProviderOptions() ProviderOptions {
	return ProviderOptions{
		PollingInterval: encoding.Duration{Duration: defaultPollingInterval},
	}
}

// Config aggregates every package's configuration slice plus the fields
// that identify one synchronization session (chain, world contract, and
// the never-earlier-than floor block).
type Config struct {
	Level encoding.LogLevel `long:"log-level" description:"debug, info, warn, error"`

	ChainID              uint64 `long:"chain-id"`
	RPCURL               string `long:"rpc-url" description:"Ethereum-compatible JSON-RPC endpoint hosting the world contract"`
	WorldContractAddress string `long:"world-contract-address"`
	WorldContractABIPath string `long:"world-contract-abi-path"`

	Provider ProviderOptions `group:"Provider" namespace:"provider"`

	EthChain     ethchain.Config     `group:"EthChain" namespace:"ethchain"`
	Snapshot     snapshot.Config     `group:"Snapshot" namespace:"snapshot"`
	Orchestrator orchestrator.Config `group:"Orchestrator" namespace:"orchestrator"`

	CacheDir string `long:"cache-dir" description:"directory holding the persistent badger cache"`

	MetricsListenAddress string `long:"metrics-listen-address"`
}

func NewDefaultConfig(defaultCacheDir string) Config {
	return Config{
		Level:                encoding.LogLevel{Level: logging.InfoLevel},
		Provider:             newDefaultProviderOptions(),
		EthChain:             ethchain.NewDefaultConfig(),
		Snapshot:             snapshot.NewDefaultConfig(),
		Orchestrator:         orchestrator.NewDefaultConfig(),
		CacheDir:             defaultCacheDir,
		MetricsListenAddress: ":9090",
	}
}

// Read loads chainsync.toml from rootPath over top of the defaults, so a
// config file only needs to set the fields it wants to override.
func Read(rootPath string) (*Config, error) {
	path := filepath.Join(rootPath, configFileName)
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("couldn't read %s: %w", path, err)
	}

	cfg := NewDefaultConfig(rootPath)
	if _, err := toml.Decode(string(buf), &cfg); err != nil {
		return nil, fmt.Errorf("couldn't parse %s: %w", path, err)
	}
	return &cfg, nil
}
