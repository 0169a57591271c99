// Package config loads the coordinator configuration from YAML with environment overrides.
package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/ClipFinance/bridge-coordinator/common/address"
	bridgeerrors "github.com/ClipFinance/bridge-coordinator/common/errors"
	"github.com/ClipFinance/bridge-coordinator/common/types"
	"github.com/ClipFinance/bridge-coordinator/common/units"
	"github.com/ClipFinance/bridge-coordinator/fee"
)

// EnvPrefix prefixes every environment override, e.g. BRIDGE_SERVER_ADDR.
const EnvPrefix = "BRIDGE"

// Store backends of the tracker mirror.
const (
	StoreNone     = "none"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type Configuration struct {
	Server struct {
		Addr            string        `yaml:"addr" envconfig:"ADDR"`
		RedisAddr       string        `yaml:"redis_addr" envconfig:"REDIS_ADDR"`
		DatabaseURL     string        `yaml:"database_url" envconfig:"DATABASE_URL"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" envconfig:"LEVEL"`
		Format string `yaml:"format" envconfig:"FORMAT"`
	} `yaml:"log"`
	Fee struct {
		DefaultBps      uint64 `yaml:"default_bps" envconfig:"DEFAULT_BPS"`
		FlatFee         string `yaml:"flat_fee" envconfig:"FLAT_FEE"`
		FlatFeeSymbol   string `yaml:"flat_fee_symbol" envconfig:"FLAT_FEE_SYMBOL"`
		FlatFeeDecimals uint8  `yaml:"flat_fee_decimals" envconfig:"FLAT_FEE_DECIMALS"`
	} `yaml:"fee"`
	Tracker struct {
		Concurrency int    `yaml:"concurrency" envconfig:"CONCURRENCY"`
		Store       string `yaml:"store" envconfig:"STORE"`
		WatchStatus bool   `yaml:"watch_status" envconfig:"WATCH_STATUS"`
	} `yaml:"tracker"`
	Chains []Chain `yaml:"chains" ignored:"true"`
	Tokens []Token `yaml:"tokens" ignored:"true"`
	// PrivateKeys maps chain ids to signer keys, BRIDGE_PRIVATE_KEYS=1:hex,56:hex.
	PrivateKeys map[string]string `yaml:"-" envconfig:"PRIVATE_KEYS"`
}

// Chain is the YAML form of a chain.
type Chain struct {
	Name                string        `yaml:"name"`
	Type                string        `yaml:"type"`
	ChainID             uint64        `yaml:"chain_id"`
	Class               string        `yaml:"class"`
	NativeSymbol        string        `yaml:"native_symbol"`
	RPC                 string        `yaml:"rpc"`
	TxType              uint64        `yaml:"tx_type"`
	WaitNBlocks         uint64        `yaml:"wait_n_blocks"`
	BridgeAddress       string        `yaml:"bridge_address"`
	BridgeVersion       string        `yaml:"bridge_version"`
	CallTimeout         time.Duration `yaml:"call_timeout"`
	ConfirmationTimeout time.Duration `yaml:"confirmation_timeout"`
	EstimatedTime       time.Duration `yaml:"estimated_time"`
	PollInterval        time.Duration `yaml:"poll_interval"`
	MaxRetries          uint64        `yaml:"max_retries"`
	RequestsPerSecond   float64       `yaml:"requests_per_second"`
	PrivateKey          string        `yaml:"private_key"`
}

// Token is the YAML form of a token deployment.
type Token struct {
	ChainID     uint64 `yaml:"chain_id"`
	Address     string `yaml:"address"`
	Symbol      string `yaml:"symbol"`
	Decimals    uint8  `yaml:"decimals"`
	HomeChainID uint64 `yaml:"home_chain_id"`
}

// Load reads the YAML file at path and applies environment overrides on top.
//
// Parameters:
// - path: the YAML file, may be empty to configure from the environment only.
//
// Returns:
// - *Configuration: the validated configuration.
// - error: ErrInvalidConfig, or the read or decode error.
func Load(path string) (*Configuration, error) {
	cfg := &Configuration{}
	if path != "" {
		if err := readFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to read environment")
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string, cfg *Configuration) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "failed to open config")
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return errors.Wrapf(err, "failed to decode %s", path)
	}
	return nil
}

func (c *Configuration) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Fee.DefaultBps == 0 {
		c.Fee.DefaultBps = fee.DefaultBps
	}
	if c.Fee.FlatFee == "" {
		c.Fee.FlatFee = "3"
	}
	if c.Fee.FlatFeeSymbol == "" {
		c.Fee.FlatFeeSymbol = "USDC"
	}
	if c.Fee.FlatFeeDecimals == 0 {
		c.Fee.FlatFeeDecimals = 6
	}
	if c.Tracker.Store == "" {
		c.Tracker.Store = StoreNone
	}
	for i := range c.Chains {
		if c.Chains[i].Type == "" {
			c.Chains[i].Type = types.EVM.String()
		}
		if c.Chains[i].Class == "" {
			c.Chains[i].Class = string(types.MainNet)
		}
	}
}

// Validate checks the parts of the configuration that can be checked without I/O.
func (c *Configuration) Validate() error {
	if c.Fee.DefaultBps >= types.BasisPointsDenominator {
		return errors.Wrapf(bridgeerrors.ErrInvalidConfig, "default fee %d bps", c.Fee.DefaultBps)
	}
	if _, err := units.ToBaseUnits(c.Fee.FlatFee, c.Fee.FlatFeeDecimals); err != nil {
		return errors.Wrapf(bridgeerrors.ErrInvalidConfig, "flat fee: %v", err)
	}

	switch c.Tracker.Store {
	case StoreNone:
	case StoreRedis:
		if c.Server.RedisAddr == "" {
			return errors.Wrap(bridgeerrors.ErrInvalidConfig, "redis store needs server.redis_addr")
		}
	case StorePostgres:
		if c.Server.DatabaseURL == "" {
			return errors.Wrap(bridgeerrors.ErrInvalidConfig, "postgres store needs server.database_url")
		}
	default:
		return errors.Wrapf(bridgeerrors.ErrInvalidConfig, "unknown tracker store %q", c.Tracker.Store)
	}

	for id := range c.PrivateKeys {
		if _, err := strconv.ParseUint(id, 10, 64); err != nil {
			return errors.Wrapf(bridgeerrors.ErrInvalidConfig, "private key for chain %q", id)
		}
	}

	if _, err := c.ChainConfigs(); err != nil {
		return err
	}
	return nil
}

// ChainConfigs converts the chains section into chain configurations, with private keys from
// the environment taking precedence over the file.
func (c *Configuration) ChainConfigs() ([]types.ChainConfig, error) {
	seen := make(map[uint64]bool)
	out := make([]types.ChainConfig, 0, len(c.Chains))
	for _, chain := range c.Chains {
		if chain.ChainID == 0 {
			return nil, errors.Wrapf(bridgeerrors.ErrInvalidConfig, "chain %q has no chain_id", chain.Name)
		}
		if seen[chain.ChainID] {
			return nil, errors.Wrapf(bridgeerrors.ErrInvalidConfig, "chain %d configured twice", chain.ChainID)
		}
		seen[chain.ChainID] = true

		chainType := types.ParseChainType(chain.Type)
		if chainType == types.UNKNOWN {
			return nil, errors.Wrapf(bridgeerrors.ErrInvalidConfig, "chain %d has type %q", chain.ChainID, chain.Type)
		}
		class, ok := types.ParseNetworkClass(chain.Class)
		if !ok {
			return nil, errors.Wrapf(bridgeerrors.ErrInvalidConfig, "chain %d has class %q", chain.ChainID, chain.Class)
		}

		privateKey := chain.PrivateKey
		if key, ok := c.PrivateKeys[strconv.FormatUint(chain.ChainID, 10)]; ok {
			privateKey = key
		}

		out = append(out, types.ChainConfig{
			Name:                chain.Name,
			ChainType:           chainType,
			ChainID:             chain.ChainID,
			Class:               class,
			NativeSymbol:        chain.NativeSymbol,
			RpcUrl:              chain.RPC,
			TxType:              chain.TxType,
			WaitNBlocks:         chain.WaitNBlocks,
			PrivateKey:          strings.TrimSpace(privateKey),
			BridgeAddress:       chain.BridgeAddress,
			BridgeVersion:       chain.BridgeVersion,
			CallTimeout:         chain.CallTimeout,
			ConfirmationTimeout: chain.ConfirmationTimeout,
			EstimatedTime:       chain.EstimatedTime,
			PollInterval:        chain.PollInterval,
			MaxRetries:          chain.MaxRetries,
			RequestsPerSecond:   chain.RequestsPerSecond,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out, nil
}

// TokenList converts the tokens section. Addresses must be valid for the family of their
// chain when the chain is configured.
func (c *Configuration) TokenList() ([]types.Token, error) {
	chainTypes := make(map[uint64]types.ChainType)
	for _, chain := range c.Chains {
		chainTypes[chain.ChainID] = types.ParseChainType(chain.Type)
	}

	out := make([]types.Token, 0, len(c.Tokens))
	for _, token := range c.Tokens {
		if chainType, ok := chainTypes[token.ChainID]; ok {
			if err := address.ValidateForChain(chainType, token.Address); err != nil {
				return nil, errors.Wrapf(bridgeerrors.ErrInvalidConfig, "token %s on chain %d: %v", token.Symbol, token.ChainID, err)
			}
		}
		out = append(out, types.Token{
			ChainID:     token.ChainID,
			Address:     token.Address,
			Symbol:      token.Symbol,
			Decimals:    token.Decimals,
			HomeChainID: token.HomeChainID,
		})
	}
	return out, nil
}

// FeeConfig converts the fee section into the fee policy configuration.
func (c *Configuration) FeeConfig() (fee.Config, error) {
	flat, err := units.ToBaseUnits(c.Fee.FlatFee, c.Fee.FlatFeeDecimals)
	if err != nil {
		return fee.Config{}, errors.Wrapf(bridgeerrors.ErrInvalidConfig, "flat fee: %v", err)
	}
	return fee.Config{
		FlatFee:         flat,
		FlatFeeSymbol:   c.Fee.FlatFeeSymbol,
		FlatFeeDecimals: c.Fee.FlatFeeDecimals,
		DefaultBps:      c.Fee.DefaultBps,
	}, nil
}
