package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DataDir string `toml:"DataDir"`
	// GenesisTime seeds the simulated clock. Zero uses the wall clock.
	GenesisTime   uint64        `toml:"GenesisTime"`
	Vault         Vault         `toml:"vault"`
	Strategy      Strategy      `toml:"strategy"`
	Farm          Farm          `toml:"farm"`
	TradeFactory  TradeFactory  `toml:"tradefactory"`
	Gateway       Gateway       `toml:"gateway"`
	Observability Observability `toml:"observability"`
	// Tokens are extra ledgers unrelated to the vault, such as WETH airdrops
	// that governance sweeps out of the strategy.
	Tokens []Token `toml:"tokens"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the reference deployment: the vault and farm parameters
// used by the strategy test suite.
func Default() *Config {
	return &Config{
		DataDir: "./vault-data",
		Vault: Vault{
			Governance:        "@governance",
			WantSymbol:        "WANT",
			WantDecimals:      18,
			PerformanceFeeBps: 1_000,
			ManagementFeeBps:  200,
		},
		Strategy: Strategy{
			Strategist:        "@strategist",
			Keeper:            "@keeper",
			DebtRatioBps:      10_000,
			PerformanceFeeBps: 1_000,
			MinDebtPerHarvest: "0",
			MaxReportDelay:    30 * 24 * 60 * 60,
			ProfitFactor:      100,
			DebtThreshold:     "0",
			TendThreshold:     "0",
		},
		Farm: Farm{
			RewardSymbol:        "TRU",
			RewardDecimals:      8,
			BaseAPRBps:          500,
			FeeAPRBps:           100,
			RewardRatePerSecond: "1",
			ExitPenaltyBps:      50,
			LockPeriod:          6 * 60 * 60,
		},
		TradeFactory: TradeFactory{
			Enabled:   true,
			Mechanics: []string{"@ymechs"},
			SwapRate:  "20000000000000000000000000000",
		},
		Gateway: Gateway{
			ListenAddress:       ":8090",
			ReadTimeoutSeconds:  10,
			WriteTimeoutSeconds: 15,
			IdleTimeoutSeconds:  60,
			RateLimitPerSecond:  20,
			RateLimitBurst:      40,
		},
		Observability: Observability{
			ServiceName:    "vaultd",
			Environment:    "local",
			LogMaxSizeMB:   100,
			LogMaxBackups:  3,
			MetricsEnabled: true,
		},
		Tokens: []Token{{Symbol: "WETH", Decimals: 18}},
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
