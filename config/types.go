package config

// Vault configures the vault deployment. Addresses accept 0x hex or an
// "@label" resolved through crypto.DeriveAddress. Amounts are base-unit
// decimal strings; an empty DepositLimit means unlimited.
type Vault struct {
	Governance              string `toml:"Governance"`
	Management              string `toml:"Management"`
	Guardian                string `toml:"Guardian"`
	Rewards                 string `toml:"Rewards"`
	WantSymbol              string `toml:"WantSymbol"`
	WantDecimals            uint8  `toml:"WantDecimals"`
	DepositLimit            string `toml:"DepositLimit"`
	PerformanceFeeBps       uint64 `toml:"PerformanceFeeBps"`
	ManagementFeeBps        uint64 `toml:"ManagementFeeBps"`
	LockedProfitDegradation string `toml:"LockedProfitDegradation"`
}

// Strategy configures the single strategy attached to the vault.
type Strategy struct {
	Strategist        string `toml:"Strategist"`
	Keeper            string `toml:"Keeper"`
	Rewards           string `toml:"Rewards"`
	DebtRatioBps      uint64 `toml:"DebtRatioBps"`
	PerformanceFeeBps uint64 `toml:"PerformanceFeeBps"`
	MinDebtPerHarvest string `toml:"MinDebtPerHarvest"`
	MaxDebtPerHarvest string `toml:"MaxDebtPerHarvest"`
	MinReportDelay    uint64 `toml:"MinReportDelaySeconds"`
	MaxReportDelay    uint64 `toml:"MaxReportDelaySeconds"`
	ProfitFactor      uint64 `toml:"ProfitFactor"`
	DebtThreshold     string `toml:"DebtThreshold"`
	CreditThreshold   string `toml:"CreditThreshold"`
	TendThreshold     string `toml:"TendThreshold"`
}

// Farm configures the yield position the strategy deploys into.
type Farm struct {
	RewardSymbol        string `toml:"RewardSymbol"`
	RewardDecimals      uint8  `toml:"RewardDecimals"`
	BaseAPRBps          uint64 `toml:"BaseAPRBps"`
	FeeAPRBps           uint64 `toml:"FeeAPRBps"`
	RewardRatePerSecond string `toml:"RewardRatePerSecond"`
	ExitPenaltyBps      uint64 `toml:"ExitPenaltyBps"`
	LockPeriod          uint64 `toml:"LockPeriodSeconds"`
}

// TradeFactory configures reward liquidation.
type TradeFactory struct {
	Enabled   bool     `toml:"Enabled"`
	Mechanics []string `toml:"Mechanics"`
	// SwapRate is the 1e18 fixed-point amount of want paid per base unit of
	// reward by the built-in swapper.
	SwapRate string `toml:"SwapRate"`
}

// Token configures an extra token ledger.
type Token struct {
	Symbol   string `toml:"Symbol"`
	Decimals uint8  `toml:"Decimals"`
}

// Gateway configures the HTTP surface.
type Gateway struct {
	ListenAddress       string  `toml:"ListenAddress"`
	ReadTimeoutSeconds  int     `toml:"ReadTimeoutSeconds"`
	WriteTimeoutSeconds int     `toml:"WriteTimeoutSeconds"`
	IdleTimeoutSeconds  int     `toml:"IdleTimeoutSeconds"`
	RateLimitPerSecond  float64 `toml:"RateLimitPerSecond"`
	RateLimitBurst      int     `toml:"RateLimitBurst"`
	// AllowClockControl exposes /v1/clock/advance. Simulation only.
	AllowClockControl bool `toml:"AllowClockControl"`
}

// Observability configures logging, metrics and tracing.
type Observability struct {
	ServiceName    string   `toml:"ServiceName"`
	Environment    string   `toml:"Environment"`
	LogFile        string   `toml:"LogFile"`
	LogMaxSizeMB   int      `toml:"LogMaxSizeMB"`
	LogMaxBackups  int      `toml:"LogMaxBackups"`
	LogAllowlist   []string `toml:"LogAllowlist"`
	MetricsEnabled bool     `toml:"MetricsEnabled"`
	TracingEnabled bool     `toml:"TracingEnabled"`
	OTLPEndpoint   string   `toml:"OTLPEndpoint"`
	OTLPInsecure   bool     `toml:"OTLPInsecure"`

	// TraceSampleRatio keeps this fraction of root spans; 0 keeps all.
	TraceSampleRatio float64 `toml:"TraceSampleRatio"`
}
