package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"vaultchain/config"
	"vaultchain/core/chain"
	"vaultchain/core/events"
	"vaultchain/core/state"
	"vaultchain/core/types"
	"vaultchain/crypto"
	nativecommon "vaultchain/native/common"
	"vaultchain/native/farm"
	"vaultchain/native/strategy"
	"vaultchain/native/token"
	"vaultchain/native/tradefactory"
	"vaultchain/native/vault"
	"vaultchain/observability"
	"vaultchain/observability/logging"
	vaultotel "vaultchain/observability/otel"
	"vaultchain/storage"
)

var errNilConfig = errors.New("node: config must not be nil")

// Contract addresses are derived from fixed labels so they are stable across
// restarts and match between the daemon and the simulator.
var (
	VaultAddress        = crypto.DeriveAddress("vault")
	FarmAddress         = crypto.DeriveAddress("farm")
	StrategyAddress     = crypto.DeriveAddress("strategy")
	TradeFactoryAddress = crypto.DeriveAddress("trade-factory")
	SwapperAddress      = crypto.DeriveAddress("swapper")
)

// Node is the central controller, wiring the token ledgers, farm, vault,
// strategy and trade factory together. Every mutating method is one atomic
// transaction: on failure every component is restored and buffered events
// are dropped.
type Node struct {
	mu sync.Mutex

	logger  *slog.Logger
	tracer  trace.Tracer
	clock   *chain.SimClock
	journal *chain.Journal
	buffer  *events.Buffer
	stream  *events.Broadcaster
	pauses  *nativecommon.PauseSet
	state   *state.Manager
	metrics bool

	registry *token.Registry
	want     *token.Ledger
	reward   *token.Ledger
	shares   *token.Ledger
	extras   []*token.Ledger

	pool     *farm.Pool
	vault    *vault.Vault
	strategy *strategy.Strategy
	factory  *tradefactory.TradeFactory
	swapper  *tradefactory.FixedRateSwapper

	governance common.Address
	mechanics  []common.Address
}

// Option customises node construction.
type Option func(*Node)

// WithLogger sets the node logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithClock replaces the clock seeded from config.GenesisTime.
func WithClock(clock *chain.SimClock) Option {
	return func(n *Node) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithMetrics toggles prometheus recording.
func WithMetrics(enabled bool) Option {
	return func(n *Node) { n.metrics = enabled }
}

// NewNode builds every component from cfg and registers them with the
// journal. db holds checkpoints and report history.
func NewNode(cfg *config.Config, db storage.Database, opts ...Option) (*Node, error) {
	if cfg == nil {
		return nil, errNilConfig
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if db == nil {
		db = storage.NewMemDB()
	}
	mgr, err := state.NewManager(db)
	if err != nil {
		return nil, err
	}
	n := &Node{
		logger:  logging.Discard(),
		tracer:  vaultotel.Tracer(),
		clock:   chain.NewSimClock(cfg.GenesisTime),
		journal: chain.NewJournal(),
		buffer:  &events.Buffer{},
		pauses:  nativecommon.NewPauseSet(),
		state:   mgr,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.stream = events.NewBroadcaster(func() {
		if n.metrics {
			observability.Events().RecordDrop()
		}
	})
	if err := n.build(cfg); err != nil {
		return nil, err
	}
	if err := n.journal.Register(n.want, n.reward, n.shares, n.pool, n.vault, n.strategy, n.factory); err != nil {
		return nil, err
	}
	for _, ledger := range n.extras {
		if err := n.journal.Register(ledger); err != nil {
			return nil, err
		}
	}
	if cp, ok, err := n.state.VaultCheckpoint(); err != nil {
		return nil, err
	} else if ok {
		n.logger.Info("history found in data dir",
			slog.Uint64("last_height", cp.Height),
			slog.String("last_price_per_share", cp.PricePerShare.String()))
	}
	n.checkpoint()
	return n, nil
}

func (n *Node) build(cfg *config.Config) error {
	governance, err := crypto.ParseAddress(cfg.Vault.Governance)
	if err != nil {
		return err
	}
	n.governance = governance
	vcfg := vault.Config{
		Governance:     governance,
		PerformanceFee: cfg.Vault.PerformanceFeeBps,
		ManagementFee:  cfg.Vault.ManagementFeeBps,
	}
	if vcfg.Management, err = config.OptionalAddress(cfg.Vault.Management); err != nil {
		return err
	}
	if vcfg.Guardian, err = config.OptionalAddress(cfg.Vault.Guardian); err != nil {
		return err
	}
	if vcfg.Rewards, err = config.OptionalAddress(cfg.Vault.Rewards); err != nil {
		return err
	}
	if vcfg.DepositLimit, err = config.OptionalAmount(cfg.Vault.DepositLimit); err != nil {
		return err
	}
	if vcfg.LockedProfitDegradation, err = config.OptionalAmount(cfg.Vault.LockedProfitDegradation); err != nil {
		return err
	}

	wantSymbol := strings.ToUpper(strings.TrimSpace(cfg.Vault.WantSymbol))
	rewardSymbol := strings.ToUpper(strings.TrimSpace(cfg.Farm.RewardSymbol))
	n.registry = token.NewRegistry()
	n.want = token.NewLedger(crypto.DeriveAddress("token/"+wantSymbol), wantSymbol, cfg.Vault.WantDecimals)
	n.reward = token.NewLedger(crypto.DeriveAddress("token/"+rewardSymbol), rewardSymbol, cfg.Farm.RewardDecimals)
	n.shares = token.NewLedger(VaultAddress, "yv"+wantSymbol, cfg.Vault.WantDecimals)
	for _, tok := range cfg.Tokens {
		symbol := strings.ToUpper(strings.TrimSpace(tok.Symbol))
		n.extras = append(n.extras, token.NewLedger(crypto.DeriveAddress("token/"+symbol), symbol, tok.Decimals))
	}
	for _, ledger := range append([]*token.Ledger{n.want, n.reward, n.shares}, n.extras...) {
		if err := n.registry.Register(ledger); err != nil {
			return err
		}
	}

	if n.vault, err = vault.New(n.want, n.shares, n.clock, vcfg); err != nil {
		return err
	}

	rewardRate, err := config.OptionalAmount(cfg.Farm.RewardRatePerSecond)
	if err != nil {
		return err
	}
	n.pool, err = farm.NewPool(FarmAddress, n.want, n.reward, n.clock, farm.Params{
		BaseAPRBps:          cfg.Farm.BaseAPRBps,
		FeeAPRBps:           cfg.Farm.FeeAPRBps,
		RewardRatePerSecond: rewardRate,
		ExitPenaltyBps:      cfg.Farm.ExitPenaltyBps,
		LockPeriod:          cfg.Farm.LockPeriod,
	})
	if err != nil {
		return err
	}

	scfg := strategy.Config{
		Address:        StrategyAddress,
		MinReportDelay: cfg.Strategy.MinReportDelay,
		MaxReportDelay: cfg.Strategy.MaxReportDelay,
		ProfitFactor:   cfg.Strategy.ProfitFactor,
	}
	if scfg.Strategist, err = crypto.ParseAddress(cfg.Strategy.Strategist); err != nil {
		return err
	}
	if scfg.Keeper, err = config.OptionalAddress(cfg.Strategy.Keeper); err != nil {
		return err
	}
	if scfg.Rewards, err = config.OptionalAddress(cfg.Strategy.Rewards); err != nil {
		return err
	}
	if scfg.DebtThreshold, err = config.OptionalAmount(cfg.Strategy.DebtThreshold); err != nil {
		return err
	}
	if scfg.CreditThreshold, err = config.OptionalAmount(cfg.Strategy.CreditThreshold); err != nil {
		return err
	}
	if scfg.TendThreshold, err = config.OptionalAmount(cfg.Strategy.TendThreshold); err != nil {
		return err
	}
	n.strategy, err = strategy.New(scfg, strategy.Deps{
		Want:   n.want,
		Reward: n.reward,
		Tokens: n.registry,
		Vault:  n.vault,
		Farm:   n.pool,
		Clock:  n.clock,
	})
	if err != nil {
		return err
	}

	minDebt, err := config.OptionalAmount(cfg.Strategy.MinDebtPerHarvest)
	if err != nil {
		return err
	}
	maxDebt, err := config.OptionalAmount(cfg.Strategy.MaxDebtPerHarvest)
	if err != nil {
		return err
	}
	if err := n.vault.AddStrategy(governance, n.strategy, cfg.Strategy.DebtRatioBps, minDebt, maxDebt, cfg.Strategy.PerformanceFeeBps); err != nil {
		return fmt.Errorf("node: add strategy: %w", err)
	}

	if n.factory, err = tradefactory.New(TradeFactoryAddress, governance, n.registry, n.clock); err != nil {
		return err
	}
	n.swapper = tradefactory.NewFixedRateSwapper(SwapperAddress, n.registry)
	if rate, err := config.OptionalAmount(cfg.TradeFactory.SwapRate); err != nil {
		return err
	} else if rate != nil && rate.Sign() > 0 {
		if err := n.swapper.SetRate(n.reward.Address(), n.want.Address(), rate); err != nil {
			return err
		}
	}
	if err := n.factory.AddSwapper(governance, n.swapper); err != nil {
		return err
	}
	for _, raw := range cfg.TradeFactory.Mechanics {
		mechanic, err := crypto.ParseAddress(raw)
		if err != nil {
			return err
		}
		if err := n.factory.AddMechanic(governance, mechanic); err != nil {
			return err
		}
		n.mechanics = append(n.mechanics, mechanic)
	}
	if cfg.TradeFactory.Enabled {
		if err := n.strategy.SetTradeFactory(governance, n.factory); err != nil {
			return err
		}
	}

	n.vault.SetEmitter(n.buffer)
	n.strategy.SetEmitter(n.buffer)
	n.factory.SetEmitter(n.buffer)
	n.vault.SetPauses(n.pauses)
	n.strategy.SetPauses(n.pauses)
	n.pool.SetPauses(n.pauses)
	n.factory.SetPauses(n.pauses)
	return nil
}

// transact runs fn as one atomic transaction. After a successful commit it
// publishes buffered events, runs post (history writes) and refreshes the
// checkpoint and metrics. caller is the account the operation acts for and
// is masked in logs; the zero address means none.
func (n *Node) transact(ctx context.Context, op string, caller common.Address, fn func() error, post func()) error {
	if ctx == nil {
		ctx = context.Background()
	}
	_, span := n.tracer.Start(ctx, "node."+op)
	defer span.End()

	n.mu.Lock()
	defer n.mu.Unlock()

	err := n.journal.Transact(fn)
	if n.metrics {
		observability.VaultMetrics().RecordTx(op, err)
	}
	if err != nil {
		n.buffer.Discard()
		reason, isRevert := nativecommon.ReasonOf(err)
		if !isRevert {
			reason = err.Error()
		}
		span.SetStatus(codes.Error, reason)
		span.SetAttributes(attribute.Bool("vault.reverted", true))
		attrs := []any{
			slog.String("op", op),
			slog.String("reason", reason),
			slog.Uint64("height", n.clock.Height()),
		}
		if caller != (common.Address{}) {
			attrs = append(attrs, logging.MaskField("caller", caller.Hex()))
		}
		n.logger.Warn("transaction reverted", attrs...)
		return err
	}

	n.publish()
	if post != nil {
		post()
	}
	n.checkpoint()
	n.logger.Debug("transaction committed", slog.String("op", op), slog.Uint64("height", n.clock.Height()))
	return nil
}

func (n *Node) publish() {
	height, now := n.clock.Height(), n.clock.Now()
	for _, evt := range n.buffer.Drain() {
		converted := evt.Event()
		if converted == nil {
			continue
		}
		converted.Height = height
		converted.Timestamp = now
		if n.metrics {
			observability.Events().RecordEvent(converted.Type)
		}
		n.stream.Publish(converted)
	}
}

// checkpoint persists the vault and strategy views and refreshes gauges.
// Storage failures are logged; in-memory state is already committed.
func (n *Node) checkpoint() {
	summary := n.vault.Summary()
	status := n.strategy.Status()
	height, now := n.clock.Height(), n.clock.Now()
	if err := n.state.PutVaultCheckpoint(state.VaultCheckpoint{
		Height:            height,
		Timestamp:         now,
		TotalAssets:       summary.TotalAssets,
		TotalIdle:         summary.TotalIdle,
		TotalDebt:         summary.TotalDebt,
		TotalSupply:       summary.TotalSupply,
		PricePerShare:     summary.PricePerShare,
		LockedProfit:      summary.LockedProfit,
		DebtRatio:         summary.DebtRatio,
		LastReport:        summary.LastReport,
		EmergencyShutdown: summary.EmergencyShutdown,
	}); err != nil {
		n.logger.Error("persist vault checkpoint", slog.Any("error", err))
	}
	if err := n.state.PutStrategyCheckpoint(state.StrategyCheckpoint{
		Address:              status.Address,
		Height:               height,
		Timestamp:            now,
		EstimatedTotalAssets: status.EstimatedTotalAssets,
		TotalDebt:            status.TotalDebt,
		TotalLP:              status.TotalLP,
		DebtRatio:            status.DebtRatio,
		LastReport:           status.LastReport,
		EmergencyExit:        status.EmergencyExit,
	}); err != nil {
		n.logger.Error("persist strategy checkpoint", slog.Any("error", err))
	}
	if n.metrics {
		observability.VaultMetrics().ObserveVault(observability.VaultSnapshot{
			Decimals:      n.want.Decimals(),
			PricePerShare: summary.PricePerShare,
			TotalAssets:   summary.TotalAssets,
			TotalIdle:     summary.TotalIdle,
			TotalDebt:     summary.TotalDebt,
			TotalSupply:   summary.TotalSupply,
			LockedProfit:  summary.LockedProfit,
			DebtRatio:     summary.DebtRatio,
			Shutdown:      summary.EmergencyShutdown,
		})
	}
}

// Subscribe registers an event stream subscriber.
func (n *Node) Subscribe(buffer int) (<-chan *types.Event, func()) {
	return n.stream.Subscribe(buffer)
}

// Subscribers reports the number of live event stream subscribers.
func (n *Node) Subscribers() int {
	return n.stream.Subscribers()
}
