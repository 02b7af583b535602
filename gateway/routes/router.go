package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"vaultchain/core"
	"vaultchain/gateway/middleware"
)

// Rate limit keys applied to the read and write route groups.
const (
	ReadLimitKey  = "read"
	WriteLimitKey = "write"
)

type Config struct {
	Node          *core.Node
	Logger        *slog.Logger
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	// AllowClockControl mounts the clock and faucet routes. Simulation only.
	AllowClockControl bool
}

type handler struct {
	node           *core.Node
	logger         *slog.Logger
	wantDecimals   uint8
	rewardDecimals uint8
}

func New(cfg Config) (http.Handler, error) {
	if cfg.Node == nil {
		return nil, errors.New("routes: node is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	info := cfg.Node.Info()
	h := &handler{
		node:           cfg.Node,
		logger:         logger,
		wantDecimals:   info.Want.Decimals,
		rewardDecimals: info.Reward.Decimals,
	}

	r := chi.NewRouter()
	obs := cfg.Observability
	if obs != nil {
		r.Use(obs.Middleware("root"))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if obs != nil {
		r.Handle("/metrics", obs.MetricsHandler())
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(read chi.Router) {
			if cfg.RateLimiter != nil {
				read.Use(cfg.RateLimiter.Middleware(ReadLimitKey))
			}
			if obs != nil {
				read.Use(obs.Middleware("query"))
			}
			read.Get("/info", h.info)
			read.Get("/vault", h.vault)
			read.Get("/strategy", h.strategy)
			read.Get("/farm", h.farm)
			read.Get("/accounts/{addr}", h.account)
			read.Get("/reports", h.reports)
			read.Get("/trades", h.trades)
			read.Get("/events/ws", h.events)
		})
		v1.Group(func(write chi.Router) {
			if cfg.RateLimiter != nil {
				write.Use(cfg.RateLimiter.Middleware(WriteLimitKey))
			}
			if obs != nil {
				write.Use(obs.Middleware("transaction"))
			}
			write.Post("/approve", h.approve)
			write.Post("/deposit", h.deposit)
			write.Post("/withdraw", h.withdraw)
			write.Post("/harvest", h.harvest)
			write.Post("/tend", h.tend)
			write.Post("/claim-rewards", h.claimRewards)
			write.Post("/claim-fees", h.claimFees)
			write.Post("/debt-ratio", h.debtRatio)
			write.Post("/fees", h.fees)
			write.Post("/emergency-exit", h.emergencyExit)
			write.Post("/shutdown", h.shutdown)
			write.Post("/revoke", h.revoke)
			write.Post("/sweep", h.sweep)
			write.Post("/trades", h.executeTrade)
			write.Post("/trade-factory", h.tradeFactory)
			write.Post("/pause", h.pause)
			if cfg.AllowClockControl {
				write.Post("/clock/advance", h.advanceClock)
				write.Post("/faucet", h.faucet)
			}
		})
	})
	return r, nil
}
