// Package keeper cranks Mango perp markets and banks: it consumes perp
// events, refreshes funding and updates token index and rate.
package keeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/coldbell/mango-v4-go/internal/config"
	"github.com/coldbell/mango-v4-go/internal/mango"
)

type Service struct {
	cfg     config.CrankConfig
	source  mango.AccountSource
	submit  Submitter
	metrics *Metrics
	logger  *slog.Logger
}

func New(cfg config.CrankConfig, logger *slog.Logger, reg prometheus.Registerer) (*Service, error) {
	signer, err := solana.PrivateKeyFromSolanaKeygenFile(cfg.KeypairPath)
	if err != nil {
		return nil, fmt.Errorf("load keypair from %s: %w", cfg.KeypairPath, err)
	}

	client := rpc.New(cfg.RPC.URL)
	source := mango.NewRPCSource(client, cfg.RPC.Commitment, cfg.RPC.BatchSize)
	svc := NewWithDeps(cfg, source, newRPCSubmitter(cfg, client, signer), NewMetrics(reg), logger)
	svc.logger = svc.logger.With("cranker", signer.PublicKey())
	return svc, nil
}

// NewWithDeps wires a Service around an arbitrary account source and
// transaction submitter.
func NewWithDeps(cfg config.CrankConfig, source mango.AccountSource, submit Submitter, metrics *Metrics, logger *slog.Logger) *Service {
	if cfg.ConsumeEventsLimit <= 0 {
		cfg.ConsumeEventsLimit = 10
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:     cfg,
		source:  source,
		submit:  submit,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("crank started",
		"rpc", s.cfg.RPC.URL,
		"commitment", s.cfg.RPC.Commitment,
		"program", s.cfg.ProgramID,
		"perp_markets", len(s.cfg.PerpMarkets),
		"mint_infos", len(s.cfg.MintInfos),
	)

	if err := s.tick(ctx); err != nil {
		s.logger.Error("crank tick failed", "err", err)
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("crank stopped")
			return nil
		case <-ticker.C:
			if err := s.tick(ctx); err != nil {
				s.logger.Error("crank tick failed", "err", err)
			}
		}
	}
}

// tick runs one pass over every configured market and mint. Per-market
// failures are logged and counted; only a fetch failure aborts the pass.
func (s *Service) tick(ctx context.Context) error {
	consumed := 0
	if len(s.cfg.PerpMarkets) > 0 {
		markets, err := mango.FetchMultiple[mango.PerpMarket](ctx, s.source, s.cfg.ProgramID, s.cfg.PerpMarkets)
		if err != nil {
			return fmt.Errorf("fetch perp markets: %w", err)
		}
		for _, res := range markets {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if res.Err != nil || res.Account == nil {
				s.logger.Warn("perp market unavailable", "market", res.Address, "err", res.Err)
				continue
			}
			n, err := s.crankPerpMarket(ctx, res.Address, res.Account)
			if err != nil {
				s.logger.Warn("perp market crank failed", "market", res.Address, "name", res.Account.NameString(), "err", err)
			}
			consumed += n
		}
	}

	updated := 0
	if len(s.cfg.MintInfos) > 0 {
		mints, err := mango.FetchMultiple[mango.MintInfo](ctx, s.source, s.cfg.ProgramID, s.cfg.MintInfos)
		if err != nil {
			return fmt.Errorf("fetch mint infos: %w", err)
		}
		for _, res := range mints {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if res.Err != nil || res.Account == nil {
				s.logger.Warn("mint info unavailable", "mint_info", res.Address, "err", res.Err)
				continue
			}
			if err := s.updateIndexAndRate(ctx, res.Address, res.Account); err != nil {
				s.logger.Warn("token index update failed", "mint_info", res.Address, "token_index", res.Account.TokenIndex, "err", err)
				continue
			}
			updated++
		}
	}

	s.logger.Info("crank tick complete",
		"perp_markets", len(s.cfg.PerpMarkets),
		"events_consumed", consumed,
		"mint_infos", len(s.cfg.MintInfos),
		"index_updates", updated,
	)
	return nil
}

func (s *Service) crankPerpMarket(ctx context.Context, address solana.PublicKey, market *mango.PerpMarket) (int, error) {
	if err := s.updateFunding(ctx, address, market); err != nil {
		s.logger.Warn("funding update failed", "market", address, "err", err)
	}
	return s.consumeEvents(ctx, address, market)
}

func (s *Service) updateFunding(ctx context.Context, address solana.PublicKey, market *mango.PerpMarket) error {
	ix, err := mango.BuildInstruction(s.cfg.ProgramID, "perp_update_funding", nil, map[string]solana.PublicKey{
		mango.RoleGroup:      market.Group,
		mango.RolePerpMarket: address,
		mango.RoleBids:       market.Bids,
		mango.RoleAsks:       market.Asks,
		mango.RoleOracle:     market.Oracle,
	})
	if err != nil {
		return err
	}
	_, err = s.send(ctx, opUpdateFunding, ix)
	return err
}

func (s *Service) consumeEvents(ctx context.Context, address solana.PublicKey, market *mango.PerpMarket) (int, error) {
	queue, err := mango.Fetch[mango.EventQueue](ctx, s.source, s.cfg.ProgramID, market.EventQueue)
	if err != nil {
		return 0, fmt.Errorf("fetch event queue: %w", err)
	}
	if queue == nil {
		return 0, fmt.Errorf("event queue %s not found", market.EventQueue)
	}

	events := queue.Events()
	if len(events) == 0 {
		return 0, nil
	}

	accounts, n := planConsumeEvents(events, s.cfg.ConsumeEventsLimit)
	remaining := make([]*solana.AccountMeta, 0, len(accounts))
	for _, pk := range accounts {
		remaining = append(remaining, solana.NewAccountMeta(pk, true, false))
	}

	ix, err := mango.BuildInstruction(s.cfg.ProgramID, "perp_consume_events",
		mango.PerpConsumeEventsArgs{Limit: uint64(n)},
		map[string]solana.PublicKey{
			mango.RoleGroup:      market.Group,
			mango.RolePerpMarket: address,
			mango.RoleEventQueue: market.EventQueue,
		},
		remaining...,
	)
	if err != nil {
		return 0, err
	}

	sig, err := s.send(ctx, opConsumeEvents, ix)
	if err != nil {
		return 0, err
	}
	s.metrics.eventsConsumed.Add(float64(n))
	s.logger.Debug("events consumed", "market", address, "events", n, "accounts", len(accounts), "signature", sig)
	return n, nil
}

func (s *Service) updateIndexAndRate(ctx context.Context, address solana.PublicKey, info *mango.MintInfo) error {
	banks := info.ActiveBanks()
	remaining := make([]*solana.AccountMeta, 0, len(banks))
	for _, bank := range banks {
		remaining = append(remaining, solana.NewAccountMeta(bank, true, false))
	}

	ix, err := mango.BuildInstruction(s.cfg.ProgramID, "token_update_index_and_rate", nil,
		map[string]solana.PublicKey{
			mango.RoleGroup:        info.Group,
			mango.RoleMintInfo:     address,
			mango.RoleOracle:       info.Oracle,
			mango.RoleInstructions: solana.SysVarInstructionsPubkey,
		},
		remaining...,
	)
	if err != nil {
		return err
	}
	_, err = s.send(ctx, opUpdateIndexRate, ix)
	return err
}

func (s *Service) send(ctx context.Context, op string, ix solana.Instruction) (solana.Signature, error) {
	started := time.Now()
	sig, err := s.submit.Submit(ctx, []solana.Instruction{ix})
	s.metrics.observe(op, err)
	if err != nil {
		return sig, fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.confirmTime.WithLabelValues(op).Observe(time.Since(started).Seconds())
	return sig, nil
}
