package keeper

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/coldbell/mango-v4-go/internal/config"
)

// Submitter signs, sends and confirms one transaction.
type Submitter interface {
	Submit(ctx context.Context, instructions []solana.Instruction) (solana.Signature, error)
}

type rpcSubmitter struct {
	cfg    config.CrankConfig
	rpc    *rpc.Client
	signer solana.PrivateKey
}

func newRPCSubmitter(cfg config.CrankConfig, client *rpc.Client, signer solana.PrivateKey) *rpcSubmitter {
	return &rpcSubmitter{cfg: cfg, rpc: client, signer: signer}
}

func (s *rpcSubmitter) Submit(ctx context.Context, instructions []solana.Instruction) (solana.Signature, error) {
	budget, err := computeBudgetInstructions(s.cfg.ComputeUnitLimit, s.cfg.ComputeUnitPriceMicroLamports)
	if err != nil {
		return solana.Signature{}, err
	}

	txCtx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()

	sig, err := s.sendTransaction(txCtx, append(budget, instructions...))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	if err := s.waitForConfirmation(txCtx, sig); err != nil {
		return sig, fmt.Errorf("confirm %s: %w", sig, err)
	}
	return sig, nil
}

func computeBudgetInstructions(limit uint32, priceMicroLamports uint64) ([]solana.Instruction, error) {
	instructions := make([]solana.Instruction, 0, 2)
	if limit > 0 {
		ix, err := computebudget.NewSetComputeUnitLimitInstruction(limit).ValidateAndBuild()
		if err != nil {
			return nil, fmt.Errorf("build compute unit limit instruction: %w", err)
		}
		instructions = append(instructions, ix)
	}
	if priceMicroLamports > 0 {
		ix, err := computebudget.NewSetComputeUnitPriceInstruction(priceMicroLamports).ValidateAndBuild()
		if err != nil {
			return nil, fmt.Errorf("build compute unit price instruction: %w", err)
		}
		instructions = append(instructions, ix)
	}
	return instructions, nil
}

func (s *rpcSubmitter) sendTransaction(ctx context.Context, instructions []solana.Instruction) (solana.Signature, error) {
	recent, err := s.rpc.GetLatestBlockhash(ctx, s.cfg.RPC.Commitment)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("get latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		instructions,
		recent.Value.Blockhash,
		solana.TransactionPayer(s.signer.PublicKey()),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if s.signer.PublicKey().Equals(key) {
			return &s.signer
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}

	opts := rpc.TransactionOpts{
		SkipPreflight:       s.cfg.SkipPreflight,
		PreflightCommitment: s.cfg.RPC.Commitment,
	}
	if s.cfg.MaxRetries != nil {
		retries := *s.cfg.MaxRetries
		opts.MaxRetries = &retries
	}

	return s.rpc.SendTransactionWithOpts(ctx, tx, opts)
}

func (s *rpcSubmitter) waitForConfirmation(ctx context.Context, sig solana.Signature) error {
	ticker := time.NewTicker(700 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			result, err := s.rpc.GetSignatureStatuses(ctx, true, sig)
			if err != nil {
				continue
			}
			if len(result.Value) == 0 || result.Value[0] == nil {
				continue
			}
			status := result.Value[0]
			if status.Err != nil {
				return fmt.Errorf("transaction failed: %v", status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}
	}
}
