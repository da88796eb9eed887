package mango

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultBatchSize is the getMultipleAccounts key limit of public RPC nodes.
	DefaultBatchSize     = 100
	maxConcurrentBatches = 4
)

// AccountInfo is the raw account as returned by the node.
type AccountInfo struct {
	Owner    solana.PublicKey
	Lamports uint64
	Data     []byte
}

// AccountSource fetches raw account bytes. A nil *AccountInfo with a nil
// error means the account does not exist. GetAccounts returns one entry per
// address, in input order.
type AccountSource interface {
	GetAccount(ctx context.Context, address solana.PublicKey) (*AccountInfo, error)
	GetAccounts(ctx context.Context, addresses []solana.PublicKey) ([]*AccountInfo, error)
}

type RPCSource struct {
	client     *rpc.Client
	commitment rpc.CommitmentType
	batchSize  int
}

func NewRPCSource(client *rpc.Client, commitment rpc.CommitmentType, batchSize int) *RPCSource {
	if batchSize <= 0 || batchSize > DefaultBatchSize {
		batchSize = DefaultBatchSize
	}
	return &RPCSource{client: client, commitment: commitment, batchSize: batchSize}
}

func (s *RPCSource) GetAccount(ctx context.Context, address solana.PublicKey) (*AccountInfo, error) {
	resp, err := s.client.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Commitment: s.commitment,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account %s: %w", address, err)
	}
	if resp == nil || resp.Value == nil {
		return nil, nil
	}
	return toAccountInfo(resp.Value), nil
}

// GetAccounts splits addresses into batches, fetches them concurrently and
// reassembles the results in input order.
func (s *RPCSource) GetAccounts(ctx context.Context, addresses []solana.PublicKey) ([]*AccountInfo, error) {
	out := make([]*AccountInfo, len(addresses))
	if len(addresses) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentBatches)
	for i, chunk := range lo.Chunk(addresses, s.batchSize) {
		offset := i * s.batchSize
		g.Go(func() error {
			resp, err := s.client.GetMultipleAccountsWithOpts(gctx, chunk, &rpc.GetMultipleAccountsOpts{
				Commitment: s.commitment,
				Encoding:   solana.EncodingBase64,
			})
			if err != nil {
				return fmt.Errorf("get multiple accounts [%d:%d]: %w", offset, offset+len(chunk), err)
			}
			if resp == nil || len(resp.Value) != len(chunk) {
				return fmt.Errorf("get multiple accounts [%d:%d]: unexpected account count", offset, offset+len(chunk))
			}
			for j, acc := range resp.Value {
				if acc != nil {
					out[offset+j] = toAccountInfo(acc)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func toAccountInfo(acc *rpc.Account) *AccountInfo {
	info := &AccountInfo{Owner: acc.Owner, Lamports: acc.Lamports}
	if acc.Data != nil {
		info.Data = acc.Data.GetBinary()
	}
	return info
}

// Fetch loads and decodes one account. It returns nil, nil when the account
// does not exist and ErrOwnerMismatch when it is not owned by programID.
func Fetch[T any, PT accountPtr[T]](ctx context.Context, src AccountSource, programID, address solana.PublicKey) (*T, error) {
	info, err := src.GetAccount(ctx, address)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, nil
	}
	return decodeFetched[T, PT](programID, address, info)
}

// FetchResult is one entry of a batched fetch. Account is nil when the
// address does not exist or Err is set.
type FetchResult[T any] struct {
	Address solana.PublicKey
	Account *T
	Err     error
}

// FetchMultiple loads many accounts of one kind with a single logical
// request. Missing accounts, foreign owners and decode failures are reported
// per entry; only a transport failure fails the call.
func FetchMultiple[T any, PT accountPtr[T]](ctx context.Context, src AccountSource, programID solana.PublicKey, addresses []solana.PublicKey) ([]FetchResult[T], error) {
	infos, err := src.GetAccounts(ctx, addresses)
	if err != nil {
		return nil, err
	}
	if len(infos) != len(addresses) {
		return nil, fmt.Errorf("account source returned %d entries for %d addresses", len(infos), len(addresses))
	}

	results := make([]FetchResult[T], len(addresses))
	for i, info := range infos {
		results[i].Address = addresses[i]
		if info == nil {
			continue
		}
		results[i].Account, results[i].Err = decodeFetched[T, PT](programID, addresses[i], info)
	}
	return results, nil
}

func decodeFetched[T any, PT accountPtr[T]](programID, address solana.PublicKey, info *AccountInfo) (*T, error) {
	if err := checkOwner(programID, address, info); err != nil {
		return nil, err
	}
	acc, err := DecodeAccount[T, PT](info.Data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", address, err)
	}
	return acc, nil
}

// DecodeOwned decodes an already fetched account after checking that
// programID owns it. kind follows DecodeKind.
func DecodeOwned(programID, address solana.PublicKey, info *AccountInfo, kind string) (Account, error) {
	if info == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	if err := checkOwner(programID, address, info); err != nil {
		return nil, err
	}
	acc, err := DecodeKind(kind, info.Data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", address, err)
	}
	return acc, nil
}

func checkOwner(programID, address solana.PublicKey, info *AccountInfo) error {
	if !info.Owner.Equals(programID) {
		return fmt.Errorf("%w: %s is owned by %s, expected %s", ErrOwnerMismatch, address, info.Owner, programID)
	}
	return nil
}
