package keeper

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldbell/mango-v4-go/internal/codec"
	"github.com/coldbell/mango-v4-go/internal/config"
	"github.com/coldbell/mango-v4-go/internal/mango"
)

type memorySource struct {
	accounts map[solana.PublicKey]*mango.AccountInfo
}

func (m *memorySource) GetAccount(_ context.Context, address solana.PublicKey) (*mango.AccountInfo, error) {
	return m.accounts[address], nil
}

func (m *memorySource) GetAccounts(_ context.Context, addresses []solana.PublicKey) ([]*mango.AccountInfo, error) {
	out := make([]*mango.AccountInfo, len(addresses))
	for i, address := range addresses {
		out[i] = m.accounts[address]
	}
	return out, nil
}

func (m *memorySource) put(t *testing.T, address solana.PublicKey, acc mango.Account) {
	t.Helper()
	data, err := mango.EncodeAccount(acc)
	require.NoError(t, err)
	m.accounts[address] = &mango.AccountInfo{Owner: mango.ProgramID, Data: data}
}

type recordingSubmitter struct {
	sent   []solana.Instruction
	failOn map[string]bool
}

func (r *recordingSubmitter) Submit(_ context.Context, instructions []solana.Instruction) (solana.Signature, error) {
	r.sent = append(r.sent, instructions...)
	for _, ix := range instructions {
		data, err := ix.Data()
		if err != nil {
			return solana.Signature{}, err
		}
		for name := range r.failOn {
			def, _ := mango.LookupInstruction(name)
			if len(data) >= 8 && [8]byte(data[:8]) == def.Opcode {
				return solana.Signature{}, errors.New("simulated failure")
			}
		}
	}
	return solana.Signature{1}, nil
}

func (r *recordingSubmitter) byName(t *testing.T, name string) []solana.Instruction {
	t.Helper()
	def, ok := mango.LookupInstruction(name)
	require.True(t, ok)
	var out []solana.Instruction
	for _, ix := range r.sent {
		data, err := ix.Data()
		require.NoError(t, err)
		if [8]byte(data[:8]) == def.Opcode {
			out = append(out, ix)
		}
	}
	return out
}

func toSlot(t *testing.T, ev any) mango.AnyEvent {
	t.Helper()
	raw, err := codec.Marshal(ev)
	require.NoError(t, err)
	var slot mango.AnyEvent
	require.NoError(t, codec.Unmarshal(raw, &slot))
	return slot
}

func fillEvent(t *testing.T, maker, taker solana.PublicKey) mango.AnyEvent {
	return toSlot(t, mango.FillEvent{EventType: uint8(mango.EventTypeFill), Maker: maker, Taker: taker, Quantity: 1})
}

func outEvent(t *testing.T, owner solana.PublicKey) mango.AnyEvent {
	return toSlot(t, mango.OutEvent{EventType: uint8(mango.EventTypeOut), Owner: owner, Quantity: 1})
}

func newQueue(events ...mango.AnyEvent) *mango.EventQueue {
	q := &mango.EventQueue{}
	q.Header.Head = mango.EventQueueCapacity - 1
	q.Header.Count = uint32(len(events))
	for i, ev := range events {
		q.Buf[(int(q.Header.Head)+i)%mango.EventQueueCapacity] = ev
	}
	return q
}

func newKey() solana.PublicKey { return solana.NewWallet().PublicKey() }

func TestPlanConsumeEvents(t *testing.T) {
	a, b, c := newKey(), newKey(), newKey()
	events := []mango.AnyEvent{
		fillEvent(t, a, b),
		outEvent(t, a),
		fillEvent(t, c, b),
		{EventType: uint8(mango.EventTypeLiquidate)},
	}

	accounts, n := planConsumeEvents(events, 2)
	assert.Equal(t, 2, n)
	assert.Equal(t, []solana.PublicKey{a, b}, accounts)

	accounts, n = planConsumeEvents(events, 10)
	assert.Equal(t, 4, n)
	assert.Equal(t, []solana.PublicKey{a, b, c}, accounts)

	accounts, n = planConsumeEvents(nil, 10)
	assert.Zero(t, n)
	assert.Empty(t, accounts)
}

type fixture struct {
	cfg     config.CrankConfig
	source  *memorySource
	submit  *recordingSubmitter
	metrics *Metrics
	svc     *Service
	market  solana.PublicKey
	perp    *mango.PerpMarket
}

func newFixture(t *testing.T, events ...mango.AnyEvent) *fixture {
	t.Helper()
	f := &fixture{
		source:  &memorySource{accounts: map[solana.PublicKey]*mango.AccountInfo{}},
		submit:  &recordingSubmitter{},
		metrics: NewMetrics(nil),
		market:  newKey(),
		perp: &mango.PerpMarket{
			Group:      newKey(),
			Oracle:     newKey(),
			Bids:       newKey(),
			Asks:       newKey(),
			EventQueue: newKey(),
		},
	}
	f.source.put(t, f.market, f.perp)
	f.source.put(t, f.perp.EventQueue, newQueue(events...))

	f.cfg = config.CrankConfig{
		ProgramID:          mango.ProgramID,
		PerpMarkets:        []solana.PublicKey{f.market},
		ConsumeEventsLimit: 10,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewWithDeps(f.cfg, f.source, f.submit, f.metrics, logger)
	return f
}

func TestTickConsumesEventsAndUpdatesFunding(t *testing.T) {
	maker, taker, owner := newKey(), newKey(), newKey()
	f := newFixture(t, fillEvent(t, maker, taker), outEvent(t, owner))

	require.NoError(t, f.svc.tick(context.Background()))

	funding := f.submit.byName(t, "perp_update_funding")
	require.Len(t, funding, 1)
	metas := funding[0].Accounts()
	require.Len(t, metas, 5)
	assert.Equal(t, f.perp.Group, metas[0].PublicKey)
	assert.Equal(t, f.market, metas[1].PublicKey)
	assert.True(t, metas[1].IsWritable)
	assert.Equal(t, f.perp.Oracle, metas[4].PublicKey)

	consume := f.submit.byName(t, "perp_consume_events")
	require.Len(t, consume, 1)
	data, err := consume[0].Data()
	require.NoError(t, err)
	require.Len(t, data, 16)
	assert.Equal(t, uint64(2), binary.LittleEndian.Uint64(data[8:]))

	metas = consume[0].Accounts()
	require.Len(t, metas, 6)
	assert.Equal(t, f.perp.EventQueue, metas[2].PublicKey)
	for i, want := range []solana.PublicKey{maker, taker, owner} {
		assert.Equal(t, want, metas[3+i].PublicKey)
		assert.True(t, metas[3+i].IsWritable)
		assert.False(t, metas[3+i].IsSigner)
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.eventsConsumed))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.transactions.WithLabelValues(opConsumeEvents, resultSuccess)))
}

func TestTickSkipsEmptyQueue(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.tick(context.Background()))
	assert.Len(t, f.submit.byName(t, "perp_update_funding"), 1)
	assert.Empty(t, f.submit.byName(t, "perp_consume_events"))
}

func TestFundingFailureDoesNotBlockConsume(t *testing.T) {
	f := newFixture(t, outEvent(t, newKey()))
	f.submit.failOn = map[string]bool{"perp_update_funding": true}

	require.NoError(t, f.svc.tick(context.Background()))
	assert.Len(t, f.submit.byName(t, "perp_consume_events"), 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.transactions.WithLabelValues(opUpdateFunding, resultFailure)))
}

func TestConsumeLimitCapsBatch(t *testing.T) {
	events := make([]mango.AnyEvent, 0, 15)
	for i := 0; i < 15; i++ {
		events = append(events, outEvent(t, newKey()))
	}
	f := newFixture(t, events...)

	require.NoError(t, f.svc.tick(context.Background()))
	consume := f.submit.byName(t, "perp_consume_events")
	require.Len(t, consume, 1)
	assert.Len(t, consume[0].Accounts(), 3+10)
}

func TestUnavailableMarketIsSkipped(t *testing.T) {
	f := newFixture(t)
	delete(f.source.accounts, f.market)

	require.NoError(t, f.svc.tick(context.Background()))
	assert.Empty(t, f.submit.sent)
}

func TestUpdateIndexAndRate(t *testing.T) {
	f := newFixture(t)
	mintInfo := newKey()
	info := &mango.MintInfo{Group: f.perp.Group, Oracle: newKey()}
	info.Banks[0] = newKey()
	f.source.put(t, mintInfo, info)

	cfg := f.cfg
	cfg.PerpMarkets = nil
	cfg.MintInfos = []solana.PublicKey{mintInfo}
	svc := NewWithDeps(cfg, f.source, f.submit, f.metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, svc.tick(context.Background()))
	updates := f.submit.byName(t, "token_update_index_and_rate")
	require.Len(t, updates, 1)

	metas := updates[0].Accounts()
	require.Len(t, metas, 5)
	assert.Equal(t, mintInfo, metas[1].PublicKey)
	assert.Equal(t, solana.SysVarInstructionsPubkey, metas[3].PublicKey)
	assert.Equal(t, info.Banks[0], metas[4].PublicKey)
	assert.True(t, metas[4].IsWritable)
}
