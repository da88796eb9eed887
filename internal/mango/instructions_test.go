package mango

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/near/borsh-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldbell/mango-v4-go/internal/codec"
)

func TestInstructionTable(t *testing.T) {
	defs := Instructions()
	require.Len(t, defs, 56)

	seen := make(map[string]bool, len(defs))
	for i, def := range defs {
		assert.False(t, seen[def.Name], "duplicate %s", def.Name)
		seen[def.Name] = true
		if i > 0 {
			assert.Less(t, defs[i-1].Name, def.Name)
		}
		assert.Equal(t, codec.InstructionDiscriminator(def.Name), def.Opcode, def.Name)

		roles := make(map[string]bool, len(def.Accounts))
		for _, role := range def.Accounts {
			assert.False(t, roles[role.Name], "%s lists %s twice", def.Name, role.Name)
			roles[role.Name] = true
		}

		if def.Args != nil {
			_, err := codec.SchemaFor(def.Args)
			assert.NoError(t, err, def.Name)
		}
	}

	def, ok := LookupInstruction("perp_place_order")
	require.True(t, ok)
	assert.Equal(t, [8]byte{0xbd, 0xc4, 0xe1, 0xc9, 0x72, 0xac, 0x19, 0xa6}, def.Opcode)

	_, ok = LookupInstruction("perp_place_order_v2")
	assert.False(t, ok)
}

func depositAccounts() map[string]solana.PublicKey {
	accounts := make(map[string]solana.PublicKey)
	for _, role := range []string{
		RoleGroup, RoleAccount, RoleOwner, RoleBank, RoleVault,
		RoleOracle, RoleTokenAccount, RoleTokenAuthority, RoleTokenProgram,
	} {
		accounts[role] = solana.NewWallet().PublicKey()
	}
	return accounts
}

func TestBuildTokenDeposit(t *testing.T) {
	accounts := depositAccounts()
	bankOracle := solana.NewAccountMeta(solana.NewWallet().PublicKey(), false, false)

	ix, err := BuildInstruction(ProgramID, "token_deposit", TokenDepositArgs{Amount: 1_000_000}, accounts, bankOracle)
	require.NoError(t, err)
	assert.Equal(t, ProgramID, ix.ProgramID())

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 16)
	def, _ := LookupInstruction("token_deposit")
	assert.Equal(t, def.Opcode[:], data[:8])
	assert.Equal(t, uint64(1_000_000), binary.LittleEndian.Uint64(data[8:]))

	metas := ix.Accounts()
	require.Len(t, metas, 10)
	want := []struct {
		role     string
		signer   bool
		writable bool
	}{
		{RoleGroup, false, false},
		{RoleAccount, false, true},
		{RoleOwner, true, false},
		{RoleBank, false, true},
		{RoleVault, false, true},
		{RoleOracle, false, false},
		{RoleTokenAccount, false, true},
		{RoleTokenAuthority, true, false},
		{RoleTokenProgram, false, false},
	}
	for i, w := range want {
		assert.Equal(t, accounts[w.role], metas[i].PublicKey, w.role)
		assert.Equal(t, w.signer, metas[i].IsSigner, w.role)
		assert.Equal(t, w.writable, metas[i].IsWritable, w.role)
	}
	assert.Same(t, bankOracle, metas[9])
}

func TestBuildInstructionDeterministic(t *testing.T) {
	accounts := map[string]solana.PublicKey{
		RoleGroup:      solana.NewWallet().PublicKey(),
		RoleAccount:    solana.NewWallet().PublicKey(),
		RoleOwner:      solana.NewWallet().PublicKey(),
		RolePerpMarket: solana.NewWallet().PublicKey(),
		RoleBids:       solana.NewWallet().PublicKey(),
		RoleAsks:       solana.NewWallet().PublicKey(),
		RoleEventQueue: solana.NewWallet().PublicKey(),
		RoleOracle:     solana.NewWallet().PublicKey(),
	}
	args := &PerpPlaceOrderArgs{
		Side:            SideAsk,
		PriceLots:       1500,
		MaxBaseLots:     10,
		MaxQuoteLots:    15000,
		ClientOrderID:   77,
		OrderType:       OrderTypeImmediateOrCancel,
		ExpiryTimestamp: 0,
		Limit:           10,
	}

	first, err := BuildInstruction(ProgramID, "perp_place_order", args, accounts)
	require.NoError(t, err)
	second, err := BuildInstruction(ProgramID, "perp_place_order", *args, accounts)
	require.NoError(t, err)

	a, err := first.Data()
	require.NoError(t, err)
	b, err := second.Data()
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, first.Accounts(), second.Accounts())
	assert.Len(t, a, 8+1+8+8+8+8+1+8+1)
}

func TestBuildInstructionErrors(t *testing.T) {
	accounts := depositAccounts()

	_, err := BuildInstruction(ProgramID, "token_teleport", nil, accounts)
	require.ErrorIs(t, err, ErrUnknownInstruction)

	_, err = BuildInstruction(ProgramID, "token_deposit", TokenWithdrawArgs{Amount: 1}, accounts)
	require.ErrorIs(t, err, ErrArgsType)

	_, err = BuildInstruction(ProgramID, "token_deposit", nil, accounts)
	require.ErrorIs(t, err, ErrArgsType)

	_, err = BuildInstruction(ProgramID, "token_deposit", (*TokenDepositArgs)(nil), accounts)
	require.ErrorIs(t, err, ErrArgsType)

	_, err = BuildInstruction(ProgramID, "health_region_end", TokenDepositArgs{}, accounts)
	require.ErrorIs(t, err, ErrArgsType)

	delete(accounts, RoleVault)
	_, err = BuildInstruction(ProgramID, "token_deposit", TokenDepositArgs{Amount: 1}, accounts)
	require.ErrorIs(t, err, ErrMissingAccount)
	assert.Contains(t, err.Error(), `"vault"`)
}

func TestBuildArglessInstruction(t *testing.T) {
	account := solana.NewWallet().PublicKey()
	ix, err := BuildInstruction(ProgramID, "health_region_end", nil, map[string]solana.PublicKey{RoleAccount: account})
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)
	opcode := codec.InstructionDiscriminator("health_region_end")
	assert.Equal(t, opcode[:], data)
	require.Len(t, ix.Accounts(), 1)
	assert.True(t, ix.Accounts()[0].IsWritable)

	ix, err = BuildInstruction(ProgramID, "benchmark", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, ix.Accounts())
}

func TestInstructionArgsMatchBorsh(t *testing.T) {
	name := "main"
	delegate := solana.NewWallet().PublicKey()
	side := SideBid
	fee := float32(0.0005)

	cases := []struct {
		name string
		args any
	}{
		{"perp_place_order", PerpPlaceOrderArgs{Side: SideAsk, PriceLots: -3, MaxBaseLots: 1, MaxQuoteLots: 2, ClientOrderID: 9, OrderType: OrderTypePostOnlySlide, ExpiryTimestamp: 1234, Limit: 8}},
		{"account_edit", AccountEditArgs{NameOpt: &name, DelegateOpt: &delegate}},
		{"account_edit", AccountEditArgs{}},
		{"flash_loan_begin", FlashLoanBeginArgs{LoanAmounts: []uint64{1, 2, 3}}},
		{"alt_extend", ALTExtendArgs{Index: 1, NewAddresses: []solana.PublicKey{delegate}}},
		{"perp_cancel_all_orders_by_side", PerpCancelAllOrdersBySideArgs{SideOption: &side, Limit: 5}},
		{"account_create", AccountCreateArgs{AccountNum: 1, TokenCount: 8, Serum3Count: 4, PerpCount: 4, PerpOOCount: 8, Name: "alpha"}},
		{"token_withdraw", TokenWithdrawArgs{Amount: 10, AllowBorrow: true}},
		{"perp_edit_market", PerpEditMarketArgs{MakerFeeOpt: &fee}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			want, err := borsh.Serialize(tc.args)
			require.NoError(t, err)

			def, ok := LookupInstruction(tc.name)
			require.True(t, ok)
			data, err := def.EncodeData(tc.args)
			require.NoError(t, err)
			assert.Equal(t, want, data[8:])
		})
	}
}

func TestNewArgs(t *testing.T) {
	def, ok := LookupInstruction("serum3_place_order")
	require.True(t, ok)
	args, ok := def.NewArgs().(*Serum3PlaceOrderArgs)
	require.True(t, ok)
	assert.Zero(t, *args)

	def, ok = LookupInstruction("group_close")
	require.True(t, ok)
	assert.Nil(t, def.NewArgs())
}
