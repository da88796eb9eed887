package mango

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindMangoAccountAddress(t *testing.T) {
	group := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()

	first, bump, err := FindMangoAccountAddress(ProgramID, group, owner, 0)
	require.NoError(t, err)
	again, bumpAgain, err := FindMangoAccountAddress(ProgramID, group, owner, 0)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, bump, bumpAgain)
	assert.Equal(t, first, MustFindMangoAccountAddress(ProgramID, group, owner, 0))

	second, _, err := FindMangoAccountAddress(ProgramID, group, owner, 1)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	want, _, err := solana.FindProgramAddress([][]byte{
		group.Bytes(), []byte("MangoAccount"), owner.Bytes(), {1, 0, 0, 0},
	}, ProgramID)
	require.NoError(t, err)
	assert.Equal(t, want, second)
}

func TestFindMarketAddressesDiffer(t *testing.T) {
	group := solana.NewWallet().PublicKey()

	bank, _, err := FindBankAddress(ProgramID, group, 1, 0)
	require.NoError(t, err)
	vault, _, err := FindVaultAddress(ProgramID, group, 1, 0)
	require.NoError(t, err)
	perp, _, err := FindPerpMarketAddress(ProgramID, group, 1)
	require.NoError(t, err)
	reservation, _, err := FindSerum3IndexReservationAddress(ProgramID, group, 1)
	require.NoError(t, err)

	seen := map[solana.PublicKey]bool{bank: true, vault: true, perp: true, reservation: true}
	assert.Len(t, seen, 4)
}
