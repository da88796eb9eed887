package mango

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ProgramID is the mainnet deployment of the program.
var ProgramID = solana.MustPublicKeyFromBase58("4MangoMjqJ2firMokCjjGgoK8d4MXcrgL7XJaL3w6fVg")

func FindGroupAddress(programID, creator solana.PublicKey, groupNum uint32) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte("Group"), creator.Bytes(), u32LE(groupNum)}, programID)
}

func FindBankAddress(programID, group solana.PublicKey, tokenIndex TokenIndex, bankNum uint32) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{group.Bytes(), []byte("Bank"), u16LE(uint16(tokenIndex)), u32LE(bankNum)}, programID)
}

func FindVaultAddress(programID, group solana.PublicKey, tokenIndex TokenIndex, bankNum uint32) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{group.Bytes(), []byte("Vault"), u16LE(uint16(tokenIndex)), u32LE(bankNum)}, programID)
}

func FindMintInfoAddress(programID, group, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{group.Bytes(), []byte("MintInfo"), mint.Bytes()}, programID)
}

func FindMangoAccountAddress(programID, group, owner solana.PublicKey, accountNum uint32) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{group.Bytes(), []byte("MangoAccount"), owner.Bytes(), u32LE(accountNum)}, programID)
}

func FindStubOracleAddress(programID, group, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{group.Bytes(), []byte("StubOracle"), mint.Bytes()}, programID)
}

func FindPerpMarketAddress(programID, group solana.PublicKey, perpMarketIndex PerpMarketIndex) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{group.Bytes(), []byte("PerpMarket"), u16LE(uint16(perpMarketIndex))}, programID)
}

func FindSerum3MarketAddress(programID, group, serumMarketExternal solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{group.Bytes(), []byte("Serum3Market"), serumMarketExternal.Bytes()}, programID)
}

func FindSerum3IndexReservationAddress(programID, group solana.PublicKey, marketIndex Serum3MarketIndex) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte("Serum3Index"), group.Bytes(), u16LE(uint16(marketIndex))}, programID)
}

func FindSerum3OpenOrdersAddress(programID, account, serumMarket solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte("Serum3OO"), account.Bytes(), serumMarket.Bytes()}, programID)
}

func FindInsuranceVaultAddress(programID, group solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{group.Bytes(), []byte("InsuranceVault")}, programID)
}

func MustFindMangoAccountAddress(programID, group, owner solana.PublicKey, accountNum uint32) solana.PublicKey {
	pk, _, err := FindMangoAccountAddress(programID, group, owner, accountNum)
	if err != nil {
		panic(fmt.Errorf("derive mango account PDA: %w", err))
	}
	return pk
}

func u16LE(value uint16) []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, value)
	return buf
}

func u32LE(value uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, value)
	return buf
}
