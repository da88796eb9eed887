package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldbell/mango-v4-go/internal/codec"
	"github.com/coldbell/mango-v4-go/internal/config"
	"github.com/coldbell/mango-v4-go/internal/mango"
)

type memorySource map[solana.PublicKey]*mango.AccountInfo

func (m memorySource) GetAccount(_ context.Context, address solana.PublicKey) (*mango.AccountInfo, error) {
	return m[address], nil
}

func (m memorySource) GetAccounts(_ context.Context, addresses []solana.PublicKey) ([]*mango.AccountInfo, error) {
	out := make([]*mango.AccountInfo, len(addresses))
	for i, a := range addresses {
		out[i] = m[a]
	}
	return out, nil
}

func execute(t *testing.T, src mango.AccountSource, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CONFIG_PHASE", "test")
	t.Setenv("LOG_LEVEL", "error")

	var factory sourceFactory
	if src != nil {
		factory = func(config.ClientConfig) mango.AccountSource { return src }
	}
	cmd := newRootCmd(factory)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func oracleData(t *testing.T, lastUpdated int64) []byte {
	t.Helper()
	data, err := mango.EncodeAccount(&mango.StubOracle{Price: codec.I80F48FromInt(3), LastUpdated: lastUpdated})
	require.NoError(t, err)
	return data
}

func TestErrorsCommand(t *testing.T) {
	out, err := execute(t, nil, "", "errors", "0x1776")
	require.NoError(t, err)
	var view programErrorView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, uint32(6006), view.Code)
	assert.Equal(t, "HealthMustBePositive", view.Name)

	out, err = execute(t, nil, "", "errors")
	require.NoError(t, err)
	var all []programErrorView
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	assert.Len(t, all, 23)

	_, err = execute(t, nil, "", "errors", "1")
	assert.ErrorContains(t, err, "unknown program error")
}

func TestInstructionsCommand(t *testing.T) {
	out, err := execute(t, nil, "", "instructions", "perp_consume_events")
	require.NoError(t, err)
	var detail instructionDetail
	require.NoError(t, json.Unmarshal([]byte(out), &detail))
	assert.Equal(t, "perp_consume_events", detail.Name)
	require.Len(t, detail.Args, 1)
	assert.Equal(t, "limit", detail.Args[0].Name)

	def, _ := mango.LookupInstruction("perp_consume_events")
	assert.Equal(t, hex.EncodeToString(def.Opcode[:]), detail.Opcode)

	_, err = execute(t, nil, "", "instructions", "missing")
	assert.Error(t, err)
}

func TestDecodeCommand(t *testing.T) {
	data := oracleData(t, 11)

	out, err := execute(t, nil, "", "decode", base64.StdEncoding.EncodeToString(data))
	require.NoError(t, err)
	assert.Contains(t, out, `"kind":"StubOracle"`)
	assert.Contains(t, out, `"last_updated":11`)

	out, err = execute(t, nil, hex.EncodeToString(data)+"\n", "decode", "-", "--encoding", "hex", "--kind", "StubOracle")
	require.NoError(t, err)
	assert.Contains(t, out, `"last_updated":11`)

	_, err = execute(t, nil, "", "decode", base64.StdEncoding.EncodeToString(data), "--kind", "Bank")
	assert.Error(t, err)
}

func TestFetchCommand(t *testing.T) {
	owned := solana.NewWallet().PublicKey()
	foreign := solana.NewWallet().PublicKey()
	missing := solana.NewWallet().PublicKey()
	src := memorySource{
		owned:   {Owner: mango.ProgramID, Data: oracleData(t, 5)},
		foreign: {Owner: solana.SystemProgramID, Data: oracleData(t, 6)},
	}

	out, err := execute(t, src, "", "fetch", owned.String(), "--program", mango.ProgramID.String())
	require.NoError(t, err)
	var single struct {
		Address string `json:"address"`
		Kind    string `json:"kind"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &single))
	assert.Equal(t, owned.String(), single.Address)
	assert.Equal(t, "StubOracle", single.Kind)

	out, err = execute(t, src, "", "fetch", owned.String(), foreign.String(), missing.String(), "--program", mango.ProgramID.String())
	require.ErrorContains(t, err, "2 of 3 accounts")
	var many []struct {
		Address string `json:"address"`
		Error   string `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &many))
	require.Len(t, many, 3)
	assert.Empty(t, many[0].Error)
	assert.Contains(t, many[1].Error, "owner mismatch")
	assert.Contains(t, many[2].Error, "account not found")

	_, err = execute(t, src, "", "fetch", "not-a-key")
	assert.ErrorContains(t, err, "invalid address")
}

func TestPDACommand(t *testing.T) {
	group := solana.NewWallet().PublicKey()
	out, err := execute(t, nil, "", "pda", "bank", group.String(), "4", "0", "--program", mango.ProgramID.String())
	require.NoError(t, err)

	var res pdaResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	want, bump, err := mango.FindBankAddress(mango.ProgramID, group, 4, 0)
	require.NoError(t, err)
	assert.Equal(t, want.String(), res.Address)
	assert.Equal(t, bump, res.Bump)

	_, err = execute(t, nil, "", "pda", "bank", group.String(), "70000", "0")
	assert.ErrorContains(t, err, "token_index")

	_, err = execute(t, nil, "", "pda", "bank", group.String())
	assert.ErrorContains(t, err, "takes 3 arguments")

	_, err = execute(t, nil, "", "pda", "nope")
	assert.ErrorContains(t, err, "unknown pda kind")
}
