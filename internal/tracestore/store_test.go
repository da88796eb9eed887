package tracestore

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldbell/mango-v4-go/internal/logtrace"
)

func TestRebindPostgresPlaceholders(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{"SELECT '?' FROM t WHERE a = ?", "SELECT '?' FROM t WHERE a = $1"},
		{"SELECT 'it''s ?' , ?", "SELECT 'it''s ?' , $1"},
		{"no placeholders", "no placeholders"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, rebindPostgresPlaceholders(tc.in), tc.in)
	}
}

func TestNormalizePagination(t *testing.T) {
	limit, offset := normalizePagination(0, -5)
	assert.Equal(t, defaultPageLimit, limit)
	assert.Equal(t, 0, offset)

	limit, offset = normalizePagination(1000, 20)
	assert.Equal(t, maxPageLimit, limit)
	assert.Equal(t, 20, offset)
}

func TestBuildTraceQuery(t *testing.T) {
	query, args, limit, offset := buildTraceQuery(TraceFilter{
		Instruction: "PerpPlaceOrder",
		ErrorName:   "HealthMustBePositive",
		FailedOnly:  true,
		Limit:       10,
		Offset:      30,
	})
	assert.Equal(t, 10, limit)
	assert.Equal(t, 30, offset)
	assert.Equal(t, []any{"PerpPlaceOrder", "HealthMustBePositive", 10, 30}, args)
	assert.Contains(t, query, "root_instruction = ? AND error_name = ? AND failed")
	assert.Equal(t, len(args), strings.Count(query, "?"))

	_, args, _, _ = buildTraceQuery(TraceFilter{})
	assert.Equal(t, []any{defaultPageLimit, 0}, args)
}

// TestStoreRoundTrip needs a scratch Postgres database.
func TestStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}
	ctx := context.Background()
	store, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.db.ExecContext(ctx, "DELETE FROM traces WHERE signature LIKE 'tracestore-test-%'")
	require.NoError(t, err)

	traces := logtrace.Collect([]string{
		"Program log: Instruction: Outer",
		"Program log: Instruction: Inner",
		"Program P2 consumed 5 of 190000 compute units",
		"Program P1 consumed 20 of 200000 compute units",
	})
	require.Len(t, traces, 1)

	code := uint32(6006)
	received := time.UnixMilli(1700000000123).UTC()
	records := []logtrace.Record{
		{Signature: "tracestore-test-a", Slot: 10, Trace: traces[0], ReceivedAt: received},
		{Signature: "tracestore-test-b", Slot: 11, Failed: true, ErrorCode: &code, ErrorName: "HealthMustBePositive", Trace: traces[0], ReceivedAt: received},
	}
	require.NoError(t, store.SaveTraces(ctx, records))
	require.NoError(t, store.SaveTraces(ctx, records))

	got, _, _, err := store.ListTraces(ctx, TraceFilter{Signature: "tracestore-test-b"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, records[1].Trace, got[0].Trace)
	assert.Equal(t, received, got[0].ReceivedAt)
	require.NotNil(t, got[0].ErrorCode)
	assert.Equal(t, code, *got[0].ErrorCode)

	got, _, _, err = store.ListTraces(ctx, TraceFilter{Instruction: "Outer"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(got), 2)

	counts, err := store.ErrorCounts(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, counts)
}
