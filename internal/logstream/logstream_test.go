package logstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldbell/mango-v4-go/internal/logtrace"
	"github.com/coldbell/mango-v4-go/internal/mango"
)

const programID = "4MangoMjqJ2firMokCjjGgoK8d4MXcrgL7XJaL3w6fVg"

var placeOrderLogs = []string{
	"Program " + programID + " invoke [1]",
	"Program log: Instruction: PerpPlaceOrder",
	"Program " + programID + " consumed 58306 of 1133194 compute units",
	"Program " + programID + " success",
}

func notification(sig string, slot uint64, txErr string, logs []string) logsNotification {
	var n logsNotification
	n.Context.Slot = slot
	n.Value.Signature = sig
	n.Value.Logs = logs
	if txErr != "" {
		n.Value.Err = json.RawMessage(txErr)
	}
	return n
}

type recordingSink struct {
	mu      sync.Mutex
	records []logtrace.Record
	notify  chan struct{}
	err     error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{notify: make(chan struct{}, 16)}
}

func (s *recordingSink) SaveTraces(_ context.Context, records []logtrace.Record) error {
	s.mu.Lock()
	s.records = append(s.records, records...)
	s.mu.Unlock()
	s.notify <- struct{}{}
	return s.err
}

func (s *recordingSink) snapshot() []logtrace.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]logtrace.Record(nil), s.records...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildRecordsSuccess(t *testing.T) {
	now := time.Unix(1700000000, 0)
	records := buildRecords(notification("sig1", 42, "null", append(placeOrderLogs, placeOrderLogs...)), now)
	require.Len(t, records, 2)

	for i, r := range records {
		assert.Equal(t, "sig1", r.Signature)
		assert.Equal(t, uint64(42), r.Slot)
		assert.Equal(t, i, r.Seq)
		assert.False(t, r.Failed)
		assert.Nil(t, r.ErrorCode)
		assert.Equal(t, "PerpPlaceOrder", r.Root())
		assert.Equal(t, now, r.ReceivedAt)
	}
}

func TestBuildRecordsMapsErrorFromLogs(t *testing.T) {
	logs := []string{
		"Program log: Instruction: TokenWithdraw",
		"Program " + programID + " consumed 12000 of 200000 compute units",
		"Program " + programID + " failed: custom program error: 0x1776",
	}
	records := buildRecords(notification("sig2", 1, `{"InstructionError":[0,{"Custom":6006}]}`, logs), time.Now())
	require.Len(t, records, 1)
	require.NotNil(t, records[0].ErrorCode)
	assert.True(t, records[0].Failed)
	assert.Equal(t, uint32(6006), *records[0].ErrorCode)
	assert.Equal(t, "HealthMustBePositive", records[0].ErrorName)
}

func TestErrorCodeFromInstructionError(t *testing.T) {
	n := notification("sig3", 1, `{"InstructionError":[1,{"Custom":6016}]}`, nil)
	code, ok := n.errorCode()
	require.True(t, ok)
	assert.Equal(t, uint32(6016), code)

	n = notification("sig4", 1, `{"InstructionError":[0,"InvalidAccountData"]}`, nil)
	_, ok = n.errorCode()
	assert.False(t, ok)

	assert.False(t, notification("sig5", 1, "", nil).failed())
	assert.False(t, notification("sig5", 1, "null", nil).failed())
}

func TestBuildRecordsWithoutCompleteTraces(t *testing.T) {
	assert.Nil(t, buildRecords(notification("sig", 1, "", []string{"Program log: Instruction: Open"}), time.Now()))
}

func TestHandleDropsDuplicates(t *testing.T) {
	sink := newRecordingSink()
	f := New(Options{ProgramID: mango.ProgramID}, sink, nil, quietLogger())

	n := notification("dup", 1, "null", placeOrderLogs)
	assert.True(t, f.handle(context.Background(), n))
	assert.False(t, f.handle(context.Background(), n))

	assert.Len(t, sink.snapshot(), 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.duplicates))
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.notifications))
}

func TestHandleCountsSinkFailures(t *testing.T) {
	sink := newRecordingSink()
	sink.err = errors.New("db down")
	f := New(Options{}, sink, nil, quietLogger())

	f.handle(context.Background(), notification("a", 1, `{"InstructionError":[0,{"Custom":6006}]}`, placeOrderLogs))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.sinkFailures))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.programErrors.WithLabelValues("HealthMustBePositive")))
}

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	code := uint32(6006)
	traces := logtrace.Collect(placeOrderLogs)
	err := NewWriterSink(&buf).SaveTraces(context.Background(), []logtrace.Record{
		{Signature: "s", Slot: 9, Trace: traces[0]},
		{Signature: "s", Slot: 9, Seq: 1, Failed: true, ErrorCode: &code, ErrorName: "HealthMustBePositive", Trace: traces[0]},
	})
	require.NoError(t, err)

	want := "# s slot=9 seq=0\n" +
		"Instruction: PerpPlaceOrder, Program: " + programID + ", Consumed Units: 58306\n\n" +
		"# s slot=9 seq=1 failed error=HealthMustBePositive\n" +
		"Instruction: PerpPlaceOrder, Program: " + programID + ", Consumed Units: 58306\n\n"
	assert.Equal(t, want, buf.String())
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	ok := newRecordingSink()
	bad := newRecordingSink()
	bad.err = errors.New("boom")

	err := MultiSink{ok, bad}.SaveTraces(context.Background(), []logtrace.Record{{Signature: "x"}})
	require.ErrorContains(t, err, "boom")
	assert.Len(t, ok.snapshot(), 1)
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextBackoff(0, time.Second, 30*time.Second))
	assert.Equal(t, 16*time.Second, nextBackoff(8*time.Second, time.Second, 30*time.Second))
	assert.Equal(t, 30*time.Second, nextBackoff(20*time.Second, time.Second, 30*time.Second))
}

func TestFollowerStreamsFromWebsocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan rpcRequest, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req rpcRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		subscribed <- req
		_ = conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "result": 7, "id": req.ID})

		for _, sig := range []string{"first", "first", "second"} {
			_ = conn.WriteJSON(map[string]any{
				"jsonrpc": "2.0",
				"method":  "logsNotification",
				"params": map[string]any{
					"subscription": 7,
					"result":       notification(sig, 100, "null", placeOrderLogs),
				},
			})
		}
		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	sink := newRecordingSink()
	f := New(Options{
		Endpoint:  "ws" + strings.TrimPrefix(srv.URL, "http"),
		ProgramID: solana.MustPublicKeyFromBase58(programID),
	}, sink, nil, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	req := <-subscribed
	assert.Equal(t, "logsSubscribe", req.Method)

	for i := 0; i < 2; i++ {
		select {
		case <-sink.notify:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for traces")
		}
	}
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("follower did not stop")
	}

	records := sink.snapshot()
	require.Len(t, records, 2)
	assert.Equal(t, "first", records[0].Signature)
	assert.Equal(t, "second", records[1].Signature)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.duplicates))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSubscribeLogsFraming(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- payload
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := subscribeLogs(ctx, wsURL(srv), programID, "confirmed")
	require.NoError(t, err)
	defer sub.Close()

	select {
	case payload := <-received:
		assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"method":"logsSubscribe","params":[
			{"mentions":["`+programID+`"]},
			{"commitment":"confirmed"}
		]}`, string(payload))
	case <-time.After(5 * time.Second):
		t.Fatal("no subscribe request")
	}

	// Cancelling the context must unblock a pending read.
	readErr := make(chan error, 1)
	go func() {
		_, err := sub.next()
		readErr <- err
	}()
	cancel()
	select {
	case err := <-readErr:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("read not unblocked by cancel")
	}
}

func TestSubscribeLogsHandshakeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := subscribeLogs(context.Background(), wsURL(srv), programID, "confirmed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
