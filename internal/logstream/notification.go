package logstream

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/coldbell/mango-v4-go/internal/logtrace"
	"github.com/coldbell/mango-v4-go/internal/mango"
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcMessage covers both the subscribe response and notifications.
type rpcMessage struct {
	ID     *uint64         `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	Params *struct {
		Subscription uint64           `json:"subscription"`
		Result       logsNotification `json:"result"`
	} `json:"params"`
}

type logsNotification struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value struct {
		Signature string          `json:"signature"`
		Err       json.RawMessage `json:"err"`
		Logs      []string        `json:"logs"`
	} `json:"value"`
}

func subscribeRequest(id uint64, programID string, commitment string) rpcRequest {
	return rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "logsSubscribe",
		Params: []any{
			map[string]any{"mentions": []string{programID}},
			map[string]any{"commitment": commitment},
		},
	}
}

func (n logsNotification) failed() bool {
	raw := bytes.TrimSpace(n.Value.Err)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// errorCode finds the custom program error of a failed transaction, first
// in the logs and then in the structured InstructionError.
func (n logsNotification) errorCode() (uint32, bool) {
	for _, line := range n.Value.Logs {
		if code, ok := mango.ParseCustomError(line); ok {
			return code, true
		}
	}

	var txErr struct {
		InstructionError []json.RawMessage `json:"InstructionError"`
	}
	if err := json.Unmarshal(n.Value.Err, &txErr); err != nil || len(txErr.InstructionError) != 2 {
		return 0, false
	}
	var custom struct {
		Custom *uint32 `json:"Custom"`
	}
	if err := json.Unmarshal(txErr.InstructionError[1], &custom); err != nil || custom.Custom == nil {
		return 0, false
	}
	return *custom.Custom, true
}

// buildRecords reconstructs the traces of one notification. Every record of a
// failed transaction carries the mapped program error, if one was found.
func buildRecords(n logsNotification, receivedAt time.Time) []logtrace.Record {
	traces := logtrace.Collect(n.Value.Logs)
	if len(traces) == 0 {
		return nil
	}

	failed := n.failed()
	var (
		code    *uint32
		errName string
	)
	if failed {
		if c, ok := n.errorCode(); ok {
			code = &c
			if pe, ok := mango.LookupError(c); ok {
				errName = pe.Name
			}
		}
	}

	records := make([]logtrace.Record, len(traces))
	for i, trace := range traces {
		records[i] = logtrace.Record{
			Signature:  n.Value.Signature,
			Slot:       n.Context.Slot,
			Seq:        i,
			Failed:     failed,
			ErrorCode:  code,
			ErrorName:  errName,
			Trace:      trace,
			ReceivedAt: receivedAt,
		}
	}
	return records
}
