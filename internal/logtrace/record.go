package logtrace

import "time"

// Record is a trace attributed to the transaction that produced it. Seq is
// the trace's position among the top-level invocations of that transaction.
type Record struct {
	Signature  string    `json:"signature"`
	Slot       uint64    `json:"slot"`
	Seq        int       `json:"seq"`
	Failed     bool      `json:"failed"`
	ErrorCode  *uint32   `json:"error_code,omitempty"`
	ErrorName  string    `json:"error_name,omitempty"`
	Trace      Trace     `json:"trace"`
	ReceivedAt time.Time `json:"received_at"`
}

// Root returns the label of the outermost instruction, or "" for an empty
// trace.
func (r Record) Root() string {
	if len(r.Trace.Frames) == 0 {
		return ""
	}
	return r.Trace.Frames[0].Label
}

// Collect reconstructs every complete trace in logs.
func Collect(logs []string) []Trace {
	var traces []Trace
	rec := New(func(t Trace) { traces = append(traces, t) })
	for _, line := range logs {
		rec.Feed(line)
	}
	return traces
}
