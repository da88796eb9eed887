// Package logtrace rebuilds nested instruction traces from flat program logs.
//
// Every "Instruction: X" line opens a frame and every "Program P consumed N of
// M compute units" line closes the innermost open frame. Closed frames are
// rendered with one tab per enclosing frame, and a trace is complete when the
// last open frame closes.
package logtrace

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	instructionPattern = regexp.MustCompile(`Instruction: (.*)$`)
	consumedPattern    = regexp.MustCompile(`Program (\S+) consumed (\d+) of (\d+) compute units`)
)

// Frame is one closed instruction invocation.
type Frame struct {
	Label    string `json:"label"`
	Program  string `json:"program"`
	Consumed uint64 `json:"consumed"`
	Total    uint64 `json:"total"`
	Depth    int    `json:"depth"`
}

func (f Frame) String() string {
	return strings.Repeat("\t", f.Depth) + "Instruction: " + f.Label +
		", Program: " + f.Program +
		", Consumed Units: " + strconv.FormatUint(f.Consumed, 10) + "\n"
}

// Trace is a complete top-level invocation. Frames are in render order:
// the outermost instruction first.
type Trace struct {
	Frames []Frame `json:"frames"`
}

func (t Trace) String() string {
	var b strings.Builder
	for _, f := range t.Frames {
		b.WriteString(f.String())
	}
	return b.String()
}

// Reconstructor is not safe for concurrent use; run one per log stream.
type Reconstructor struct {
	stack  []string
	frames []Frame
	emit   func(Trace)
}

// New returns a Reconstructor that calls emit for every completed trace.
func New(emit func(Trace)) *Reconstructor {
	return &Reconstructor{emit: emit}
}

// Feed consumes one log line. Lines that neither open nor close a frame are
// ignored, as is a close with no open frame.
func (r *Reconstructor) Feed(line string) {
	if m := consumedPattern.FindStringSubmatch(line); m != nil {
		r.pop(m[1], m[2], m[3])
		return
	}
	if m := instructionPattern.FindStringSubmatch(line); m != nil {
		r.stack = append(r.stack, strings.TrimRight(m[1], "\r"))
	}
}

func (r *Reconstructor) pop(program, consumed, total string) {
	if len(r.stack) == 0 {
		return
	}
	label := r.stack[len(r.stack)-1]
	r.stack = r.stack[:len(r.stack)-1]

	used, _ := strconv.ParseUint(consumed, 10, 64)
	limit, _ := strconv.ParseUint(total, 10, 64)
	frame := Frame{Label: label, Program: program, Consumed: used, Total: limit, Depth: len(r.stack)}

	// Outer frames close after inner ones but render before them.
	r.frames = append([]Frame{frame}, r.frames...)

	if len(r.stack) == 0 {
		trace := Trace{Frames: r.frames}
		r.frames = nil
		if r.emit != nil {
			r.emit(trace)
		}
	}
}

// Pending reports how many frames are still open.
func (r *Reconstructor) Pending() int {
	return len(r.stack)
}

// Reset drops any open frames and buffered output.
func (r *Reconstructor) Reset() {
	r.stack = r.stack[:0]
	r.frames = nil
}
