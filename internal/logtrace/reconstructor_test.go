package logtrace

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(lines ...string) ([]Trace, *Reconstructor) {
	var traces []Trace
	rec := New(func(t Trace) { traces = append(traces, t) })
	for _, line := range lines {
		rec.Feed(line)
	}
	return traces, rec
}

func TestNestedTrace(t *testing.T) {
	traces, rec := collect(
		"Program Prog1 invoke [1]",
		"Program log: Instruction: Outer",
		"Program Prog2 invoke [2]",
		"Program log: Instruction: Inner",
		"Program Prog2 consumed 5 of 190000 compute units",
		"Program Prog2 success",
		"Program Prog1 consumed 20 of 200000 compute units",
		"Program Prog1 success",
	)
	require.Len(t, traces, 1)
	assert.Equal(t, 0, rec.Pending())

	assert.Equal(t, "Instruction: Outer, Program: Prog1, Consumed Units: 20\n"+
		"\tInstruction: Inner, Program: Prog2, Consumed Units: 5\n", traces[0].String())

	assert.Equal(t, []Frame{
		{Label: "Outer", Program: "Prog1", Consumed: 20, Total: 200000, Depth: 0},
		{Label: "Inner", Program: "Prog2", Consumed: 5, Total: 190000, Depth: 1},
	}, traces[0].Frames)
}

func TestSiblingsAndSeparateTraces(t *testing.T) {
	traces, _ := collect(
		"Instruction: A",
		"Instruction: B",
		"Program P2 consumed 1 of 10 compute units",
		"Instruction: C",
		"Program P3 consumed 2 of 10 compute units",
		"Program P1 consumed 9 of 10 compute units",
		"Instruction: D",
		"Program P4 consumed 4 of 10 compute units",
	)
	require.Len(t, traces, 2)
	// Each pop prepends, so the later sibling renders above the earlier one.
	assert.Equal(t, "Instruction: A, Program: P1, Consumed Units: 9\n"+
		"\tInstruction: C, Program: P3, Consumed Units: 2\n"+
		"\tInstruction: B, Program: P2, Consumed Units: 1\n", traces[0].String())
	assert.Equal(t, "Instruction: D, Program: P4, Consumed Units: 4\n", traces[1].String())
}

func TestConsumedWithEmptyStackIsNoop(t *testing.T) {
	traces, rec := collect(
		"Program P consumed 100 of 200 compute units",
		"Program log: unrelated",
	)
	assert.Empty(t, traces)
	assert.Equal(t, 0, rec.Pending())
}

func TestUnbalancedInputIsDropped(t *testing.T) {
	traces, rec := collect(
		"Instruction: Outer",
		"Instruction: Inner",
		"Program P consumed 3 of 10 compute units",
	)
	assert.Empty(t, traces)
	assert.Equal(t, 1, rec.Pending())

	rec.Reset()
	assert.Equal(t, 0, rec.Pending())
	rec.Feed("Program P consumed 3 of 10 compute units")
	assert.Empty(t, traces)
}

func TestRun(t *testing.T) {
	in := strings.Join([]string{
		"Instruction: Outer",
		"Instruction: Inner",
		"Program Prog2 consumed 5 of 10 compute units",
		"Program Prog1 consumed 20 of 30 compute units",
		"Instruction: Open",
	}, "\n")

	var out bytes.Buffer
	pending, err := Run(strings.NewReader(in), &out)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
	assert.Equal(t, "Instruction: Outer, Program: Prog1, Consumed Units: 20\n"+
		"\tInstruction: Inner, Program: Prog2, Consumed Units: 5\n\n", out.String())
}

func TestRunCRLF(t *testing.T) {
	var out bytes.Buffer
	_, err := Run(strings.NewReader("Instruction: X\r\nProgram P consumed 1 of 2 compute units\r\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "Instruction: X, Program: P, Consumed Units: 1\n\n", out.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRunWriteError(t *testing.T) {
	_, err := Run(strings.NewReader("Instruction: X\nProgram P consumed 1 of 2 compute units\n"), failingWriter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestCollect(t *testing.T) {
	traces := Collect([]string{
		"Program log: Instruction: PerpPlaceOrder",
		"Program 4MangoMjqJ2firMokCjjGgoK8d4MXcrgL7XJaL3w6fVg consumed 58306 of 1133194 compute units",
		"Program log: Instruction: PerpConsumeEvents",
	})
	require.Len(t, traces, 1)

	r := Record{Signature: "sig", Trace: traces[0]}
	assert.Equal(t, "PerpPlaceOrder", r.Root())
	assert.Equal(t, uint64(58306), r.Trace.Frames[0].Consumed)
	assert.Equal(t, "", Record{}.Root())
}
