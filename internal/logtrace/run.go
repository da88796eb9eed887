package logtrace

import (
	"bufio"
	"fmt"
	"io"
)

const maxLineSize = 1 << 20

// Run feeds every line of in through a fresh Reconstructor and writes each
// completed trace to out followed by a blank line. It returns the number of
// frames still open at end of input; their output is discarded.
func Run(in io.Reader, out io.Writer) (int, error) {
	var writeErr error
	rec := New(func(t Trace) {
		if writeErr != nil {
			return
		}
		_, writeErr = fmt.Fprintln(out, t.String())
	})

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		rec.Feed(scanner.Text())
		if writeErr != nil {
			return rec.Pending(), fmt.Errorf("write trace: %w", writeErr)
		}
	}
	if err := scanner.Err(); err != nil {
		return rec.Pending(), fmt.Errorf("read log: %w", err)
	}
	return rec.Pending(), nil
}
