// Command mango-logtrace prints the nested instruction traces found in a
// saved program log.
//
//	mango-logtrace <logfile>
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/coldbell/mango-v4-go/internal/logtrace"
)

const (
	exitOK          = 0
	exitInputFailed = 1
	exitUsage       = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: mango-logtrace <logfile>")
		return exitUsage
	}

	f, err := os.Open(args[0])
	if err != nil {
		logger.Error("failed to open log", "path", args[0], "err", err)
		return exitInputFailed
	}
	defer f.Close()

	pending, err := logtrace.Run(f, os.Stdout)
	if err != nil {
		logger.Error("failed to trace log", "path", args[0], "err", err)
		return exitInputFailed
	}
	if pending > 0 {
		logger.Debug("unterminated instructions dropped", "open_frames", pending)
	}
	return exitOK
}
