package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunExitCodes(t *testing.T) {
	assert.Equal(t, exitUsage, run(nil))
	assert.Equal(t, exitUsage, run([]string{"a", "b"}))
	assert.Equal(t, exitInputFailed, run([]string{filepath.Join(t.TempDir(), "missing.log")}))

	path := filepath.Join(t.TempDir(), "tx.log")
	assert.NoError(t, os.WriteFile(path, []byte("Program log: Instruction: Deposit\nProgram P consumed 1 of 2 compute units\n"), 0o600))
	assert.Equal(t, exitOK, run([]string{path}))
}
