// Package toolchain runs a package's external tools (type checker, linter,
// test runner, publish command) and extracts file-attributed diagnostics from
// their output.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// MaxOutput bounds the captured output of a single command.
const MaxOutput = 64 * 1024

// Result is the outcome of a command that ran to completion.
type Result struct {
	Command  string
	ExitCode int
	Output   string
}

// OK reports whether the command exited zero.
func (r Result) OK() bool { return r.ExitCode == 0 }

// Runner executes a command line in a directory. A non-zero exit is a Result,
// not an error; errors mean the command could not be run at all.
type Runner interface {
	Run(ctx context.Context, dir, commandLine string) (Result, error)
}

// ExecRunner runs commands as child processes.
type ExecRunner struct {
	Env []string // extra KEY=VALUE entries
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, dir, commandLine string) (Result, error) {
	argv := strings.Fields(commandLine)
	if len(argv) == 0 {
		return Result{}, errors.New("empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	res := Result{Command: commandLine, Output: truncate(out.String())}
	if err == nil {
		return res, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	return res, fmt.Errorf("run %q: %w", argv[0], err)
}

func truncate(s string) string {
	if len(s) <= MaxOutput {
		return s
	}
	return "...(truncated)\n" + s[len(s)-MaxOutput:]
}

// Tail returns the last n non-empty lines of output.
func Tail(output string, n int) []string {
	var lines []string
	for _, l := range strings.Split(output, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
