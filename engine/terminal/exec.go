package terminal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/opsrelay/opsrelay/pkg/logger"
)

const defaultCommandTimeout = 30 * time.Second

// Result is the outcome of one command execution. A ReturnCode of -1
// means the command never launched. NewCwd is the directory the next
// command should run in; it only moves when the command was a
// successful directory change.
type Result struct {
	Command    string
	Dir        string
	Stdout     string
	Stderr     string
	ReturnCode int
	NewCwd     string
}

// Runner executes shell commands in a caller-supplied working directory
// under a bounded timeout.
type Runner struct {
	timeout time.Duration
}

// NewRunner builds a runner. A non-positive timeout falls back to the
// default.
func NewRunner(timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	return &Runner{timeout: timeout}
}

// Execute processes one command against the given working directory.
// Directory changes are pure state transitions resolved without a
// subprocess; everything else runs through the host shell. Committing
// NewCwd is the caller's job, and only after a successful change.
func (r *Runner) Execute(ctx context.Context, command, dir string) Result {
	target, ok := changeDirTarget(command)
	if !ok {
		result := r.Run(ctx, command, dir)
		result.NewCwd = dir
		return result
	}
	newDir, err := ResolveDir(dir, target)
	if err != nil {
		return Result{
			Command:    command,
			Dir:        dir,
			Stderr:     err.Error(),
			ReturnCode: 1,
			NewCwd:     dir,
		}
	}
	return Result{
		Command: command,
		Dir:     dir,
		Stdout:  fmt.Sprintf("Changed directory to %s", newDir),
		NewCwd:  newDir,
	}
}

// Run executes one command through the host shell with dir as the
// working directory. Faults never escape as errors; they are folded
// into the result so the caller can surface them as text.
func (r *Runner) Run(ctx context.Context, command, dir string) Result {
	log := logger.FromContext(ctx)
	translated := TranslateCommand(command)
	if translated != command {
		log.Debug("Translated command for host shell", "from", command, "to", translated)
	}

	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	shell, flag := hostShell()
	cmd := exec.CommandContext(execCtx, shell, flag, translated)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Command:    command,
		Dir:        dir,
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		ReturnCode: 0,
	}
	switch {
	case err == nil:
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		result.ReturnCode = -1
		result.Stderr = appendLine(result.Stderr,
			fmt.Sprintf("command timed out after %s", r.timeout))
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ReturnCode = exitErr.ExitCode()
		} else {
			result.ReturnCode = -1
			result.Stderr = appendLine(result.Stderr, err.Error())
		}
	}
	log.Debug("Command finished", "command", command, "return_code", result.ReturnCode)
	return result
}

func hostShell() (string, string) {
	if runtime.GOOS == "windows" {
		return "cmd.exe", "/c"
	}
	return "/bin/bash", "-c"
}

func appendLine(s, line string) string {
	if s == "" {
		return line
	}
	return strings.TrimRight(s, "\n") + "\n" + line
}

// changeDirTarget reports whether the command is a working-directory
// change and returns its target. A bare "cd" targets the home directory.
func changeDirTarget(command string) (string, bool) {
	fields := strings.Fields(command)
	if len(fields) == 0 || fields[0] != "cd" {
		return "", false
	}
	if len(fields) == 1 {
		return "", true
	}
	return fields[1], true
}

// ResolveDir computes the directory a cd command lands in, relative to
// current, and verifies it exists. The directory state itself is not
// touched; committing the transition is the caller's job.
func ResolveDir(current, target string) (string, error) {
	if target == "" || target == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cd: resolve home directory: %w", err)
		}
		return home, nil
	}
	if strings.HasPrefix(target, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cd: resolve home directory: %w", err)
		}
		target = filepath.Join(home, target[2:])
	}
	resolved := target
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(current, resolved)
	}
	resolved = filepath.Clean(resolved)
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("cd: %s: no such file or directory", target)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("cd: %s: not a directory", target)
	}
	return resolved, nil
}
