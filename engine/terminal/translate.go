package terminal

import (
	"runtime"
	"strings"
)

// windowsCommands maps Unix command heads to their cmd.exe equivalents.
// Only the first token is rewritten; flags and arguments pass through.
var windowsCommands = map[string]string{
	"ls":    "dir",
	"pwd":   "cd",
	"cat":   "type",
	"rm":    "del",
	"clear": "cls",
	"mkdir": "mkdir",
	"touch": "echo. >",
}

// TranslateCommand rewrites a command's head token for the host shell.
// On non-Windows hosts commands pass through unchanged.
func TranslateCommand(command string) string {
	return translateFor(runtime.GOOS, command)
}

func translateFor(goos, command string) string {
	if goos != "windows" {
		return command
	}
	trimmed := strings.TrimSpace(command)
	head, rest, found := strings.Cut(trimmed, " ")
	repl, ok := windowsCommands[head]
	if !ok {
		return trimmed
	}
	if !found {
		return repl
	}
	return repl + " " + rest
}
