package terminal

import (
	"fmt"
	"strings"
)

// FormatResult renders an execution result as the text block surfaced to
// the completion service. Empty output sections are omitted.
func FormatResult(r Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Command: %s\n", r.Command)
	fmt.Fprintf(&b, "Working Directory: %s\n", r.Dir)
	fmt.Fprintf(&b, "Return Code: %d\n", r.ReturnCode)
	if out := strings.TrimRight(r.Stdout, "\n"); out != "" {
		fmt.Fprintf(&b, "\nOutput:\n%s\n", out)
	}
	if errOut := strings.TrimRight(r.Stderr, "\n"); errOut != "" {
		fmt.Fprintf(&b, "\nError:\n%s\n", errOut)
	}
	return strings.TrimRight(b.String(), "\n")
}
