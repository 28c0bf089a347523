package session

import (
	"os"
	"os/exec"
	"strings"

	"golang.org/x/term"
)

// CurrentTTY returns the path of the controlling terminal on stdin, or "" when
// stdin is not a terminal or the path cannot be determined.
func CurrentTTY() string {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return ""
	}
	return ttyFromCommand()
}

// ttyFromCommand runs tty(1) with our stdin so it reports the same terminal.
func ttyFromCommand() string {
	cmd := exec.Command("tty")
	cmd.Stdin = os.Stdin
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return parseTTYOutput(string(out))
}

func parseTTYOutput(out string) string {
	tty := strings.TrimSpace(out)
	if tty == "" || tty == "not a tty" {
		return ""
	}
	return tty
}
