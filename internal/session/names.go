// Package session derives stable session ids from terminal identity and
// records which terminal last used which session.
package session

import (
	"fmt"
	"os"
	"strings"
)

// Prefix marks every session id slip creates.
const Prefix = "slip-"

// devPrefix is what a /dev/... terminal path sanitizes to after Prefix.
const devPrefix = Prefix + "_dev_"

// FallbackID is used when no terminal is attached. It is unique per
// invocation and therefore never persisted.
func FallbackID() string {
	return fmt.Sprintf("%spid-%d", Prefix, os.Getpid())
}

// IDFromTerminal turns a terminal path into a session id.
//
//	/dev/ttys001 -> slip-_dev_ttys001
//	/dev/pts/1   -> slip-_dev_pts_1
//	""           -> slip-pid-<pid>
func IDFromTerminal(tty string) string {
	tty = strings.TrimSpace(tty)
	if tty == "" {
		return FallbackID()
	}
	sanitized := strings.NewReplacer("/", "_", `\`, "_").Replace(tty)
	return Prefix + sanitized
}

// IsSlipID reports whether id was created by slip.
func IsSlipID(id string) bool {
	return strings.HasPrefix(id, Prefix)
}

// NormalizeID accepts either a full session id or a short terminal name and
// returns the full id. "ttys001" becomes "slip-_dev_ttys001".
func NormalizeID(arg string) string {
	arg = strings.TrimSpace(arg)
	if IsSlipID(arg) {
		return arg
	}
	return devPrefix + arg
}

// ShortName strips the id prefixes, leaving the terminal name.
func ShortName(id string) string {
	if strings.HasPrefix(id, devPrefix) {
		return strings.TrimPrefix(id, devPrefix)
	}
	return strings.TrimPrefix(id, Prefix)
}
