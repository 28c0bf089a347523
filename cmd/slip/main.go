// slip is a terminal AI assistant that keeps one background worker running
// and gives every terminal its own conversation.
package main

import (
	"os"

	"github.com/slipstream/slip/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
