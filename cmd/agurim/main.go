// Command agurim aggregates Aguri-format traffic logs into hierarchical
// heavy-hitter summaries.
package main

import (
	"os"

	"github.com/agurim/agurim/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args[1:]))
}
