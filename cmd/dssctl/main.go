// Command dssctl is an administrative CLI over the DSS: it opens a
// Handle against a running backend and exposes schema, lock, health and
// supported-model operations as subcommands (spec §2's AMBIENT STACK —
// this is not the HSM synchronization CLI or daemon process, both
// explicitly out of scope).
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
