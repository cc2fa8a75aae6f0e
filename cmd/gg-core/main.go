// Command gg-core is the sandboxed, locally-hosted inference runtime. With
// no subcommand it serves the socket; every other subcommand is a thin
// client that dials the already-running server over the same socket.
package main

import "os"

func main() {
	os.Exit(newRootCommand().run(os.Args[1:]))
}
