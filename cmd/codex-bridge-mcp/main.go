// Command codex-bridge-mcp is a stdio JSON-RPC gateway that multiplexes an
// MCP client's tool calls onto a single long-lived upstream coding-
// assistant subprocess, persisting an index of the conversational sessions
// it observes along the way.
//
// See https://modelcontextprotocol.io for the protocol this gateway both
// speaks (downstream) and drives (upstream).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/codex-bridge/codex-bridge-mcp/internal/bridgecmd"
)

var (
	binaryFlag   = flag.String("codex-binary", "", "path to the upstream codex CLI binary (overrides CODEX_BINARY/CODEX_BIN)")
	stateDirFlag = flag.String("state-dir", "", "gateway state directory (overrides CODEX_BRIDGE_STATE_DIR)")
)

func main() {
	flag.Parse()

	opts := bridgecmd.Options{
		Binary:   *binaryFlag,
		StateDir: *stateDirFlag,
	}
	if err := bridgecmd.Run(os.Stdin, os.Stdout, os.Stderr, opts); err != nil {
		fmt.Fprintf(os.Stderr, "codex-bridge-mcp: %v\n", err)
		os.Exit(1)
	}
}
