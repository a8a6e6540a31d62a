// Command octmg is the command-line entry point for the octmg
// distributed-memory geometric multigrid solver.
package main

import "github.com/octmg/octmg/cmd/cli/cmd"

func main() {
	cmd.Execute()
}
