// meshrepctl is a CLI client for the meshrepd admin HTTP API.
package main

import "github.com/dantte-lp/meshrepd/cmd/meshrepctl/commands"

func main() {
	commands.Execute()
}
