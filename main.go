// ./main.go
package main

import (
	"github.com/smellak/browser-worker-agent/cmd"
)

// main is the entry point for the browser-worker-agent binary.
func main() {
	cmd.Execute()
}
