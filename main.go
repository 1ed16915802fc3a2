// The main package for the crawlcache executable.
package main

import (
	"github.com/mbellhart/crawlcache/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
