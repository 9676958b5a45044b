// The main package for the advisoryd executable.
package main

import (
	"github.com/voyantlabs/advisory-pipeline/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
