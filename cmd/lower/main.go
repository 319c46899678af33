// Package main provides the lower CLI: it translates YAML graph
// descriptions into backend computations and optionally runs them.
package main

import (
	"context"
	"fmt"
	"os"
)

const version = "v0.1.0-dev"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
