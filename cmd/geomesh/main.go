// File: cmd/geomesh/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// geomesh drives a hierarchical thread pool from the command line.

package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
