// Command docbase is a small inspection and backup/restore harness over
// the docbase library, exercising the facade from outside the core the
// way spec.md §1 expects of an "embedding harness": it goes through the
// public docbase package, plus internal/config, internal/descriptor,
// internal/logger and internal/codec for setup and output.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "docbase: %v\n", err)
	os.Exit(1)
}

func cmdOut() *os.File { return os.Stdout }
