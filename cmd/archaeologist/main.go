// Command archaeologist is the CLI for the code archaeology service.
//
// Usage:
//
//	archaeologist ingest ./path/to/checkout
//	archaeologist ingest https://github.com/org/repo
//	archaeologist ask "What classes are in the codebase?"
//	archaeologist serve --port 8080
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
