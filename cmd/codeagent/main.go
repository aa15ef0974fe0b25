package main

import (
	"fmt"
	"os"

	"github.com/abdul-hamid-achik/codeagent/internal/logging"
)

var Version = "dev"

func main() {
	// Flush the session log and metrics on exit
	defer logging.Close()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logging.Close()
		os.Exit(1)
	}
}
