package main

import (
	"fmt"
	"os"

	"bisection/internal/cmd"
)

// server — то же, что "bisect serve": флаги --config, --addr и т.д. передаются как есть
func main() {
	rootCmd := cmd.NewRootCommand()
	rootCmd.SetArgs(append([]string{"serve"}, os.Args[1:]...))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
