package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	heapSize int
	jsonOut  bool
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "heapctl",
	Short: "Exercise and inspect a fixed-arena allocator",
	Long: `heapctl drives a fixed-size arena allocator through allocation
scenarios and prints the resulting heap map, memory visualization,
statistics and leak reports.`,
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().IntVar(&heapSize, "heap-size", 1024*1024, "Arena size in bytes (multiple of 16)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
