package main

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/memforge/heapkit/arena"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newInfoCmd())
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the layout parameters for a heap of the configured size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo()
		},
	}
}

func runInfo() error {
	cfg := arena.DefaultConfig()
	cfg.HeapSize = heapSize

	heap, err := arena.New(cfg)
	if err != nil {
		return err
	}
	defer heap.Close()

	info := struct {
		HeapSize     int
		Capacity     int
		Alignment    int
		MinBlockSize int
		GuardValue   byte
	}{
		HeapSize:     heap.Size(),
		Capacity:     heap.Capacity(),
		Alignment:    arena.Alignment,
		MinBlockSize: arena.MinBlockSize,
		GuardValue:   arena.GuardValue,
	}

	if jsonOut {
		out, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Printf("Heap size:      %d bytes\n", info.HeapSize)
	fmt.Printf("Capacity:       %d bytes\n", info.Capacity)
	fmt.Printf("Alignment:      %d bytes\n", info.Alignment)
	fmt.Printf("Min block size: %d bytes\n", info.MinBlockSize)
	fmt.Printf("Guard value:    0x%02X\n", info.GuardValue)
	return nil
}
