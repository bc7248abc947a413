package main

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/memforge/heapkit/arena"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
)

func init() {
	rootCmd.AddCommand(newDemoCmd())
}

func newDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run the allocation exercise scenario",
		Long: `The demo command allocates a ladder of block sizes, frees every
other one to fragment the arena, then exercises realloc, calloc and the
leak checker, printing the heap state at each step.

Example:
  heapctl demo
  heapctl demo --heap-size 65536 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo()
		},
	}
}

func runDemo() error {
	cfg := arena.DefaultConfig()
	cfg.HeapSize = heapSize
	if verbose {
		cfg.DebugLevel = 2
	}
	cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

	heap, err := arena.New(cfg)
	if err != nil {
		return err
	}
	defer heap.Close()

	fmt.Println("Allocating memory blocks...")
	var ptrs [][]byte
	for i := 0; i < 10; i++ {
		size := (i + 1) * 32
		p := heap.Alloc(size)
		if p == nil {
			fmt.Printf("allocation of %d bytes failed\n", size)
			continue
		}
		for j := range p {
			p[j] = 0xAB
		}
		fmt.Printf("Allocated %d bytes (ID %d)\n", size, len(ptrs)+1)
		ptrs = append(ptrs, p)
	}

	printHeapMap(heap)

	fmt.Println("\nFreeing every other block to create fragmentation...")
	for i := 0; i < len(ptrs); i += 2 {
		heap.Free(ptrs[i])
		ptrs[i] = nil
	}

	printHeapMap(heap)
	heap.Visualize(os.Stdout, 60)

	fmt.Println("\nAllocating after fragmentation...")
	large := heap.Alloc(512)
	fmt.Printf("Allocated 512 bytes: ok=%v\n", large != nil)

	fmt.Println("\nExercising realloc...")
	p := heap.Alloc(100)
	p = heap.Realloc(p, 200)
	p = heap.Realloc(p, 50)
	fmt.Printf("Realloc chain finished at %d bytes\n", heap.SizeOf(p))

	fmt.Println("\nExercising calloc...")
	ints := heap.Calloc(10, 4)
	fmt.Printf("Calloc returned %d zeroed bytes\n", len(ints))

	printStats(heap)
	printLeaks(heap)

	fmt.Println("\nCleaning up all allocations...")
	for _, q := range ptrs {
		if q != nil {
			heap.Free(q)
		}
	}
	heap.Free(large)
	heap.Free(p)
	heap.Free(ints)

	heap.Visualize(os.Stdout, 60)
	return nil
}

func printHeapMap(heap *arena.Heap) {
	if jsonOut {
		writer := jwriter.NewWriter()
		heap.WriteHeapMap(&writer)
		if writer.Error() == nil {
			fmt.Println(string(writer.Bytes()))
		}
		return
	}

	fmt.Println("\n===== HEAP MAP =====")
	count := 0
	_ = heap.VisitBlocks(func(info arena.BlockInfo) error {
		count++
		state := "USED"
		if info.Free {
			state = "FREE"
		}
		fmt.Printf("Block %d [%d]: %d bytes, %s, ID: %d\n",
			count, info.Offset, info.PayloadSize, state, info.AllocID)
		return nil
	})
	fmt.Println("====================")
}

func printStats(heap *arena.Heap) {
	stats := heap.Stats()

	if jsonOut {
		out, err := json.MarshalIndent(stats, "", "  ")
		if err == nil {
			fmt.Println(string(out))
		}
		return
	}

	fmt.Println("\n=== Memory Allocator Statistics ===")
	fmt.Printf("Allocated: %d bytes in %d blocks\n", stats.AllocatedBytes, stats.AllocatedBlocks)
	fmt.Printf("Free: %d bytes in %d blocks\n", stats.FreeBytes, stats.FreeBlocks)
	fmt.Printf("Memory overhead: %d bytes\n", stats.OverheadBytes)
	fmt.Printf("Total allocations: %d (failed: %d)\n", stats.TotalAllocations, stats.FailedAllocations)
	fmt.Printf("Total frees: %d\n", stats.TotalFrees)
	fmt.Printf("Fragmentation index: %.4f\n", stats.FragmentationIndex())
	fmt.Println("\nSize class distribution:")
	for i, bytes := range stats.ClassAllocatedBytes {
		fmt.Printf("Class %d: %d bytes\n", i, bytes)
	}
	fmt.Println("================================")
}

func printLeaks(heap *arena.Heap) {
	leaks := heap.CheckLeaks()

	if jsonOut {
		out, err := json.MarshalIndent(leaks, "", "  ")
		if err == nil {
			fmt.Println(string(out))
		}
		return
	}

	fmt.Println("\n=== Memory Leak Check ===")
	totalBytes := 0
	for _, rec := range leaks {
		fmt.Printf("Potential leak: offset %d, %d bytes, ID %d, allocated at %s:%d\n",
			rec.Offset, rec.Size, rec.AllocID, rec.File, rec.Line)
		totalBytes += rec.Size
	}
	if len(leaks) == 0 {
		fmt.Println("No memory leaks detected.")
	} else {
		fmt.Printf("Total: %d leaks, %d bytes\n", len(leaks), totalBytes)
	}
	fmt.Println("========================")
}
