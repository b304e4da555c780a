package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/record-index/recidx/bptree"
	"github.com/record-index/recidx/index"
	"github.com/record-index/recidx/ldb"
	"github.com/record-index/recidx/lsm"
)

type benchResult struct {
	Name      string
	Operation string
	LatencyNs int64
	MemMB     uint64
	Objects   uint64
}

type memoryStats struct {
	AllocMB     uint64
	HeapObjects uint64
}

// heapStats forces a collection first so the numbers reflect live data,
// not garbage.
func heapStats() memoryStats {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	return memoryStats{
		AllocMB:     m.Alloc / 1024 / 1024,
		HeapObjects: m.HeapObjects,
	}
}

func benchCmd() *cobra.Command {
	var (
		n    int
		dir  string
		out  string
		plot string
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Compare the B+ tree engine against Pebble and LevelDB",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}

			var results []benchResult
			engines := []struct {
				name string
				open func() (index.Index, error)
			}{
				{"BPlusTree", func() (index.Index, error) { return bptree.Open(filepath.Join(dir, "recidx.dat")) }},
				{"Pebble", func() (index.Index, error) { return lsm.Open(filepath.Join(dir, "pebble")) }},
				{"LevelDB", func() (index.Index, error) { return ldb.Open(filepath.Join(dir, "leveldb")) }},
			}
			for _, e := range engines {
				fmt.Printf("Testing %s\n", e.name)
				idx, err := e.open()
				if err != nil {
					return err
				}
				res, err := runSuite(e.name, idx, n)
				idx.Close()
				if err != nil {
					return err
				}
				results = append(results, res...)
			}

			if err := writeCSV(out, results); err != nil {
				return err
			}
			fmt.Printf("Benchmark complete; results in %s\n", out)
			if plot != "" {
				if err := renderLatencyChart(plot, results); err != nil {
					return err
				}
				fmt.Printf("Latency chart written to %s\n", plot)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&n, "n", 100000, "number of keys to load per engine")
	cmd.Flags().StringVar(&dir, "dir", "benchdata", "working directory for engine files")
	cmd.Flags().StringVar(&out, "out", "bench_results.csv", "CSV output path")
	cmd.Flags().StringVar(&plot, "plot", "", "optional PNG latency chart path")
	return cmd
}

func runSuite(name string, idx index.Index, n int) ([]benchResult, error) {
	var results []benchResult

	// 1. Pure insert (initial load).
	start := time.Now()
	for k := 0; k < n; k++ {
		if err := idx.Write(int32(k), index.PadRecord(fmt.Appendf(nil, "record %d", k))); err != nil {
			return nil, fmt.Errorf("%s: load key %d: %w", name, k, err)
		}
	}
	insertLatency := time.Since(start).Nanoseconds() / int64(n)

	// Sample memory right after load, before the mixed workloads.
	stats := heapStats()
	results = append(results, benchResult{
		Name:      name,
		Operation: "Load",
		LatencyNs: insertLatency,
		MemMB:     stats.AllocMB,
		Objects:   stats.HeapObjects,
	})

	suites := []struct {
		op   string
		kind workloadType
		ops  int
	}{
		{"Workload_OLTP", oltp, n / 2},
		{"Workload_OLAP", olap, n / 2},
		{"Workload_Range", reporting, 100},
	}
	for _, s := range suites {
		start = time.Now()
		if err := executeWorkload(idx, s.kind, s.ops); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", name, s.op, err)
		}
		results = append(results, benchResult{
			Name:      name,
			Operation: s.op,
			LatencyNs: time.Since(start).Nanoseconds() / int64(s.ops),
			MemMB:     heapStats().AllocMB,
		})
	}
	return results, nil
}

func writeCSV(path string, results []benchResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	w.Write([]string{"Engine", "Operation", "LatencyNs", "MemMB", "HeapObjects"})
	for _, r := range results {
		w.Write([]string{
			r.Name,
			r.Operation,
			strconv.FormatInt(r.LatencyNs, 10),
			strconv.FormatUint(r.MemMB, 10),
			strconv.FormatUint(r.Objects, 10),
		})
	}
	w.Flush()
	return w.Error()
}
