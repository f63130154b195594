package database

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/MatiasNAmendola/Nxdb/cmd/util"
	"github.com/MatiasNAmendola/Nxdb/lib/db"
	"github.com/MatiasNAmendola/Nxdb/lib/store"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for Nxdb databases",
		Long:    "",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfDatabaseName = "__perf"
	perfValueSizeB   = 64
	perfNumThreads   = 10
	perfNodeSpread   = 1000
	perfSkip         = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. lookup,shift)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "value-size"
	perfTestCmd.Flags().Int(key, 64, util.WrapString("Payload size of the benchmark nodes (in bytes)"))
	key = "nodes"
	perfTestCmd.Flags().Int(key, 1000, util.WrapString("How many nodes the benchmark database holds"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfValueSizeB = viper.GetInt("value-size")
	perfNodeSpread = viper.GetInt("nodes")
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// perfResult bundles the throughput figure with the latency distribution
// recorded while the benchmark ran.
type perfResult struct {
	bench testing.BenchmarkResult
	timer gometrics.Timer
}

func runPerf(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for Nxdb databases")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Printf("Nodes: %d\n", perfNodeSpread)
	fmt.Printf("Value size: %dB\n", perfValueSizeB)
	fmt.Println()

	// The benchmark database lives only for this run.
	d, err := db.Create(engine, perfDatabaseName, db.Options{DropOnDispose: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := d.Dispose(); err != nil {
			log.Printf("error disposing benchmark database: %v\n", err)
		}
	}()

	// Seed the node spread once; the individual benchmarks mutate around it.
	value := make([]byte, perfValueSizeB)
	seed := make([]store.Op, perfNodeSpread)
	for i := range seed {
		seed[i] = store.Op{Type: store.OpInsert, Pos: i, Rec: store.Record{Kind: store.KindText, Value: value}}
	}
	if err := d.Update(seed); err != nil {
		return err
	}

	fmt.Println("starting tests...")

	registry := gometrics.NewRegistry()
	results := make(map[string]perfResult)

	runOne := func(name string, op func(counter int) error) {
		timer := gometrics.NewRegisteredTimer(name, registry)
		bench := testing.Benchmark(func(b *testing.B) {
			if shouldSkip(name) {
				return
			}

			b.SetParallelism(perfNumThreads)
			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				counter := 0
				for pb.Next() {
					start := time.Now()
					if err := op(counter); err != nil {
						log.Printf("(%s) - error: %v\n", name, err)
					}
					timer.UpdateSince(start)
					counter++
				}
			})
		})

		results[name] = perfResult{bench: bench, timer: timer}
		printResult(name, results[name])
	}

	runOne("lookup", func(counter int) error {
		_, err := d.NodeAt(counter % perfNodeSpread)
		return err
	})

	runOne("lookup-id", func(counter int) error {
		n, err := d.NodeAt(counter % perfNodeSpread)
		if err != nil {
			return err
		}
		_, err = d.NodeByID(n.ID())
		return err
	})

	runOne("read", func(counter int) error {
		n, err := d.NodeAt(counter % perfNodeSpread)
		if err != nil {
			return err
		}
		_, err = n.Value()
		return err
	})

	// Appending at the end moves no cached handle. The insert runs through
	// UpdateIf so the check-then-apply path is measured too.
	runOne("append", func(counter int) error {
		size, err := d.Size()
		if err != nil {
			return err
		}
		err = d.UpdateIf(func(d *db.Database) error {
			return nil
		}, []store.Op{{Type: store.OpInsert, Pos: size, Rec: store.Record{Kind: store.KindText, Value: value}}})
		if store.CodeOf(err) == store.RetCApplyFailed {
			// A concurrent append may have shifted the end. Not a failure.
			return nil
		}
		return err
	})

	// Inserting at the front forces a full reposition of the cache, making
	// this the worst case for the resync protocol.
	runOne("shift", func(counter int) error {
		if err := d.Update([]store.Op{{Type: store.OpInsert, Pos: 0, Rec: store.Record{Kind: store.KindText, Value: value}}}); err != nil {
			return err
		}
		return d.Update([]store.Op{{Type: store.OpDelete, Pos: 0}})
	})

	runOne("mixed", func(counter int) error {
		switch counter % 4 {
		case 0: // lookup
			_, err := d.NodeAt(counter % perfNodeSpread)
			return err
		case 1: // read
			n, err := d.NodeAt(counter % perfNodeSpread)
			if err != nil {
				return err
			}
			_, err = n.Value()
			return err
		case 2: // insert at the end
			size, err := d.Size()
			if err != nil {
				return err
			}
			return d.Update([]store.Op{{Type: store.OpInsert, Pos: size, Rec: store.Record{Kind: store.KindText, Value: value}}})
		default: // delete at the end
			size, err := d.Size()
			if err != nil {
				return err
			}
			return d.Update([]store.Op{{Type: store.OpDelete, Pos: size - 1}})
		}
	})

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result perfResult) {
	if result.bench.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.bench.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50=%s p95=%s p99=%s\n",
		test, nsPerOp, time.Duration(nsPerOp), opsPerSec,
		time.Duration(result.timer.Percentile(0.50)),
		time.Duration(result.timer.Percentile(0.95)),
		time.Duration(result.timer.Percentile(0.99)))
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]perfResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50", "P95", "P99", "Skipped",
		"Threads", "ValueSizeB", "Nodes Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.bench.NsPerOp() == 0 {
			skipped = "true"
			nsPerOp = 0
			opsPerSec = 0
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.bench.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			time.Duration(result.timer.Percentile(0.50)).String(),
			time.Duration(result.timer.Percentile(0.95)).String(),
			time.Duration(result.timer.Percentile(0.99)).String(),
			skipped,
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfValueSizeB),
			strconv.Itoa(perfNodeSpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
