package notify

import (
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/uBridge/cmd/util"
	"github.com/ValentinKolb/uBridge/lib/ipc"
	"github.com/ValentinKolb/uBridge/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for a running bridge",
		Long:    "Sends embedded notifications of different shapes through the bridge and the answering service behind it and reports the round trip time",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfRecords = 8
	perfSkip    = make([]string, 0)
)

// perfCase is one benchmarked block shape
type perfCase struct {
	name  string
	block func() []byte
}

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. read,write)"))
	key = "records"
	perfTestCmd.Flags().Int(key, 8, util.WrapString("How many records the read and write blocks contain"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfRecords = viper.GetInt("records")
	if perfRecords <= 0 {
		return fmt.Errorf("records must be positive")
	}
	if skip := viper.GetString("skip"); skip != "" {
		perfSkip = strings.Split(skip, ",")
	}
	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for the bridge")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Printf("Host Endpoint: %s (%s)\n", viper.GetString("host-endpoint"), viper.GetString("host-transport"))
	fmt.Printf("Records:       %d\n", perfRecords)
	fmt.Println()

	fmt.Println("starting tests...")

	cases := []perfCase{
		{name: "terminator", block: func() []byte { return ipc.AppendTerminator(nil) }},
		{name: "read", block: func() []byte {
			var block []byte
			for i := 0; i < perfRecords; i++ {
				block = ipc.AppendRead(block, uint32(i*8), 8, uint32(i))
			}
			return ipc.AppendTerminator(block)
		}},
		{name: "write", block: func() []byte {
			var block []byte
			for i := 0; i < perfRecords; i++ {
				block = ipc.AppendWrite(block, uint32(i*8), []byte{1, 2, 3, 4, 5, 6, 7, 8})
			}
			return ipc.AppendTerminator(block)
		}},
		{name: "region", block: func() []byte {
			block := ipc.AppendRead(nil, 0, common.DefaultRegionSize-ipc.ReadHeaderSize-ipc.TagSize, 0)
			return ipc.AppendTerminator(block)
		}},
	}

	results := make(map[string]testing.BenchmarkResult)
	for _, c := range cases {
		result := testing.Benchmark(func(b *testing.B) {
			if shouldSkip(c.name) {
				return
			}
			block := c.block()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := send(common.NewEmbeddedFrame(uint32(i), block)); err != nil {
					log.Printf("(%s) - error forwarding block: %v\n", c.name, err)
				}
			}
		})
		results[c.name] = result
		printResult(c.name, result)
	}

	// Save results to CSV if path is provided
	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return err
		}
		fmt.Printf("Results saved to %s\n", csvPath)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped", "HostEndpoint", "HostTransport", "Records"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for test, result := range results {
		nsPerOp, opsPerSec, skipped := 0.0, 0.0, "true"
		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			viper.GetString("host-endpoint"),
			viper.GetString("host-transport"),
			strconv.Itoa(perfRecords),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}
	return nil
}
