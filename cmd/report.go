package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	sim "github.com/gforyas/webappsim/sim"
)

// PrintReport renders one run's report in a fixed layout. All figures are
// measurement-window figures; the counters cover the whole run.
func PrintReport(w io.Writer, rate float64, r *sim.Report) {
	fmt.Fprintf(w, "==============================================================\n")
	fmt.Fprintf(w, " Run summary (rate=%v, seed=%d)\n", rate, r.Seed)
	fmt.Fprintf(w, "==============================================================\n")
	fmt.Fprintf(w, "Simulated time:        %.3f s (observed %.3f s)\n", r.SimTime, r.ObservedTime)
	fmt.Fprintf(w, "External arrivals:     %d\n", r.ExternalArrivals)
	fmt.Fprintf(w, "Completed jobs:        %d\n", r.CompletedJobs)
	if r.ForcedExits > 0 {
		fmt.Fprintf(w, "Forced exits:          %d\n", r.ForcedExits)
	}
	if r.DroppedJobs > 0 {
		fmt.Fprintf(w, "Dropped jobs:          %d\n", r.DroppedJobs)
	}

	fmt.Fprintf(w, "\nSystem:\n")
	printScope(w, r.Overall)

	names := make([]string, 0, len(r.PerNode))
	for n := range r.PerNode {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "\nNode %s (exits: %d):\n", n, r.ExitsByNode[n])
		printScope(w, r.PerNode[n])
	}

	if len(r.TrackedNodes) > 0 {
		fmt.Fprintf(w, "\nPer-job time-in-node covariance (%s):\n", strings.Join(r.TrackedNodes, ", "))
		for i := range r.TrackedCovariance {
			row := make([]string, len(r.TrackedCovariance[i]))
			for j, v := range r.TrackedCovariance[i] {
				row[j] = fmt.Sprintf("%12.6f", v)
			}
			fmt.Fprintf(w, "  %s\n", strings.Join(row, " "))
		}
	}

	if r.BatchSummary != nil {
		printBatchSummary(w, r.BatchSummary)
	}
	fmt.Fprintf(w, "\n")
}

func printScope(w io.Writer, s sim.NodeStats) {
	fmt.Fprintf(w, "  Response time:       %.6f s (std %.6f)\n", s.MeanResponseTime, s.StdResponseTime)
	fmt.Fprintf(w, "  Population:          %.6f (std %.6f)\n", s.MeanPopulation, s.StdPopulation)
	fmt.Fprintf(w, "  Throughput:          %.6f jobs/s\n", s.Throughput)
	fmt.Fprintf(w, "  Utilization:         %.6f\n", s.Utilization)
	fmt.Fprintf(w, "  Completions:         %d\n", s.Completions)
}

func printBatchSummary(w io.Writer, b *sim.BatchSummary) {
	fmt.Fprintf(w, "\nBatch means (%d batches, 95%% CI):\n", b.Batches)
	fmt.Fprintf(w, "  Response time:       %.6f ± %.6f s (SE %.6f, weighted %.6f)\n",
		b.MeanResponseTime, b.CIResponseTime, b.SEResponseTime, b.WeightedResponseTime)
	fmt.Fprintf(w, "  Throughput:          %.6f ± %.6f jobs/s\n", b.MeanThroughput, b.CIThroughput)
	fmt.Fprintf(w, "  Population:          %.6f ± %.6f\n", b.MeanPopulation, b.CIPopulation)
	fmt.Fprintf(w, "  Utilization:         %.6f ± %.6f\n", b.MeanUtilization, b.CIUtilization)
	fmt.Fprintf(w, "  Little's law R=N/X:  %.6f (std %.6f, SE %.6f)\n",
		b.MeanLittleResponseTime, b.StdLittleResponseTime, b.SELittleResponseTime)
	fmt.Fprintf(w, "  Little's law N=X*R:  %.6f\n", b.LittleLawPopulation)
}

// WriteBatchCSV writes one row per closed batch.
func WriteBatchCSV(path string, batches []sim.BatchResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"index", "start", "end", "completions", "mean_response_time", "std_response_time",
		"mean_population", "std_population", "throughput", "utilization"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, b := range batches {
		row := []string{
			strconv.Itoa(b.Index),
			formatFloat(b.Start),
			formatFloat(b.End),
			strconv.FormatInt(b.Completions, 10),
			formatFloat(b.MeanResponseTime),
			formatFloat(b.StdResponseTime),
			formatFloat(b.MeanPopulation),
			formatFloat(b.StdPopulation),
			formatFloat(b.Throughput),
			formatFloat(b.Utilization),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// csvPathForRun suffixes the batch CSV path with the run index when the
// experiment sweeps several rates, so runs do not overwrite each other.
func csvPathForRun(base string, idx, total int) string {
	if total <= 1 {
		return base
	}
	ext := filepath.Ext(base)
	return fmt.Sprintf("%s_run%d%s", strings.TrimSuffix(base, ext), idx, ext)
}
