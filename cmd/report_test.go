package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sim "github.com/gforyas/webappsim/sim"
)

func sampleReport() *sim.Report {
	return &sim.Report{
		Seed:             42,
		SimTime:          1000,
		ObservedTime:     900,
		ExternalArrivals: 1000,
		CompletedJobs:    990,
		ForcedExits:      2,
		ExitsByNode:      map[string]int64{"web": 990},
		Overall: sim.NodeStats{
			MeanResponseTime: 1.0, StdResponseTime: 0.9,
			MeanPopulation: 1.1, StdPopulation: 1.2,
			Throughput: 0.99, Utilization: 0.5, Completions: 990,
		},
		PerNode: map[string]sim.NodeStats{
			"web": {MeanResponseTime: 1.0, Throughput: 0.99, Utilization: 0.5, Completions: 990},
		},
		Batches: []sim.BatchResult{
			{Index: 0, Start: 0, End: 100, Completions: 99, MeanResponseTime: 1.01, Throughput: 0.99},
			{Index: 1, Start: 100, End: 200, Completions: 101, MeanResponseTime: 0.99, Throughput: 1.01},
		},
	}
}

func TestPrintReport_ContainsKeyFigures(t *testing.T) {
	r := sampleReport()
	r.BatchSummary = sim.Summarize(r.Batches)

	var buf bytes.Buffer
	PrintReport(&buf, 1.0, r)
	out := buf.String()

	for _, want := range []string{
		"rate=1", "seed=42",
		"Completed jobs:        990",
		"Forced exits:          2",
		"Node web (exits: 990)",
		"Batch means (2 batches",
		"Little's law R=N/X",
		"Little's law N=X*R",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestPrintReport_OmitsForcedExitsWhenZero(t *testing.T) {
	r := sampleReport()
	r.ForcedExits = 0

	var buf bytes.Buffer
	PrintReport(&buf, 1.0, r)
	if strings.Contains(buf.String(), "Forced exits") {
		t.Error("forced exits line should be omitted when the count is zero")
	}
	if strings.Contains(buf.String(), "Dropped jobs") {
		t.Error("dropped jobs line should be omitted when the count is zero")
	}
}

func TestPrintReport_ShowsDroppedJobs(t *testing.T) {
	r := sampleReport()
	r.DroppedJobs = 7

	var buf bytes.Buffer
	PrintReport(&buf, 1.0, r)
	if !strings.Contains(buf.String(), "Dropped jobs:          7") {
		t.Errorf("report missing dropped jobs line:\n%s", buf.String())
	}
}

func TestWriteBatchCSV_RoundTripShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batches.csv")
	if err := WriteBatchCSV(path, sampleReport().Batches); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines: got %d, want header + 2 rows", len(lines))
	}
	if !strings.HasPrefix(lines[0], "index,start,end,completions") {
		t.Errorf("header: got %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "0,0.000000,100.000000,99") {
		t.Errorf("row 0: got %q", lines[1])
	}
}

func TestCSVPathForRun_SuffixesMultiRateSweeps(t *testing.T) {
	if got := csvPathForRun("out.csv", 0, 1); got != "out.csv" {
		t.Errorf("single run: got %q", got)
	}
	if got := csvPathForRun("out.csv", 2, 3); got != "out_run2.csv" {
		t.Errorf("multi run: got %q", got)
	}
	if got := csvPathForRun("batches", 1, 2); got != "batches_run1" {
		t.Errorf("no extension: got %q", got)
	}
}
