package cmd

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/gforyas/webappsim/sim"
)

var (
	// CLI flags; non-zero values override the corresponding config fields
	configPath  string // YAML experiment file
	logLevel    string // Log verbosity level
	seed        int64  // Master seed override
	maxEvents   int64  // Event budget override
	warmup      int64  // Warm-up completions override
	batchLength float64
	rate        float64
	batchCSV    string // Per-batch CSV output path
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "webappsim",
	Short: "Discrete-event simulator for multi-tier web application queueing networks",
}

// runCmd loads the experiment file and executes one simulation per
// configured arrival rate, sequentially and with the same seed, so the
// rates are compared under common random numbers.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulation experiment",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg, err := sim.LoadConfig(configPath)
		if err != nil {
			logrus.Fatalf("Failed to load %s: %v", configPath, err)
		}
		if seed != 0 {
			cfg.Seed = seed
		}
		if maxEvents != 0 {
			cfg.MaxEvents = maxEvents
		}
		if warmup >= 0 {
			cfg.WarmupCompletions = warmup
		}
		if batchLength >= 0 {
			cfg.BatchLength = batchLength
		}
		rates := cfg.Arrival.Rates
		if rate != 0 {
			rates = []float64{rate}
		}
		if cfg.Arrival.Process == sim.ProcessCoxian {
			// the Coxian law carries its own phase rates
			rates = []float64{0}
		}

		startTime := time.Now()
		for i, r := range rates {
			logrus.Infof("Starting run %d/%d (rate=%v, seed=%d, max_events=%d)", i+1, len(rates), r, cfg.Seed, cfg.MaxEvents)
			s, err := sim.NewSimulation(cfg, r)
			if err != nil {
				logrus.Fatalf("Failed to build simulation: %v", err)
			}
			report := s.Run()
			PrintReport(os.Stdout, r, report)
			if batchCSV != "" && len(report.Batches) > 0 {
				path := csvPathForRun(batchCSV, i, len(rates))
				if err := WriteBatchCSV(path, report.Batches); err != nil {
					logrus.Errorf("Failed to write %s: %v", path, err)
				}
			}
		}
		logrus.Infof("All runs complete in %v.", time.Since(startTime).Round(time.Millisecond))
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Path to the YAML experiment file")
	runCmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "Master seed override (0 = use config)")
	runCmd.Flags().Int64Var(&maxEvents, "max-events", 0, "Event budget override (0 = use config)")
	runCmd.Flags().Int64Var(&warmup, "warmup", -1, "Warm-up completions override (-1 = use config)")
	runCmd.Flags().Float64Var(&batchLength, "batch-length", -1, "Batch length override in seconds (-1 = use config, 0 = disable)")
	runCmd.Flags().Float64Var(&rate, "rate", 0, "Run a single arrival rate instead of the configured list")
	runCmd.Flags().StringVar(&batchCSV, "batch-csv", "", "Write per-batch results to this CSV path")
	_ = runCmd.MarkFlagRequired("config")

	rootCmd.AddCommand(runCmd)
}
