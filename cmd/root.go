package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/PollyDrive/capsim/sim"
	"github.com/PollyDrive/capsim/sim/repository"
)

// CLI flags for the run subcommand.
var (
	seed        int64
	agentCount  int
	horizonMin  int
	speedFactor float64
	logLevel    string
	configPath  string
	dbPath      string
	realTime    bool
)

// rootCmd is the base command for the developer harness. It is not the
// product CLI named as out-of-scope in §2.5 — just enough surface to boot a
// run locally during development and point it at a SQLite file.
var rootCmd = &cobra.Command{
	Use:   "capsim",
	Short: "Discrete-event social-interaction simulator",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Bootstrap and run a simulation to its horizon",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logrus.SetLevel(level)

		cfg, err := sim.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if seed != 0 {
			cfg.Seed = seed
		}
		if agentCount != 0 {
			cfg.AgentCount = agentCount
		}
		if horizonMin != 0 {
			cfg.HorizonMin = horizonMin
		}
		if speedFactor != 0 {
			cfg.SimSpeedFactor = speedFactor
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		var repo repository.Repository
		if dbPath == "" {
			repo = repository.NewMemoryRepository(cfg.RetryBackoffs())
		} else {
			flushInterval := time.Duration(60 / cfg.SimSpeedFactor * float64(time.Second))
			repo, err = repository.NewSQLiteRepository(dbPath, cfg.BatchSize, flushInterval, cfg.RetryBackoffs())
			if err != nil {
				return err
			}
		}
		defer func() { _ = repo.Close() }()

		var clock sim.Clock
		if realTime {
			clock = sim.NewRealTimeClock(cfg.SimSpeedFactor)
		} else {
			clock = sim.NewFastClock()
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		s, err := sim.Bootstrap(ctx, cfg, repo, clock)
		if err != nil {
			return err
		}

		logrus.WithFields(logrus.Fields{
			"sim_id":      s.SimulationID(),
			"agent_count": cfg.AgentCount,
			"horizon_min": cfg.HorizonMin,
			"seed":        cfg.Seed,
		}).Info("bootstrap complete, starting run")

		if err := s.Run(ctx); err != nil {
			return err
		}

		count, mean, max := s.Metrics().EventLatencySnapshot()
		var commitErrors int64
		if counter, ok := repo.(interface{ BatchCommitErrorsTotal() int64 }); ok {
			commitErrors = counter.BatchCommitErrorsTotal()
		}
		logrus.WithFields(logrus.Fields{
			"events_dispatched":    count,
			"mean_latency_ms":      mean,
			"max_latency_ms":       max,
			"batch_commit_errors":  commitErrors,
		}).Info("run complete")
		return nil
	},
}

// Execute runs the CLI root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func init() {
	runCmd.Flags().Int64Var(&seed, "seed", 0, "RNG seed (0 keeps the config/default value)")
	runCmd.Flags().IntVar(&agentCount, "agents", 0, "agent population size (0 keeps the config/default value)")
	runCmd.Flags().IntVar(&horizonMin, "horizon", 0, "simulation horizon in sim-minutes (0 keeps the config/default value)")
	runCmd.Flags().Float64Var(&speedFactor, "speed-factor", 0, "real-time pacing multiplier (0 keeps the config/default value)")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config overlay")
	runCmd.Flags().StringVar(&dbPath, "db", "", "SQLite DSN; empty runs against an in-memory repository")
	runCmd.Flags().BoolVar(&realTime, "real-time", false, "pace the run against the wall clock instead of running at full speed")

	rootCmd.AddCommand(runCmd)
}
