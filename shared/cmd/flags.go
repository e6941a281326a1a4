// Package cmd defines the command line flags shared across the fabric
// CLI's verbs.
package cmd

import (
	"github.com/urfave/cli/v2"
)

var (
	// VerbosityFlag defines the logrus configuration.
	VerbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity (debug, info=default, warn, error, fatal, panic)",
		Value: "info",
	}
	// DataDirFlag defines the run's working directory: content store,
	// event log, and policy files all live under it unless overridden.
	DataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the content store and event log",
		Value: DefaultDataDir(),
	}
	// RunIDFlag names the run whose event log/certificate is being
	// operated on (required by replay, diff, certify, verify-bundle).
	RunIDFlag = &cli.StringFlag{
		Name:  "run-id",
		Usage: "Run identifier seed material",
	}
	// PolicyFileFlag points at a compiled policy document (spec.md §4.4).
	PolicyFileFlag = &cli.StringFlag{
		Name:  "policy",
		Usage: "Path to the policy document governing this run's capability grants",
	}
	// WorkflowFileFlag points at a compiled DAG definition to execute.
	WorkflowFileFlag = &cli.StringFlag{
		Name:  "workflow",
		Usage: "Path to the compiled workflow DAG to run",
	}
	// ConcurrencyFlag bounds how many nodes may be in flight at once.
	ConcurrencyFlag = &cli.IntFlag{
		Name:  "concurrency",
		Usage: "Maximum number of nodes dispatched concurrently (0 = unbounded)",
		Value: 0,
	}
	// FuelBudgetFlag sets the default per-node fuel budget.
	FuelBudgetFlag = &cli.Uint64Flag{
		Name:  "fuel-budget",
		Usage: "Default fuel budget granted to each dispatched node",
		Value: 10_000_000,
	}
	// CompareLogFlag names a second event log for the diff verb.
	CompareLogFlag = &cli.StringFlag{
		Name:  "compare",
		Usage: "Path to a second run's event log directory, for divergence comparison",
	}
	// BundleOutputFlag names where a certified run bundle is written.
	BundleOutputFlag = &cli.StringFlag{
		Name:  "out",
		Usage: "Output path for the bundled run artifact",
	}
	// DisableMonitoringFlag defines a flag to disable the metrics collection.
	DisableMonitoringFlag = &cli.BoolFlag{
		Name:  "disable-monitoring",
		Usage: "Disable the Prometheus metrics service",
	}
	// MonitoringPortFlag defines the http port used to serve prometheus metrics.
	MonitoringPortFlag = &cli.Int64Flag{
		Name:  "monitoring-port",
		Usage: "Port used to listen and respond to metrics for Prometheus",
		Value: 8080,
	}
	// LogFileFlag enables persistent file logging alongside stdout.
	LogFileFlag = &cli.StringFlag{
		Name:  "log-file",
		Usage: "If set, mirror log output to this file as well as stdout",
	}
)
