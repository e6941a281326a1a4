// Package main is the cathedral-fabric CLI entrypoint, grounded on
// beacon-chain/main.go's urfave/cli v2 app construction (appFlags
// slice, app.Before log setup, panic-recovery wrapper), trimmed to the
// verbs and flags spec.md §6 names.
package main

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	runtimeDebug "runtime/debug"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/crypto/ed25519"
	"gopkg.in/d4l3k/messagediff.v1"

	"github.com/cathedral-fabric/fabric/core/bundle"
	"github.com/cathedral-fabric/fabric/core/certify"
	"github.com/cathedral-fabric/fabric/core/eventlog"
	"github.com/cathedral-fabric/fabric/core/executor"
	"github.com/cathedral-fabric/fabric/core/ferrors"
	"github.com/cathedral-fabric/fabric/core/ids"
	"github.com/cathedral-fabric/fabric/core/node"
	"github.com/cathedral-fabric/fabric/core/policy"
	"github.com/cathedral-fabric/fabric/core/replay"
	"github.com/cathedral-fabric/fabric/core/store"
	"github.com/cathedral-fabric/fabric/core/workflow"
	"github.com/cathedral-fabric/fabric/shared/cmd"
	"github.com/cathedral-fabric/fabric/shared/fileutil"
	"github.com/cathedral-fabric/fabric/shared/logutil"
	"github.com/cathedral-fabric/fabric/shared/prometheus"
)

const appVersion = "0.1.0"

var appFlags = []cli.Flag{
	cmd.VerbosityFlag,
	cmd.DataDirFlag,
	cmd.RunIDFlag,
	cmd.PolicyFileFlag,
	cmd.WorkflowFileFlag,
	cmd.ConcurrencyFlag,
	cmd.FuelBudgetFlag,
	cmd.CompareLogFlag,
	cmd.BundleOutputFlag,
	cmd.DisableMonitoringFlag,
	cmd.MonitoringPortFlag,
	cmd.LogFileFlag,
}

func main() {
	log := logrus.WithField("prefix", "main")
	app := cli.NewApp()
	app.Name = "fabric"
	app.Usage = "cathedral-fabric: a bit-reproducible execution fabric for tool-invocation DAGs"
	app.Version = appVersion
	app.Flags = appFlags

	app.Before = func(ctx *cli.Context) error {
		level, err := logrus.ParseLevel(ctx.String(cmd.VerbosityFlag.Name))
		if err != nil {
			return err
		}
		logrus.SetLevel(level)

		if logFile := ctx.String(cmd.LogFileFlag.Name); logFile != "" {
			if err := logutil.ConfigurePersistentLogging(logFile); err != nil {
				log.WithError(err).Error("Failed to configure persistent logging")
			}
		}
		return nil
	}

	app.Commands = []*cli.Command{
		runCommand,
		replayCommand,
		diffCommand,
		traceCommand,
		inspectCommand,
		capabilitiesCommand,
		certifyCommand,
		bundleCommand,
		verifyBundleCommand,
	}

	defer func() {
		if x := recover(); x != nil {
			log.Errorf("Runtime panic: %v\n%v", x, string(runtimeDebug.Stack()))
			panic(x)
		}
	}()

	if err := app.Run(os.Args); err != nil {
		log.Error(err.Error())
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a kernel error to spec.md §6's CLI exit codes.
func exitCodeFor(err error) int {
	switch ferrors.KindOf(err) {
	case ferrors.KindValidation, ferrors.KindInvalidEncoding, ferrors.KindInvalidId:
		return 2
	case ferrors.KindDivergence:
		return 3
	case ferrors.KindCapabilityDenied, ferrors.KindPermissionDenied:
		return 4
	case ferrors.KindNotFound, ferrors.KindAlreadyExists, ferrors.KindCapacityExceeded:
		return 5
	default:
		return 1
	}
}

func storeDir(dataDir, runID string) string  { return filepath.Join(dataDir, runID, "store") }
func logDir(dataDir, runID string) string    { return filepath.Join(dataDir, runID, "log") }
func keyFilePath(dataDir string) string      { return filepath.Join(dataDir, "signing.key") }

// loadOrCreateSigner reads an Ed25519 private key from dataDir,
// generating and persisting one on first use. Key material is the one
// piece of this CLI that is legitimately random — it is never an
// input to a deterministic code path, only to the certificate
// signature layered on top of it.
func loadOrCreateSigner(dataDir string) (ed25519.PrivateKey, error) {
	path := keyFilePath(dataDir)
	if data, err := fileutil.ReadFileAsBytes(path); err == nil && len(data) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(data), nil
	}
	if err := fileutil.MkdirAll(dataDir); err != nil {
		return nil, ferrors.Wrap(ferrors.KindInternal, "main.loadOrCreateSigner", err)
	}
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.KindInternal, "main.loadOrCreateSigner", err)
	}
	if err := fileutil.WriteFile(path, priv); err != nil {
		return nil, ferrors.Wrap(ferrors.KindInternal, "main.loadOrCreateSigner", err)
	}
	return priv, nil
}

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "Compile and execute a workflow DAG to completion, producing a certificate",
	Flags: []cli.Flag{cmd.DataDirFlag, cmd.WorkflowFileFlag, cmd.PolicyFileFlag, cmd.ConcurrencyFlag, cmd.FuelBudgetFlag},
	Action: func(ctx *cli.Context) error {
		doc, err := workflow.LoadDocument(ctx.String(cmd.WorkflowFileFlag.Name))
		if err != nil {
			return err
		}
		pol, err := workflow.LoadPolicy(ctx.String(cmd.PolicyFileFlag.Name))
		if err != nil {
			return err
		}

		run := ids.NewRunId(ctx.String(cmd.WorkflowFileFlag.Name))
		graph, err := workflow.Compile(doc, run)
		if err != nil {
			return err
		}

		dataDir := ctx.String(cmd.DataDirFlag.Name)
		signer, err := loadOrCreateSigner(dataDir)
		if err != nil {
			return err
		}

		tools := executor.NewRegistry()
		coord, err := node.New(node.Config{
			RunID:       run,
			StoreDir:    storeDir(dataDir, run.String()),
			LogDir:      logDir(dataDir, run.String()),
			Policy:      pol,
			Concurrency: ctx.Int(cmd.ConcurrencyFlag.Name),
			Signer:      signer,
		}, tools)
		if err != nil {
			return err
		}

		if !ctx.Bool(cmd.DisableMonitoringFlag.Name) {
			addr := fmt.Sprintf(":%d", ctx.Int64(cmd.MonitoringPortFlag.Name))
			mon := prometheus.NewPrometheusService(addr, coord.Services())
			if err := coord.Services().RegisterService(mon); err != nil {
				return err
			}
			mon.Start()
			defer func() {
				if err := mon.Stop(); err != nil {
					logrus.WithError(err).Error("Could not stop monitoring service")
				}
			}()
		}

		specs := workflow.Inputs(doc, run, nil, ctx.Uint64(cmd.FuelBudgetFlag.Name))
		inputs := make(map[ids.NodeId]node.NodeInput, len(specs))
		for id, spec := range specs {
			inputs[id] = node.NodeInput{Data: spec.Data, Schema: spec.Schema, FuelBudget: spec.FuelBudget}
		}

		cert, err := coord.Run(graph, inputs)
		if err != nil {
			return err
		}
		fmt.Printf("run %s certified: tip=%s root=%s content=%s\n",
			run, cert.Body.LogTipHash, cert.Body.RootStateHash, cert.Body.ContentRoot)
		return nil
	},
}

var replayCommand = &cli.Command{
	Name:  "replay",
	Usage: "Reconstruct a run's state from its event log",
	Flags: []cli.Flag{cmd.DataDirFlag, cmd.RunIDFlag},
	Action: func(ctx *cli.Context) error {
		run, err := ids.ParseRunId(ctx.String(cmd.RunIDFlag.Name))
		if err != nil {
			return err
		}
		dataDir := ctx.String(cmd.DataDirFlag.Name)
		log, err := eventlog.Open(logDir(dataDir, run.String()), run)
		if err != nil {
			return err
		}
		defer log.Close()

		if err := log.Validate(); err != nil {
			return err
		}
		state, err := replay.Reconstruct(log, nil)
		if err != nil {
			return err
		}
		fmt.Printf("run %s: events=%d logical_time=%d root_state=%s\n",
			run, state.EventsSeen, state.LogicalTime.AsUint64(), state.LastPostHash)
		for id, status := range state.NodeStatus {
			fmt.Printf("  %s: %s\n", id, status)
		}
		return nil
	},
}

var diffCommand = &cli.Command{
	Name:  "diff",
	Usage: "Report the first divergence between two runs' event logs",
	Flags: []cli.Flag{cmd.DataDirFlag, cmd.RunIDFlag, cmd.CompareLogFlag},
	Action: func(ctx *cli.Context) error {
		dataDir := ctx.String(cmd.DataDirFlag.Name)
		leftRun, err := ids.ParseRunId(ctx.String(cmd.RunIDFlag.Name))
		if err != nil {
			return err
		}
		rightRun, err := ids.ParseRunId(ctx.String(cmd.CompareLogFlag.Name))
		if err != nil {
			return err
		}

		left, err := eventlog.Open(logDir(dataDir, leftRun.String()), leftRun)
		if err != nil {
			return err
		}
		defer left.Close()
		right, err := eventlog.Open(logDir(dataDir, rightRun.String()), rightRun)
		if err != nil {
			return err
		}
		defer right.Close()

		report, err := replay.Diff(left, right)
		if err != nil {
			return err
		}
		if report == nil {
			fmt.Println("no divergence: one log is a prefix of (or equal to) the other")
			return nil
		}

		diffText, equal := messagediff.PrettyDiff(
			replay.DivergenceReport{}, *report,
		)
		if !equal {
			fmt.Print(diffText)
		}
		return ferrors.New(ferrors.KindDivergence, "cmd.diff")
	},
}

var traceCommand = &cli.Command{
	Name:  "trace",
	Usage: "Step through a run's event log event by event",
	Flags: []cli.Flag{cmd.DataDirFlag, cmd.RunIDFlag},
	Action: func(ctx *cli.Context) error {
		run, err := ids.ParseRunId(ctx.String(cmd.RunIDFlag.Name))
		if err != nil {
			return err
		}
		dataDir := ctx.String(cmd.DataDirFlag.Name)
		log, err := eventlog.Open(logDir(dataDir, run.String()), run)
		if err != nil {
			return err
		}
		defer log.Close()

		reader, err := replay.FromLog(log)
		if err != nil {
			return err
		}
		for reader.HasMore() {
			ev, err := reader.Next()
			if err != nil {
				return err
			}
			fmt.Printf("[%d] node=%s kind=%s logical_time=%d\n",
				reader.Position()-1, ev.NodeID, ev.Kind, ev.LogicalTime.AsUint64())
		}
		return nil
	},
}

var inspectCommand = &cli.Command{
	Name:  "inspect",
	Usage: "Render a compiled workflow's DAG as Graphviz dot",
	Flags: []cli.Flag{cmd.WorkflowFileFlag},
	Action: func(ctx *cli.Context) error {
		doc, err := workflow.LoadDocument(ctx.String(cmd.WorkflowFileFlag.Name))
		if err != nil {
			return err
		}
		run := ids.NewRunId(ctx.String(cmd.WorkflowFileFlag.Name))
		graph, err := workflow.Compile(doc, run)
		if err != nil {
			return err
		}
		fmt.Print(graph.Render())
		return nil
	},
}

var capabilitiesCommand = &cli.Command{
	Name:  "capabilities",
	Usage: "List a compiled workflow's declared capability grants per node",
	Flags: []cli.Flag{cmd.WorkflowFileFlag, cmd.PolicyFileFlag},
	Action: func(ctx *cli.Context) error {
		doc, err := workflow.LoadDocument(ctx.String(cmd.WorkflowFileFlag.Name))
		if err != nil {
			return err
		}
		run := ids.NewRunId(ctx.String(cmd.WorkflowFileFlag.Name))
		graph, err := workflow.Compile(doc, run)
		if err != nil {
			return err
		}

		var engine *policy.Engine
		if path := ctx.String(cmd.PolicyFileFlag.Name); path != "" {
			pol, err := workflow.LoadPolicy(path)
			if err != nil {
				return err
			}
			engine, err = policy.NewEngine(pol, 0)
			if err != nil {
				return err
			}
		}

		for _, n := range graph.Nodes() {
			fmt.Printf("%s (%s): %s\n", n.Name, n.ID, n.Capability)
			if engine == nil {
				continue
			}
			for _, grant := range n.Capability.Grants() {
				decision := engine.Decide(policy.Request{NodeID: n.ID, Capability: grant, Context: policy.NewMatchContext()})
				fmt.Printf("  %s -> %s\n", grant, decision.Verdict)
			}
		}
		return nil
	},
}

var certifyCommand = &cli.Command{
	Name:  "certify",
	Usage: "Certify a completed run's event log",
	Flags: []cli.Flag{cmd.DataDirFlag, cmd.RunIDFlag},
	Action: func(ctx *cli.Context) error {
		run, err := ids.ParseRunId(ctx.String(cmd.RunIDFlag.Name))
		if err != nil {
			return err
		}
		dataDir := ctx.String(cmd.DataDirFlag.Name)
		log, err := eventlog.Open(logDir(dataDir, run.String()), run)
		if err != nil {
			return err
		}
		defer log.Close()

		signer, err := loadOrCreateSigner(dataDir)
		if err != nil {
			return err
		}
		cert, err := certify.Certify(log, signer)
		if err != nil {
			return err
		}
		encoded, err := cert.Encode()
		if err != nil {
			return err
		}
		out := ctx.String(cmd.BundleOutputFlag.Name)
		if out == "" {
			out = filepath.Join(dataDir, run.String(), "certificate.json")
		}
		if err := os.WriteFile(out, encoded, 0o600); err != nil {
			return ferrors.Wrap(ferrors.KindInternal, "cmd.certify", err)
		}
		fmt.Printf("certificate written to %s\n", out)
		return nil
	},
}

var bundleCommand = &cli.Command{
	Name:  "bundle",
	Usage: "Package a run's log, blobs, and certificate into a portable replay bundle",
	Flags: []cli.Flag{cmd.DataDirFlag, cmd.RunIDFlag, cmd.BundleOutputFlag},
	Action: func(ctx *cli.Context) error {
		run, err := ids.ParseRunId(ctx.String(cmd.RunIDFlag.Name))
		if err != nil {
			return err
		}
		dataDir := ctx.String(cmd.DataDirFlag.Name)

		log, err := eventlog.Open(logDir(dataDir, run.String()), run)
		if err != nil {
			return err
		}
		defer log.Close()
		bs, err := store.Open(storeDir(dataDir, run.String()))
		if err != nil {
			return err
		}
		defer bs.Close()

		var opts bundle.Options
		certPath := filepath.Join(dataDir, run.String(), "certificate.json")
		if data, err := os.ReadFile(certPath); err == nil {
			cert, err := certify.Decode(data)
			if err != nil {
				return err
			}
			opts.Certificate = &cert
		}

		out := ctx.String(cmd.BundleOutputFlag.Name)
		if out == "" {
			out = filepath.Join(dataDir, run.String()+".bundle.tar")
		}
		f, err := os.Create(out)
		if err != nil {
			return ferrors.Wrap(ferrors.KindInternal, "cmd.bundle", err)
		}
		defer f.Close()

		if err := bundle.Write(f, log, bs, opts); err != nil {
			return err
		}
		fmt.Printf("bundle written to %s\n", out)
		return nil
	},
}

var verifyBundleCommand = &cli.Command{
	Name:  "verify-bundle",
	Usage: "Verify a portable replay bundle's certificate against its log and blobs",
	Flags: []cli.Flag{cmd.DataDirFlag},
	ArgsUsage: "<bundle-path>",
	Action: func(ctx *cli.Context) error {
		if ctx.Args().Len() != 1 {
			return ferrors.New(ferrors.KindValidation, "cmd.verify-bundle: expected exactly one bundle path argument")
		}
		f, err := os.Open(ctx.Args().First())
		if err != nil {
			return ferrors.Wrap(ferrors.KindNotFound, "cmd.verify-bundle", err)
		}
		defer f.Close()

		b, err := bundle.Read(f)
		if err != nil {
			return err
		}
		if b.Certificate == nil {
			return ferrors.New(ferrors.KindValidation, "cmd.verify-bundle: bundle carries no certificate")
		}

		tmp, err := os.MkdirTemp("", "fabric-verify-*")
		if err != nil {
			return ferrors.Wrap(ferrors.KindInternal, "cmd.verify-bundle", err)
		}
		defer os.RemoveAll(tmp)

		bs, restoredLog, err := bundle.Restore(b, filepath.Join(tmp, "store"), filepath.Join(tmp, "log"))
		if err != nil {
			return err
		}
		defer bs.Close()
		defer restoredLog.Close()

		if err := certify.Verify(*b.Certificate, restoredLog, bs); err != nil {
			return err
		}
		fmt.Println("certificate verifies")
		return nil
	},
}
