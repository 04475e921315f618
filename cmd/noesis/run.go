package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"noesis/internal/cognition"
	"noesis/internal/config"
	"noesis/internal/engine"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runSandbox    bool
	runTimeout    string
	runDefinition string
	runReport     bool
	runShowTrace  bool
)

var runCmd = &cobra.Command{
	Use:   "run [cognition-id]",
	Short: "Execute a cognition through its phases",
	Long: `Run executes a cognition phase by phase with its assigned agents,
records the execution, and optionally generates a verifiable report.

Unknown cognition ids are registered on the fly with the default
three-phase definition. Use --definition to register and run a
cognition described in a JSON file instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		cognitionID := ""
		if len(args) > 0 {
			cognitionID = args[0]
		}

		if runDefinition != "" {
			def, err := registerFromFile(a, runDefinition)
			if err != nil {
				return err
			}
			cognitionID = def.ID
		}
		if cognitionID == "" {
			return fmt.Errorf("a cognition id or --definition file is required")
		}

		timeout, err := parseTimeout(runTimeout)
		if err != nil {
			return fmt.Errorf("invalid --timeout: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Long non-sandbox runs pick up config edits mid-flight.
		if !runSandbox {
			watcher, werr := config.NewWatcher(filepath.Join(workspace, ".noesis", "config.yaml"), func(cfg *config.Config) {
				a.engine.SetPolicy(engine.Policy{
					FailureRate:    cfg.Engine.FailureRate,
					Pacing:         cfg.GetPacing(),
					PerfMin:        cfg.Engine.PerfMin,
					PerfMax:        cfg.Engine.PerfMax,
					DefaultTimeout: cfg.GetDefaultTimeout(),
				})
			})
			if werr == nil {
				if serr := watcher.Start(ctx); serr == nil {
					defer watcher.Stop()
				}
			}
		}

		// Drain progress events so slow non-sandbox runs stay visible.
		events := a.engine.Events()
		drainStop := make(chan struct{})
		drainDone := make(chan struct{})
		go func() {
			defer close(drainDone)
			for {
				select {
				case ev := <-events:
					if verbose {
						logger.Debug("progress",
							zap.String("type", string(ev.Type)),
							zap.String("phase", ev.Phase),
							zap.String("agent", ev.Agent))
					}
				case <-drainStop:
					return
				}
			}
		}()

		rec, err := a.engine.Run(ctx, cognitionID, runSandbox, timeout)
		close(drainStop)
		<-drainDone
		if err != nil {
			return err
		}

		if err := a.store.SaveExecution(rec); err != nil {
			logger.Warn("execution not persisted", zap.Error(err))
		}
		if err := a.saveDefinitions(); err != nil {
			logger.Warn("definitions not persisted", zap.Error(err))
		}

		if runReport {
			def, derr := a.registry.Get(rec.CognitionID)
			var phases []cognition.Phase
			if derr == nil {
				phases = def.Phases
			}
			rep, rerr := a.reports.Generate(ctx, rec, phases)
			if rerr != nil {
				return rerr
			}
			if err := a.store.SetExecutionReportID(rec.ExecutionID, rep.ReportID); err != nil {
				logger.Warn("report link not persisted", zap.Error(err))
			}
			fmt.Printf("Report %s generated (quality %.2f, merkle %s)\n",
				rep.ReportID, rep.Quality.QualityScore, rep.MerkleRoot[:16])
		}

		if !runShowTrace {
			rec.Trace = nil
			rec.DetailedOutputs = nil
		}
		return printJSON(rec)
	},
}

// registerFromFile loads a definition from a JSON file and registers it.
func registerFromFile(a *app, path string) (*cognition.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var def cognition.Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	registered, err := a.registry.Register(&def)
	if err != nil {
		return nil, err
	}
	if err := a.saveDefinitions(); err != nil {
		return nil, err
	}
	return registered, nil
}

func init() {
	runCmd.Flags().BoolVar(&runSandbox, "sandbox", true, "Run in sandbox mode (deterministic, no pacing)")
	runCmd.Flags().StringVar(&runTimeout, "timeout", "", "Whole-run deadline, e.g. 90s or 5m")
	runCmd.Flags().StringVar(&runDefinition, "definition", "", "JSON file with a cognition definition to register and run")
	runCmd.Flags().BoolVar(&runReport, "report", false, "Generate a verifiable report after the run")
	runCmd.Flags().BoolVar(&runShowTrace, "trace", false, "Include the execution trace and agent outputs in the output")
}
