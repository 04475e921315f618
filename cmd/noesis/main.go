package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"noesis/internal/cognition"
	"noesis/internal/config"
	"noesis/internal/engine"
	"noesis/internal/ledger"
	"noesis/internal/logging"
	"noesis/internal/reasoning"
	"noesis/internal/report"
	"noesis/internal/reputation"
	"noesis/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose   bool
	workspace string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "noesis",
	Short: "noesis - cognition execution and verifiable-report engine",
	Long: `noesis runs named, phase-ordered multi-agent cognitions, tracks agent
reputation and performance, and produces tamper-evident reports with a
merkle root and verification signature, submitted to a verification
ledger and content-addressed store.

Cognition definitions live in .noesis/cognitions.json; executions,
reports and reputation events persist in the SQLite store.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return logging.Initialize(workspace)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

// app bundles the wired components behind every command.
type app struct {
	cfg        *config.Config
	store      *store.Store
	registry   *cognition.Registry
	archive    *cognition.Archive
	reputation *reputation.Store
	engine     *engine.Engine
	reports    *report.Generator
}

// newApp loads config and wires the full pipeline for one CLI invocation.
func newApp() (*app, error) {
	cfgPath := filepath.Join(workspace, ".noesis", "config.yaml")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	db, err := store.New(resolvePath(cfg.Storage.DatabasePath))
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:        cfg,
		store:      db,
		registry:   cognition.NewRegistry(),
		archive:    cognition.NewArchive(),
		reputation: reputation.NewStore().WithRecorder(db),
	}

	var src reasoning.Source
	switch cfg.Reasoning.Provider {
	case "genai":
		src, err = reasoning.NewGenAISource(cfg.Reasoning.APIKey, cfg.Reasoning.Model)
		if err != nil {
			db.Close()
			return nil, err
		}
	default:
		src = reasoning.NewScriptedSource()
	}

	a.engine = engine.New(a.registry, a.archive, a.reputation, src)
	a.engine.SetPolicy(engine.Policy{
		FailureRate:    cfg.Engine.FailureRate,
		Pacing:         cfg.GetPacing(),
		PerfMin:        cfg.Engine.PerfMin,
		PerfMax:        cfg.Engine.PerfMax,
		DefaultTimeout: cfg.GetDefaultTimeout(),
	})

	a.reports = report.NewGenerator(
		ledger.NewSimulatedLedger(cfg.Ledger.Network),
		ledger.NewSimulatedContentStore(),
		resolvePath(cfg.Storage.ReportsDir),
	).WithIndex(db)

	if err := a.loadDefinitions(); err != nil {
		db.Close()
		return nil, err
	}
	a.hydrateReputation()
	return a, nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
}

// definitionsPath is the JSON file holding registered cognition definitions.
func definitionsPath() string {
	return filepath.Join(workspace, ".noesis", "cognitions.json")
}

// loadDefinitions registers persisted cognition definitions.
func (a *app) loadDefinitions() error {
	data, err := os.ReadFile(definitionsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var defs []*cognition.Definition
	if err := json.Unmarshal(data, &defs); err != nil {
		return fmt.Errorf("parse %s: %w", definitionsPath(), err)
	}
	for _, def := range defs {
		if _, err := a.registry.Register(def); err != nil {
			return fmt.Errorf("register %s: %w", def.ID, err)
		}
	}
	return nil
}

// saveDefinitions writes the registry snapshot back to disk.
func (a *app) saveDefinitions() error {
	path := definitionsPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(a.registry.ListAll(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// hydrateReputation restores agent scores from the persisted event log.
// The agent set comes from the log itself, so custom agents from
// user-registered definitions survive restarts too.
func (a *app) hydrateReputation() {
	agents, err := a.store.ReputationAgents()
	if err != nil {
		logger.Warn("reputation not rehydrated", zap.Error(err))
		return
	}
	for _, agent := range agents {
		events, err := a.store.ReputationEventsFor(agent)
		if err != nil || len(events) == 0 {
			continue
		}
		last := events[len(events)-1]
		a.reputation.Set(agent, last.NewScore, "restored from event log")
	}
}

// hydrateArchive loads a cognition's persisted executions and memories
// into the in-memory archive for snapshot and postmortem queries.
func (a *app) hydrateArchive(cognitionID string) error {
	recs, err := a.store.ListExecutions(cognitionID, 0)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err := a.archive.Put(rec); err != nil {
			return err
		}
	}
	memories, err := a.store.MemoryArtifactsFor(cognitionID)
	if err != nil {
		return err
	}
	for _, m := range memories {
		if err := a.archive.RestoreMemory(m); err != nil {
			return err
		}
	}
	return nil
}

// snapshot assembles the audit bundle for a cognition.
func (a *app) snapshot(cognitionID string) (*cognition.Snapshot, error) {
	return cognition.BuildSnapshot(a.registry, a.archive, a.reputation, cognitionID)
}

// resolvePath anchors relative storage paths at the workspace.
func resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workspace, path)
}

// printJSON renders command output as indented JSON.
func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func init() {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", cwd, "Workspace directory")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(cloneCmd)
	rootCmd.AddCommand(retireCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(injectMemoryCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(reputationCmd)
	rootCmd.AddCommand(postmortemCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(testHypothesisCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// parseTimeout converts a --timeout flag value, treating empty as zero.
func parseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
