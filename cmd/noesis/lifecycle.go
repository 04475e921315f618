package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	listExecutions bool
	listLimit      int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered cognitions or past executions",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		if listExecutions {
			recs, err := a.store.ListExecutions("", listLimit)
			if err != nil {
				return err
			}
			for _, rec := range recs {
				score := "-"
				if rec.Score != nil {
					score = strconv.Itoa(*rec.Score)
				}
				fmt.Printf("%-36s %-24s %-10s phases %d/%d  score %s\n",
					rec.ExecutionID, rec.CognitionName, rec.Status,
					rec.PhasesCompleted, rec.TotalPhases, score)
			}
			return nil
		}

		for _, def := range a.registry.ListAll() {
			fmt.Printf("%-40s %-28s %-10s agents [%s]\n",
				def.ID, def.Name, def.Status, strings.Join(def.Agents, ", "))
		}
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register [definition.json]",
	Short: "Register a cognition definition from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		def, err := registerFromFile(a, args[0])
		if err != nil {
			return err
		}
		return printJSON(def)
	},
}

var (
	cloneName   string
	cloneAgents []string
)

var cloneCmd = &cobra.Command{
	Use:   "clone [cognition-id]",
	Short: "Clone a cognition, optionally swapping its agent roster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		def, err := a.registry.Clone(args[0], cloneAgents, cloneName)
		if err != nil {
			return err
		}
		if err := a.saveDefinitions(); err != nil {
			return err
		}
		return printJSON(def)
	},
}

var retireReason string

var retireCmd = &cobra.Command{
	Use:   "retire [cognition-id]",
	Short: "Retire a cognition so it can no longer be executed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.registry.Retire(args[0], retireReason); err != nil {
			return err
		}
		if err := a.saveDefinitions(); err != nil {
			return err
		}
		fmt.Printf("Cognition %s retired\n", args[0])
		return nil
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [cognition-id]",
	Short: "Build an audit snapshot of a cognition and its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.hydrateArchive(args[0]); err != nil {
			return err
		}
		snap, err := a.snapshot(args[0])
		if err != nil {
			return err
		}
		return printJSON(snap)
	},
}

var scoreFeedback string

var scoreCmd = &cobra.Command{
	Use:   "score [execution-id] [score]",
	Short: "Attach a rating between -100 and 100 to a past execution",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		score, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid score %q: %w", args[1], err)
		}
		if err := a.store.ScoreExecution(args[0], score, scoreFeedback); err != nil {
			return err
		}
		fmt.Printf("Execution %s scored\n", args[0])
		return nil
	},
}

var (
	memoryPhase string
	memoryData  []string
)

var injectMemoryCmd = &cobra.Command{
	Use:   "inject-memory [cognition-id]",
	Short: "Attach a memory artifact to a cognition phase",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		data := make(map[string]string, len(memoryData))
		for _, kv := range memoryData {
			key, value, found := strings.Cut(kv, "=")
			if !found {
				return fmt.Errorf("invalid --data entry %q, want key=value", kv)
			}
			data[key] = value
		}

		id := a.archive.InjectMemory(args[0], memoryPhase, data)
		memories := a.archive.MemoriesFor(args[0])
		for _, m := range memories {
			if m.ID != id {
				continue
			}
			if err := a.store.SaveMemoryArtifact(m); err != nil {
				logger.Warn("memory not persisted", zap.Error(err))
			}
		}
		fmt.Println(id)
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listExecutions, "executions", false, "List execution records instead of definitions")
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "Maximum executions to list")

	cloneCmd.Flags().StringVar(&cloneName, "name", "", "Name for the clone (defaults to source name + _clone)")
	cloneCmd.Flags().StringSliceVar(&cloneAgents, "agents", nil, "Replacement agent roster for the clone")

	retireCmd.Flags().StringVar(&retireReason, "reason", "", "Why the cognition is being retired")

	scoreCmd.Flags().StringVar(&scoreFeedback, "feedback", "", "Free-text feedback for the execution")

	injectMemoryCmd.Flags().StringVar(&memoryPhase, "phase", "", "Phase the memory belongs to")
	injectMemoryCmd.Flags().StringSliceVar(&memoryData, "data", nil, "Memory payload as key=value pairs")
}
