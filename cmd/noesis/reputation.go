package main

import (
	"fmt"
	"strconv"
	"time"

	"noesis/internal/reasoning"
	"noesis/internal/reputation"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var reputationCmd = &cobra.Command{
	Use:   "reputation",
	Short: "Inspect and adjust agent reputation",
}

var reputationGetCmd = &cobra.Command{
	Use:   "get [agent-id]",
	Short: "Show an agent's rating, or all known agents when omitted",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		agents := reasoning.KnownAgents()
		if len(args) == 1 {
			agents = args[:1]
		}
		for _, agent := range agents {
			r := a.reputation.Get(agent)
			fmt.Printf("%-12s %6.1f  %-13s %s\n", r.AgentID, r.Score, r.Tier, r.Trend)
		}
		return nil
	},
}

var setReason string

var reputationSetCmd = &cobra.Command{
	Use:   "set [agent-id] [score]",
	Short: "Set an agent's score directly, clamped to [0, 100]",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		score, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid score %q: %w", args[1], err)
		}
		change := a.reputation.Set(args[0], score, setReason)

		// Direct sets bypass the event path, so persist one explicitly or the
		// score would not survive a restart.
		ev := reputation.Event{
			EventID:   "reputation_event_" + uuid.NewString(),
			AgentID:   change.AgentID,
			EventType: "manual_set",
			Outcome:   setReason,
			Impact:    change.Delta,
			OldScore:  change.OldScore,
			NewScore:  change.NewScore,
			Timestamp: time.Now().UTC(),
		}
		if err := a.store.RecordReputationEvent(ev); err != nil {
			return err
		}
		return printJSON(change)
	},
}

var (
	eventType    string
	eventOutcome string
	eventImpact  float64
)

var reputationEventCmd = &cobra.Command{
	Use:   "log-event [agent-id]",
	Short: "Apply a bounded reputation adjustment from an event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		id := a.reputation.LogEvent(args[0], eventType, eventOutcome, eventImpact)
		fmt.Println(id)
		r := a.reputation.Get(args[0])
		fmt.Printf("%-12s %6.1f  %-13s %s\n", r.AgentID, r.Score, r.Tier, r.Trend)
		return nil
	},
}

var historyLimit int

var reputationHistoryCmd = &cobra.Command{
	Use:   "history [agent-id]",
	Short: "Show an agent's persisted reputation events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		events, err := a.store.ReputationEventsFor(args[0])
		if err != nil {
			return err
		}
		if historyLimit > 0 && len(events) > historyLimit {
			events = events[len(events)-historyLimit:]
		}
		for _, ev := range events {
			fmt.Printf("%s  %-12s %-10s %+6.1f  %5.1f -> %5.1f\n",
				ev.Timestamp.Format("2006-01-02 15:04:05"),
				ev.EventType, ev.Outcome, ev.Impact, ev.OldScore, ev.NewScore)
		}
		return nil
	},
}

func init() {
	reputationSetCmd.Flags().StringVar(&setReason, "reason", "manual adjustment", "Why the score is being set")

	reputationEventCmd.Flags().StringVar(&eventType, "type", "execution", "Event type")
	reputationEventCmd.Flags().StringVar(&eventOutcome, "outcome", "success", "Event outcome")
	reputationEventCmd.Flags().Float64Var(&eventImpact, "impact", 0, "Score impact, bounded to [-25, 25]")

	reputationHistoryCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum events to show")

	reputationCmd.AddCommand(reputationGetCmd)
	reputationCmd.AddCommand(reputationSetCmd)
	reputationCmd.AddCommand(reputationEventCmd)
	reputationCmd.AddCommand(reputationHistoryCmd)
}
