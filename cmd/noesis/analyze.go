package main

import (
	"fmt"
	"strings"

	"noesis/internal/engine"

	"github.com/spf13/cobra"
)

var postmortemCmd = &cobra.Command{
	Use:   "postmortem [execution-id]",
	Short: "Explain why a past execution failed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		rec, err := a.store.LoadExecution(args[0])
		if err != nil {
			return err
		}
		if err := a.archive.Put(rec); err != nil {
			return err
		}

		analysis, err := a.engine.WhyFailed(args[0])
		if err != nil {
			return err
		}
		return printJSON(analysis)
	},
}

var (
	predictAgents      []string
	predictDescription string
	predictConfidence  float64
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Forecast outcome probabilities for an action plan",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		p := a.engine.PredictOutcome(engine.ActionPlan{
			Description: predictDescription,
			Agents:      predictAgents,
		}, predictConfidence)
		return printJSON(p)
	},
}

var (
	hypothesisData        []string
	hypothesisMethodology string
)

var testHypothesisCmd = &cobra.Command{
	Use:   "test-hypothesis [hypothesis]",
	Short: "Run simulated logic over a hypothesis and supporting data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		data := make(map[string]string, len(hypothesisData))
		for _, kv := range hypothesisData {
			key, value, found := strings.Cut(kv, "=")
			if !found {
				return fmt.Errorf("invalid --data entry %q, want key=value", kv)
			}
			data[key] = value
		}

		h := a.engine.TestHypothesis(args[0], data, hypothesisMethodology)
		return printJSON(h)
	},
}

func init() {
	predictCmd.Flags().StringSliceVar(&predictAgents, "agents", nil, "Agents participating in the plan")
	predictCmd.Flags().StringVar(&predictDescription, "description", "", "What the plan intends to do")
	predictCmd.Flags().Float64Var(&predictConfidence, "confidence", 0.8, "Confidence level for the forecast")

	testHypothesisCmd.Flags().StringSliceVar(&hypothesisData, "data", nil, "Hypothetical data as key=value pairs")
	testHypothesisCmd.Flags().StringVar(&hypothesisMethodology, "methodology", "simulation", "Testing methodology label")
}
