package main

import (
	"context"
	"fmt"

	"noesis/internal/cognition"
	"noesis/internal/report"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate, inspect, and verify cognition reports",
}

var reportGenerateCmd = &cobra.Command{
	Use:   "generate [execution-id]",
	Short: "Generate a verifiable report for a past execution",
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

		var phases []cognition.Phase
		if def, derr := a.registry.Get(rec.CognitionID); derr == nil {
			phases = def.Phases
		}

		rep, err := a.reports.Generate(context.Background(), rec, phases)
		if err != nil {
			return err
		}
		if err := a.store.SetExecutionReportID(rec.ExecutionID, rep.ReportID); err != nil {
			logger.Warn("report link not persisted", zap.Error(err))
		}
		return printJSON(rep)
	},
}

var reportGetCmd = &cobra.Command{
	Use:   "get [report-id]",
	Short: "Print a stored report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		rep, err := a.reports.Get(args[0])
		if err != nil {
			return err
		}
		return printJSON(rep)
	},
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored reports, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		reports, err := a.reports.List()
		if err != nil {
			return err
		}
		for _, rep := range reports {
			fmt.Printf("%-40s %-36s quality %.2f  %s\n",
				rep.ReportID, rep.ExecutionID, rep.Quality.QualityScore,
				rep.GeneratedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var reportVerifyCmd = &cobra.Command{
	Use:   "verify [report-id]",
	Short: "Recompute a report's merkle root and signature",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		rep, err := a.reports.Get(args[0])
		if err != nil {
			return err
		}
		if err := report.Verify(rep); err != nil {
			return fmt.Errorf("report %s FAILED verification: %w", args[0], err)
		}
		fmt.Printf("Report %s verified: merkle root and signature match\n", args[0])
		return nil
	},
}

func init() {
	reportCmd.AddCommand(reportGenerateCmd)
	reportCmd.AddCommand(reportGetCmd)
	reportCmd.AddCommand(reportListCmd)
	reportCmd.AddCommand(reportVerifyCmd)
}
