package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/skill-engine/internal/engine"
	"github.com/sells-group/skill-engine/internal/evaluator"
	"github.com/sells-group/skill-engine/internal/model"
	"github.com/sells-group/skill-engine/internal/store"
)

var (
	benchDataset        string
	benchName           string
	benchTolerance      float64
	benchSkipSkillMatch bool
	benchExportOut      string
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Create, execute, and inspect benchmark runs",
}

var benchCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a pending benchmark run over a dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if benchDataset == "" {
			return eris.New("bench create: --dataset is required")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		ev := newEvaluator(st)
		tolerance := benchTolerance
		if tolerance == 0 {
			tolerance = cfg.Benchmark.Tolerance
		}
		run, err := ev.CreateRun(ctx, benchDataset, benchName, model.EvalConfig{
			Tolerance:      tolerance,
			PartialMatch:   cfg.Benchmark.PartialMatch,
			SkipSkillMatch: benchSkipSkillMatch || cfg.Benchmark.SkipSkillMatch,
		})
		if err != nil {
			return eris.Wrap(err, "bench create")
		}
		zap.L().Info("run created", zap.String("code", run.Code), zap.Int("cases", run.TotalCases))
		fmt.Fprintln(cmd.OutOrStdout(), run.Code)
		return nil
	},
}

var benchRunCmd = &cobra.Command{
	Use:   "run <run-code>",
	Short: "Execute a benchmark run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		ev := newEvaluator(st)
		run, err := ev.ExecuteRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "bench run")
		}
		return printJSON(cmd, run)
	},
}

var benchMetricsCmd = &cobra.Command{
	Use:   "metrics <run-code>",
	Short: "Show metrics for a completed run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		ev := newEvaluator(st)
		metrics, err := ev.Metrics(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "bench metrics")
		}
		return printJSON(cmd, metrics)
	},
}

var benchFailedCmd = &cobra.Command{
	Use:   "failed <run-code>",
	Short: "List failed and errored cases of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "bench failed")
		}
		results, err := st.ListResults(ctx, run.ID, store.ResultFilter{
			Statuses: []model.ResultStatus{model.ResultFailed, model.ResultError},
		})
		if err != nil {
			return eris.Wrap(err, "bench failed")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CASE\tSTATUS\tSCORE\tSKILL\tERROR")
		for _, r := range results {
			fmt.Fprintf(w, "%s\t%s\t%.3f\t%s\t%s\n",
				r.CaseID, r.Status, r.OverallScore, r.ActualSkillID, r.ErrorDetail)
		}
		return w.Flush()
	},
}

var benchExportCmd = &cobra.Command{
	Use:   "export <run-code>",
	Short: "Export a run's results and metrics to an xlsx workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "bench export")
		}
		if run.Status != model.RunCompleted {
			return eris.Errorf("bench export: run %s is %s, export requires completion", run.Code, run.Status)
		}
		results, err := st.ListResults(ctx, run.ID, store.ResultFilter{Limit: run.TotalCases})
		if err != nil {
			return eris.Wrap(err, "bench export")
		}

		out := benchExportOut
		if out == "" {
			out = run.Code + ".xlsx"
		}
		if err := writeRunWorkbook(out, run, results); err != nil {
			return err
		}
		zap.L().Info("run exported", zap.String("run", run.Code), zap.String("file", out))
		return nil
	},
}

// writeRunWorkbook writes one sheet of per-case results and one of aggregate
// metrics.
func writeRunWorkbook(path string, run *model.Run, results []model.Result) error {
	wb := xlsx.NewFile()

	sheet, err := wb.AddSheet("Results")
	if err != nil {
		return eris.Wrap(err, "bench export: add results sheet")
	}
	header := sheet.AddRow()
	for _, col := range []string{"case_id", "status", "overall_score", "skill_match", "actual_skill_id", "confidence", "duration_ms", "error"} {
		header.AddCell().Value = col
	}
	for _, r := range results {
		row := sheet.AddRow()
		row.AddCell().Value = r.CaseID
		row.AddCell().Value = string(r.Status)
		row.AddCell().SetFloat(r.OverallScore)
		skillMatch := ""
		if r.SkillMatch != nil {
			skillMatch = strconv.FormatBool(*r.SkillMatch)
		}
		row.AddCell().Value = skillMatch
		row.AddCell().Value = r.ActualSkillID
		if r.ActualConfidence != nil {
			row.AddCell().SetFloat(*r.ActualConfidence)
		} else {
			row.AddCell().Value = ""
		}
		row.AddCell().SetInt64(r.DurationMs)
		row.AddCell().Value = r.ErrorDetail
	}

	metricsSheet, err := wb.AddSheet("Metrics")
	if err != nil {
		return eris.Wrap(err, "bench export: add metrics sheet")
	}
	m := run.Metrics
	addMetricRow(metricsSheet, "total_cases", float64(m.Overall.TotalCases))
	addMetricRow(metricsSheet, "accuracy", m.Overall.Accuracy)
	addMetricRow(metricsSheet, "partial_accuracy", m.Overall.PartialAccuracy)
	addMetricRow(metricsSheet, "skill_match_rate", m.Overall.SkillMatchRate)
	addMetricRow(metricsSheet, "avg_confidence", m.Overall.AvgConfidence)
	addMetricRow(metricsSheet, "avg_score", m.Overall.AvgScore)
	addMetricRow(metricsSheet, "avg_duration_ms", m.Overall.AvgDurationMs)
	for difficulty, dm := range m.ByDifficulty {
		addMetricRow(metricsSheet, "accuracy_"+difficulty, dm.Accuracy)
	}
	for attr, am := range m.ByAttribute {
		addMetricRow(metricsSheet, "exact_match_"+attr, am.ExactMatch)
	}

	return eris.Wrapf(wb.Save(path), "bench export: save %s", path)
}

func addMetricRow(sheet *xlsx.Sheet, name string, value float64) {
	row := sheet.AddRow()
	row.AddCell().Value = name
	row.AddCell().SetFloat(value)
}

func newEvaluator(st store.Store) *evaluator.Evaluator {
	runtime := engine.NewRuntime(st, cfg.Engine.LowConfidenceThreshold)
	return evaluator.New(st, runtime, cfg.Benchmark.CheckpointEvery)
}

func init() {
	benchCreateCmd.Flags().StringVar(&benchDataset, "dataset", "", "dataset code to evaluate")
	benchCreateCmd.Flags().StringVar(&benchName, "name", "", "run display name")
	benchCreateCmd.Flags().Float64Var(&benchTolerance, "tolerance", 0, "numeric tolerance (default from config)")
	benchCreateCmd.Flags().BoolVar(&benchSkipSkillMatch, "skip-skill-match", false, "do not grade skill selection")
	benchExportCmd.Flags().StringVarP(&benchExportOut, "out", "o", "", "output file (default <run-code>.xlsx)")

	benchCmd.AddCommand(benchCreateCmd, benchRunCmd, benchMetricsCmd, benchFailedCmd, benchExportCmd)
	rootCmd.AddCommand(benchCmd)
}
