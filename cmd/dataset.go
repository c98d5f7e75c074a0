package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/skill-engine/internal/model"
)

var (
	datasetCreateName  string
	datasetCreateSkill string
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Manage benchmark datasets",
}

var datasetCreateCmd = &cobra.Command{
	Use:   "create <code>",
	Short: "Create an empty dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		name := datasetCreateName
		if name == "" {
			name = args[0]
		}
		dataset := &model.Dataset{
			ID:         uuid.NewString(),
			Code:       args[0],
			Name:       name,
			SkillID:    datasetCreateSkill,
			SourceType: model.DatasetGenerated,
			Status:     model.DatasetDraft,
			CreatedAt:  time.Now().UTC(),
		}
		if err := st.CreateDataset(ctx, dataset); err != nil {
			return eris.Wrap(err, "create dataset")
		}
		zap.L().Info("dataset created", zap.String("code", dataset.Code), zap.String("id", dataset.ID))
		fmt.Fprintln(cmd.OutOrStdout(), dataset.ID)
		return nil
	},
}

var datasetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List datasets",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		datasets, err := st.ListDatasets(ctx)
		if err != nil {
			return eris.Wrap(err, "list datasets")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CODE\tNAME\tCASES\tSTATUS\tCREATED")
		for _, d := range datasets {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
				d.Code, d.Name, d.TotalCases, d.Status, d.CreatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

var datasetArchiveCmd = &cobra.Command{
	Use:   "archive <code>",
	Short: "Archive a dataset so no new cases or runs target it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		dataset, err := st.GetDataset(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "archive dataset")
		}
		dataset.Status = model.DatasetArchived
		if err := st.UpdateDataset(ctx, dataset); err != nil {
			return eris.Wrap(err, "archive dataset")
		}
		zap.L().Info("dataset archived", zap.String("code", dataset.Code))
		return nil
	},
}

func init() {
	datasetCreateCmd.Flags().StringVar(&datasetCreateName, "name", "", "display name (defaults to code)")
	datasetCreateCmd.Flags().StringVar(&datasetCreateSkill, "skill", "", "skill id this dataset targets")

	datasetCmd.AddCommand(datasetCreateCmd, datasetListCmd, datasetArchiveCmd)
	rootCmd.AddCommand(datasetCmd)
}
