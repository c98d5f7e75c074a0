package main

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/skill-engine/internal/generator"
	"github.com/sells-group/skill-engine/internal/model"
)

var (
	genSkill        string
	genDataset      string
	genCount        int
	genDistribution string
	genNoise        bool
	genVariants     bool
	genSeed         int64

	genTmplFile       string
	genTmplDifficulty string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate labeled benchmark cases from a skill's DSL",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if genSkill == "" || genDataset == "" {
			return eris.New("generate: --skill and --dataset are required")
		}

		dist, err := parseDistribution(genDistribution)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		seed := genSeed
		if seed == 0 {
			seed = cfg.Generator.Seed
		}
		gen := generator.New(st, seed)
		stats, err := gen.GenerateFromSkill(ctx, genSkill, genDataset, generator.Options{
			Count:                  genCount,
			DifficultyDistribution: dist,
			IncludeNoise:           genNoise,
			IncludeVariants:        genVariants,
		})
		if err != nil {
			return eris.Wrap(err, "generate")
		}
		return printJSON(cmd, stats)
	},
}

var generateTemplateCmd = &cobra.Command{
	Use:   "template",
	Short: "Generate cases from an explicit template file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if genTmplFile == "" || genDataset == "" {
			return eris.New("generate template: --file and --dataset are required")
		}

		raw, err := os.ReadFile(genTmplFile)
		if err != nil {
			return eris.Wrapf(err, "generate template: read %s", genTmplFile)
		}
		var tmpl generator.Template
		if err := yaml.Unmarshal(raw, &tmpl); err != nil {
			return eris.Wrapf(err, "generate template: decode %s", genTmplFile)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		seed := genSeed
		if seed == 0 {
			seed = cfg.Generator.Seed
		}
		gen := generator.New(st, seed)
		stats, err := gen.GenerateFromTemplate(ctx, tmpl, genDataset, genCount,
			model.Difficulty(genTmplDifficulty), genVariants)
		if err != nil {
			return eris.Wrap(err, "generate template")
		}
		return printJSON(cmd, stats)
	},
}

// parseDistribution parses "easy=40,medium=30,hard=20,adversarial=10" into a
// percentage map. Empty input means the default split.
func parseDistribution(s string) (map[string]int, error) {
	if s == "" {
		return nil, nil
	}
	dist := map[string]int{}
	for _, part := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, eris.Errorf("generate: bad distribution entry %q", part)
		}
		pct, err := strconv.Atoi(value)
		if err != nil {
			return nil, eris.Wrapf(err, "generate: bad percentage in %q", part)
		}
		dist[key] = pct
	}
	return dist, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	generateCmd.PersistentFlags().StringVar(&genDataset, "dataset", "", "target dataset code")
	generateCmd.PersistentFlags().IntVar(&genCount, "count", 50, "number of cases to generate")
	generateCmd.PersistentFlags().Int64Var(&genSeed, "seed", 0, "random seed (default from config, 0 = time-seeded)")
	generateCmd.PersistentFlags().BoolVar(&genVariants, "variants", false, "allow variant template wording")

	generateCmd.Flags().StringVar(&genSkill, "skill", "", "source skill id or name")
	generateCmd.Flags().StringVar(&genDistribution, "distribution", "", "difficulty percentages, e.g. easy=40,medium=30,hard=20,adversarial=10")
	generateCmd.Flags().BoolVar(&genNoise, "noise", false, "inject procurement-style noise")

	generateTemplateCmd.Flags().StringVar(&genTmplFile, "file", "", "template yaml file")
	generateTemplateCmd.Flags().StringVar(&genTmplDifficulty, "difficulty", string(model.DifficultyMedium), "difficulty label for generated cases")

	generateCmd.AddCommand(generateTemplateCmd)
	rootCmd.AddCommand(generateCmd)
}
