package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/skill-engine/internal/model"
)

var (
	skillsListDomain string
	skillsListStatus string
	skillsExportOut  string
)

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "Manage skill definitions",
}

var skillsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a skill from a YAML or JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		skill, err := loadSkillFile(args[0])
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.PutSkill(ctx, skill); err != nil {
			return eris.Wrap(err, "import skill")
		}
		zap.L().Info("skill imported",
			zap.String("id", skill.ID),
			zap.String("name", skill.Name),
			zap.String("status", string(skill.Status)),
		)
		fmt.Fprintln(cmd.OutOrStdout(), skill.ID)
		return nil
	},
}

var skillsExportCmd = &cobra.Command{
	Use:   "export <id-or-name>",
	Short: "Export a skill as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		skill, err := st.GetSkill(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "export skill")
		}

		out, err := yaml.Marshal(skill)
		if err != nil {
			return eris.Wrap(err, "export skill: marshal")
		}
		if skillsExportOut != "" {
			return eris.Wrap(os.WriteFile(skillsExportOut, out, 0o644), "export skill: write file")
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var skillsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List skills",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		skills, err := st.ListSkills(ctx, skillsListDomain, model.SkillStatus(skillsListStatus))
		if err != nil {
			return eris.Wrap(err, "list skills")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tDOMAIN\tSTANDARD\tPRIORITY\tSTATUS")
		for _, sk := range skills {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				sk.ID, sk.Name, sk.Domain, sk.StandardCode, sk.Priority, sk.Status)
		}
		return w.Flush()
	},
}

var skillsShowCmd = &cobra.Command{
	Use:   "show <id-or-name>",
	Short: "Show a skill including its full DSL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		skill, err := st.GetSkill(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "show skill")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(skill)
	},
}

var skillsStatusCmd = &cobra.Command{
	Use:   "status <id-or-name> <draft|testing|active|deprecated>",
	Short: "Change a skill's lifecycle status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		status := model.SkillStatus(args[1])
		switch status {
		case model.SkillDraft, model.SkillTesting, model.SkillActive, model.SkillDeprecated:
		default:
			return eris.Errorf("unknown skill status %q", args[1])
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.UpdateSkillStatus(ctx, args[0], status); err != nil {
			return eris.Wrap(err, "update skill status")
		}
		zap.L().Info("skill status updated", zap.String("skill", args[0]), zap.String("status", args[1]))
		return nil
	},
}

var skillsDeleteCmd = &cobra.Command{
	Use:   "delete <id-or-name>",
	Short: "Delete a skill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.DeleteSkill(ctx, args[0]); err != nil {
			return eris.Wrap(err, "delete skill")
		}
		zap.L().Info("skill deleted", zap.String("skill", args[0]))
		return nil
	},
}

// loadSkillFile reads a skill definition from YAML or JSON, validates its
// DSL, and fills in defaults for omitted metadata.
func loadSkillFile(path string) (*model.Skill, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read skill file %s", path)
	}

	var skill model.Skill
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &skill); err != nil {
			return nil, eris.Wrapf(err, "decode skill yaml %s", path)
		}
	default:
		if err := json.Unmarshal(raw, &skill); err != nil {
			return nil, eris.Wrapf(err, "decode skill json %s", path)
		}
	}

	if skill.DSL == nil {
		return nil, eris.Errorf("skill file %s has no dsl payload", path)
	}
	if err := skill.DSL.Validate(); err != nil {
		return nil, eris.Wrapf(err, "skill file %s", path)
	}
	skill.DSL.Compile()

	if skill.ID == "" {
		skill.ID = uuid.NewString()
	}
	if skill.Name == "" {
		skill.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if skill.Domain == "" {
		skill.Domain = skill.DSL.Domain
	}
	if skill.StandardCode == "" {
		skill.StandardCode = skill.DSL.StandardCode
	}
	if skill.DSLVersion == "" {
		skill.DSLVersion = "1.0"
	}
	if skill.Status == "" {
		skill.Status = model.SkillDraft
	}
	return &skill, nil
}

func init() {
	skillsListCmd.Flags().StringVar(&skillsListDomain, "domain", "", "filter by domain")
	skillsListCmd.Flags().StringVar(&skillsListStatus, "status", "", "filter by status")
	skillsExportCmd.Flags().StringVarP(&skillsExportOut, "out", "o", "", "write to file instead of stdout")

	skillsCmd.AddCommand(skillsImportCmd, skillsExportCmd, skillsListCmd, skillsShowCmd, skillsStatusCmd, skillsDeleteCmd)
	rootCmd.AddCommand(skillsCmd)
}
