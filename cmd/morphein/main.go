package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/viant/morphein/learner"
	"github.com/viant/morphein/pattern"
	"github.com/viant/morphein/project"
	"github.com/viant/morphein/store"
)

var stateDir string

var rootCmd = &cobra.Command{
	Use:   "morphein",
	Short: "Manage learned transformation rules and history",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if stateDir != "" {
			return nil
		}
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		stateDir, err = project.New().StateDir(cwd)
		return err
	},
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and manage the rule store",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List learned rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		rules := store.NewRuleStore(stateDir)
		rules.Load(cmd.Context())
		out := cmd.OutOrStdout()
		name := project.New().Name(filepath.Dir(stateDir))
		fmt.Fprintf(out, "%s: %d rule(s)\n", name, len(rules.Rules()))
		for _, rule := range rules.Rules() {
			fmt.Fprintf(out, "%s  conf=%.2f freq=%d [%s/%s]  %s\n",
				rule.ID, rule.Confidence, rule.Frequency, rule.OriginStage.Name(), rule.Category, rule.Description)
		}
		return nil
	},
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a rule by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rules := store.NewRuleStore(stateDir)
		rules.Load(cmd.Context())
		if !rules.Delete(args[0]) {
			return fmt.Errorf("no rule with id %s", args[0])
		}
		return rules.Save(cmd.Context())
	},
}

var rulesResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all learned rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		rules := store.NewRuleStore(stateDir)
		rules.Load(cmd.Context())
		rules.Reset()
		return rules.Save(cmd.Context())
	},
}

var (
	editDescription string
	editConfidence  float64
)

var rulesEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a rule's description or confidence",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rules := store.NewRuleStore(stateDir)
		rules.Load(cmd.Context())
		patch := store.RulePatch{}
		if cmd.Flags().Changed("description") {
			patch.Description = &editDescription
		}
		if cmd.Flags().Changed("confidence") {
			patch.Confidence = &editConfidence
		}
		if !rules.Edit(args[0], patch) {
			return fmt.Errorf("no rule with id %s", args[0])
		}
		return rules.Save(cmd.Context())
	},
}

var rulesExportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Export rules to a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rules := store.NewRuleStore(stateDir)
		rules.Load(cmd.Context())
		return rules.Export(cmd.Context(), args[0])
	},
}

var rulesImportCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Import rules from a file, merging duplicates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rules := store.NewRuleStore(stateDir)
		rules.Load(cmd.Context())
		imported, err := rules.Import(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("imported %d rule(s)\n", imported)
		return rules.Save(cmd.Context())
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage the cross-session transformation log",
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the transformation log and reset the learning watermark",
	RunE: func(cmd *cobra.Command, args []string) error {
		return learner.New(stateDir, nil).ClearHistory(cmd.Context())
	},
}

var (
	learnBefore string
	learnAfter  string
	learnStage  int
	learnPath   string
)

var learnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Learn from a before/after snapshot pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		before, err := os.ReadFile(learnBefore)
		if err != nil {
			return err
		}
		after, err := os.ReadFile(learnAfter)
		if err != nil {
			return err
		}
		filePath := learnPath
		if filePath == "" {
			filePath = learnAfter
		}
		result, err := learner.New(stateDir, nil).Learn(cmd.Context(), learner.Input{
			OriginalCode: string(before),
			Code:         string(after),
			FilePath:     filePath,
			Stage:        pattern.Stage(learnStage),
		})
		if err != nil {
			return err
		}
		fmt.Printf("%d new, %d merged, %d applied (%s)\n",
			result.NewRules, result.MergedRules, len(result.Applied), result.Outcome)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "state directory (defaults to <project root>/"+project.StateDirName+")")

	rulesEditCmd.Flags().StringVar(&editDescription, "description", "", "new description")
	rulesEditCmd.Flags().Float64Var(&editConfidence, "confidence", 0, "new confidence in [0,1]")

	learnCmd.Flags().StringVar(&learnBefore, "before", "", "file holding the pre-transformation code")
	learnCmd.Flags().StringVar(&learnAfter, "after", "", "file holding the post-transformation code")
	learnCmd.Flags().IntVar(&learnStage, "stage", int(pattern.StageLearning), "origin stage (1-8)")
	learnCmd.Flags().StringVar(&learnPath, "path", "", "logical file path (defaults to the after file)")
	_ = learnCmd.MarkFlagRequired("before")
	_ = learnCmd.MarkFlagRequired("after")

	rulesCmd.AddCommand(rulesListCmd, rulesDeleteCmd, rulesResetCmd, rulesEditCmd, rulesExportCmd, rulesImportCmd)
	historyCmd.AddCommand(historyClearCmd)
	rootCmd.AddCommand(rulesCmd, historyCmd, learnCmd)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
