package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"forseti-hq/forseti/pkg/cli"
	"forseti-hq/forseti/pkg/rules"
	"forseti-hq/forseti/pkg/rules/source"
)

var validateFlags struct {
	rulesPath string
	format    string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Compile rule files without evaluating anything",
	Long: `Parse and compile rule files, reporting every problem found.

Validation covers YAML syntax, rule structure, operator names, schema
references (fact types and fields), join and aggregate clauses, and
action targets. Nothing is evaluated.

Examples:
  # Validate a rule directory
  forseti validate --rules rules/

  # JSON output for CI
  forseti validate --rules rules/ --format json`,
	RunE: validateRules,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFlags.rulesPath, "rules", "r", "", "rule file or directory to validate")
	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json")
}

// validationReport is the printable outcome of a validation run.
type validationReport struct {
	Path      string   `json:"path"`
	Valid     bool     `json:"valid"`
	RuleCount int      `json:"rule_count"`
	Version   string   `json:"version,omitempty"`
	Problems  []string `json:"problems,omitempty"`
}

func validateRules(cmd *cobra.Command, args []string) error {
	runFlags.rulesPath = validateFlags.rulesPath
	cfg, err := loadCLIConfig()
	if err != nil {
		return err
	}
	if cfg.Rules.Path == "" {
		return fmt.Errorf("no rule path: use --rules or set rules.path in the config file")
	}

	logger := newLogger(&cfg.Logging)

	defs, err := source.NewFileSource(cfg.Rules.Path, logger).Load(context.Background())
	if err != nil {
		return cli.NewCommandError("validate", err)
	}

	report := &validationReport{Path: cfg.Rules.Path}

	schema := rules.Schema{FactTypes: cfg.Rules.Schema.FactTypes}
	compiled, err := rules.Compile(defs, schema)
	switch {
	case err == nil:
		report.Valid = true
		report.RuleCount = compiled.Len()
		report.Version = compiled.Version()
	default:
		var compileErr *rules.CompileError
		if !errors.As(err, &compileErr) {
			return cli.NewCommandError("validate", err)
		}
		report.Problems = compileErr.Problems
	}

	if validateFlags.format == "json" {
		if err := cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, report); err != nil {
			return err
		}
	} else {
		printReport(report)
	}

	if !report.Valid {
		return fmt.Errorf("validation failed with %d problem(s)", len(report.Problems))
	}

	slog.Debug("validation passed", "path", report.Path, "rules", report.RuleCount)
	return nil
}

func printReport(report *validationReport) {
	if report.Valid {
		fmt.Printf("✓ %s: %d rule(s) valid (version %s)\n", report.Path, report.RuleCount, report.Version)
		return
	}

	fmt.Printf("✗ %s: %d problem(s)\n", report.Path, len(report.Problems))
	for _, p := range report.Problems {
		fmt.Printf("  - %s\n", p)
	}
}
