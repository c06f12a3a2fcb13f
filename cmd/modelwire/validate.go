package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/artpar/modelwire/config"
	"github.com/artpar/modelwire/core/loader"
	"github.com/artpar/modelwire/core/schema"
	"github.com/spf13/cobra"
)

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
	warnMark  = "\033[33m!\033[0m"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and model definitions",
	Long: `Validate the configuration profile and every model definition below
the root directory without starting a server.

Checks:
  - Configuration files parse and merge
  - Model definition files parse and validate
  - Named custom route handlers are listed; they are resolved at runtime

Examples:
  modelwire validate
  modelwire validate --root ./app --models models,extra_models`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating %s...\n\n", appRoot)

	cfg, err := config.Load(appRoot, configRoot, profile)
	if err != nil {
		fmt.Fprintf(out, "  %s Configuration\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Fprintf(out, "  %s Configuration (profile %s)\n", checkMark, cfg.Profile)
	fmt.Fprintf(out, "  %s Listen address: %s\n", checkMark, cfg.Server.Addr())

	paths := modelPaths
	if len(paths) == 0 {
		paths = loader.DefaultPaths
	}

	failed := 0
	for _, p := range paths {
		dir := p
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(appRoot, dir)
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			fmt.Fprintf(out, "  %s Model directory %s\n", crossMark, dir)
			fmt.Fprintf(out, "      Error: %v\n", err)
			failed++
			continue
		}

		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() && schema.IsDefinitionFile(e.Name()) {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)

		for _, name := range names {
			m, err := schema.ParseFile(filepath.Join(dir, name))
			switch {
			case errors.Is(err, schema.ErrNotModel):
				continue
			case err != nil:
				fmt.Fprintf(out, "  %s %s\n", crossMark, name)
				fmt.Fprintf(out, "      Error: %v\n", err)
				failed++
				continue
			}
			fmt.Fprintf(out, "  %s %s: model %s (%d attributes)\n", checkMark, name, m.Identity, len(m.Attributes))
			for _, r := range m.CustomRoutes {
				if !r.IsStatic() {
					fmt.Fprintf(out, "  %s %s: route %q uses handler %s\n", warnMark, name, r.Key, r.Handler)
				}
			}
		}
	}

	fmt.Fprintln(out)
	if failed > 0 {
		return fmt.Errorf("%d problem(s) found", failed)
	}
	fmt.Fprintln(out, "All checks passed.")
	return nil
}
