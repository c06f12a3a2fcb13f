package main

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/artpar/modelwire/core/formatter"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print the routes attached by autowiring",
	Long: `Load the models and API modules below the root directory and print
every route registered on the router, sorted by path.

Examples:
  modelwire routes
  modelwire routes --api-root /rest
  modelwire routes -o json`,
	RunE: runRoutes,
}

var (
	routesOutput   string
	routesNoHeader bool
)

func init() {
	rootCmd.AddCommand(routesCmd)

	routesCmd.Flags().StringVarP(&routesOutput, "output", "o", "table", "output format: table, json, yaml")
	routesCmd.Flags().BoolVar(&routesNoHeader, "no-header", false, "omit the table header")
}

func runRoutes(cmd *cobra.Command, args []string) error {
	f, err := formatter.NewRegistry().Get(routesOutput)
	if err != nil {
		return err
	}

	inst, mux, err := wire(cmd)
	if err != nil {
		return err
	}
	defer inst.Close()

	records, err := listRoutes(mux)
	if err != nil {
		return err
	}
	return f.FormatList(cmd.OutOrStdout(), []string{"method", "path"}, records, formatter.FormatOptions{
		NoHeader: routesNoHeader,
	})
}

// listRoutes returns one record per registered method and path, sorted by
// path and then method.
func listRoutes(mux chi.Routes) ([]map[string]any, error) {
	type line struct{ method, path string }
	var lines []line

	err := chi.Walk(mux, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		lines = append(lines, line{method: method, path: strings.ReplaceAll(route, "/*/", "/")})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk routes: %w", err)
	}

	sort.Slice(lines, func(i, j int) bool {
		if lines[i].path != lines[j].path {
			return lines[i].path < lines[j].path
		}
		return lines[i].method < lines[j].method
	})

	records := make([]map[string]any, len(lines))
	for i, l := range lines {
		records[i] = map[string]any{"method": l.method, "path": l.path}
	}
	return records, nil
}
