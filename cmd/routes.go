package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/cwrap/internal/documents"
	"github.com/conneroisu/cwrap/internal/routes"
)

var routesCmd = &cobra.Command{
	Use:     "routes",
	Aliases: []string{"r"},
	Short:   "List the project's routes",
	Long: `List every route directory under the routes root together with the
documents saved for it.

Examples:
  cwrap routes                    # Table output
  cwrap routes -o json            # JSON array
  cwrap routes -o yaml            # YAML list`,
	RunE: runRoutes,
}

var routesFormat outputFormat

func init() {
	rootCmd.AddCommand(routesCmd)
	addOutputFlag(routesCmd, &routesFormat, formatTable)
}

// routeEntry describes one route directory.
type routeEntry struct {
	Route     string `json:"route" yaml:"route"`
	Depth     int    `json:"depth" yaml:"depth"`
	Skeleton  bool   `json:"skeleton" yaml:"skeleton"`
	Templates bool   `json:"templates" yaml:"templates"`
}

func runRoutes(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}

	entries, err := collectRoutes(cmd.Context(), a)
	if err != nil {
		return err
	}

	return writeRoutes(os.Stdout, entries, routesFormat, isTerminal(os.Stdout))
}

// collectRoutes lists the routes root followed by every route below it.
func collectRoutes(ctx context.Context, a *app) ([]routeEntry, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	all, err := a.routes.All(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]routeEntry, 0, len(all)+1)
	for _, p := range append([]routes.RoutePath{routes.Root}, all...) {
		entries = append(entries, routeEntry{
			Route:     displayRoute(p),
			Depth:     len(p),
			Skeleton:  a.hasDocument(p, documents.Skeleton),
			Templates: a.hasDocument(p, documents.Templates),
		})
	}
	return entries, nil
}

func (a *app) hasDocument(p routes.RoutePath, name documents.Name) bool {
	fs, location, err := a.documents.Location(p, name)
	if err != nil {
		return false
	}
	info, err := fs.Stat(location)
	return err == nil && !info.IsDir()
}

func displayRoute(p routes.RoutePath) string {
	if p.IsRoot() {
		return "/"
	}
	return p.String()
}

func writeRoutes(w io.Writer, entries []routeEntry, format outputFormat, color bool) error {
	switch format {
	case formatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(entries)
	case formatYAML:
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return encoder.Encode(entries)
	default:
		_, err := fmt.Fprintln(w, renderRoutesTable(entries, color))
		return err
	}
}

func renderRoutesTable(entries []routeEntry, color bool) string {
	title := cases.Title(language.English)

	style := table.StyleRounded
	style.Format.Header = text.FormatDefault

	tw := table.NewWriter()
	tw.SetStyle(style)
	tw.AppendHeader(table.Row{
		"Route",
		title.String(string(documents.Skeleton)),
		title.String(string(documents.Templates)),
	})

	for _, entry := range entries {
		tw.AppendRow(table.Row{
			entry.Route,
			presence(entry.Skeleton, color),
			presence(entry.Templates, color),
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignCenter, AlignHeader: text.AlignCenter},
		{Number: 3, Align: text.AlignCenter, AlignHeader: text.AlignCenter},
	})

	return tw.Render()
}

func presence(ok bool, color bool) string {
	mark, colors := "-", text.Colors{text.FgHiBlack}
	if ok {
		mark, colors = "yes", text.Colors{text.FgGreen}
	}
	if !color {
		return mark
	}
	return colors.Sprint(mark)
}

func isTerminal(file *os.File) bool {
	if file == nil {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
