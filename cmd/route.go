// ABOUTME: Route command showing where navigation would go for the current session
// ABOUTME: Lists the route table or evaluates a single path

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/markalston/storefront-client/internal/guard"
	"github.com/markalston/storefront-client/internal/tui/styles"
)

var routeCmd = &cobra.Command{
	Use:   "route [path]",
	Short: "Check whether the current session may open a page",
	Long: `Check whether the current session may open a page, and where it would be
redirected otherwise. Without a path, every known route is evaluated.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		run(func(ctx context.Context, w io.Writer) int {
			return runRoute(ctx, w, path)
		})
	},
}

func init() {
	rootCmd.AddCommand(routeCmd)
}

type routeResult struct {
	Path     string         `json:"path"`
	Meta     guard.Meta     `json:"meta"`
	Decision guard.Decision `json:"decision"`
}

func runRoute(ctx context.Context, w io.Writer, path string) int {
	return withApp(ctx, w, func(a *app) int {
		viewer := guard.ViewerOf(a.session.Identity())

		var results []routeResult
		if path != "" {
			if !strings.HasPrefix(path, "/") {
				path = "/" + path
			}
			route, _ := a.guard.Lookup(path)
			results = append(results, routeResult{Path: path, Meta: route.Meta, Decision: a.guard.Check(path, viewer)})
		} else {
			for _, r := range a.guard.Routes() {
				results = append(results, routeResult{Path: r.Path, Meta: r.Meta, Decision: a.guard.Evaluate(r, viewer)})
			}
		}

		if IsJSONOutput() {
			if path != "" {
				writeJSON(w, results[0])
			} else {
				writeJSON(w, results)
			}
			return exitOK
		}
		for _, r := range results {
			fmt.Fprintln(w, formatRouteHuman(r))
		}
		return exitOK
	})
}

func formatRouteHuman(r routeResult) string {
	if r.Decision.Allow {
		return fmt.Sprintf("%-28s %s (%s)", r.Path, styles.StatusOK.Render("allow"), r.Decision.Rule)
	}
	return fmt.Sprintf("%-28s %s %s (%s)", r.Path, styles.StatusWarning.Render("redirect"), r.Decision.Redirect, r.Decision.Rule)
}
