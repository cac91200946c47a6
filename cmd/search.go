// ABOUTME: Product search and the recent searches list
// ABOUTME: Successful searches are remembered most recent first

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/markalston/storefront-client/internal/tui"
	"github.com/markalston/storefront-client/internal/tui/styles"
)

var (
	searchPage    int
	searchPerPage int
)

var searchCmd = &cobra.Command{
	Use:   "search <term>...",
	Short: "Search the catalog",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		term := strings.Join(args, " ")
		run(func(ctx context.Context, w io.Writer) int {
			return runSearch(ctx, w, term, searchPage, searchPerPage)
		})
	},
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show recent searches",
	Run: func(cmd *cobra.Command, args []string) {
		run(runRecentList)
	},
}

var recentRemoveCmd = &cobra.Command{
	Use:   "remove <term>...",
	Short: "Forget one recent search",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		term := strings.Join(args, " ")
		run(func(ctx context.Context, w io.Writer) int {
			return runRecentRemove(ctx, w, term)
		})
	},
}

var recentClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget all recent searches",
	Run: func(cmd *cobra.Command, args []string) {
		run(runRecentClear)
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchPage, "page", 1, "Result page")
	searchCmd.Flags().IntVar(&searchPerPage, "per-page", 20, "Results per page")

	recentCmd.AddCommand(recentRemoveCmd, recentClearCmd)
	rootCmd.AddCommand(searchCmd, recentCmd)
}

func runSearch(ctx context.Context, w io.Writer, term string, page, perPage int) int {
	return withApp(ctx, w, func(a *app) int {
		res, err := a.session.Client().SearchProducts(ctx, term, page, perPage)
		if err != nil {
			return fail(w, err)
		}
		a.recent.Add(term)

		if IsJSONOutput() {
			writeJSON(w, res)
			return exitOK
		}
		if len(res.Results) == 0 {
			fmt.Fprintf(w, "No products match %q\n", term)
			return exitOK
		}
		fmt.Fprintf(w, "%s\n%s\n", styles.Subtitle.Render(fmt.Sprintf("%d results for %q", res.Count, term)), tui.ProductsTable(res.Results))
		return exitOK
	})
}

func runRecentList(ctx context.Context, w io.Writer) int {
	return withApp(ctx, w, func(a *app) int {
		printRecent(w, a.recent.List())
		return exitOK
	})
}

func runRecentRemove(ctx context.Context, w io.Writer, term string) int {
	return withApp(ctx, w, func(a *app) int {
		a.recent.Remove(term)
		printRecent(w, a.recent.List())
		return exitOK
	})
}

func runRecentClear(ctx context.Context, w io.Writer) int {
	return withApp(ctx, w, func(a *app) int {
		a.recent.Clear()
		printRecent(w, a.recent.List())
		return exitOK
	})
}

func printRecent(w io.Writer, terms []string) {
	if IsJSONOutput() {
		if terms == nil {
			terms = []string{}
		}
		writeJSON(w, terms)
		return
	}
	if len(terms) == 0 {
		fmt.Fprintln(w, "No recent searches")
		return
	}
	for i, t := range terms {
		fmt.Fprintf(w, "%d. %s\n", i+1, t)
	}
}
