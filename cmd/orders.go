// ABOUTME: Order history commands
// ABOUTME: Lists and cancels orders for the logged-in account

package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/markalston/storefront-client/internal/models"
	"github.com/markalston/storefront-client/internal/tui"
	"github.com/markalston/storefront-client/internal/tui/styles"
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List your orders",
	Run: func(cmd *cobra.Command, args []string) {
		run(runOrdersList)
	},
}

var ordersCancelCmd = &cobra.Command{
	Use:   "cancel <order-id>",
	Short: "Cancel an order that has not been delivered",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			usageError(cmd, fmt.Errorf("order id must be a number, got %q", args[0]))
		}
		run(func(ctx context.Context, w io.Writer) int {
			return runOrdersCancel(ctx, w, id)
		})
	},
}

func init() {
	ordersCmd.AddCommand(ordersCancelCmd)
	rootCmd.AddCommand(ordersCmd)
}

func runOrdersList(ctx context.Context, w io.Writer) int {
	return withApp(ctx, w, func(a *app) int {
		list, err := a.orders.List(ctx)
		if err != nil {
			return fail(w, err)
		}

		if IsJSONOutput() {
			if list == nil {
				list = []models.Order{}
			}
			writeJSON(w, list)
			return exitOK
		}
		if len(list) == 0 {
			fmt.Fprintln(w, "No orders yet")
			return exitOK
		}
		fmt.Fprintln(w, tui.OrdersTable(list))
		return exitOK
	})
}

func runOrdersCancel(ctx context.Context, w io.Writer, id int64) int {
	return withApp(ctx, w, func(a *app) int {
		order, err := a.orders.Cancel(ctx, id)
		if err != nil {
			return fail(w, err)
		}

		if IsJSONOutput() {
			writeJSON(w, order)
			return exitOK
		}
		fmt.Fprintf(w, "Order %d: %s\n", order.ID, styles.OrderStatus(order.IsCancelled, order.DeliveryStatus))
		return exitOK
	})
}
