// ABOUTME: Cart commands routed through the cart synchronizer
// ABOUTME: Works on the device cart when logged out and the account cart when logged in

package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/markalston/storefront-client/internal/cart"
	"github.com/markalston/storefront-client/internal/gateway"
	"github.com/markalston/storefront-client/internal/tui"
	"github.com/markalston/storefront-client/internal/tui/styles"
)

var (
	addQuantity  int
	addVariant   int64
	addAttrs     []string
	addName      string
	addPrice     string
	checkoutOpts gateway.CheckoutRequest
)

var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Show and change your cart",
	Run: func(cmd *cobra.Command, args []string) {
		run(runCartList)
	},
}

var cartAddCmd = &cobra.Command{
	Use:   "add <product-id>",
	Short: "Add a product to the cart",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		req, err := parseAddRequest(args[0])
		if err != nil {
			usageError(cmd, err)
		}
		run(func(ctx context.Context, w io.Writer) int {
			return runCartAdd(ctx, w, req)
		})
	},
}

var cartRemoveCmd = &cobra.Command{
	Use:   "remove <line>",
	Short: "Remove a line (the # column logged out, the Item column logged in)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ref, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			usageError(cmd, fmt.Errorf("line must be a number, got %q", args[0]))
		}
		run(func(ctx context.Context, w io.Writer) int {
			return runCartRemove(ctx, w, ref)
		})
	},
}

var cartUpdateCmd = &cobra.Command{
	Use:   "update <line> <quantity>",
	Short: "Change the quantity of a device cart line; 0 removes it",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		line, err1 := strconv.Atoi(args[0])
		qty, err2 := strconv.Atoi(args[1])
		if err1 != nil || err2 != nil {
			usageError(cmd, fmt.Errorf("line and quantity must be numbers"))
		}
		run(func(ctx context.Context, w io.Writer) int {
			return runCartUpdate(ctx, w, line, qty)
		})
	},
}

var cartClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Empty the cart",
	Run: func(cmd *cobra.Command, args []string) {
		run(runCartClear)
	},
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout",
	Short: "Place an order for everything in your account cart",
	Run: func(cmd *cobra.Command, args []string) {
		run(func(ctx context.Context, w io.Writer) int {
			return runCheckout(ctx, w, checkoutOpts)
		})
	},
}

func init() {
	cartAddCmd.Flags().IntVarP(&addQuantity, "quantity", "q", 1, "Quantity")
	cartAddCmd.Flags().Int64Var(&addVariant, "variant", 0, "Variant id")
	cartAddCmd.Flags().StringArrayVar(&addAttrs, "attr", nil, "Selected option as name=value (repeatable)")
	cartAddCmd.Flags().StringVar(&addName, "name", "", "Product name to show in the device cart")
	cartAddCmd.Flags().StringVar(&addPrice, "price", "", "Unit price to show in the device cart")

	checkoutCmd.Flags().StringVar(&checkoutOpts.PaymentMethod, "payment", "", "Payment method")
	checkoutCmd.Flags().StringVar(&checkoutOpts.ShippingAddress, "ship-to", "", "Shipping address")
	checkoutCmd.Flags().Int64Var(&checkoutOpts.ShippingMethod, "shipping-method", 0, "Shipping method id")

	cartCmd.AddCommand(cartAddCmd, cartRemoveCmd, cartUpdateCmd, cartClearCmd)
	rootCmd.AddCommand(cartCmd, checkoutCmd)
}

// parseAddRequest reads the add flags into a request
func parseAddRequest(productArg string) (cart.AddRequest, error) {
	productID, err := strconv.ParseInt(productArg, 10, 64)
	if err != nil || productID <= 0 {
		return cart.AddRequest{}, fmt.Errorf("product id must be a positive number, got %q", productArg)
	}

	req := cart.AddRequest{
		ProductID: productID,
		Quantity:  addQuantity,
		Name:      addName,
	}
	if addVariant > 0 {
		v := addVariant
		req.VariantID = &v
	}
	if addPrice != "" {
		price, err := decimal.NewFromString(addPrice)
		if err != nil {
			return cart.AddRequest{}, fmt.Errorf("invalid price %q", addPrice)
		}
		req.Price = price
	}
	for _, a := range addAttrs {
		name, value, ok := strings.Cut(a, "=")
		if !ok || name == "" {
			return cart.AddRequest{}, fmt.Errorf("option must be name=value, got %q", a)
		}
		if req.Attributes == nil {
			req.Attributes = map[string]string{}
		}
		req.Attributes[name] = value
	}
	return req, nil
}

func runCartList(ctx context.Context, w io.Writer) int {
	return withApp(ctx, w, func(a *app) int {
		if err := a.cart.Refresh(ctx); err != nil {
			return fail(w, err)
		}
		printCart(w, a.cart.Cart())
		return exitOK
	})
}

func runCartAdd(ctx context.Context, w io.Writer, req cart.AddRequest) int {
	return withApp(ctx, w, func(a *app) int {
		if err := a.cart.AddItem(ctx, req); err != nil {
			return fail(w, err)
		}
		printCart(w, a.cart.Cart())
		return exitOK
	})
}

func runCartRemove(ctx context.Context, w io.Writer, ref int64) int {
	return withApp(ctx, w, func(a *app) int {
		if err := a.cart.RemoveItem(ctx, ref); err != nil {
			return fail(w, err)
		}
		printCart(w, a.cart.Cart())
		return exitOK
	})
}

func runCartUpdate(ctx context.Context, w io.Writer, line, qty int) int {
	return withApp(ctx, w, func(a *app) int {
		if err := a.cart.UpdateQuantity(line, qty); err != nil {
			return fail(w, err)
		}
		printCart(w, a.cart.Cart())
		return exitOK
	})
}

func runCartClear(ctx context.Context, w io.Writer) int {
	return withApp(ctx, w, func(a *app) int {
		if err := a.cart.Clear(ctx); err != nil {
			return fail(w, err)
		}
		printCart(w, a.cart.Cart())
		return exitOK
	})
}

func runCheckout(ctx context.Context, w io.Writer, req gateway.CheckoutRequest) int {
	return withApp(ctx, w, func(a *app) int {
		res, err := a.cart.Checkout(ctx, req)
		if err != nil {
			return fail(w, err)
		}
		a.orders.Invalidate()

		if IsJSONOutput() {
			writeJSON(w, res)
			return exitOK
		}
		msg := res.Message
		if msg == "" {
			msg = "Order placed"
		}
		fmt.Fprintf(w, "%s\n\n%s\n", styles.StatusOK.Render(msg), tui.OrdersTable(res.Orders))
		return exitOK
	})
}

func printCart(w io.Writer, v cart.View) {
	if IsJSONOutput() {
		writeJSON(w, formatCartJSON(v))
		return
	}
	fmt.Fprintln(w, formatCartHuman(v))
}

func formatCartHuman(v cart.View) string {
	var sb strings.Builder
	if v.Mode == cart.Local {
		sb.WriteString(styles.Title.Render("Cart on this device") + "\n")
		if len(v.Local) == 0 {
			sb.WriteString("Your cart is empty")
			return sb.String()
		}
		sb.WriteString(tui.LocalCartTable(v.Local))
		sb.WriteString("\n" + styles.Help.Render("Log in to move these items into your account cart."))
	} else {
		sb.WriteString(styles.Title.Render("Account cart") + "\n")
		if v.Remote == nil || len(v.Remote.Lines) == 0 {
			sb.WriteString("Your cart is empty")
			return sb.String()
		}
		sb.WriteString(tui.RemoteCartTable(v.Remote))
	}
	fmt.Fprintf(&sb, "\nItems: %d   Total: %s", v.ItemCount(), styles.ValueStyle.Render(styles.Money(v.Total())))
	return sb.String()
}

func formatCartJSON(v cart.View) map[string]interface{} {
	out := map[string]interface{}{
		"mode":       string(v.Mode),
		"item_count": v.ItemCount(),
		"total":      v.Total().StringFixed(2),
	}
	if v.Mode == cart.Local {
		out["lines"] = v.Local
	} else {
		out["cart"] = v.Remote
	}
	return out
}
