// ABOUTME: Table rendering for carts, orders and search results
// ABOUTME: Builds static bubbles tables and returns their rendered view

package tui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/markalston/storefront-client/internal/models"
	"github.com/markalston/storefront-client/internal/tui/styles"
)

func render(columns []table.Column, rows []table.Row) string {
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(len(rows)+1),
		table.WithFocused(false),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.Muted).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Cell
	t.SetStyles(s)

	return t.View()
}

// LocalCartTable renders device cart lines with their 1-based positions
func LocalCartTable(lines []models.LocalCartLine) string {
	columns := []table.Column{
		{Title: "#", Width: 3},
		{Title: "Product", Width: 28},
		{Title: "Options", Width: 18},
		{Title: "Qty", Width: 5},
		{Title: "Total", Width: 10},
	}
	rows := make([]table.Row, 0, len(lines))
	for i, line := range lines {
		name := line.Name
		if name == "" {
			name = fmt.Sprintf("product %d", line.ProductID)
		}
		rows = append(rows, table.Row{
			strconv.Itoa(i + 1),
			name,
			attributes(line.Attributes),
			strconv.Itoa(line.Quantity),
			styles.Money(line.LineTotal()),
		})
	}
	return render(columns, rows)
}

// RemoteCartTable renders server cart lines keyed by item id
func RemoteCartTable(cart *models.RemoteCart) string {
	columns := []table.Column{
		{Title: "Item", Width: 6},
		{Title: "Product", Width: 28},
		{Title: "Options", Width: 18},
		{Title: "Qty", Width: 5},
		{Title: "Total", Width: 10},
	}
	var rows []table.Row
	if cart != nil {
		for _, line := range cart.Lines {
			rows = append(rows, table.Row{
				strconv.FormatInt(line.ItemID, 10),
				line.ProductName,
				attributes(line.Attributes),
				strconv.Itoa(line.Quantity),
				styles.Money(line.LineTotal),
			})
		}
	}
	return render(columns, rows)
}

// OrdersTable renders order history
func OrdersTable(orders []models.Order) string {
	columns := []table.Column{
		{Title: "Order", Width: 7},
		{Title: "Product", Width: 26},
		{Title: "Qty", Width: 5},
		{Title: "Price", Width: 10},
		{Title: "Payment", Width: 10},
		{Title: "Status", Width: 12},
		{Title: "Placed", Width: 16},
	}
	rows := make([]table.Row, 0, len(orders))
	for _, o := range orders {
		status := o.DeliveryStatus
		if o.IsCancelled {
			status = "cancelled"
		}
		placed := ""
		if !o.CreatedAt.IsZero() {
			placed = o.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, table.Row{
			strconv.FormatInt(o.ID, 10),
			o.ProductName,
			strconv.Itoa(o.Quantity),
			styles.Money(o.Price),
			o.PaymentStatus,
			status,
			placed,
		})
	}
	return render(columns, rows)
}

// ProductsTable renders search results
func ProductsTable(products []models.Product) string {
	columns := []table.Column{
		{Title: "ID", Width: 6},
		{Title: "Product", Width: 36},
		{Title: "Price", Width: 10},
	}
	rows := make([]table.Row, 0, len(products))
	for _, p := range products {
		rows = append(rows, table.Row{
			strconv.FormatInt(p.ID, 10),
			p.Name,
			styles.Money(p.Price),
		})
	}
	return render(columns, rows)
}

// attributes renders selected options as "color=red, size=M"
func attributes(attrs map[string]string) string {
	if len(attrs) == 0 {
		return ""
	}
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+attrs[name])
	}
	return strings.Join(parts, ", ")
}
