package pages

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"retreat_app_echo/internal/models"
)

func formatDate(t time.Time) string {
	return t.Format("Jan 2, 2006")
}

func formatDateTime(t time.Time) string {
	return t.Format("Jan 2, 3:04 PM")
}

func formatRange(start, end time.Time) string {
	return formatDate(start) + " - " + formatDate(end)
}

func money(d decimal.Decimal, currency string) string {
	return fmt.Sprintf("$%s %s", d.StringFixed(2), currency)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// selectionSummary lists chosen items, with quantities where given.
func selectionSummary(order models.MealOrder) string {
	parts := make([]string, 0, len(order.MenuItems))
	for _, sel := range order.MenuItems {
		if sel.Quantity != nil {
			parts = append(parts, fmt.Sprintf("%s x%d", sel.MenuItem.Name, *sel.Quantity))
			continue
		}
		parts = append(parts, sel.MenuItem.Name)
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}

func statusBadge(status string) string {
	return `<span class="badge ` + strings.ToLower(status) + `">` + status + `</span>`
}
