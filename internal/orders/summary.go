package orders

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/internal/cart"
)

// Summary renders one "<title> (x<qty>) - $<price>" row per line.
func Summary(lines []cart.Line) string {
	rows := make([]string, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, fmt.Sprintf("%s (x%d) - $%s", line.Title, line.Quantity, line.Price.String()))
	}
	return strings.Join(rows, "\n")
}

// ItemNames lists the line titles in snapshot order.
func ItemNames(lines []cart.Line) []string {
	names := make([]string, 0, len(lines))
	for _, line := range lines {
		names = append(names, line.Title)
	}
	return names
}
