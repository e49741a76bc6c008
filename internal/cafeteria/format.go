package cafeteria

import (
	"fmt"
	"strings"
)

// Format renders a day menu as the text block shown to users and fed to
// the model.
func Format(day *DayMenu) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📍 %s\n", day.RestaurantName)
	fmt.Fprintf(&b, "📅 %s\n", FormatDate(day.Date))
	b.WriteString("━━━━━━━━━━━━━━━━━━━━\n\n")

	if len(day.Menus) == 0 {
		b.WriteString("No menu information available.\n")
		return strings.TrimSpace(b.String())
	}

	for _, m := range day.Menus {
		fmt.Fprintf(&b, "【 %s 】\n", m.Category)
		if m.MainDish != "" {
			fmt.Fprintf(&b, "★ %s", m.MainDish)
			if m.Rating != "" {
				fmt.Fprintf(&b, " - %s", m.Rating)
			}
			b.WriteString("\n")
		}
		if len(m.SideDishes) > 0 {
			fmt.Fprintf(&b, "Side dishes: %s\n", strings.Join(m.SideDishes, ", "))
		}
		if m.Allergens != "" {
			fmt.Fprintf(&b, "Allergen: %s\n", m.Allergens)
		}
		if m.Origin != "" {
			fmt.Fprintf(&b, "Origin: %s\n", m.Origin)
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
