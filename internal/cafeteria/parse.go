package cafeteria

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// parseMenus extracts corner menus from the mobile menu page. The page lays
// each corner out as a table with a td.menu_nm (corner name) paired with a
// td.menu_list (free-form menu text).
func parseMenus(r io.Reader) ([]Menu, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var names, lists []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "td" {
			switch nodeClass(n) {
			case "menu_nm":
				names = append(names, n)
			case "menu_list":
				lists = append(lists, n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	var menus []Menu
	for i := 0; i < len(names) && i < len(lists); i++ {
		category := strings.TrimSpace(textContent(names[i]))
		details := parseMenuDetails(textLines(lists[i]))
		if details == nil {
			continue
		}
		details.Category = category
		menus = append(menus, *details)
	}
	return menus, nil
}

func nodeClass(n *html.Node) string {
	for _, attr := range n.Attr {
		if attr.Key == "class" {
			return attr.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// textLines flattens an element into trimmed, non-empty text lines, with
// <br> treated as a line break.
func textLines(n *html.Node) []string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && (n.Data == "br" || n.Data == "p" || n.Data == "div" || n.Data == "tr") {
			b.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// parseMenuDetails applies the site's informal text conventions: main dishes
// marked with ★, a numeric rating after a dash, allergen lines starting with
// *알러지 and origin lines starting with *원산지. Everything left over is a
// side dish.
func parseMenuDetails(lines []string) *Menu {
	if len(lines) == 0 {
		return nil
	}

	var mainDishes []string
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if line == "★" {
			if i+1 < len(lines) {
				next := lines[i+1]
				if next != "★" && !strings.HasPrefix(next, "*") && !strings.HasPrefix(next, "[") {
					mainDishes = append(mainDishes, next)
					i++
				}
			}
			continue
		}
		if strings.Contains(line, "★") {
			dish := strings.TrimSpace(strings.ReplaceAll(line, "★", ""))
			if dish != "" && !strings.HasPrefix(dish, "*") && !strings.HasPrefix(dish, "[") {
				mainDishes = append(mainDishes, dish)
			}
		}
	}

	// The combined line repeats all main dishes comma-separated and may
	// carry the rating after a dash ("곰탕, 한식잡채 - 6.0").
	mainDish := ""
	mainDishLine := -1
	for i, line := range lines {
		if strings.Contains(line, "★") || strings.HasPrefix(line, "*") ||
			strings.HasPrefix(line, "[") || strings.HasSuffix(line, "]") {
			continue
		}
		if len(mainDishes) > 0 && strings.Contains(line, ",") && containsAll(line, mainDishes) {
			if idx := strings.Index(line, "-"); idx >= 0 {
				mainDish = strings.TrimSpace(line[:idx])
			} else if idx := strings.Index(line, "("); idx >= 0 {
				mainDish = strings.TrimSpace(line[:idx])
			} else {
				mainDish = line
			}
			mainDishLine = i
			break
		}
	}
	if mainDish == "" && len(mainDishes) > 0 {
		mainDish = strings.Join(mainDishes, ", ")
	}

	rating := ""
	for i, line := range lines {
		if strings.HasPrefix(line, "*") || strings.HasPrefix(line, "[") || strings.Contains(line, "★") {
			continue
		}
		if i == mainDishLine && strings.Contains(line, "-") {
			parts := strings.Split(line, "-")
			tail := strings.TrimSpace(parts[len(parts)-1])
			if tail != "" && tail[0] >= '0' && tail[0] <= '9' {
				rating = strings.Fields(tail)[0]
				break
			}
		}
		if line == "-" && i+1 < len(lines) {
			next := lines[i+1]
			if next != "" && next[0] >= '0' && next[0] <= '9' {
				rating = strings.Fields(next)[0]
				break
			}
		}
	}

	var allergens string
	for _, line := range lines {
		if strings.HasPrefix(line, "*알러지") {
			allergens = strings.TrimSpace(strings.TrimPrefix(line, "*알러지유발식품:"))
			break
		}
	}

	var originParts []string
	for _, line := range lines {
		if strings.HasPrefix(line, "*원산지") {
			originParts = append(originParts, strings.TrimSpace(strings.TrimPrefix(line, "*원산지:")))
		} else if len(originParts) > 0 && !strings.HasPrefix(line, "*") && strings.Contains(line, ":") {
			originParts = append(originParts, line)
		} else if len(originParts) > 0 {
			break
		}
	}

	var sides []string
	mains := make(map[string]bool, len(mainDishes))
	for _, d := range mainDishes {
		mains[d] = true
	}
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
		case strings.Contains(line, "★"):
		case mains[line]:
		case i == mainDishLine:
		case line == "-" || (rating != "" && strings.HasPrefix(line, rating)):
		case strings.HasPrefix(line, "*"):
		case strings.ContainsAny(line, "()"):
		case mostlyASCIILetters(line):
		default:
			sides = append(sides, line)
		}
	}

	return &Menu{
		MainDish:   mainDish,
		Rating:     rating,
		SideDishes: sides,
		Allergens:  allergens,
		Origin:     strings.Join(originParts, " "),
	}
}

func containsAll(line string, dishes []string) bool {
	lower := strings.ToLower(line)
	for _, d := range dishes {
		if !strings.Contains(lower, strings.ToLower(d)) {
			return false
		}
	}
	return true
}

// mostlyASCIILetters filters the English translation lines the site
// interleaves with the Korean menu.
func mostlyASCIILetters(line string) bool {
	var letters, total int
	for _, r := range line {
		if r == ' ' {
			continue
		}
		total++
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			letters++
		}
	}
	return total > 0 && letters*2 > total
}
